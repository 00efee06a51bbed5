package testsession

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/gaffer/pkg/logger"
)

// Run executes a complete refinement conversation against a live service:
// health check, open a session, steer it with feedback, replace individual
// suggestions, then verify the final set and tear the session down.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting gaffer session test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("managerID", config.ManagerID),
		logger.String("feedback", config.Feedback),
		logger.Int("replaces", config.Replaces),
		logger.String("timeout", config.Timeout.String()),
		logger.Any("verbose", config.Verbose))

	// Step 1: Seed the data snapshot if requested
	if config.DataDir != "" {
		if err := GenerateSnapshot(ctx, config); err != nil {
			return fmt.Errorf("snapshot generation failed: %w", err)
		}
	}

	// Step 2: Check service health
	client := newHTTPClient(config.Timeout)
	if err := checkServiceHealth(ctx, client, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 3: Open the session and get the initial set
	opened, err := openSession(ctx, client, config, stats)
	if err != nil {
		return fmt.Errorf("session open failed: %w", err)
	}
	sessionID := opened.SessionID
	displaySet(ctx, "initial set", &opened.Set, config.Verbose)

	// Step 4: Feedback turn
	current, err := sendFeedback(ctx, client, config, sessionID, stats)
	if err != nil {
		return fmt.Errorf("feedback turn failed: %w", err)
	}
	displaySet(ctx, "after feedback", &current.Set, config.Verbose)

	// Step 5: Replacement turns
	for i := 0; i < config.Replaces; i++ {
		replaced, err := replaceFirst(ctx, client, config, sessionID, &current.Set, stats)
		if err != nil {
			logger.Get().Warn(ctx, "replace turn failed", logger.Int("turn", i+1), logger.Error(err))
			stats.TurnsFailed++
			continue
		}
		current = replaced
		displaySet(ctx, fmt.Sprintf("after replace %d", i+1), &current.Set, config.Verbose)
	}

	// Step 6: Fetch the session detail and verify the final set
	detail, err := fetchDetail(ctx, client, config, sessionID)
	if err != nil {
		return fmt.Errorf("session detail fetch failed: %w", err)
	}
	if err := verifySession(ctx, config, detail, stats); err != nil {
		return fmt.Errorf("session verification failed: %w", err)
	}

	// Step 7: Close the session
	if err := closeSession(ctx, client, config, sessionID); err != nil {
		logger.Get().Warn(ctx, "session close failed", logger.Error(err))
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "test completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	// Accept any 200 response as healthy (the service returns Prometheus metrics)
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// openSession opens a refinement session for the configured manager.
func openSession(ctx context.Context, client *HTTPClient, config *Config, stats *Stats) (*SessionResponse, error) {
	logger.Get().Info(ctx, "opening session", logger.Int("managerID", config.ManagerID))

	body := map[string]int{"manager_id": config.ManagerID}
	resp, err := postSession(ctx, client, config.BaseURL+"/sessions", body, StatusCreated)
	if err != nil {
		return nil, err
	}

	stats.TurnsRun++
	stats.SuggestionsSeen += len(resp.Set.Suggestions)
	logger.Get().Info(ctx, "session opened",
		logger.String("sessionID", resp.SessionID),
		logger.Int("suggestions", len(resp.Set.Suggestions)))
	return resp, nil
}

// sendFeedback runs a full regeneration turn with the configured feedback text.
func sendFeedback(ctx context.Context, client *HTTPClient, config *Config, sessionID string, stats *Stats) (*SessionResponse, error) {
	logger.Get().Info(ctx, "sending feedback", logger.String("feedback", config.Feedback))

	url := config.BaseURL + "/sessions/" + sessionID + "/feedback"
	body := map[string]string{"feedback": config.Feedback}
	resp, err := postSession(ctx, client, url, body, StatusOK)
	if err != nil {
		return nil, err
	}

	stats.TurnsRun++
	stats.SuggestionsSeen += len(resp.Set.Suggestions)
	return resp, nil
}

// replaceFirst replaces the highest-priority suggestion of the current set.
func replaceFirst(ctx context.Context, client *HTTPClient, config *Config, sessionID string, set *SuggestionSet, stats *Stats) (*SessionResponse, error) {
	if len(set.Suggestions) == 0 {
		return nil, fmt.Errorf("no suggestions to replace")
	}
	target := set.Suggestions[0]
	stats.ReplacesAttempted++

	logger.Get().Info(ctx, "replacing suggestion",
		logger.Int("outID", target.Out.ID),
		logger.Int("inID", target.In.ID))

	url := config.BaseURL + "/sessions/" + sessionID + "/replace"
	body := map[string]int{"out_id": target.Out.ID, "in_id": target.In.ID}
	resp, err := postSession(ctx, client, url, body, StatusOK)
	if err != nil {
		return nil, err
	}

	stats.TurnsRun++
	stats.SuggestionsSeen += len(resp.Set.Suggestions)

	// Count the replace as applied only when the targeted pairing is gone.
	applied := true
	for _, s := range resp.Set.Suggestions {
		if s.Out.ID == target.Out.ID && s.In.ID == target.In.ID {
			applied = false
			break
		}
	}
	if applied {
		stats.ReplacesApplied++
	}
	return resp, nil
}

// fetchDetail retrieves the session state and turn history.
func fetchDetail(ctx context.Context, client *HTTPClient, config *Config, sessionID string) (*SessionDetail, error) {
	resp, err := client.Get(ctx, config.BaseURL+"/sessions/"+sessionID)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	raw, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}

	var detail SessionDetail
	if err := unmarshalJSON(raw, &detail); err != nil {
		return nil, fmt.Errorf("failed to decode session detail: %w", err)
	}
	return &detail, nil
}

// closeSession deletes the session.
func closeSession(ctx context.Context, client *HTTPClient, config *Config, sessionID string) error {
	resp, err := client.Delete(ctx, config.BaseURL+"/sessions/"+sessionID)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != StatusNoContent {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	logger.Get().Info(ctx, "session closed", logger.String("sessionID", sessionID))
	return nil
}

// displaySet logs the suggestions of a set.
func displaySet(ctx context.Context, label string, set *SuggestionSet, verbose bool) {
	logger.Get().Info(ctx, label,
		logger.Int("gameweek", set.Gameweek),
		logger.Int("suggestions", len(set.Suggestions)))
	if !verbose {
		return
	}
	for _, s := range set.Suggestions {
		logger.Get().Info(ctx, "suggestion",
			logger.Int("priority", s.Priority),
			logger.String("out", s.Out.Name),
			logger.String("in", s.In.Name),
			logger.Float64("projectedGain", s.ProjectedGain),
			logger.Int("bankAfterTenths", s.BankAfterTenths),
			logger.String("rationale", s.Rationale))
	}
}

// displayFinalStats prints the final test statistics.
func displayFinalStats(stats *Stats) {
	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("turnsRun", stats.TurnsRun),
		logger.Int("turnsFailed", stats.TurnsFailed),
		logger.Int("suggestionsSeen", stats.SuggestionsSeen),
		logger.Int("replacesAttempted", stats.ReplacesAttempted),
		logger.Int("replacesApplied", stats.ReplacesApplied),
		logger.String("duration", stats.Duration.String()))
}
