package testsession

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/okian/gaffer/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	// Initialize the logger first
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "session_test_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the session test tool.
func ShowHelp() {
	os.Stdout.WriteString(`Gaffer Session Test Tool
========================

Drives a full suggestion refinement conversation against a running Gaffer
service and verifies the returned sets.

Usage:
  go run cmd/test-session/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -manager int
        Manager id to open the session for (default 42)
  -data string
        Snapshot directory to seed before the test; must match the
        service's data_root (default: no seeding)
  -feedback string
        Feedback text for the regeneration turn
  -replaces int
        Number of single-suggestion replacement turns (default 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -log string
        Log file for test output (default: session_test_TIMESTAMP.log)
  -verbose
        Log every suggestion of every set
  -help
        Show this help message

Examples:
  # Seed ./data and run against a local service
  go run cmd/test-session/main.go -data ./data

  # Steer the session away from premium signings
  go run cmd/test-session/main.go -feedback "avoid athletes over 8.0m"

  # Churn through five replacement turns with full output
  go run cmd/test-session/main.go -replaces 5 -verbose
`)
}
