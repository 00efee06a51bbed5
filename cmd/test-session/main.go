package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/gaffer/internal/testsession"
)

// Default configuration constants.
const (
	defaultManagerID   = 42
	defaultReplaces    = 2
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 5 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		managerID = flag.Int("manager", defaultManagerID, "Manager id to open the session for")
		dataDir   = flag.String("data", "", "Snapshot directory to seed before the test (default: no seeding)")
		feedback  = flag.String("feedback", "prioritise in-form forwards and protect the bank", "Feedback text for the regeneration turn")
		replaces  = flag.Int("replaces", defaultReplaces, "Number of single-suggestion replacement turns")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		logFile   = flag.String("log", "", "Log file for test output (default: session_test_TIMESTAMP.log)")
		verbose   = flag.Bool("verbose", false, "Log every suggestion of every set")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testsession.ShowHelp()
		return
	}

	// Setup logging
	if err := testsession.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	// Create test configuration
	config := &testsession.Config{
		BaseURL:   *baseURL,
		ManagerID: *managerID,
		DataDir:   *dataDir,
		Feedback:  *feedback,
		Replaces:  *replaces,
		Timeout:   *timeout,
		LogFile:   *logFile,
		Verbose:   *verbose,
	}

	// Run the test
	if err := testsession.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		return
	}
}
