// Package logger provides the structured logging interface used across the
// crawler.
//
// It wraps zerolog behind a small Logger interface so components can carry
// per-account fields and tests can swap in a capturing TestLogger.
//
// Basic Usage:
//
//	err := logger.Initialize(&config.LoggingConfig{
//	    Level: "info",
//	    File:  "logs/weibocrawl.log",
//	})
//	defer logger.Close()
//
//	logger.Info("Crawl started")
//	logger.WithField("account_id", "1669879400").Info("Profile saved")
//
// When File is set, every line goes to both the console and the file.
//
// Configuration options:
// - Level: debug, info, warn, error or disabled
// - File: log file path (empty for console only)
// - Format: "console" (default) or "json"
// - NoColor: disable ANSI colours on the console
package logger
