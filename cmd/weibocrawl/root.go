package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"weibocrawl/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "weibocrawl",
	Short: "Incremental crawler for Weibo profiles and posts",
	Long: `weibocrawl collects the profile and the post history of a list of Weibo
accounts into CSV files, using the session of a logged-in browser.

Runs are incremental: profiles and posts already present in the output
are skipped, so a crawl can be repeated or resumed at any time.

Features:
  - Secure cookie storage using the system keychain
  - Randomized pacing between requests
  - Long-text expansion of truncated posts
  - Per-account run journal and Prometheus textfile metrics`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			ui.SetQuietMode(true)
		}
		if !cmd.Flags().Changed("log-level") {
			switch {
			case verbose:
				logLevel = "debug"
			case quiet:
				logLevel = "error"
			}
		}

		if cmd.Name() == "crawl" {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./weibocrawl.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored log output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.SetVersionTemplate(`weibocrawl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
