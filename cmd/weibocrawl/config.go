package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"weibocrawl/pkg/auth"
	"weibocrawl/pkg/config"
	"weibocrawl/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage weibocrawl configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (WEIBOCRAWL_*) and .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as 'weibocrawl.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging every source.

Cookie values are masked.`,
	Run: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Delay ranges and page limits
  - The account list and its file
  - Output and log paths`,
	Run: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# weibocrawl configuration file
#
# Every option can also be set with an environment variable prefixed with
# WEIBOCRAWL_, for example WEIBOCRAWL_COOKIES or WEIBOCRAWL_USER_ID_LIST.

weibo:
  # Cookie header copied from a logged-in browser session.
  # Leave empty to use a credential stored with 'weibocrawl auth set'.
  cookies: ""

  # Accounts to crawl: an inline list, or the path of a .txt file with
  # one account ID per line (relative to this file)
  user_id_list:
    - "1669879400"

  base_url: "https://www.weibo.com"
  user_agent: ""

crawl:
  # Listing pages fetched per account at most
  max_pages: 200

  # Random waits between requests
  profile_delay:
    min: 1s
    max: 3s
  page_delay:
    min: 5s
    max: 10s
  long_text_delay:
    min: 3s
    max: 5s

  # Fixed pause after each account's posts
  account_pause: 10s

  request_timeout: 30s

  # Stop paginating at the first page without posts
  stop_on_empty_page: false

output:
  base_directory: "./weibo"

logging:
  # debug, info, warn, error
  level: "info"
  # console or json
  format: "console"
  # Optional file receiving a copy of every log line
  file: ""

metrics:
  # Optional Prometheus textfile written when a run ends
  textfile: ""

journal:
  # Keep journal.json with per-account outcomes in the output directory
  enabled: true
`

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = "weibocrawl.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Add the accounts to crawl under weibo.user_id_list")
	fmt.Println("2. Store your browser cookies with 'weibocrawl auth set'")
	fmt.Println("3. Run 'weibocrawl config validate' to check the configuration")
	fmt.Println("4. Start crawling with 'weibocrawl crawl'")
}

// maskedConfig returns a copy of cfg that is safe to print
func maskedConfig(cfg *config.Config) config.Config {
	display := *cfg
	if display.Weibo.Cookies != "" {
		display.Weibo.Cookies = (&auth.Credential{Cookies: cfg.Weibo.Cookies}).Masked().Cookies
	}
	return display
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	display := maskedConfig(cfg)
	data, err := yaml.Marshal(&display)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		os.Exit(1)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (WEIBOCRAWL_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (searched in default locations)")
	}
	fmt.Println("4. Default values")
}

// checkConfig returns problems that stop a crawl and warnings that do not
func checkConfig(cfg *config.Config) (problems, warnings []string) {
	if _, err := cfg.Accounts(); err != nil {
		problems = append(problems, fmt.Sprintf("Account list: %v", err))
	}

	if len(config.ParseCookies(cfg.Weibo.Cookies)) == 0 {
		warnings = append(warnings, "No cookies configured, a stored credential will be needed")
	}
	if cfg.Crawl.AccountPause == 0 {
		warnings = append(warnings, "account_pause is 0, accounts are crawled back to back")
	}

	if err := os.MkdirAll(cfg.Output.BaseDirectory, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("Cannot create output directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create log directory: %v", err))
		}
	}
	if cfg.Metrics.Textfile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Metrics.Textfile), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create metrics directory: %v", err))
		}
	}

	return problems, warnings
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	if configFile != "" {
		ui.PrintInfo("Validating configuration", configFile)
	} else {
		ui.PrintInfo("Validating configuration", "default locations")
	}

	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		os.Exit(1)
	}

	problems, warnings := checkConfig(cfg)

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		os.Exit(1)
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	accounts, _ := cfg.Accounts()
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Accounts: %d\n", len(accounts))
	fmt.Printf("  Output directory: %s\n", cfg.Output.BaseDirectory)
	fmt.Printf("  Max pages: %d\n", cfg.Crawl.MaxPages)
	fmt.Printf("  Page delay: %s to %s\n", cfg.Crawl.PageDelay.Min, cfg.Crawl.PageDelay.Max)
	fmt.Printf("  Account pause: %s\n", cfg.Crawl.AccountPause)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}
