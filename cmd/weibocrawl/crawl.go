package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"resty.dev/v3"
	"weibocrawl/pkg/auth"
	"weibocrawl/pkg/config"
	"weibocrawl/pkg/crawler"
	crawlerrors "weibocrawl/pkg/errors"
	"weibocrawl/pkg/journal"
	"weibocrawl/pkg/logger"
	"weibocrawl/pkg/metrics"
	"weibocrawl/pkg/ratelimit"
	"weibocrawl/pkg/storage"
	"weibocrawl/pkg/ui"
	"weibocrawl/pkg/weibo"
)

var (
	// Crawl command flags
	cookiesFlag     string
	accountsFlag    []string
	accountsFile    string
	baseURL         string
	outputDir       string
	maxPages        int
	stopOnEmptyPage bool
	logFile         string
	metricsTextfile string
	profilesOnly    bool
	postsOnly       bool
	credentialName  string
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl profiles and posts of the configured accounts",
	Long: `Crawl the profile and the post history of every configured account.

Profiles are fetched first for all accounts, then each account's posts are
paginated newest first. Records already present in the output are skipped.

Cookies are taken from, in order:
  - The --cookies flag or WEIBOCRAWL_COOKIES
  - The configuration file
  - A stored credential (use 'weibocrawl auth set' to store one)`,
	Example: `  # Crawl two accounts into ./weibo
  weibocrawl crawl --accounts 1669879400,1223178222

  # Read account IDs from a file and stop at the first empty page
  weibocrawl crawl --accounts-file ids.txt --stop-on-empty-page

  # Only refresh profiles, using a stored credential
  weibocrawl crawl --profiles-only --credential work

  # Export metrics for the node exporter textfile collector
  weibocrawl crawl --metrics-textfile /var/lib/node_exporter/weibocrawl.prom`,
	Args: cobra.NoArgs,
	Run:  runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().StringVar(&cookiesFlag, "cookies", "", "raw Cookie header of a logged-in browser session")
	crawlCmd.Flags().StringSliceVar(&accountsFlag, "accounts", nil, "account IDs to crawl (comma separated)")
	crawlCmd.Flags().StringVar(&accountsFile, "accounts-file", "", "text file with one account ID per line")
	crawlCmd.Flags().StringVar(&baseURL, "base-url", "", "upstream base URL")
	crawlCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default: ./weibo)")
	crawlCmd.Flags().IntVar(&maxPages, "max-pages", 0, "maximum listing pages per account")
	crawlCmd.Flags().BoolVar(&stopOnEmptyPage, "stop-on-empty-page", false, "stop paginating at the first page without posts")
	crawlCmd.Flags().StringVar(&logFile, "log-file", "", "also write logs to this file")
	crawlCmd.Flags().StringVar(&metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file when the run ends")
	crawlCmd.Flags().BoolVar(&profilesOnly, "profiles-only", false, "only run the profile phase")
	crawlCmd.Flags().BoolVar(&postsOnly, "posts-only", false, "only run the post phase")
	crawlCmd.Flags().StringVar(&credentialName, "credential", "", "stored credential to use (see 'weibocrawl auth list')")

	crawlCmd.MarkFlagsMutuallyExclusive("profiles-only", "posts-only")
	crawlCmd.MarkFlagsMutuallyExclusive("accounts", "accounts-file")
}

func crawlFlags() map[string]interface{} {
	flags := map[string]interface{}{
		"cookies":            cookiesFlag,
		"accounts":           accountsFlag,
		"accounts-file":      accountsFile,
		"base-url":           baseURL,
		"output":             outputDir,
		"max-pages":          maxPages,
		"stop-on-empty-page": stopOnEmptyPage,
		"log-level":          logLevel,
		"log-file":           logFile,
		"metrics-textfile":   metricsTextfile,
	}
	return flags
}

func runCrawl(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, crawlFlags())
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}
	if noColor {
		cfg.Logging.NoColor = true
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		os.Exit(1)
	}
	defer logger.Close()
	logger.WithField("version", version).Info("weibocrawl starting")

	if err := resolveCookies(cfg, credentialName, newCredentialManager); err != nil {
		logger.WithError(err).Error("No usable cookies")
		ui.PrintError("No Weibo cookies configured", err.Error())
		fmt.Println("\nTo store a browser session securely, run:")
		fmt.Println("  weibocrawl auth set")
		fmt.Println("\nOr pass the Cookie header directly:")
		fmt.Printf("  export %s='SUB=...; XSRF-TOKEN=...'\n", auth.EnvCookies)
		os.Exit(1)
	}

	accounts, err := cfg.Accounts()
	if err != nil {
		err = crawlerrors.Configuration("resolve accounts", err)
		logger.WithError(err).Error("No accounts to crawl")
		ui.PrintError("No accounts to crawl", err.Error())
		os.Exit(1)
	}

	phases := crawler.AllPhases
	switch {
	case profilesOnly:
		phases = crawler.Phases{Profiles: true}
	case postsOnly:
		phases = crawler.Phases{Posts: true}
	}

	ui.PrintInfo("Accounts", fmt.Sprintf("%d", len(accounts)))
	ui.PrintInfo("Output", cfg.Output.BaseDirectory)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ok, summary, err := crawl(ctx, cfg, accounts, phases, ratelimit.NewJitter())

	fmt.Println()
	ui.PrintSummary(summary)

	switch {
	case errors.Is(err, context.Canceled):
		ui.PrintWarning("Crawl interrupted", "rerun the same command to continue")
	case err != nil:
		ui.PrintError("Crawl aborted", err.Error())
	case ok:
		ui.PrintSuccess("Crawl completed")
	}

	if !ok {
		logger.Close()
		os.Exit(1)
	}
}

// resolveCookies fills cfg.Weibo.Cookies from a stored credential when the
// configuration has none, or when a credential is named explicitly
func resolveCookies(cfg *config.Config, name string, newManager func() (*auth.Manager, error)) error {
	if name == "" && len(config.ParseCookies(cfg.Weibo.Cookies)) > 0 {
		return nil
	}

	manager, err := newManager()
	if err != nil {
		return crawlerrors.Configuration("open credential store", err)
	}

	var cred *auth.Credential
	if name != "" {
		cred, err = manager.Retrieve(name)
	} else {
		cred, err = manager.RetrieveDefault()
	}
	if err != nil {
		return crawlerrors.Configuration("load credentials", err)
	}

	cfg.Weibo.Cookies = cred.Cookies
	if cred.UserAgent != "" {
		cfg.Weibo.UserAgent = cred.UserAgent
	}
	if len(config.ParseCookies(cfg.Weibo.Cookies)) == 0 {
		return crawlerrors.Configuration("load credentials",
			fmt.Errorf("credential %q has no cookies", cred.Name))
	}

	logger.WithField("credential", cred.Name).Info("Using stored credentials")
	return nil
}

func newCredentialManager() (*auth.Manager, error) {
	return auth.NewManager()
}

// crawl wires the collaborators described by cfg and runs the driver. The
// metrics textfile, when configured, is written whatever the outcome.
func crawl(ctx context.Context, cfg *config.Config, accounts []string, phases crawler.Phases, waiter crawler.Waiter) (bool, crawler.Summary, error) {
	log := logger.GetLogger()

	collector, err := metrics.NewCollector()
	if err != nil {
		return false, crawler.Summary{}, fmt.Errorf("failed to create metrics collector: %w", err)
	}

	client := weibo.NewClient(&weibo.ClientConfig{
		Timeout:             cfg.Crawl.RequestTimeout,
		ResponseMiddlewares: []resty.ResponseMiddleware{collector.ResponseMiddleware},
		Logger:              log,
	})
	defer client.Close()

	deps := crawler.Deps{
		Client:  client,
		Store:   storage.NewManager(),
		Waiter:  waiter,
		Session: weibo.NewSession(config.ParseCookies(cfg.Weibo.Cookies), cfg.Weibo.UserAgent, weibo.NewEndpoints(cfg.Weibo.BaseURL)),
		Metrics: collector,
		Logger:  log,
	}
	if cfg.Journal.Enabled {
		deps.Journal = journal.NewManager(cfg.Output.BaseDirectory, log)
	}

	driver := crawler.NewDriver(deps, crawler.SettingsFromConfig(cfg), phases)
	ok, summary, runErr := driver.Run(ctx, accounts)

	if path := cfg.Metrics.Textfile; path != "" {
		if err := collector.WriteTextfile(path); err != nil {
			log.WithError(err).Warn("Failed to write metrics textfile")
		} else {
			log.WithField("path", path).Debug("Metrics textfile written")
		}
	}

	return ok, summary, runErr
}
