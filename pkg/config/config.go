package config

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
	crawlerrors "weibocrawl/pkg/errors"
)

// Config holds all configuration options for the crawler
type Config struct {
	// Upstream session and account list
	Weibo WeiboConfig `yaml:"weibo" json:"weibo"`

	// Pacing and pagination
	Crawl CrawlConfig `yaml:"crawl" json:"crawl"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Journal JournalConfig `yaml:"journal" json:"journal"`
}

// WeiboConfig holds upstream-specific configuration
type WeiboConfig struct {
	Cookies    string     `yaml:"cookies" json:"cookies"`
	UserIDList UserIDList `yaml:"user_id_list" json:"user_id_list"`
	BaseURL    string     `yaml:"base_url" json:"base_url"`
	UserAgent  string     `yaml:"user_agent" json:"user_agent"`
}

// UserIDList is either an inline list of account IDs or a path to a text
// file holding one ID per line
type UserIDList struct {
	IDs  []string
	File string
}

// DelayRange bounds a uniformly random wait
type DelayRange struct {
	Min time.Duration `yaml:"min" json:"min"`
	Max time.Duration `yaml:"max" json:"max"`
}

// CrawlConfig holds pagination and pacing configuration
type CrawlConfig struct {
	MaxPages        int           `yaml:"max_pages" json:"max_pages"`
	ProfileDelay    DelayRange    `yaml:"profile_delay" json:"profile_delay"`
	PageDelay       DelayRange    `yaml:"page_delay" json:"page_delay"`
	LongTextDelay   DelayRange    `yaml:"long_text_delay" json:"long_text_delay"`
	AccountPause    time.Duration `yaml:"account_pause" json:"account_pause"`
	RequestTimeout  time.Duration `yaml:"request_timeout" json:"request_timeout"`
	StopOnEmptyPage bool          `yaml:"stop_on_empty_page" json:"stop_on_empty_page"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	Format  string `yaml:"format" json:"format"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// MetricsConfig controls the end-of-run Prometheus textfile
type MetricsConfig struct {
	Textfile string `yaml:"textfile" json:"textfile"`
}

// JournalConfig controls the per-account run journal
type JournalConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// DefaultUserAgent is sent when no user agent is configured
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Weibo: WeiboConfig{
			BaseURL:   "https://www.weibo.com",
			UserAgent: DefaultUserAgent,
		},
		Crawl: CrawlConfig{
			MaxPages:       200,
			ProfileDelay:   DelayRange{Min: 1 * time.Second, Max: 3 * time.Second},
			PageDelay:      DelayRange{Min: 5 * time.Second, Max: 10 * time.Second},
			LongTextDelay:  DelayRange{Min: 3 * time.Second, Max: 5 * time.Second},
			AccountPause:   10 * time.Second,
			RequestTimeout: 30 * time.Second,
		},
		Output: OutputConfig{
			BaseDirectory: "./weibo",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Journal: JournalConfig{
			Enabled: true,
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("WEIBOCRAWL_COOKIES"); v != "" {
		c.Weibo.Cookies = v
	}
	if v := os.Getenv("WEIBOCRAWL_USER_ID_LIST"); v != "" {
		c.Weibo.UserIDList = parseUserIDList(v)
	}
	if v := os.Getenv("WEIBOCRAWL_BASE_URL"); v != "" {
		c.Weibo.BaseURL = v
	}
	if v := os.Getenv("WEIBOCRAWL_USER_AGENT"); v != "" {
		c.Weibo.UserAgent = v
	}

	if v := os.Getenv("WEIBOCRAWL_MAX_PAGES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("WEIBOCRAWL_MAX_PAGES: %w", err))
		} else {
			c.Crawl.MaxPages = n
		}
	}
	if v := os.Getenv("WEIBOCRAWL_STOP_ON_EMPTY_PAGE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("WEIBOCRAWL_STOP_ON_EMPTY_PAGE: %w", err))
		} else {
			c.Crawl.StopOnEmptyPage = b
		}
	}

	if v := os.Getenv("WEIBOCRAWL_OUTPUT_DIR"); v != "" {
		c.Output.BaseDirectory = v
	}
	if v := os.Getenv("WEIBOCRAWL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("WEIBOCRAWL_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("WEIBOCRAWL_METRICS_TEXTFILE"); v != "" {
		c.Metrics.Textfile = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file. A relative
// user_id_list file is resolved against the config file's directory.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if f := c.Weibo.UserIDList.File; f != "" && !filepath.IsAbs(f) {
		c.Weibo.UserIDList.File = filepath.Join(filepath.Dir(path), f)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"weibocrawl.yaml",
		"weibocrawl.yml",
		filepath.Join(home, ".config", "weibocrawl", "config.yaml"),
		filepath.Join(home, ".config", "weibocrawl", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. Cookies and the account
// list are checked separately since cookies may come from a credential store.
func (c *Config) Validate() error {
	var errs []error

	if c.Weibo.BaseURL == "" {
		errs = append(errs, errors.New("base URL is required"))
	} else if u, err := url.Parse(c.Weibo.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid base URL %q", c.Weibo.BaseURL))
	}

	if c.Crawl.MaxPages <= 0 {
		errs = append(errs, errors.New("max pages must be positive"))
	}
	for name, r := range map[string]DelayRange{
		"profile_delay":   c.Crawl.ProfileDelay,
		"page_delay":      c.Crawl.PageDelay,
		"long_text_delay": c.Crawl.LongTextDelay,
	} {
		if r.Min < 0 || r.Max < r.Min {
			errs = append(errs, fmt.Errorf("%s must satisfy 0 <= min <= max", name))
		}
	}
	if c.Crawl.AccountPause < 0 {
		errs = append(errs, errors.New("account pause cannot be negative"))
	}
	if c.Crawl.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	if f := strings.ToLower(c.Logging.Format); f != "" && f != "console" && f != "json" {
		errs = append(errs, errors.New("log format must be console or json"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Cookies may be present, keep the file private
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["cookies"].(string); ok && v != "" {
		c.Weibo.Cookies = v
	}
	if v, ok := flags["accounts"].([]string); ok && len(v) > 0 {
		c.Weibo.UserIDList = UserIDList{IDs: v}
	}
	if v, ok := flags["accounts-file"].(string); ok && v != "" {
		c.Weibo.UserIDList = UserIDList{File: v}
	}
	if v, ok := flags["base-url"].(string); ok && v != "" {
		c.Weibo.BaseURL = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["max-pages"].(int); ok && v > 0 {
		c.Crawl.MaxPages = v
	}
	if v, ok := flags["stop-on-empty-page"].(bool); ok && v {
		c.Crawl.StopOnEmptyPage = true
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-file"].(string); ok && v != "" {
		c.Logging.File = v
	}
	if v, ok := flags["metrics-textfile"].(string); ok && v != "" {
		c.Metrics.Textfile = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// godotenv never overrides variables that are already set
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".weibocrawl.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Accounts resolves the configured account list into canonical IDs: trimmed,
// blank entries dropped, duplicates removed keeping the first occurrence.
// An ID that could not be used as a file name is a Configuration error.
func (c *Config) Accounts() ([]string, error) {
	ids := c.Weibo.UserIDList.IDs
	if f := c.Weibo.UserIDList.File; f != "" {
		var err error
		ids, err = readIDFile(f)
		if err != nil {
			return nil, err
		}
	}

	ids = lo.Uniq(lo.FilterMap(ids, func(id string, _ int) (string, bool) {
		id = strings.TrimSpace(id)
		return id, id != ""
	}))
	if len(ids) == 0 {
		return nil, errors.New("user_id_list is empty")
	}
	for _, id := range ids {
		if err := ValidateAccountID(id); err != nil {
			return nil, crawlerrors.Configuration("resolve accounts", err)
		}
	}
	return ids, nil
}

// ValidateAccountID rejects IDs that would not stay inside the posts
// directory once used as a file name
func ValidateAccountID(id string) error {
	switch {
	case id == "" || id == "." || id == "..":
		return fmt.Errorf("invalid account ID %q", id)
	case strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, filepath.Separator):
		return fmt.Errorf("account ID %q contains a path separator", id)
	case strings.Contains(id, ".."):
		return fmt.Errorf("account ID %q contains \"..\"", id)
	case strings.ContainsRune(id, 0):
		return fmt.Errorf("account ID %q contains a NUL byte", id)
	}
	return nil
}

func readIDFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open user_id_list file: %w", err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		ids = append(ids, strings.TrimPrefix(scanner.Text(), "\ufeff"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read user_id_list file: %w", err)
	}
	return ids, nil
}

// ParseCookies splits a "k1=v1; k2=v2" header string into a map. Pairs
// without "=" or with an empty key are dropped; values may contain "=".
func ParseCookies(raw string) map[string]string {
	cookies := make(map[string]string)
	for _, part := range strings.Split(raw, ";") {
		name, value, found := strings.Cut(strings.TrimSpace(part), "=")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			continue
		}
		cookies[name] = strings.TrimSpace(value)
	}
	return cookies
}

// parseUserIDList interprets a single string as either a .txt path or a
// comma separated list of IDs
func parseUserIDList(s string) UserIDList {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(strings.ToLower(s), ".txt") {
		return UserIDList{File: s}
	}
	return UserIDList{IDs: strings.Split(s, ",")}
}

// UnmarshalYAML accepts a sequence of IDs or a scalar naming a .txt file
func (u *UserIDList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*u = parseUserIDList(node.Value)
		return nil
	case yaml.SequenceNode:
		ids := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("user_id_list line %d: expected a scalar ID", item.Line)
			}
			ids = append(ids, canonicalScalar(item))
		}
		*u = UserIDList{IDs: ids}
		return nil
	default:
		return fmt.Errorf("user_id_list line %d: expected a list or a file path", node.Line)
	}
}

// MarshalYAML writes the file path when set, the inline list otherwise
func (u UserIDList) MarshalYAML() (interface{}, error) {
	if u.File != "" {
		return u.File, nil
	}
	return u.IDs, nil
}

// canonicalScalar renders a YAML scalar as ID text; integral floats such as
// 1.6e9 lose their exponent
func canonicalScalar(node *yaml.Node) string {
	if node.Tag == "!!float" {
		if f, err := strconv.ParseFloat(node.Value, 64); err == nil && f == math.Trunc(f) {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	return strings.TrimSpace(node.Value)
}
