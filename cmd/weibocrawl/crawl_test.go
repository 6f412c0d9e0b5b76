package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"weibocrawl/internal/testserver"
	"weibocrawl/pkg/auth"
	"weibocrawl/pkg/config"
	"weibocrawl/pkg/crawler"
	crawlerrors "weibocrawl/pkg/errors"
	"weibocrawl/pkg/ratelimit"
	"weibocrawl/pkg/ui"
)

func testConfig(t *testing.T, srv *testserver.Server) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Weibo.BaseURL = srv.URL()
	cfg.Weibo.Cookies = "SUB=sub-cookie; XSRF-TOKEN=xsrf-token"
	cfg.Output.BaseDirectory = t.TempDir()
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "weibocrawl.prom")
	return cfg
}

func noSleep() *ratelimit.Jitter {
	return ratelimit.NewJitter(ratelimit.WithSleep(ratelimit.NoSleep))
}

func TestCrawlWiresEverything(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()

	srv.SetProfile("100", testserver.JSON(testserver.ProfileBody(map[string]any{"screen_name": "Alice"})))
	srv.SetPage("100", 1, testserver.JSON(testserver.PageBody(
		testserver.Item{ID: "1", Text: "first"},
		testserver.Item{ID: "2", Text: "second"},
	)))

	cfg := testConfig(t, srv)
	ok, summary, err := crawl(context.Background(), cfg, []string{"100"}, crawler.AllPhases, noSleep())
	require.NoError(t, err)
	assert.True(t, ok)

	totals := summary.Totals()
	assert.Equal(t, 1, totals.ProfilesSaved)
	assert.Equal(t, 2, totals.PostsSaved)

	for _, req := range srv.Requests() {
		assert.Contains(t, req.Cookie, "SUB=sub-cookie")
		assert.Equal(t, "xsrf-token", req.XSRF)
	}

	_, err = os.Stat(filepath.Join(cfg.Output.BaseDirectory, "weibo_user_info.csv"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(cfg.Output.BaseDirectory, "posts", "100.csv"))
	assert.NoError(t, err)

	prom, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "weibocrawl_last_run_success 1")

	var out bytes.Buffer
	require.NoError(t, printStatus(&out, cfg.Output.BaseDirectory))
	status := out.String()
	assert.Contains(t, status, "Profiles stored: 1")
	assert.Contains(t, status, "(completed)")
	assert.Contains(t, status, "100  stored posts: 2")
	assert.Contains(t, status, "posts: 2 saved, 0 skipped, 0 expanded over 1 pages, stopped: not_ok")
}

func TestCrawlWithoutJournal(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()

	cfg := testConfig(t, srv)
	cfg.Journal.Enabled = false
	cfg.Metrics.Textfile = ""

	ok, _, err := crawl(context.Background(), cfg, []string{"100"}, crawler.Phases{Profiles: true}, noSleep())
	require.NoError(t, err)
	assert.True(t, ok)

	var out bytes.Buffer
	require.NoError(t, printStatus(&out, cfg.Output.BaseDirectory))
	assert.Contains(t, out.String(), "No run journal found")
	assert.Equal(t, 0, srv.ListingCalls("100"))
}

func TestResolveCookies(t *testing.T) {
	store := func(t *testing.T, creds ...*auth.Credential) func() (*auth.Manager, error) {
		manager, _ := auth.NewMemoryManager()
		for _, c := range creds {
			require.NoError(t, manager.Store(c))
		}
		return func() (*auth.Manager, error) { return manager, nil }
	}

	t.Run("configured cookies win", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Weibo.Cookies = "SUB=configured"
		called := false
		err := resolveCookies(cfg, "", func() (*auth.Manager, error) {
			called = true
			return nil, errors.New("unused")
		})
		require.NoError(t, err)
		assert.False(t, called)
		assert.Equal(t, "SUB=configured", cfg.Weibo.Cookies)
	})

	t.Run("default credential", func(t *testing.T) {
		cfg := config.DefaultConfig()
		err := resolveCookies(cfg, "", store(t,
			&auth.Credential{Name: "b", Cookies: "SUB=b"},
			&auth.Credential{Name: "a", Cookies: "SUB=a", UserAgent: "agent-a"},
		))
		require.NoError(t, err)
		assert.Equal(t, "SUB=a", cfg.Weibo.Cookies)
		assert.Equal(t, "agent-a", cfg.Weibo.UserAgent)
	})

	t.Run("named credential overrides config", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Weibo.Cookies = "SUB=configured"
		err := resolveCookies(cfg, "b", store(t,
			&auth.Credential{Name: "a", Cookies: "SUB=a"},
			&auth.Credential{Name: "b", Cookies: "SUB=b"},
		))
		require.NoError(t, err)
		assert.Equal(t, "SUB=b", cfg.Weibo.Cookies)
		assert.Equal(t, config.DefaultUserAgent, cfg.Weibo.UserAgent)
	})

	t.Run("nothing stored", func(t *testing.T) {
		cfg := config.DefaultConfig()
		err := resolveCookies(cfg, "", store(t))
		require.Error(t, err)
		assert.Equal(t, crawlerrors.KindConfiguration, crawlerrors.KindOf(err))
	})

	t.Run("unknown name", func(t *testing.T) {
		cfg := config.DefaultConfig()
		err := resolveCookies(cfg, "missing", store(t, &auth.Credential{Name: "a", Cookies: "SUB=a"}))
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrCredentialsNotFound)
	})
}

func TestMaskedConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Weibo.Cookies = "SUB=_2A25abcdefghijkl; XSRF-TOKEN=short"

	display := maskedConfig(cfg)
	assert.Equal(t, "SUB=_2A2...ijkl; XSRF-TOKEN=********", display.Weibo.Cookies)
	assert.Equal(t, "SUB=_2A25abcdefghijkl; XSRF-TOKEN=short", cfg.Weibo.Cookies)
}

func TestCheckConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Output.BaseDirectory = t.TempDir()

	problems, warnings := checkConfig(cfg)
	require.Len(t, problems, 1)
	assert.True(t, strings.HasPrefix(problems[0], "Account list:"))
	assert.Len(t, warnings, 1)

	cfg.Weibo.UserIDList = config.UserIDList{IDs: []string{"1"}}
	cfg.Weibo.Cookies = "SUB=x"
	problems, warnings = checkConfig(cfg)
	assert.Empty(t, problems)
	assert.Empty(t, warnings)
}

func TestPrintCredentials(t *testing.T) {
	var out bytes.Buffer
	ui.SetOutput(&out)
	t.Cleanup(func() { ui.SetOutput(os.Stdout) })

	manager, _ := auth.NewMemoryManager()
	require.NoError(t, printCredentials(&out, manager))
	assert.Contains(t, out.String(), "No stored credentials")

	out.Reset()
	require.NoError(t, manager.Store(&auth.Credential{Name: "work", Cookies: "SUB=0123456789abcdef", UserAgent: "ua"}))
	require.NoError(t, printCredentials(&out, manager))
	assert.Contains(t, out.String(), "1. Name: work")
	assert.Contains(t, out.String(), "Cookies: SUB=0123...cdef")
	assert.NotContains(t, out.String(), "0123456789abcdef")
}

func TestCrawlCredentialFlag(t *testing.T) {
	flag := crawlCmd.Flags().Lookup("credential")
	require.NotNil(t, flag)
	assert.Empty(t, flag.Shorthand)
	assert.Nil(t, crawlCmd.Flags().Lookup("account"))
	assert.NotNil(t, crawlCmd.Flags().Lookup("accounts"))
}
