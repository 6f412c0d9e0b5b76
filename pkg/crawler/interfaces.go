package crawler

import (
	"context"
	"net/http"
	"time"

	"weibocrawl/pkg/config"
	crawlerrors "weibocrawl/pkg/errors"
	"weibocrawl/pkg/journal"
	"weibocrawl/pkg/logger"
	"weibocrawl/pkg/ratelimit"
	"weibocrawl/pkg/storage"
	"weibocrawl/pkg/weibo"
)

// Fetcher performs one GET against the upstream API
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string, cookies []*http.Cookie) (*weibo.Response, error)
}

// Store is the record store the crawl deduplicates against and appends to
type Store interface {
	Exists(t storage.Table, key string) (bool, error)
	Append(t storage.Table, row []string) error
	EnsureDir(dir string) error
}

// Waiter spaces out requests
type Waiter interface {
	Wait(ctx context.Context, r ratelimit.Range) (time.Duration, error)
	Pause(ctx context.Context, d time.Duration) error
}

// Recorder receives crawl counters, implemented by metrics.Collector
type Recorder interface {
	RecordSaved(table string)
	RecordSkipped(table string)
	PageFetched()
	PaginationStopped(reason string)
	LongText(expanded bool)
	SoftFailure(op string)
	Waited(kind string, d time.Duration)
	RunFinished(success bool, at time.Time)
}

// Journal receives per-account outcomes, implemented by journal.Manager
type Journal interface {
	Begin(accounts []string) error
	RecordProfile(accountID, outcome string, status int, cause error) error
	RecordPosts(accountID string, entry journal.PostsEntry) error
	Finish(completed bool) error
}

// Deps are the collaborators shared by every crawl component. Client,
// Store and Session are required; the rest default to no-ops.
type Deps struct {
	Client  Fetcher
	Store   Store
	Waiter  Waiter
	Session *weibo.Session
	Metrics Recorder
	Journal Journal
	Logger  logger.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Waiter == nil {
		d.Waiter = ratelimit.NewJitter()
	}
	if d.Metrics == nil {
		d.Metrics = nopRecorder{}
	}
	if d.Journal == nil {
		d.Journal = nopJournal{}
	}
	if d.Logger == nil {
		d.Logger = logger.GetLogger()
	}
	return d
}

// Settings tune the crawl
type Settings struct {
	BaseDir         string
	MaxPages        int
	ProfileDelay    ratelimit.Range
	PageDelay       ratelimit.Range
	LongTextDelay   ratelimit.Range
	AccountPause    time.Duration
	StopOnEmptyPage bool
}

// SettingsFromConfig converts the crawl and output sections of cfg
func SettingsFromConfig(cfg *config.Config) Settings {
	toRange := func(r config.DelayRange) ratelimit.Range {
		return ratelimit.Range{Min: r.Min, Max: r.Max}
	}
	return Settings{
		BaseDir:         cfg.Output.BaseDirectory,
		MaxPages:        cfg.Crawl.MaxPages,
		ProfileDelay:    toRange(cfg.Crawl.ProfileDelay),
		PageDelay:       toRange(cfg.Crawl.PageDelay),
		LongTextDelay:   toRange(cfg.Crawl.LongTextDelay),
		AccountPause:    cfg.Crawl.AccountPause,
		StopOnEmptyPage: cfg.Crawl.StopOnEmptyPage,
	}
}

type nopRecorder struct{}

func (nopRecorder) RecordSaved(string)           {}
func (nopRecorder) RecordSkipped(string)         {}
func (nopRecorder) PageFetched()                 {}
func (nopRecorder) PaginationStopped(string)     {}
func (nopRecorder) LongText(bool)                {}
func (nopRecorder) SoftFailure(string)           {}
func (nopRecorder) Waited(string, time.Duration) {}
func (nopRecorder) RunFinished(bool, time.Time)  {}

type nopJournal struct{}

func (nopJournal) Begin([]string) error                           { return nil }
func (nopJournal) RecordProfile(string, string, int, error) error { return nil }
func (nopJournal) RecordPosts(string, journal.PostsEntry) error   { return nil }
func (nopJournal) Finish(bool) error                              { return nil }

// sessionHint explains a soft failure that usually means expired cookies
func sessionHint(status int, body []byte) string {
	if weibo.LoginRequired(body) {
		return "upstream asks for login, refresh the session cookies"
	}
	if crawlerrors.LikelyExpiredSession(status) {
		return "status suggests the session cookies expired"
	}
	return ""
}
