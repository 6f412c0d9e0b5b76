package crawler

import (
	"context"
	"time"

	"github.com/samber/lo"
	"weibocrawl/pkg/config"
	crawlerrors "weibocrawl/pkg/errors"
	"weibocrawl/pkg/journal"
	"weibocrawl/pkg/logger"
	"weibocrawl/pkg/storage"
)

// Phases selects which parts of the crawl run
type Phases struct {
	Profiles bool
	Posts    bool
}

// AllPhases runs the profile phase then the post phase
var AllPhases = Phases{Profiles: true, Posts: true}

// Summary collects what a run did
type Summary struct {
	Profiles []ProfileResult
	Posts    []PostStats
}

// Totals are the headline numbers of a Summary
type Totals struct {
	ProfilesSaved   int
	ProfilesSkipped int
	ProfilesFailed  int
	Pages           int
	PostsSaved      int
	PostsSkipped    int
	PostsExpanded   int
}

// Totals adds up the per-account results
func (s Summary) Totals() Totals {
	countProfiles := func(outcome string) int {
		return lo.CountBy(s.Profiles, func(r ProfileResult) bool { return r.Outcome == outcome })
	}
	return Totals{
		ProfilesSaved:   countProfiles(journal.ProfileSaved),
		ProfilesSkipped: countProfiles(journal.ProfileSkipped),
		ProfilesFailed:  countProfiles(journal.ProfileFailed),
		Pages:           lo.SumBy(s.Posts, func(p PostStats) int { return p.Pages }),
		PostsSaved:      lo.SumBy(s.Posts, func(p PostStats) int { return p.Saved }),
		PostsSkipped:    lo.SumBy(s.Posts, func(p PostStats) int { return p.Skipped }),
		PostsExpanded:   lo.SumBy(s.Posts, func(p PostStats) int { return p.Expanded }),
	}
}

// Driver runs the profile phase over every account, then paginates each
// account's posts in list order with a fixed pause after each one
type Driver struct {
	deps     Deps
	settings Settings
	phases   Phases
	profiles *ProfileFetcher
	posts    *PostPaginator
}

// NewDriver creates a pipeline driver
func NewDriver(deps Deps, settings Settings, phases Phases) *Driver {
	deps = deps.withDefaults()
	return &Driver{
		deps:     deps,
		settings: settings,
		phases:   phases,
		profiles: NewProfileFetcher(deps, settings),
		posts:    NewPostPaginator(deps, settings),
	}
}

// Run crawls accounts. It reports true when every selected phase finished
// for every account; soft failures do not change that. A storage failure or
// cancellation ends the run early and is returned. Account IDs that cannot
// name a post table are rejected before any request.
func (d *Driver) Run(ctx context.Context, accounts []string) (bool, Summary, error) {
	log := d.deps.Logger
	var summary Summary

	for _, id := range accounts {
		if err := config.ValidateAccountID(id); err != nil {
			return false, summary, crawlerrors.Configuration("start crawl", err)
		}
	}

	logger.LogComponentStart(log, "driver", map[string]interface{}{
		"accounts":  len(accounts),
		"profiles":  d.phases.Profiles,
		"posts":     d.phases.Posts,
		"max_pages": d.settings.MaxPages,
		"output":    d.settings.BaseDir,
	})

	if err := d.deps.Journal.Begin(accounts); err != nil {
		log.WithError(err).Warn("Failed to start run journal")
	}

	if d.phases.Profiles {
		results, err := d.profiles.Run(ctx, accounts)
		summary.Profiles = results
		for _, r := range results {
			if jerr := d.deps.Journal.RecordProfile(r.AccountID, r.Outcome, r.Status, r.Err); jerr != nil {
				log.WithError(jerr).Warn("Failed to update run journal")
			}
		}
		if err != nil {
			return d.finish(summary, err)
		}
	}

	if d.phases.Posts {
		for _, id := range accounts {
			stats, err := d.crawlPosts(ctx, id)
			summary.Posts = append(summary.Posts, stats)
			if err != nil {
				return d.finish(summary, err)
			}
		}
	}

	return d.finish(summary, nil)
}

// crawlPosts paginates one account and then holds the account pause
func (d *Driver) crawlPosts(ctx context.Context, accountID string) (PostStats, error) {
	if err := d.deps.Store.EnsureDir(storage.PostsDir(d.settings.BaseDir)); err != nil {
		return PostStats{AccountID: accountID, Stop: StopAborted, Err: err}, err
	}

	stats, err := d.posts.Run(ctx, accountID)

	entry := journal.PostsEntry{
		Pages:    stats.Pages,
		Saved:    stats.Saved,
		Skipped:  stats.Skipped,
		Expanded: stats.Expanded,
		Stop:     string(stats.Stop),
		Status:   stats.Status,
	}
	if stats.Err != nil {
		entry.Error = stats.Err.Error()
	}
	if jerr := d.deps.Journal.RecordPosts(accountID, entry); jerr != nil {
		d.deps.Logger.WithError(jerr).Warn("Failed to update run journal")
	}
	if err != nil {
		return stats, err
	}

	d.deps.Logger.WithField("pause", d.settings.AccountPause).Debug("Pausing before next account")
	if err := d.deps.Waiter.Pause(ctx, d.settings.AccountPause); err != nil {
		return stats, err
	}
	d.deps.Metrics.Waited("account_pause", d.settings.AccountPause)
	return stats, nil
}

func (d *Driver) finish(summary Summary, err error) (bool, Summary, error) {
	ok := err == nil
	if jerr := d.deps.Journal.Finish(ok); jerr != nil {
		d.deps.Logger.WithError(jerr).Warn("Failed to finish run journal")
	}
	d.deps.Metrics.RunFinished(ok, time.Now())

	if err != nil {
		d.deps.Logger.WithError(err).Error("Crawl aborted")
		logger.LogComponentStop(d.deps.Logger, "driver", "aborted")
		return false, summary, err
	}

	t := summary.Totals()
	d.deps.Logger.InfoWithFields("Crawl finished", map[string]interface{}{
		"profiles_saved":  t.ProfilesSaved,
		"profiles_failed": t.ProfilesFailed,
		"pages":           t.Pages,
		"posts_saved":     t.PostsSaved,
		"posts_skipped":   t.PostsSkipped,
	})
	logger.LogComponentStop(d.deps.Logger, "driver", "completed")
	return true, summary, nil
}
