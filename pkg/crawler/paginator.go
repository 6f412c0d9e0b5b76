package crawler

import (
	"context"
	"fmt"
	"net/http"

	"weibocrawl/pkg/config"
	crawlerrors "weibocrawl/pkg/errors"
	"weibocrawl/pkg/logger"
	"weibocrawl/pkg/storage"
	"weibocrawl/pkg/weibo"
)

// StopReason tells why pagination of an account ended
type StopReason string

const (
	StopMaxPages   StopReason = "max_pages"
	StopNotOK      StopReason = "not_ok"
	StopEmpty      StopReason = "empty"
	StopHTTPStatus StopReason = "http_status"
	StopTransport  StopReason = "transport"
	StopAborted    StopReason = "aborted"
)

// PostStats summarizes the pagination of one account
type PostStats struct {
	AccountID string
	Pages     int
	Saved     int
	Skipped   int
	Expanded  int
	// Missing counts listing items without an id
	Missing int
	Stop    StopReason
	Status  int
	Err     error
}

// PostPaginator walks an account's listing pages and stores every post not
// yet in the account's post table
type PostPaginator struct {
	deps     Deps
	settings Settings
	expander *LongTextExpander
}

// NewPostPaginator creates a post paginator
func NewPostPaginator(deps Deps, settings Settings) *PostPaginator {
	deps = deps.withDefaults()
	return &PostPaginator{
		deps:     deps,
		settings: settings,
		expander: NewLongTextExpander(deps, settings),
	}
}

// Run requests pages 1..MaxPages of accountID, waiting the page delay before
// each request. A page that fails or has ok != 1 ends the walk; nothing
// after it is requested. Items are appended one at a time as they are
// read. The returned error is a storage failure, cancellation, or an
// account ID that cannot name a post table.
func (p *PostPaginator) Run(ctx context.Context, accountID string) (PostStats, error) {
	if err := config.ValidateAccountID(accountID); err != nil {
		return p.abort(PostStats{AccountID: accountID}, crawlerrors.Configuration("paginate posts", err))
	}

	log := p.deps.Logger.WithField("account", accountID)
	table := storage.PostTable(p.settings.BaseDir, accountID)
	headers := p.deps.Session.Headers(accountID)
	cookies := p.deps.Session.HTTPCookies()

	stats := PostStats{AccountID: accountID}

	for page := 1; page <= p.settings.MaxPages; page++ {
		d, err := p.deps.Waiter.Wait(ctx, p.settings.PageDelay)
		p.deps.Metrics.Waited("page", d)
		if err != nil {
			return p.abort(stats, err)
		}

		res, err := p.deps.Client.Fetch(ctx, p.deps.Session.Endpoints.ListingURL(accountID, page), headers, cookies)
		if err != nil {
			if ctx.Err() != nil {
				return p.abort(stats, ctx.Err())
			}
			log.WithError(err).WithField("page", page).Warn("Listing request failed, stopping pagination")
			stats.Stop = StopTransport
			stats.Err = err
			p.deps.Metrics.SoftFailure("listing")
			break
		}

		if res.Status != http.StatusOK || !weibo.OK(res.Body) {
			stats.Stop = StopNotOK
			if res.Status != http.StatusOK {
				stats.Stop = StopHTTPStatus
			}
			stats.Status = res.Status
			stats.Err = crawlerrors.TransientAPI("fetch listing", accountID, page, res.Status,
				fmt.Errorf("ok=%s", weibo.OKValue(res.Body)))

			fields := map[string]interface{}{
				"page":   page,
				"status": res.Status,
				"ok":     weibo.OKValue(res.Body),
			}
			if hint := sessionHint(res.Status, res.Body); hint != "" {
				fields["hint"] = hint
			}
			log.WarnWithFields("Listing page not ok, stopping pagination", fields)
			p.deps.Metrics.SoftFailure("listing")
			break
		}

		stats.Pages++
		p.deps.Metrics.PageFetched()

		items, missing := weibo.ParsePage(res.Body)
		if missing > 0 {
			stats.Missing += missing
			log.DebugWithFields("Listing items without id skipped", map[string]interface{}{
				"page":  page,
				"count": missing,
			})
		}

		if len(items) == 0 && missing == 0 && p.settings.StopOnEmptyPage {
			log.WithField("page", page).Info("Listing page empty, stopping pagination")
			stats.Stop = StopEmpty
			break
		}

		saved, skipped := 0, 0
		for _, item := range items {
			exists, err := p.deps.Store.Exists(table, item.Post.ID)
			if err != nil {
				return p.abort(stats, err)
			}
			if exists {
				skipped++
				stats.Skipped++
				p.deps.Metrics.RecordSkipped("posts")
				continue
			}

			post := item.Post
			if item.IsLongText {
				text, expanded, err := p.expander.Expand(ctx, headers, item.MblogID, post.Text)
				if err != nil {
					return p.abort(stats, err)
				}
				post.Text = text
				if expanded {
					stats.Expanded++
				}
			}

			if err := p.deps.Store.Append(table, post.Row()); err != nil {
				log.WithError(err).WithField("post", post.ID).Error("Failed to store post")
				return p.abort(stats, err)
			}
			saved++
			stats.Saved++
			p.deps.Metrics.RecordSaved("posts")
		}
		logger.LogPageProgress(log, accountID, page, saved, skipped)
	}

	if stats.Stop == "" {
		stats.Stop = StopMaxPages
	}
	p.deps.Metrics.PaginationStopped(string(stats.Stop))

	log.InfoWithFields("Pagination finished", map[string]interface{}{
		"pages":    stats.Pages,
		"saved":    stats.Saved,
		"skipped":  stats.Skipped,
		"expanded": stats.Expanded,
		"stop":     string(stats.Stop),
	})
	return stats, nil
}

func (p *PostPaginator) abort(stats PostStats, err error) (PostStats, error) {
	stats.Stop = StopAborted
	stats.Err = err
	p.deps.Metrics.PaginationStopped(string(StopAborted))
	return stats, err
}
