// Package crawler implements the incremental crawl: a profile phase over
// every configured account followed by a per-account walk of the post
// listing.
//
// Everything runs on the calling goroutine. Requests are spaced out by the
// Waiter, and nothing already present in the record store is requested or
// written again, so a run can be repeated at any time to pick up new posts.
//
// Soft failures (a non-200 status, ok != 1, a transport error) are logged and
// end only the unit of work they hit: one profile, or the rest of one
// account's pages. Storage failures and cancellation end the run.
//
// Basic usage:
//
//	deps := crawler.Deps{
//		Client:  weibo.NewClient(&weibo.ClientConfig{Timeout: 30 * time.Second}),
//		Store:   storage.NewManager(),
//		Session: weibo.NewSession(cookies, userAgent, weibo.NewEndpoints(weibo.DefaultBaseURL)),
//	}
//	driver := crawler.NewDriver(deps, crawler.SettingsFromConfig(cfg), crawler.AllPhases)
//	ok, summary, err := driver.Run(ctx, accounts)
package crawler
