package crawler

import (
	"context"
	"fmt"
	"net/http"

	crawlerrors "weibocrawl/pkg/errors"
	"weibocrawl/pkg/journal"
	"weibocrawl/pkg/storage"
	"weibocrawl/pkg/weibo"
)

// ProfileResult is the outcome of the profile phase for one account
type ProfileResult struct {
	AccountID string
	// Outcome is one of journal.ProfileSaved, ProfileSkipped or ProfileFailed
	Outcome string
	Status  int
	Err     error
}

// ProfileFetcher stores the profile of every account that has none yet
type ProfileFetcher struct {
	deps     Deps
	settings Settings
	table    storage.Table
}

// NewProfileFetcher creates a profile fetcher
func NewProfileFetcher(deps Deps, settings Settings) *ProfileFetcher {
	return &ProfileFetcher{
		deps:     deps.withDefaults(),
		settings: settings,
		table:    storage.ProfileTable(settings.BaseDir),
	}
}

// Run fetches profiles in list order. Soft failures are logged and recorded
// in the results; the returned error is a storage failure or cancellation.
func (p *ProfileFetcher) Run(ctx context.Context, accounts []string) ([]ProfileResult, error) {
	results := make([]ProfileResult, 0, len(accounts))
	for _, id := range accounts {
		res, err := p.Fetch(ctx, id)
		if res.AccountID != "" {
			results = append(results, res)
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// Fetch handles one account. Accounts already in the profile table are
// skipped without a request or a wait; every fetch attempt is followed by
// the profile delay.
func (p *ProfileFetcher) Fetch(ctx context.Context, accountID string) (ProfileResult, error) {
	log := p.deps.Logger.WithField("account", accountID)
	result := ProfileResult{AccountID: accountID}

	exists, err := p.deps.Store.Exists(p.table, accountID)
	if err != nil {
		return ProfileResult{}, err
	}
	if exists {
		log.Info("Profile already stored, skipping")
		p.deps.Metrics.RecordSkipped("profiles")
		result.Outcome = journal.ProfileSkipped
		return result, nil
	}

	if err := p.fetchAndStore(ctx, accountID, &result); err != nil {
		return result, err
	}

	d, err := p.deps.Waiter.Wait(ctx, p.settings.ProfileDelay)
	p.deps.Metrics.Waited("profile", d)
	return result, err
}

func (p *ProfileFetcher) fetchAndStore(ctx context.Context, accountID string, result *ProfileResult) error {
	log := p.deps.Logger.WithField("account", accountID)
	session := p.deps.Session

	res, err := p.deps.Client.Fetch(ctx, session.Endpoints.ProfileURL(accountID),
		session.Headers(accountID), session.HTTPCookies())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		result.Outcome = journal.ProfileFailed
		result.Err = err
		log.WithError(err).Error("Profile request failed")
		p.deps.Metrics.SoftFailure("profile")
		return nil
	}
	result.Status = res.Status

	if res.Status != http.StatusOK || !weibo.OK(res.Body) {
		result.Outcome = journal.ProfileFailed
		result.Err = crawlerrors.TransientAPI("fetch profile", accountID, 0, res.Status,
			fmt.Errorf("ok=%s", weibo.OKValue(res.Body)))

		fields := map[string]interface{}{
			"status": res.Status,
			"ok":     weibo.OKValue(res.Body),
		}
		if hint := sessionHint(res.Status, res.Body); hint != "" {
			fields["hint"] = hint
		}
		log.ErrorWithFields("Failed to fetch profile", fields)
		p.deps.Metrics.SoftFailure("profile")
		return nil
	}

	record := weibo.ParseProfile(accountID, res.Body)
	if err := p.deps.Store.Append(p.table, record.Row()); err != nil {
		log.WithError(err).Error("Failed to store profile")
		result.Outcome = journal.ProfileFailed
		result.Err = err
		return err
	}

	result.Outcome = journal.ProfileSaved
	p.deps.Metrics.RecordSaved("profiles")
	log.InfoWithFields("Profile saved", map[string]interface{}{
		"nickname": record.Nickname,
	})
	return nil
}
