package crawler

import (
	"context"
	"net/http"

	"weibocrawl/pkg/weibo"
)

// LongTextExpander fetches the full text of posts whose listing entry is
// truncated
type LongTextExpander struct {
	deps     Deps
	settings Settings
}

// NewLongTextExpander creates a long text expander
func NewLongTextExpander(deps Deps, settings Settings) *LongTextExpander {
	return &LongTextExpander{deps: deps.withDefaults(), settings: settings}
}

// Expand returns the full text of the post identified by mblogID, or
// original when it cannot be obtained. The boolean reports whether the text
// was expanded. Only cancellation is returned as an error.
func (e *LongTextExpander) Expand(ctx context.Context, headers map[string]string, mblogID, original string) (string, bool, error) {
	log := e.deps.Logger.WithField("mblogid", mblogID)

	if mblogID == "" {
		log.Debug("Long post has no mblogid, keeping listing text")
		e.deps.Metrics.LongText(false)
		return original, false, nil
	}

	d, err := e.deps.Waiter.Wait(ctx, e.settings.LongTextDelay)
	e.deps.Metrics.Waited("long_text", d)
	if err != nil {
		return original, false, err
	}

	res, err := e.deps.Client.Fetch(ctx, e.deps.Session.Endpoints.LongTextURL(mblogID),
		headers, e.deps.Session.HTTPCookies())
	if err != nil {
		if ctx.Err() != nil {
			return original, false, ctx.Err()
		}
		log.WithError(err).Warn("Long text request failed, keeping listing text")
		return e.fallback(original)
	}

	if res.Status != http.StatusOK || !weibo.OK(res.Body) {
		log.WarnWithFields("Long text not available, keeping listing text", map[string]interface{}{
			"status": res.Status,
			"ok":     weibo.OKValue(res.Body),
		})
		return e.fallback(original)
	}

	text, ok := weibo.ParseLongText(res.Body)
	if !ok {
		log.Warn("Long text response has no content, keeping listing text")
		return e.fallback(original)
	}

	e.deps.Metrics.LongText(true)
	return text, true, nil
}

func (e *LongTextExpander) fallback(original string) (string, bool, error) {
	e.deps.Metrics.LongText(false)
	e.deps.Metrics.SoftFailure("long_text")
	return original, false, nil
}
