package weibo

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultBaseURL is the production web origin
	DefaultBaseURL = "https://www.weibo.com"

	// ProfileEndpoint returns one account's profile under data.user
	ProfileEndpoint = "/ajax/profile/info"

	// ListingEndpoint returns one page of an account's posts under data.list
	ListingEndpoint = "/ajax/statuses/mymblog"

	// LongTextEndpoint returns the full body of a truncated post
	LongTextEndpoint = "/ajax/statuses/longtext"
)

// Endpoints builds request URLs against a base origin
type Endpoints struct {
	BaseURL string
}

// NewEndpoints returns Endpoints for baseURL, or the production origin when
// baseURL is empty
func NewEndpoints(baseURL string) Endpoints {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return Endpoints{BaseURL: strings.TrimRight(baseURL, "/")}
}

// ProfileURL constructs the URL for fetching an account's profile
func (e Endpoints) ProfileURL(accountID string) string {
	params := url.Values{}
	params.Set("uid", accountID)
	return e.BaseURL + ProfileEndpoint + "?" + params.Encode()
}

// ListingURL constructs the URL for one page of an account's posts.
// Pages are numbered from 1.
func (e Endpoints) ListingURL(accountID string, page int) string {
	params := url.Values{}
	params.Set("uid", accountID)
	params.Set("page", strconv.Itoa(page))
	params.Set("feature", "0")
	return e.BaseURL + ListingEndpoint + "?" + params.Encode()
}

// LongTextURL constructs the URL for the full body of a post
func (e Endpoints) LongTextURL(mblogID string) string {
	params := url.Values{}
	params.Set("id", mblogID)
	return e.BaseURL + LongTextEndpoint + "?" + params.Encode()
}

// RefererURL is the account's public page, sent as referer
func (e Endpoints) RefererURL(accountID string) string {
	return e.BaseURL + "/u/" + url.PathEscape(accountID)
}
