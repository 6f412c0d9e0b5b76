package weibo

import (
	"net/http"
	"sort"

	"github.com/samber/lo"
)

// XSRFCookie is the cookie whose value the web client echoes as x-xsrf-token
const XSRFCookie = "XSRF-TOKEN"

// baseHeaders mirror what the web client sends on its ajax calls
var baseHeaders = map[string]string{
	"accept":             "application/json, text/plain, */*",
	"accept-language":    "zh-CN,zh;q=0.9",
	"cache-control":      "no-cache",
	"client-version":     "v2.44.38",
	"pragma":             "no-cache",
	"sec-ch-ua":          `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
	"sec-ch-ua-mobile":   "?0",
	"sec-ch-ua-platform": `"Windows"`,
	"sec-fetch-dest":     "empty",
	"sec-fetch-mode":     "cors",
	"sec-fetch-site":     "same-origin",
	"server-version":     "v2023.12.11.1",
	"x-requested-with":   "XMLHttpRequest",
}

// Session is the pre-authenticated identity used for every request of a
// run. It is read once at startup and never modified.
type Session struct {
	Cookies   map[string]string
	UserAgent string
	Endpoints Endpoints
}

// NewSession copies cookies so later changes by the caller do not leak in
func NewSession(cookies map[string]string, userAgent string, endpoints Endpoints) *Session {
	copied := make(map[string]string, len(cookies))
	for k, v := range cookies {
		copied[k] = v
	}
	return &Session{Cookies: copied, UserAgent: userAgent, Endpoints: endpoints}
}

// Headers returns a fresh header set for requests made on behalf of
// accountID, with the referer pointing at that account's page
func (s *Session) Headers(accountID string) map[string]string {
	h := make(map[string]string, len(baseHeaders)+3)
	for k, v := range baseHeaders {
		h[k] = v
	}
	if s.UserAgent != "" {
		h["user-agent"] = s.UserAgent
	}
	if token := s.Cookies[XSRFCookie]; token != "" {
		h["x-xsrf-token"] = token
	}
	h["referer"] = s.Endpoints.RefererURL(accountID)
	return h
}

// HTTPCookies renders the cookie map in name order
func (s *Session) HTTPCookies() []*http.Cookie {
	names := lo.Keys(s.Cookies)
	sort.Strings(names)

	return lo.Map(names, func(name string, _ int) *http.Cookie {
		return &http.Cookie{Name: name, Value: s.Cookies[name]}
	})
}
