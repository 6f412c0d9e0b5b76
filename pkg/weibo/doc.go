// Package weibo talks to the web client's JSON API.
//
// It covers three endpoints: an account's profile, one page of its posts,
// and the full text of a truncated post. Client performs the requests with
// resty; the Parse functions read the payloads with gjson so absent fields
// become empty strings instead of errors.
//
// Example usage:
//
//	session := weibo.NewSession(cookies, userAgent, weibo.NewEndpoints(""))
//	client := weibo.NewClient(&weibo.ClientConfig{Timeout: 30 * time.Second})
//	defer client.Close()
//
//	res, err := client.Fetch(ctx, session.Endpoints.ProfileURL(id),
//	    session.Headers(id), session.HTTPCookies())
//	if err == nil && res.Status == http.StatusOK && weibo.OK(res.Body) {
//	    record := weibo.ParseProfile(id, res.Body)
//	    ...
//	}
package weibo
