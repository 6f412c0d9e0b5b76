package weibo

import (
	"github.com/tidwall/gjson"
	"weibocrawl/pkg/models"
)

// okLoginRequired is the ok value the API returns once cookies have expired
const okLoginRequired = -100

// OK reports whether body is JSON whose top-level ok equals 1
func OK(body []byte) bool {
	if !gjson.ValidBytes(body) {
		return false
	}
	ok := gjson.GetBytes(body, "ok")
	return ok.Type == gjson.Number && ok.Num == 1
}

// OKValue returns the raw ok field for log lines, or "" when absent
func OKValue(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	return gjson.GetBytes(body, "ok").Raw
}

// LoginRequired reports whether the API rejected the session cookies
func LoginRequired(body []byte) bool {
	ok := gjson.GetBytes(body, "ok")
	return ok.Type == gjson.Number && ok.Int() == okLoginRequired
}

// Text renders a JSON value the way it is stored: strings verbatim,
// numbers as their literal, booleans as True/False, absent or null as "".
// Numbers are never converted through float64, so 64-bit IDs survive.
func Text(r gjson.Result) string {
	switch r.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return r.Str
	case gjson.True:
		return "True"
	case gjson.False:
		return "False"
	default:
		return r.Raw
	}
}

// ParseProfile extracts data.user from a profile response. The record is
// keyed by accountID, not by any ID inside the payload.
func ParseProfile(accountID string, body []byte) models.ProfileRecord {
	user := gjson.GetBytes(body, "data.user")
	field := func(path string) string { return Text(user.Get(path)) }

	return models.ProfileRecord{
		ID:             accountID,
		Nickname:       field("screen_name"),
		Avatar:         field("profile_image_url"),
		Verified:       field("verified"),
		VerifiedReason: field("verified_reason"),
		Description:    field("description"),
		Location:       field("location"),
		Followers:      field("followers_count_str"),
		Following:      field("friends_count"),
		Posts:          field("statuses_count"),
		VVIP:           field("vvip"),
		SVIP:           field("svip"),
		Gender:         field("gender"),
	}
}

// ParsePage extracts the items of a listing page in upstream order. Items
// without an id are dropped and counted in missing.
func ParsePage(body []byte) (items []models.ListingItem, missing int) {
	gjson.GetBytes(body, "data.list").ForEach(func(_, item gjson.Result) bool {
		id := Text(item.Get("id"))
		if id == "" {
			missing++
			return true
		}

		items = append(items, models.ListingItem{
			Post: models.PostRecord{
				ID:        id,
				CreatedAt: Text(item.Get("created_at")),
				Text:      Text(item.Get("text_raw")),
				Comments:  Text(item.Get("comments_count")),
				Reposts:   Text(item.Get("reposts_count")),
				Likes:     Text(item.Get("attitudes_count")),
			},
			MblogID:    Text(item.Get("mblogid")),
			IsLongText: item.Get("isLongText").Bool(),
		})
		return true
	})
	return items, missing
}

// ParseLongText returns data.longTextContent when it is a string
func ParseLongText(body []byte) (string, bool) {
	r := gjson.GetBytes(body, "data.longTextContent")
	if r.Type != gjson.String {
		return "", false
	}
	return r.Str, true
}
