package weibo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"weibocrawl/pkg/models"
)

func TestOK(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{`{"ok":1,"data":{}}`, true},
		{`{"ok":1.0}`, true},
		{`{"ok":0}`, false},
		{`{"ok":-100,"url":"https://weibo.com/login.php"}`, false},
		{`{"ok":"1"}`, false},
		{`{"data":{}}`, false},
		{`<html>login</html>`, false},
		{``, false},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			assert.Equal(t, tt.want, OK([]byte(tt.body)))
		})
	}
}

func TestLoginRequired(t *testing.T) {
	assert.True(t, LoginRequired([]byte(`{"ok":-100}`)))
	assert.False(t, LoginRequired([]byte(`{"ok":0}`)))
	assert.Equal(t, "-100", OKValue([]byte(`{"ok":-100}`)))
	assert.Equal(t, "", OKValue([]byte(`nope`)))
}

func TestText(t *testing.T) {
	doc := `{"s":"hi","n":4823749823749823749,"f":1.5,"t":true,"f2":false,"z":null,"o":{"a":1}}`

	assert.Equal(t, "hi", Text(gjson.Get(doc, "s")))
	assert.Equal(t, "4823749823749823749", Text(gjson.Get(doc, "n")))
	assert.Equal(t, "1.5", Text(gjson.Get(doc, "f")))
	assert.Equal(t, "True", Text(gjson.Get(doc, "t")))
	assert.Equal(t, "False", Text(gjson.Get(doc, "f2")))
	assert.Equal(t, "", Text(gjson.Get(doc, "z")))
	assert.Equal(t, "", Text(gjson.Get(doc, "missing")))
	assert.Equal(t, `{"a":1}`, Text(gjson.Get(doc, "o")))
}

func TestParseProfile(t *testing.T) {
	body := []byte(`{"ok":1,"data":{"user":{
		"id": 999,
		"screen_name": "Alice",
		"profile_image_url": "https://img/a.jpg",
		"verified": true,
		"description": "hello, world",
		"followers_count_str": "1.2万",
		"friends_count": 10,
		"statuses_count": 300,
		"svip": 0,
		"gender": "f"
	}}}`)

	got := ParseProfile("1669879400", body)

	assert.Equal(t, models.ProfileRecord{
		ID:          "1669879400",
		Nickname:    "Alice",
		Avatar:      "https://img/a.jpg",
		Verified:    "True",
		Description: "hello, world",
		Followers:   "1.2万",
		Following:   "10",
		Posts:       "300",
		SVIP:        "0",
		Gender:      "f",
	}, got)
}

func TestParseProfileMissingUser(t *testing.T) {
	got := ParseProfile("7", []byte(`{"ok":1,"data":{}}`))
	assert.Equal(t, models.ProfileRecord{ID: "7"}, got)
}

func TestParsePage(t *testing.T) {
	body := []byte(`{"ok":1,"data":{"list":[
		{"id":5012345678901234567,"created_at":"Mon Jan 01","text_raw":"short","comments_count":1,"reposts_count":2,"attitudes_count":3,"mblogid":"A1","isLongText":false},
		{"text_raw":"no id"},
		{"id":"6","text_raw":"trunc…","mblogid":"B2","isLongText":true}
	]}}`)

	items, missing := ParsePage(body)
	require.Len(t, items, 2)
	assert.Equal(t, 1, missing)

	assert.Equal(t, "5012345678901234567", items[0].Post.ID)
	assert.Equal(t, []string{"5012345678901234567", "Mon Jan 01", "short", "1", "2", "3"}, items[0].Post.Row())
	assert.False(t, items[0].IsLongText)

	assert.Equal(t, "6", items[1].Post.ID)
	assert.Equal(t, "B2", items[1].MblogID)
	assert.True(t, items[1].IsLongText)
}

func TestParsePageEmpty(t *testing.T) {
	items, missing := ParsePage([]byte(`{"ok":1,"data":{"list":[]}}`))
	assert.Empty(t, items)
	assert.Zero(t, missing)

	items, _ = ParsePage([]byte(`{"ok":1}`))
	assert.Empty(t, items)
}

func TestParseLongText(t *testing.T) {
	text, ok := ParseLongText([]byte(`{"ok":1,"data":{"longTextContent":"the whole story"}}`))
	assert.True(t, ok)
	assert.Equal(t, "the whole story", text)

	_, ok = ParseLongText([]byte(`{"ok":1,"data":{}}`))
	assert.False(t, ok)

	_, ok = ParseLongText([]byte(`{"ok":1,"data":{"longTextContent":null}}`))
	assert.False(t, ok)
}
