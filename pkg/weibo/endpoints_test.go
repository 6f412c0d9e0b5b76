package weibo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpointURLs(t *testing.T) {
	e := NewEndpoints("")

	assert.Equal(t, "https://www.weibo.com/ajax/profile/info?uid=1669879400", e.ProfileURL("1669879400"))
	assert.Equal(t, "https://www.weibo.com/ajax/statuses/mymblog?feature=0&page=3&uid=42", e.ListingURL("42", 3))
	assert.Equal(t, "https://www.weibo.com/ajax/statuses/longtext?id=NbXyZ1", e.LongTextURL("NbXyZ1"))
	assert.Equal(t, "https://www.weibo.com/u/42", e.RefererURL("42"))
}

func TestEndpointsTrimTrailingSlash(t *testing.T) {
	e := NewEndpoints("http://127.0.0.1:8080/")
	assert.Equal(t, "http://127.0.0.1:8080/ajax/profile/info?uid=1", e.ProfileURL("1"))
}

func TestEndpointsEscapeIDs(t *testing.T) {
	e := NewEndpoints("")
	assert.Equal(t, "https://www.weibo.com/ajax/profile/info?uid=a%26b", e.ProfileURL("a&b"))
}
