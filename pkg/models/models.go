// Package models holds the records persisted by the crawler and the column
// layout of their tables.
package models

// ProfileHeader is the column order of the profile table
var ProfileHeader = []string{
	"id", "nickname", "avatar", "verified", "verified_reason", "description",
	"location", "followers_count", "friends_count", "statuses_count",
	"vvip", "svip", "gender",
}

// PostHeader is the column order of a per-account post table
var PostHeader = []string{
	"id", "created_at", "text", "comments_count", "reposts_count", "attitudes_count",
}

// ProfileRecord is one account's public profile. Every field is stored as
// text; absent upstream values are empty strings.
type ProfileRecord struct {
	ID             string
	Nickname       string
	Avatar         string
	Verified       string
	VerifiedReason string
	Description    string
	Location       string
	Followers      string
	Following      string
	Posts          string
	VVIP           string
	SVIP           string
	Gender         string
}

// Row renders the record in ProfileHeader order
func (p ProfileRecord) Row() []string {
	return []string{
		p.ID, p.Nickname, p.Avatar, p.Verified, p.VerifiedReason, p.Description,
		p.Location, p.Followers, p.Following, p.Posts, p.VVIP, p.SVIP, p.Gender,
	}
}

// PostRecord is one post of an account
type PostRecord struct {
	ID        string
	CreatedAt string
	Text      string
	Comments  string
	Reposts   string
	Likes     string
}

// Row renders the record in PostHeader order
func (p PostRecord) Row() []string {
	return []string{p.ID, p.CreatedAt, p.Text, p.Comments, p.Reposts, p.Likes}
}

// ListingItem is one entry of a listing page before it becomes a PostRecord
type ListingItem struct {
	Post       PostRecord
	MblogID    string
	IsLongText bool
}
