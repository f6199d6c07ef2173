package models

// File reference of a post. Url is empty when the upstream hides the media
// (deleted or login-gated posts).
type File struct {
	Url    string `json:"url"`
	Ext    string `json:"ext"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Score breakdown as reported by the upstream
type Score struct {
	Up    int `json:"up"`
	Down  int `json:"down"`
	Total int `json:"total"`
}

// Post model with the fields the feed consumes
type Post struct {
	Id           int64               `json:"id"`
	File         File                `json:"file"`
	Tags         map[string][]string `json:"tags"`
	Score        Score               `json:"score"`
	Rating       string              `json:"rating,omitempty"`
	Description  string              `json:"description"`
	CommentCount int                 `json:"comment_count"`
	FavCount     int                 `json:"fav_count"`
	IsFavorited  bool                `json:"is_favorited"`
}

// Artists returns the artist tag group, or nil when the post has none
func (p *Post) Artists() []string {
	return p.Tags["artist"]
}

// HasMedia reports whether the post carries a usable file reference
func (p *Post) HasMedia() bool {
	return p.File.Url != ""
}

type PostsResponse struct {
	Posts []Post `json:"posts"`
}

// Comment is the normalized comment returned by the proxy. Id and CreatorId
// keep whatever JSON scalar the upstream used.
type Comment struct {
	Id          any     `json:"id"`
	Body        string  `json:"body"`
	CreatorId   any     `json:"creator_id"`
	CreatorName string  `json:"creator_name"`
	AvatarUrl   *string `json:"avatar_url"`
}

// FailureDetail describes the last attempt of an exhausted comment fallback chain
type FailureDetail struct {
	Url         string `json:"url"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Snippet     string `json:"snippet"`
}

type CommentsFailure struct {
	Error  string         `json:"error"`
	Detail *FailureDetail `json:"detail,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
