package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

var ErrMalformed = errors.New("malformed upstream response")

// PostsQuery carries the client's query parameters untouched
type PostsQuery struct {
	Tags  string
	Page  string
	Limit string
}

// ExclusionTag is the search tag that keeps the excluded file type out of results
func (c *Client) ExclusionTag() string {
	if c.excludedExt == "" {
		return ""
	}
	return "-type:" + c.excludedExt
}

func (c *Client) postsURL(q PostsQuery) string {
	tags := strings.TrimSpace(strings.TrimSpace(q.Tags) + " " + c.ExclusionTag())

	v := url.Values{}
	v.Set("tags", tags)
	if q.Page != "" {
		v.Set("page", q.Page)
	}
	if q.Limit != "" {
		v.Set("limit", q.Limit)
	}
	return c.host + "/posts.json?" + v.Encode()
}

// Posts fetches a page of posts. Each post is returned as raw JSON so fields
// the proxy does not know about reach the client unchanged.
func (c *Client) Posts(ctx context.Context, q PostsQuery) ([]json.RawMessage, error) {
	resp, err := c.do(ctx, "posts", http.MethodGet, c.postsURL(q), nil, "", c.creds)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, fmt.Errorf("posts: upstream returned status %d", resp.Status)
	}

	var body struct {
		Posts []json.RawMessage `json:"posts"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("posts: %w: %v", ErrMalformed, err)
	}
	if body.Posts == nil {
		return nil, fmt.Errorf("posts: %w: missing posts array", ErrMalformed)
	}

	posts := lo.Filter(body.Posts, func(raw json.RawMessage, _ int) bool {
		return !c.IsExcluded(fileExt(raw))
	})

	if dropped := len(body.Posts) - len(posts); dropped > 0 {
		log.WithFields(log.Fields{
			"dropped": dropped,
			"ext":     c.excludedExt,
		}).Debug("Dropped excluded posts")
	}

	return posts, nil
}

// IsExcluded reports whether a file extension is the excluded type
func (c *Client) IsExcluded(ext string) bool {
	return c.excludedExt != "" && strings.EqualFold(strings.TrimSpace(ext), c.excludedExt)
}

// fileExt digs file.ext out of a raw post. Posts that do not decode keep an
// empty extension and are passed on for the client to render as placeholders.
func fileExt(raw json.RawMessage) string {
	var probe struct {
		File struct {
			Ext string `json:"ext"`
		} `json:"file"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return probe.File.Ext
}
