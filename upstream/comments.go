package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	log "github.com/sirupsen/logrus"

	"snapboard/models"
)

const snippetLength = 200

// commentCandidate is one of the request shapes the upstream has supported
// for listing the comments of a post
type commentCandidate struct {
	Name string
	Url  string
}

// FallbackError is returned when every comment candidate was rejected. It
// describes the last attempt.
type FallbackError struct {
	Url         string
	Status      int
	ContentType string
	Snippet     string
	Reason      string
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("all comment sources failed, last %s: %s (status %d)", e.Url, e.Reason, e.Status)
}

func (e *FallbackError) Detail() *models.FailureDetail {
	return &models.FailureDetail{
		Url:         e.Url,
		Status:      e.Status,
		ContentType: e.ContentType,
		Snippet:     e.Snippet,
	}
}

// commentCandidates lists the comment URLs in the order they are tried
func (c *Client) commentCandidates(postID string) []commentCandidate {
	escaped := url.PathEscape(postID)
	return []commentCandidate{
		{
			Name: "nested",
			Url:  fmt.Sprintf("%s/posts/%s/comments.json", c.host, escaped),
		},
		{
			Name: "grouped",
			Url:  c.host + "/comments.json?" + url.Values{"group_by": {"comment"}, "search[post_id]": {postID}}.Encode(),
		},
		{
			Name: "search",
			Url:  c.host + "/comments.json?" + url.Values{"search[post_id]": {postID}}.Encode(),
		},
	}
}

// Comments walks the fallback chain and returns the normalized, avatar
// enriched comments of the first candidate that yields a comment array.
func (c *Client) Comments(ctx context.Context, postID string) ([]models.Comment, error) {
	if c.commentsDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.commentsDeadline)
		defer cancel()
	}

	var last *FallbackError
	for _, candidate := range c.commentCandidates(postID) {
		items, failure := c.tryComments(ctx, candidate)
		if failure != nil {
			commentAttempts.WithLabelValues(candidate.Name, "rejected").Inc()
			log.WithFields(log.Fields{
				"post":      postID,
				"candidate": candidate.Name,
				"status":    failure.Status,
				"reason":    failure.Reason,
			}).Debug("Comment candidate rejected")
			last = failure
			continue
		}

		commentAttempts.WithLabelValues(candidate.Name, "accepted").Inc()
		comments := normalizeComments(items, c.maxComments)
		c.enrichAvatars(ctx, comments)
		return comments, nil
	}

	log.WithFields(log.Fields{
		"post":   postID,
		"url":    last.Url,
		"status": last.Status,
	}).Warn("Comment fallback chain exhausted")
	return nil, last
}

// tryComments requests one candidate. It returns the comment items or a
// description of why the candidate was rejected.
func (c *Client) tryComments(ctx context.Context, candidate commentCandidate) ([]any, *FallbackError) {
	resp, err := c.do(ctx, "comments", http.MethodGet, candidate.Url, nil, "", c.creds)
	if err != nil {
		return nil, &FallbackError{Url: candidate.Url, Reason: err.Error()}
	}

	failure := &FallbackError{
		Url:         candidate.Url,
		Status:      resp.Status,
		ContentType: resp.ContentType,
		Snippet:     snippet(resp.Body),
	}

	if !resp.ok() {
		failure.Reason = "non-success status"
		return nil, failure
	}

	decoder := json.NewDecoder(bytes.NewReader(resp.Body))
	decoder.UseNumber()
	var parsed any
	if err := decoder.Decode(&parsed); err != nil {
		failure.Reason = "invalid JSON"
		return nil, failure
	}

	switch body := parsed.(type) {
	case []any:
		return body, nil
	case map[string]any:
		if items, ok := body["comments"].([]any); ok {
			return items, nil
		}
	}

	failure.Reason = "no comment array"
	return nil, failure
}

// normalizeComments caps the list and maps every entry to the proxy's
// comment shape. Entries that are not objects are skipped.
func normalizeComments(items []any, max int) []models.Comment {
	if len(items) > max {
		items = items[:max]
	}

	comments := make([]models.Comment, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		comments = append(comments, models.Comment{
			Id:          obj["id"],
			Body:        firstString(obj, "", "body", "content"),
			CreatorId:   obj["creator_id"],
			CreatorName: firstString(obj, "Unknown", "creator_name", "creator"),
		})
	}
	return comments
}

// firstString returns the first non-empty string field among keys
func firstString(obj map[string]any, fallback string, keys ...string) string {
	for _, key := range keys {
		if s, ok := obj[key].(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func snippet(body []byte) string {
	if len(body) > snippetLength {
		body = body[:snippetLength]
	}
	return string(bytes.ToValidUTF8(body, nil))
}
