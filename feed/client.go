package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"snapboard/models"
)

// CommentsError is returned when the proxy could not produce comments. Failure
// carries the proxy's diagnostic payload when it sent one.
type CommentsError struct {
	Status  int
	Failure models.CommentsFailure
}

func (e *CommentsError) Error() string {
	if e.Failure.Error != "" {
		return fmt.Sprintf("%s (status %d)", e.Failure.Error, e.Status)
	}
	return fmt.Sprintf("comments request failed with status %d", e.Status)
}

// Credentials are sent along with mutations when set. The proxy replaces them
// with its own when it has any.
type Credentials struct {
	Login  string
	APIKey string
}

// Client talks to the proxy's HTTP API
type Client struct {
	base  string
	tags  string
	limit int
	creds Credentials
	http  *http.Client
}

func NewClient(base, tags string, limit int, creds Credentials) *Client {
	return &Client{
		base:  strings.TrimRight(base, "/"),
		tags:  tags,
		limit: limit,
		creds: creds,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Posts(ctx context.Context, page int) ([]models.Post, error) {
	q := url.Values{}
	if c.tags != "" {
		q.Set("tags", c.tags)
	}
	q.Set("page", strconv.Itoa(page))
	if c.limit > 0 {
		q.Set("limit", strconv.Itoa(c.limit))
	}

	resp, err := c.get(ctx, "/api/posts?"+q.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("posts request failed with status %d", resp.StatusCode)
	}

	var body models.PostsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode posts: %w", err)
	}
	return body.Posts, nil
}

func (c *Client) Comments(ctx context.Context, postID int64) ([]models.Comment, error) {
	resp, err := c.get(ctx, "/api/comments/"+strconv.FormatInt(postID, 10))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read comments: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		commentsErr := &CommentsError{Status: resp.StatusCode}
		// The diagnostic payload is optional
		_ = json.Unmarshal(data, &commentsErr.Failure)
		return nil, commentsErr
	}

	var comments []models.Comment
	if err := json.Unmarshal(data, &comments); err != nil {
		return nil, fmt.Errorf("failed to decode comments: %w", err)
	}
	return comments, nil
}

func (c *Client) Vote(ctx context.Context, postID int64, score int) error {
	return c.send(ctx, http.MethodPost, fmt.Sprintf("/api/posts/%d/vote", postID), c.payload(map[string]any{"score": score}))
}

func (c *Client) Favorite(ctx context.Context, postID int64) error {
	return c.send(ctx, http.MethodPost, "/api/favorites", c.payload(map[string]any{"post_id": postID}))
}

func (c *Client) Unfavorite(ctx context.Context, postID int64) error {
	return c.send(ctx, http.MethodDelete, fmt.Sprintf("/api/favorites/%d", postID), c.payload(map[string]any{}))
}

func (c *Client) payload(fields map[string]any) map[string]any {
	if c.creds.Login != "" {
		fields["login"] = c.creds.Login
	}
	if c.creds.APIKey != "" {
		fields["api_key"] = c.creds.APIKey
	}
	return fields
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, method, path string, body map[string]any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	return nil
}
