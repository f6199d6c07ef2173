package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Payload is a loosely typed mutation body as sent by the client
type Payload map[string]any

// Relay is an upstream reply passed back to the client verbatim
type Relay struct {
	Status      int
	ContentType string
	Body        []byte
}

// Credentials extracts login and api_key from the payload
func (p Payload) Credentials() Credentials {
	return Credentials{
		Login:  formValue(p["login"]),
		APIKey: formValue(p["api_key"]),
	}
}

// Form encodes the payload the way the upstream accepts mutation parameters.
// Nulls are left out, nested values are sent as JSON.
func (p Payload) Form() url.Values {
	form := url.Values{}
	for key, value := range p {
		if value == nil {
			continue
		}
		form.Set(key, formValue(value))
	}
	return form
}

func formValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

// mergeCredentials returns a copy of the payload where every configured
// server credential replaces the client's value
func (c *Client) mergeCredentials(p Payload) Payload {
	merged := make(Payload, len(p)+2)
	for k, v := range p {
		merged[k] = v
	}
	if c.creds.Login != "" {
		merged["login"] = c.creds.Login
	}
	if c.creds.APIKey != "" {
		merged["api_key"] = c.creds.APIKey
	}
	return merged
}

func (c *Client) mutate(ctx context.Context, endpoint, method, target string, p Payload) (*Relay, error) {
	merged := c.mergeCredentials(p)
	form := merged.Form()

	resp, err := c.do(ctx, endpoint, method, target,
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", merged.Credentials())
	if err != nil {
		return nil, err
	}

	return &Relay{
		Status:      resp.Status,
		ContentType: resp.ContentType,
		Body:        resp.Body,
	}, nil
}

// Vote forwards a vote on a post. The score is not validated here.
func (c *Client) Vote(ctx context.Context, postID string, p Payload) (*Relay, error) {
	target := fmt.Sprintf("%s/posts/%s/votes.json", c.host, url.PathEscape(postID))
	return c.mutate(ctx, "vote", http.MethodPost, target, p)
}

// Favorite adds the post named by post_id in the payload to the favorites
func (c *Client) Favorite(ctx context.Context, p Payload) (*Relay, error) {
	return c.mutate(ctx, "favorite", http.MethodPost, c.host+"/favorites.json", p)
}

func (c *Client) Unfavorite(ctx context.Context, postID string, p Payload) (*Relay, error) {
	target := fmt.Sprintf("%s/favorites/%s.json", c.host, url.PathEscape(postID))
	return c.mutate(ctx, "unfavorite", http.MethodDelete, target, p)
}
