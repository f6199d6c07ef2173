package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"snapboard/models"
)

// creatorKey turns a creator id into a lookup key. Null and empty ids have no key.
func creatorKey(id any) (string, bool) {
	if id == nil {
		return "", false
	}
	key := fmt.Sprint(id)
	if key == "" {
		return "", false
	}
	return key, true
}

// avatarCandidates returns the distinct creator ids of the comments in order
// of first appearance, capped at max
func avatarCandidates(comments []models.Comment, max int) []string {
	ids := lo.Uniq(lo.FilterMap(comments, func(c models.Comment, _ int) (string, bool) {
		return creatorKey(c.CreatorId)
	}))
	if len(ids) > max {
		ids = ids[:max]
	}
	return ids
}

// enrichAvatars looks up the avatars of the comment creators concurrently and
// fills in avatar_url where a lookup succeeded. Failed lookups leave the
// field null and never affect the other lookups.
func (c *Client) enrichAvatars(ctx context.Context, comments []models.Comment) {
	ids := avatarCandidates(comments, c.maxAvatarLookups)
	if len(ids) == 0 {
		return
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		avatars = make(map[string]string, len(ids))
	)

	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			avatar, err := c.lookupAvatar(ctx, id)
			if err != nil {
				avatarLookups.WithLabelValues("failed").Inc()
				log.WithFields(log.Fields{
					"creator": id,
					"error":   err,
				}).Debug("Avatar lookup failed")
				return
			}
			avatarLookups.WithLabelValues("found").Inc()
			mu.Lock()
			avatars[id] = avatar
			mu.Unlock()
		}(id)
	}

	wg.Wait()

	for i := range comments {
		key, ok := creatorKey(comments[i].CreatorId)
		if !ok {
			continue
		}
		if avatar, ok := avatars[key]; ok {
			comments[i].AvatarUrl = &avatar
		}
	}
}

func (c *Client) lookupAvatar(ctx context.Context, userID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	user, err := c.user(ctx, userID, c.creds)
	if err != nil {
		return "", err
	}

	avatar, ok := avatarFromUser(user)
	if !ok {
		return "", fmt.Errorf("user %s has no avatar", userID)
	}
	return avatar, nil
}

func (c *Client) user(ctx context.Context, userID string, creds Credentials) (map[string]any, error) {
	target := fmt.Sprintf("%s/users/%s.json", c.host, url.PathEscape(userID))
	resp, err := c.do(ctx, "users", http.MethodGet, target, nil, "", creds)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, fmt.Errorf("user %s: upstream returned status %d", userID, resp.Status)
	}

	var user map[string]any
	if err := json.Unmarshal(resp.Body, &user); err != nil {
		return nil, fmt.Errorf("user %s: %w: %v", userID, ErrMalformed, err)
	}
	return user, nil
}

// avatarFromUser tries the field shapes the upstream has used for avatars:
// avatar_url, avatar as a string and avatar.url
func avatarFromUser(user map[string]any) (string, bool) {
	if s, ok := user["avatar_url"].(string); ok && s != "" {
		return s, true
	}
	switch avatar := user["avatar"].(type) {
	case string:
		if avatar != "" {
			return avatar, true
		}
	case map[string]any:
		if s, ok := avatar["url"].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// Verify checks a set of credentials against the user endpoint of their login
// and returns the user's avatar, which may be empty.
func (c *Client) Verify(ctx context.Context, creds Credentials) (string, error) {
	if !creds.Complete() {
		return "", fmt.Errorf("both login and api key are required")
	}
	user, err := c.user(ctx, creds.Login, creds)
	if err != nil {
		return "", err
	}
	avatar, _ := avatarFromUser(user)
	return avatar, nil
}
