package browse

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cenkalti/backoff/v4"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapboard/feed"
	"snapboard/models"
)

type vote struct {
	postID int64
	score  int
}

type fakeAPI struct {
	mu sync.Mutex

	pages       map[int][]models.Post
	postsErrors int
	postsCalls  int

	comments    []models.Comment
	commentsErr error

	votes       []vote
	favorites   []int64
	unfavorites []int64
}

func (a *fakeAPI) Posts(ctx context.Context, page int) ([]models.Post, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.postsCalls++
	if a.postsErrors > 0 {
		a.postsErrors--
		return nil, errors.New("proxy unavailable")
	}
	return a.pages[page], nil
}

func (a *fakeAPI) Comments(ctx context.Context, postID int64) ([]models.Comment, error) {
	return a.comments, a.commentsErr
}

func (a *fakeAPI) Vote(ctx context.Context, postID int64, score int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.votes = append(a.votes, vote{postID: postID, score: score})
	return errors.New("rejected")
}

func (a *fakeAPI) Favorite(ctx context.Context, postID int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.favorites = append(a.favorites, postID)
	return nil
}

func (a *fakeAPI) Unfavorite(ctx context.Context, postID int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unfavorites = append(a.unfavorites, postID)
	return nil
}

func posts(from, n int) []models.Post {
	out := make([]models.Post, n)
	for i := range out {
		out[i] = models.Post{
			Id:          int64(from + i),
			File:        models.File{Ext: "webm", Url: "https://static.example/file.webm"},
			Tags:        map[string][]string{"artist": {"someone"}},
			Description: "a description",
		}
	}
	return out
}

func newTestModel(t *testing.T, api *fakeAPI, opts feed.Options) *Model {
	t.Helper()
	opts.SettleDelay = 0
	m := New(api, opts)
	m.newBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
	}
	m.Update(tea.WindowSizeMsg{Width: 60, Height: 21})
	return m
}

// run executes cmd and feeds its message back into the model
func run(t *testing.T, m *Model, cmd tea.Cmd) tea.Cmd {
	t.Helper()
	require.NotNil(t, cmd)
	_, next := m.Update(cmd())
	return next
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func started(t *testing.T, api *fakeAPI, opts feed.Options) *Model {
	t.Helper()
	m := newTestModel(t, api, opts)
	assert.Nil(t, run(t, m, m.Init()))
	return m
}

func TestBootstrapRetries(t *testing.T) {
	api := &fakeAPI{pages: map[int][]models.Post{1: posts(1, 10)}, postsErrors: 2}
	m := started(t, api, feed.DefaultOptions())

	assert.Equal(t, 3, api.postsCalls)
	assert.Equal(t, 10, m.ctl.Fetched())
	assert.Nil(t, m.err)
	assert.Contains(t, m.View(), "#1")
	assert.Contains(t, m.View(), "by someone")
}

func TestBootstrapGivesUp(t *testing.T) {
	api := &fakeAPI{pages: map[int][]models.Post{1: posts(1, 10)}, postsErrors: 5}
	m := started(t, api, feed.DefaultOptions())

	assert.Equal(t, 3, api.postsCalls)
	require.Error(t, m.err)
	assert.False(t, m.ctl.Loading())
	assert.Contains(t, m.View(), "Could not load the feed")

	// r retries once the proxy is back
	api.postsErrors = 0
	assert.Nil(t, run(t, m, m.handleKey(key("r"))))
	assert.Nil(t, m.err)
	assert.Equal(t, 10, m.ctl.Fetched())
}

func TestEmptyFeed(t *testing.T) {
	m := started(t, &fakeAPI{}, feed.DefaultOptions())
	assert.True(t, m.done)
	assert.Contains(t, m.View(), "No posts match")
}

func TestKeysSnapAndPreload(t *testing.T) {
	api := &fakeAPI{pages: map[int][]models.Post{1: posts(1, 4), 2: posts(5, 4)}}
	m := started(t, api, feed.DefaultOptions())
	vh := m.surface.ViewportHeight()
	require.Equal(t, 20, vh)

	_, settle := m.Update(key("j"))
	require.NotNil(t, settle)
	assert.True(t, m.ctl.ForceScrolling())
	assert.Equal(t, vh, m.ctl.ScrollTop())

	// Settling with two posts left after the current one preloads page 2
	fetch := run(t, m, settle)
	require.NotNil(t, fetch)
	assert.True(t, m.ctl.Loading())

	assert.Nil(t, run(t, m, fetch))
	assert.Equal(t, 8, m.ctl.Fetched())
	assert.False(t, m.ctl.Loading())
	assert.Contains(t, m.View(), "#2")
	assert.Contains(t, m.View(), "2/8")
}

func TestWheelSnapsOncePerGesture(t *testing.T) {
	api := &fakeAPI{pages: map[int][]models.Post{1: posts(1, 10)}}
	m := started(t, api, feed.DefaultOptions())
	vh := m.surface.ViewportHeight()

	wheel := tea.MouseMsg{Button: tea.MouseButtonWheelDown, Action: tea.MouseActionPress}
	_, settle := m.Update(wheel)
	require.NotNil(t, settle)

	// Further notches of the same gesture are ignored until the snap settles
	_, cmd := m.Update(wheel)
	assert.Nil(t, cmd)
	assert.Equal(t, vh, m.ctl.ScrollTop())

	run(t, m, settle)
	_, cmd = m.Update(tea.MouseMsg{Button: tea.MouseButtonWheelRight, Action: tea.MouseActionPress})
	assert.Nil(t, cmd, "horizontal wheel is noise")

	_, cmd = m.Update(tea.MouseMsg{Button: tea.MouseButtonWheelUp, Action: tea.MouseActionPress})
	require.NotNil(t, cmd)
	assert.Equal(t, 0, m.ctl.ScrollTop())
}

func TestComments(t *testing.T) {
	avatar := "https://static.example/avatar.png"
	api := &fakeAPI{
		pages: map[int][]models.Post{1: posts(1, 10)},
		comments: []models.Comment{
			{Id: 9, Body: "hi", CreatorId: 5, CreatorName: "Unknown", AvatarUrl: &avatar},
		},
	}
	m := started(t, api, feed.DefaultOptions())

	_, fetch := m.Update(key("c"))
	require.NotNil(t, fetch)
	assert.Contains(t, m.View(), "Loading comments")

	run(t, m, fetch)
	view := m.View()
	assert.Contains(t, view, "◉ Unknown")
	assert.Contains(t, view, "hi")

	_, cmd := m.Update(key("c"))
	assert.Nil(t, cmd)
	assert.NotContains(t, m.View(), "Comments")
}

func TestCommentsDiagnostics(t *testing.T) {
	api := &fakeAPI{
		pages: map[int][]models.Post{1: posts(1, 10)},
		commentsErr: &feed.CommentsError{Status: 502, Failure: models.CommentsFailure{
			Error: "Failed to fetch comments",
			Detail: &models.FailureDetail{
				Url:         "https://upstream.example/comments.json",
				Status:      404,
				ContentType: "text/html",
				Snippet:     "missing",
			},
		}},
	}
	m := started(t, api, feed.DefaultOptions())

	_, fetch := m.Update(key("c"))
	run(t, m, fetch)

	view := m.View()
	assert.Contains(t, view, "Failed to fetch comments")
	assert.Contains(t, view, "status: 404")
	assert.Contains(t, view, "missing")
}

func TestClickOutsideClosesPanel(t *testing.T) {
	opts := feed.DefaultOptions()
	opts.Touch = true
	api := &fakeAPI{pages: map[int][]models.Post{1: posts(1, 10)}}
	m := started(t, api, opts)

	_, fetch := m.Update(key("c"))
	run(t, m, fetch)
	card := m.ctl.CurrentCard()
	require.True(t, card.Panel.Open)

	_, panelTop := m.renderCard(card, card.Height)
	click := tea.MouseMsg{Button: tea.MouseButtonLeft, Action: tea.MouseActionPress}

	// A click inside the panel keeps it open
	click.Y = panelTop + 1
	m.Update(click)
	assert.True(t, card.Panel.Open)

	click.Y = 0
	m.Update(click)
	assert.False(t, card.Panel.Open)
	assert.Equal(t, 0, m.ctl.ListenerCount())
	assert.Empty(t, m.surface.outside)
}

func TestMutationsAreFireAndForget(t *testing.T) {
	api := &fakeAPI{pages: map[int][]models.Post{1: posts(1, 10)}}
	m := started(t, api, feed.DefaultOptions())

	assert.Nil(t, run(t, m, m.handleKey(key("u"))))
	assert.Nil(t, run(t, m, m.handleKey(key("d"))))
	assert.Equal(t, []vote{{postID: 1, score: 1}, {postID: 1, score: -1}}, api.votes)

	run(t, m, m.handleKey(key("f")))
	assert.True(t, m.ctl.CurrentCard().Post.IsFavorited)
	run(t, m, m.handleKey(key("f")))
	assert.False(t, m.ctl.CurrentCard().Post.IsFavorited)

	assert.Equal(t, []int64{1}, api.favorites)
	assert.Equal(t, []int64{1}, api.unfavorites)
}

func TestResizeKeepsCurrentCard(t *testing.T) {
	api := &fakeAPI{pages: map[int][]models.Post{1: posts(1, 10)}}
	m := started(t, api, feed.DefaultOptions())

	_, settle := m.Update(key("j"))
	run(t, m, settle)
	require.Equal(t, 1, m.ctl.CurrentCard().Seq)

	m.Update(tea.WindowSizeMsg{Width: 60, Height: 31})
	assert.Equal(t, 1, m.ctl.CurrentCard().Seq)
	assert.Equal(t, 30, m.ctl.ScrollTop())
}

func TestQuit(t *testing.T) {
	m := newTestModel(t, &fakeAPI{}, feed.DefaultOptions())
	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
