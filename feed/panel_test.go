package feed

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapboard/models"
)

func touchController(t *testing.T, touch bool) (*Controller, *fakeSurface) {
	t.Helper()
	surface := newFakeSurface(100, uniform(100))
	opts := DefaultOptions()
	opts.Touch = touch
	c := newTestController(t, surface, opts)
	loadPage(t, c, makePosts(1, 20))
	return c, surface
}

func TestToggleComments(t *testing.T) {
	c, surface := touchController(t, true)

	require.True(t, c.ToggleComments(1))
	panel := c.Card(1).Panel
	require.NotNil(t, panel)
	assert.True(t, panel.Open)
	assert.Equal(t, PanelLoading, panel.State)
	assert.Equal(t, 1, c.ListenerCount())
	assert.Contains(t, surface.outside, 1)

	assert.False(t, c.ToggleComments(1))
	assert.False(t, panel.Open)
	assert.Equal(t, 0, c.ListenerCount())
	assert.Empty(t, surface.outside)

	// Reopening reuses the panel and starts over
	panel.State = PanelLoaded
	panel.Comments = []models.Comment{{Id: 1, Body: "old"}}
	require.True(t, c.ToggleComments(1))
	assert.Same(t, panel, c.Card(1).Panel)
	assert.Equal(t, PanelLoading, panel.State)
	assert.Nil(t, panel.Comments)
	assert.Equal(t, 1, c.ListenerCount())
}

func TestToggleCommentsUnknownCard(t *testing.T) {
	c, _ := touchController(t, true)
	assert.False(t, c.ToggleComments(42))
	assert.Equal(t, 0, c.ListenerCount())
}

func TestOutsideTapClosesPanel(t *testing.T) {
	c, surface := touchController(t, true)
	require.True(t, c.ToggleComments(0))

	tap := surface.outside[0]
	require.NotNil(t, tap)
	tap()

	assert.False(t, c.Card(0).Panel.Open)
	assert.Equal(t, 0, c.ListenerCount())
	assert.Empty(t, surface.outside)
}

func TestNoOutsideListenerWithoutTouch(t *testing.T) {
	c, surface := touchController(t, false)

	require.True(t, c.ToggleComments(0))
	assert.True(t, c.Card(0).Panel.Open)
	assert.Equal(t, 0, c.ListenerCount())
	assert.Empty(t, surface.outside)
}

func TestPrunedCardReleasesListener(t *testing.T) {
	c, surface := touchController(t, true)
	require.True(t, c.ToggleComments(0))
	require.True(t, c.ToggleComments(2))
	require.Equal(t, 2, c.ListenerCount())

	card := c.Card(0)
	for i := 0; i < 4; i++ {
		step(t, c, KeyDown, nil)
	}

	assert.Nil(t, c.Card(0), "card 0 must be pruned")
	assert.False(t, card.Panel.Open)
	assert.Equal(t, 1, c.ListenerCount())
	assert.NotContains(t, surface.outside, 0)
	assert.Contains(t, surface.outside, 2)

	for i := 0; i < 3; i++ {
		step(t, c, KeyDown, nil)
	}
	assert.Equal(t, 0, c.ListenerCount())
	assert.Empty(t, surface.outside)
}

func TestReceiveComments(t *testing.T) {
	detail := &models.FailureDetail{
		Url:         "https://upstream.example/comments.json?search[post_id]=2",
		Status:      404,
		ContentType: "text/html",
		Snippet:     "<html>not found</html>",
	}
	avatar := "https://static.example/avatar.png"

	tests := []struct {
		name       string
		comments   []models.Comment
		err        error
		wantState  PanelState
		wantError  string
		wantDetail *models.FailureDetail
		wantCount  int
	}{
		{
			name: "loaded",
			comments: []models.Comment{
				{Id: 9, Body: "hi", CreatorId: 5, CreatorName: "Unknown", AvatarUrl: &avatar},
				{Id: 10, Body: "there", CreatorName: "fox"},
			},
			wantState: PanelLoaded,
			wantCount: 2,
		},
		{
			name:      "empty",
			comments:  []models.Comment{},
			wantState: PanelEmpty,
		},
		{
			name:       "proxy diagnostics",
			err:        &CommentsError{Status: 502, Failure: models.CommentsFailure{Error: "Failed to fetch comments", Detail: detail}},
			wantState:  PanelError,
			wantError:  "Failed to fetch comments",
			wantDetail: detail,
		},
		{
			name:      "network failure",
			err:       errors.New("connection refused"),
			wantState: PanelError,
			wantError: "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := touchController(t, false)
			require.True(t, c.ToggleComments(2))

			c.ReceiveComments(2, tt.comments, tt.err)

			panel := c.Card(2).Panel
			assert.Equal(t, tt.wantState, panel.State)
			assert.Equal(t, tt.wantError, panel.Error)
			assert.Equal(t, tt.wantDetail, panel.Detail)
			assert.Len(t, panel.Comments, tt.wantCount)
		})
	}
}

func TestLastCommentsResponseWins(t *testing.T) {
	c, _ := touchController(t, false)
	require.True(t, c.ToggleComments(0))

	c.ReceiveComments(0, nil, errors.New("slow failure"))
	c.ReceiveComments(0, []models.Comment{{Id: 1, Body: "hi", CreatorName: "Unknown"}}, nil)

	panel := c.Card(0).Panel
	assert.Equal(t, PanelLoaded, panel.State)
	assert.Empty(t, panel.Error)
	assert.Len(t, panel.Comments, 1)
}

func TestCommentsForPrunedCardAreDropped(t *testing.T) {
	c, _ := touchController(t, true)
	require.True(t, c.ToggleComments(0))
	for i := 0; i < 5; i++ {
		step(t, c, KeyDown, nil)
	}
	require.Nil(t, c.Card(0))

	assert.NotPanics(t, func() {
		c.ReceiveComments(0, []models.Comment{{Id: 1}}, nil)
	})
	assert.Equal(t, 0, c.ListenerCount())
}
