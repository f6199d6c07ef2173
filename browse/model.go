// Package browse is the terminal front-end of the feed. It drives a
// feed.Controller from bubbletea events and talks to the proxy API.
package browse

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"

	"snapboard/feed"
	"snapboard/models"
)

// A terminal wheel notch carries no magnitude; one notch counts as a
// deliberate gesture
const wheelNotch = 100

const requestTimeout = 20 * time.Second

// API is the proxy surface the terminal feed needs
type API interface {
	Posts(ctx context.Context, page int) ([]models.Post, error)
	Comments(ctx context.Context, postID int64) ([]models.Comment, error)
	Vote(ctx context.Context, postID int64, score int) error
	Favorite(ctx context.Context, postID int64) error
	Unfavorite(ctx context.Context, postID int64) error
}

var _ API = (*feed.Client)(nil)

type pageMsg struct {
	page  int
	posts []models.Post
	err   error
}

type settleMsg struct {
	gen uint64
}

type commentsMsg struct {
	seq      int
	comments []models.Comment
	err      error
}

type mutationMsg struct {
	action string
	postID int64
	err    error
}

type Model struct {
	api     API
	ctl     *feed.Controller
	surface *surface
	styles  styles

	// newBackOff builds the retry policy of the first page load
	newBackOff func() backoff.BackOff

	// err is the failure of the first page load, shown instead of the feed
	err  error
	done bool
}

func New(api API, opts feed.Options) *Model {
	s := newSurface()
	return &Model{
		api:        api,
		ctl:        feed.NewController(s, opts),
		surface:    s,
		styles:     defaultStyles(),
		newBackOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.Multiplier = 1.5
	b.MaxElapsedTime = time.Minute
	return b
}

// Run starts the terminal feed and blocks until the user quits
func Run(ctx context.Context, api API, opts feed.Options) error {
	p := tea.NewProgram(New(api, opts),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return m.bootstrap()
}

// bootstrap loads the first page, retrying with backoff since an empty
// screen has nothing to scroll that could trigger a later retry
func (m *Model) bootstrap() tea.Cmd {
	page, ok := m.ctl.NextPage()
	if !ok {
		return nil
	}
	m.err = nil
	api, b := m.api, m.newBackOff()

	return func() tea.Msg {
		var posts []models.Post
		err := backoff.RetryNotify(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()

			var err error
			posts, err = api.Posts(ctx, page)
			return err
		}, b, func(err error, next time.Duration) {
			log.WithFields(log.Fields{
				"page":  page,
				"error": err,
				"retry": next,
			}).Warn("Failed to load first page, retrying")
		})
		return pageMsg{page: page, posts: posts, err: err}
	}
}

func fetchPageCmd(api API, page int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		posts, err := api.Posts(ctx, page)
		return pageMsg{page: page, posts: posts, err: err}
	}
}

func fetchCommentsCmd(api API, seq int, postID int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		comments, err := api.Comments(ctx, postID)
		return commentsMsg{seq: seq, comments: comments, err: err}
	}
}

func mutateCmd(action string, postID int64, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		return mutationMsg{action: action, postID: postID, err: fn(ctx)}
	}
}

func settleCmd(snap feed.Snap) tea.Cmd {
	return tea.Tick(snap.Delay, func(time.Time) tea.Msg {
		return settleMsg{gen: snap.Gen}
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.surface.width = msg.Width
		m.surface.height = msg.Height
		m.ctl.Resize()
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case tea.MouseMsg:
		return m, m.handleMouse(msg)

	case pageMsg:
		return m, m.receivePage(msg)

	case settleMsg:
		return m, m.fetchIfNeeded(m.ctl.Settle(msg.gen))

	case commentsMsg:
		m.ctl.ReceiveComments(msg.seq, msg.comments, msg.err)
		return m, nil

	case mutationMsg:
		// Votes and favorites give no feedback on failure
		if msg.err != nil {
			log.WithFields(log.Fields{
				"action": msg.action,
				"post":   msg.postID,
				"error":  msg.err,
			}).Warn("Mutation failed")
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) fetchIfNeeded(page int, fetch bool) tea.Cmd {
	if !fetch {
		return nil
	}
	return fetchPageCmd(m.api, page)
}

func (m *Model) receivePage(msg pageMsg) tea.Cmd {
	if msg.err != nil {
		m.ctl.FetchFailed(msg.err)
		if m.ctl.Fetched() == 0 {
			m.err = msg.err
		}
		return nil
	}

	m.ctl.Append(msg.posts)
	if len(msg.posts) == 0 {
		m.done = true
		return nil
	}

	// A page can be filtered down to too few posts to fill the window
	if m.ctl.ForceScrolling() {
		return nil
	}
	return m.fetchIfNeeded(m.ctl.ScrollEnd())
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return tea.Quit
	case "j", "down", "pgdown", " ":
		return m.snap(m.ctl.Key(feed.KeyDown))
	case "k", "up", "pgup":
		return m.snap(m.ctl.Key(feed.KeyUp))
	case "r":
		if m.ctl.Fetched() == 0 {
			return m.bootstrap()
		}
	}

	card := m.ctl.CurrentCard()
	if card == nil {
		return nil
	}
	post := card.Post

	switch msg.String() {
	case "c":
		if m.ctl.ToggleComments(card.Seq) {
			return fetchCommentsCmd(m.api, card.Seq, post.Id)
		}
	case "u":
		return mutateCmd("vote", post.Id, func(ctx context.Context) error {
			return m.api.Vote(ctx, post.Id, 1)
		})
	case "d":
		return mutateCmd("vote", post.Id, func(ctx context.Context) error {
			return m.api.Vote(ctx, post.Id, -1)
		})
	case "f":
		card.Post.IsFavorited = !post.IsFavorited
		if post.IsFavorited {
			return mutateCmd("unfavorite", post.Id, func(ctx context.Context) error {
				return m.api.Unfavorite(ctx, post.Id)
			})
		}
		return mutateCmd("favorite", post.Id, func(ctx context.Context) error {
			return m.api.Favorite(ctx, post.Id)
		})
	}
	return nil
}

func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		return m.snap(m.ctl.Wheel(0, -wheelNotch))
	case tea.MouseButtonWheelDown:
		return m.snap(m.ctl.Wheel(0, wheelNotch))
	case tea.MouseButtonWheelLeft:
		return m.snap(m.ctl.Wheel(-wheelNotch, 0))
	case tea.MouseButtonWheelRight:
		return m.snap(m.ctl.Wheel(wheelNotch, 0))
	case tea.MouseButtonLeft:
		if msg.Action == tea.MouseActionPress {
			m.click(msg.Y)
		}
	}
	return nil
}

func (m *Model) snap(snap feed.Snap, ok bool) tea.Cmd {
	if !ok {
		return nil
	}
	return settleCmd(snap)
}

// click runs the outside-click handlers of open panels, except the one of
// the panel that was clicked
func (m *Model) click(y int) {
	if len(m.surface.outside) == 0 {
		return
	}

	var hit *feed.Card
	row := -1
	if vh := m.surface.ViewportHeight(); y < vh {
		offset := m.ctl.ScrollTop() + y
		for _, card := range m.ctl.Cards() {
			if offset < card.Height {
				hit, row = card, offset
				break
			}
			offset -= card.Height
		}
	}

	for seq, fn := range m.surface.outside {
		if hit != nil && hit.Seq == seq {
			if _, panelTop := m.renderCard(hit, hit.Height); row >= panelTop {
				continue
			}
		}
		fn()
	}
}
