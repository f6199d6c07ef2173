package browse

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"snapboard/feed"
)

type styles struct {
	title       lipgloss.Style
	score       lipgloss.Style
	favorite    lipgloss.Style
	artist      lipgloss.Style
	media       lipgloss.Style
	placeholder lipgloss.Style
	body        lipgloss.Style
	panelTitle  lipgloss.Style
	author      lipgloss.Style
	dim         lipgloss.Style
	err         lipgloss.Style
	separator   lipgloss.Style
	status      lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		title:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75")),
		score:       lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
		favorite:    lipgloss.NewStyle().Foreground(lipgloss.Color("204")),
		artist:      lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("180")),
		media:       lipgloss.NewStyle().Underline(true),
		placeholder: lipgloss.NewStyle().Faint(true),
		body:        lipgloss.NewStyle(),
		panelTitle:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("141")),
		author:      lipgloss.NewStyle().Bold(true),
		dim:         lipgloss.NewStyle().Faint(true),
		err:         lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		separator:   lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		status:      lipgloss.NewStyle().Reverse(true),
	}
}

func (m *Model) View() string {
	if m.surface.height == 0 {
		return ""
	}
	vh := m.surface.ViewportHeight()

	var lines []string
	switch {
	case len(m.ctl.Cards()) > 0:
		for _, card := range m.ctl.Cards() {
			cardLines, _ := m.renderCard(card, card.Height)
			lines = append(lines, cardLines...)
		}
		top := min(m.ctl.ScrollTop(), len(lines))
		lines = lines[top:min(top+vh, len(lines))]
	case m.err != nil:
		lines = append(lines,
			m.styles.err.Render("Could not load the feed: "+m.err.Error()),
			m.styles.dim.Render("Press r to retry or q to quit."))
	case m.done:
		lines = append(lines, m.styles.dim.Render("No posts match these tags."))
	default:
		lines = append(lines, m.styles.dim.Render("Loading posts..."))
	}

	for len(lines) < vh {
		lines = append(lines, "")
	}
	lines = append(lines, m.statusBar())
	return strings.Join(lines, "\n")
}

func (m *Model) statusBar() string {
	parts := []string{}
	if card := m.ctl.CurrentCard(); card != nil {
		parts = append(parts, fmt.Sprintf("%d/%d", card.Seq+1, m.ctl.Fetched()))
	}
	if m.ctl.Loading() {
		parts = append(parts, "loading")
	} else if m.done {
		parts = append(parts, "end of feed")
	}
	parts = append(parts, "j/k move  c comments  u/d vote  f fav  q quit")

	bar := " " + strings.Join(parts, " · ")
	if m.surface.width > 0 {
		return m.styles.status.Width(m.surface.width).MaxWidth(m.surface.width).MaxHeight(1).Render(bar)
	}
	return m.styles.status.Render(bar)
}

// renderCard returns exactly height lines for a card and the line the
// comment panel starts at
func (m *Model) renderCard(card *feed.Card, height int) ([]string, int) {
	width := m.surface.width
	post := card.Post
	st := m.styles

	header := st.title.Render(fmt.Sprintf("#%d", post.Id)) + "  " +
		st.score.Render(fmt.Sprintf("▲%d ▼%d =%d", post.Score.Up, -post.Score.Down, post.Score.Total)) + "  " +
		st.favorite.Render(fmt.Sprintf("%s%d", heart(post.IsFavorited), post.FavCount)) + "  " +
		st.dim.Render(fmt.Sprintf("%d comments", post.CommentCount))
	lines := []string{header}

	if artists := post.Artists(); len(artists) > 0 {
		lines = append(lines, st.artist.Render("by "+strings.Join(artists, ", ")))
	}

	if card.Placeholder() {
		lines = append(lines, st.placeholder.Render("[media unavailable]"))
	} else {
		size := ""
		if post.File.Width > 0 && post.File.Height > 0 {
			size = fmt.Sprintf(" %dx%d", post.File.Width, post.File.Height)
		}
		lines = append(lines, st.dim.Render("["+post.File.Ext+size+"]")+" "+st.media.Render(post.File.Url))
	}

	panelOpen := card.Panel != nil && card.Panel.Open
	if desc := strings.TrimSpace(post.Description); desc != "" {
		text := wrap(st.body, desc, width)
		// Leave room for the comments
		if limit := max(1, height/3); panelOpen && len(text) > limit {
			text = append(text[:limit-1], st.dim.Render("..."))
		}
		lines = append(lines, "")
		lines = append(lines, text...)
	}

	panelTop := len(lines)
	if panelOpen {
		lines = append(lines, "")
		lines = append(lines, m.renderPanel(card.Panel, width)...)
	}

	if height < 1 {
		return nil, panelTop
	}
	if len(lines) > height-1 {
		lines = lines[:height-1]
	}
	for len(lines) < height-1 {
		lines = append(lines, "")
	}
	lines = append(lines, st.separator.Render(strings.Repeat("─", max(1, width))))
	return lines[len(lines)-height:], panelTop
}

func (m *Model) renderPanel(panel *feed.CommentPanel, width int) []string {
	st := m.styles
	lines := []string{st.panelTitle.Render("Comments")}

	switch panel.State {
	case feed.PanelLoading:
		lines = append(lines, st.dim.Render("Loading comments..."))
	case feed.PanelEmpty:
		lines = append(lines, st.dim.Render("No comments yet."))
	case feed.PanelError:
		lines = append(lines, st.err.Render(panel.Error))
		if d := panel.Detail; d != nil {
			lines = append(lines,
				st.dim.Render(fmt.Sprintf("url: %s", d.Url)),
				st.dim.Render(fmt.Sprintf("status: %d  content-type: %s", d.Status, d.ContentType)),
			)
			lines = append(lines, wrap(st.dim, d.Snippet, width)...)
		}
	case feed.PanelLoaded:
		for _, c := range panel.Comments {
			avatar := "○"
			if c.AvatarUrl != nil {
				avatar = "◉"
			}
			lines = append(lines, avatar+" "+st.author.Render(c.CreatorName))
			lines = append(lines, wrap(st.body.PaddingLeft(2), c.Body, width)...)
		}
	}
	return lines
}

func wrap(style lipgloss.Style, text string, width int) []string {
	if width > 0 {
		style = style.Width(width)
	}
	return strings.Split(style.Render(text), "\n")
}

func heart(favorited bool) string {
	if favorited {
		return "♥"
	}
	return "♡"
}
