package browse

import "snapboard/feed"

// Rows reserved below the viewport for the status bar
const statusLines = 1

// surface is the terminal scroll container. Every card is exactly one
// viewport high; the model renders card content on each frame.
type surface struct {
	width  int
	height int

	mounted map[int]bool
	// outside holds the outside-click handlers of open comment panels by Seq
	outside map[int]func()
}

func newSurface() *surface {
	return &surface{
		mounted: make(map[int]bool),
		outside: make(map[int]func()),
	}
}

func (s *surface) ViewportHeight() int {
	h := s.height - statusLines
	if h < 1 {
		return 1
	}
	return h
}

func (s *surface) Mount(card *feed.Card) {
	s.mounted[card.Seq] = true
}

func (s *surface) Unmount(card *feed.Card) {
	delete(s.mounted, card.Seq)
}

func (s *surface) Measure(card *feed.Card) int {
	return s.ViewportHeight()
}

func (s *surface) ListenOutside(card *feed.Card, fn func()) func() {
	seq := card.Seq
	s.outside[seq] = fn
	return func() {
		delete(s.outside, seq)
	}
}

var _ feed.Surface = (*surface)(nil)
