// Package feed implements the snap-scrolling post feed: pagination, the
// rendered card window around the scroll position, gesture snapping and the
// per-card comment panels.
package feed

import (
	"time"

	"snapboard/config"
	"snapboard/models"
)

// Surface is the scroll container the controller renders into. The
// controller owns the scroll offset; the surface renders cards and reports
// their heights.
type Surface interface {
	// ViewportHeight is the visible height of the container
	ViewportHeight() int
	// Mount renders a card. Cards are always mounted directly above the
	// first or below the last rendered card.
	Mount(card *Card)
	Unmount(card *Card)
	// Measure returns the rendered height of a mounted card
	Measure(card *Card) int
	// ListenOutside registers fn to run on a tap outside the card's comment
	// panel and returns the function that unregisters it
	ListenOutside(card *Card, fn func()) (cancel func())
}

// Options holds the window and gesture constants
type Options struct {
	KeepBehind       int
	PreloadAhead     int
	PreloadThreshold int
	WheelThreshold   float64
	SwipeThreshold   float64
	SettleDelay      time.Duration
	ExcludedExt      string
	// Touch enables the outside-tap listener of comment panels
	Touch bool
}

func DefaultOptions() Options {
	return Options{
		KeepBehind:       3,
		PreloadAhead:     5,
		PreloadThreshold: 3,
		WheelThreshold:   30,
		SwipeThreshold:   50,
		SettleDelay:      600 * time.Millisecond,
		ExcludedExt:      "swf",
	}
}

// OptionsFromConfig maps the [feed] section of the configuration file
func OptionsFromConfig(cfg *config.TomlConfig) Options {
	return Options{
		KeepBehind:       cfg.Feed.KeepBehind,
		PreloadAhead:     cfg.Feed.PreloadAhead,
		PreloadThreshold: cfg.Feed.PreloadThreshold,
		WheelThreshold:   cfg.Feed.WheelThreshold,
		SwipeThreshold:   cfg.Feed.SwipeThreshold,
		SettleDelay:      cfg.Feed.SettleDelay.Duration,
		ExcludedExt:      cfg.Upstream.ExcludedExt,
	}
}

// Card is the rendered unit of one post
type Card struct {
	// Seq is the position of the post in fetch order
	Seq    int
	Post   models.Post
	Height int
	Panel  *CommentPanel
}

// Placeholder reports whether the card has no media to show
func (c *Card) Placeholder() bool {
	return !c.Post.HasMedia()
}

type PanelState int

const (
	PanelLoading PanelState = iota
	PanelError
	PanelEmpty
	PanelLoaded
)

func (s PanelState) String() string {
	switch s {
	case PanelLoading:
		return "loading"
	case PanelError:
		return "error"
	case PanelEmpty:
		return "empty"
	case PanelLoaded:
		return "loaded"
	}
	return "unknown"
}

// CommentPanel is created the first time a card's comments are opened
type CommentPanel struct {
	Open     bool
	State    PanelState
	Comments []models.Comment
	Error    string
	Detail   *models.FailureDetail
}

type Key int

const (
	KeyUp Key = iota
	KeyDown
)

// Snap describes a programmatic scroll. The host animates to Top and calls
// Settle with Gen once Delay has passed.
type Snap struct {
	Seq   int
	Top   int
	Gen   uint64
	Delay time.Duration
}
