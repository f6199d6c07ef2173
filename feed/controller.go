package feed

import (
	"strings"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"snapboard/models"
)

// Controller owns the feed state of one session. All methods must be called
// from the host's event loop; the controller does no locking.
type Controller struct {
	opts    Options
	surface Surface
	log     *log.Entry

	// posts fetched so far, in fetch order
	posts []models.Post
	// cards is the rendered window; cards[i].Seq == first+i
	cards []*Card
	first int

	// listeners maps a card's Seq to the unregister function of its
	// outside-tap listener
	listeners map[int]func()

	// page is the next page to fetch. It only grows, after a successful fetch.
	page int
	// loading is set while a page fetch is in flight
	loading bool
	// forceScroll is set from a snap until its Settle; scroll-driven
	// maintenance and wheel/swipe input are ignored meanwhile
	forceScroll bool
	// snapGen identifies the latest snap so a superseded Settle is a no-op
	snapGen uint64

	scrollTop int

	touchActive bool
	touchStartY float64
}

func NewController(surface Surface, opts Options) *Controller {
	return &Controller{
		opts:      opts,
		surface:   surface,
		log:       log.WithField("component", "feed"),
		listeners: make(map[int]func()),
		page:      1,
	}
}

func (c *Controller) Page() int            { return c.page }
func (c *Controller) Loading() bool        { return c.loading }
func (c *Controller) ForceScrolling() bool { return c.forceScroll }
func (c *Controller) ScrollTop() int       { return c.scrollTop }
func (c *Controller) Fetched() int         { return len(c.posts) }
func (c *Controller) Cards() []*Card       { return c.cards }
func (c *Controller) ListenerCount() int   { return len(c.listeners) }
func (c *Controller) Options() Options     { return c.opts }

func (c *Controller) viewportHeight() int {
	return c.surface.ViewportHeight()
}

func (c *Controller) lastSeq() int {
	return c.first + len(c.cards) - 1
}

func (c *Controller) inWindow(seq int) bool {
	return len(c.cards) > 0 && seq >= c.first && seq <= c.lastSeq()
}

// Card returns the rendered card of a post position, or nil when it is not
// in the window
func (c *Controller) Card(seq int) *Card {
	if !c.inWindow(seq) {
		return nil
	}
	return c.cards[seq-c.first]
}

// NextPage claims the next page for fetching. It returns false while another
// fetch is in flight. The caller must answer with Append or FetchFailed.
func (c *Controller) NextPage() (int, bool) {
	if c.loading {
		return 0, false
	}
	c.loading = true
	return c.page, true
}

// Append adds a fetched page. Posts of the excluded type are skipped. Cards
// are mounted below the last card up to the window end, which leaves the
// scroll offset untouched. Returns the number of posts kept.
func (c *Controller) Append(posts []models.Post) int {
	c.loading = false
	c.page++

	kept := lo.Filter(posts, func(p models.Post, _ int) bool {
		return !c.excluded(p)
	})
	c.posts = append(c.posts, kept...)

	c.log.WithFields(log.Fields{
		"page":    c.page - 1,
		"kept":    len(kept),
		"dropped": len(posts) - len(kept),
		"fetched": len(c.posts),
	}).Debug("Appended page")

	_, hi := c.windowRange()
	c.mountBelow(hi)
	return len(kept)
}

// FetchFailed releases the loading guard without advancing the page, so the
// next preload retries the same page
func (c *Controller) FetchFailed(err error) {
	c.loading = false
	c.log.WithFields(log.Fields{
		"page":  c.page,
		"error": err,
	}).Warn("Page fetch failed")
}

func (c *Controller) excluded(p models.Post) bool {
	ext := strings.TrimSpace(c.opts.ExcludedExt)
	return ext != "" && strings.EqualFold(p.File.Ext, ext)
}

// top returns the offset of the card at index i from the top of the content
func (c *Controller) top(i int) int {
	total := 0
	for _, card := range c.cards[:i] {
		total += card.Height
	}
	return total
}

func (c *Controller) contentHeight() int {
	return c.top(len(c.cards))
}

func (c *Controller) clampScroll(top int) int {
	maxTop := c.contentHeight() - c.viewportHeight()
	if top > maxTop {
		top = maxTop
	}
	if top < 0 {
		top = 0
	}
	return top
}

// Current returns the index of the card whose vertical center is closest to
// the center of the viewport, or -1 without cards. Under momentum scrolling
// several cards can be partly visible, so the first visible card is not used.
func (c *Controller) Current() int {
	if len(c.cards) == 0 {
		return -1
	}

	// Compare doubled positions to stay in integers
	center := 2*c.scrollTop + c.viewportHeight()
	best, bestDist := 0, -1
	top := 0
	for i, card := range c.cards {
		dist := 2*top + card.Height - center
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = i, dist
		}
		top += card.Height
	}
	return best
}

// CurrentCard returns the current card or nil
func (c *Controller) CurrentCard() *Card {
	i := c.Current()
	if i < 0 {
		return nil
	}
	return c.cards[i]
}

// currentSeq returns the fetch position of the current card, 0 before
// anything is rendered
func (c *Controller) currentSeq() int {
	i := c.Current()
	if i < 0 {
		return 0
	}
	return c.first + i
}

// windowRange is the range of post positions that should be rendered
func (c *Controller) windowRange() (int, int) {
	cur := c.currentSeq()
	start := cur - c.opts.KeepBehind
	if start < 0 {
		start = 0
	}
	end := cur + c.opts.PreloadAhead
	if end > len(c.posts)-1 {
		end = len(c.posts) - 1
	}
	return start, end
}
