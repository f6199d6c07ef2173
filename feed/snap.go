package feed

import (
	"math"

	log "github.com/sirupsen/logrus"
)

// Scroll moves the viewport by delta, as native scrolling does. Maintenance
// waits for ScrollEnd.
func (c *Controller) Scroll(delta int) {
	c.scrollTop = c.clampScroll(c.scrollTop + delta)
}

// ScrollEnd is the settle point of passive scrolling. It is ignored while a
// snap animation runs. Returns the page to fetch when a preload was triggered.
func (c *Controller) ScrollEnd() (int, bool) {
	if c.forceScroll {
		return 0, false
	}
	return c.maintain()
}

// Wheel snaps one card in the direction of a deliberate vertical wheel
// gesture. Mostly horizontal or small deltas are trackpad noise.
func (c *Controller) Wheel(dx, dy float64) (Snap, bool) {
	if c.forceScroll {
		return Snap{}, false
	}
	if math.Abs(dx) > math.Abs(dy) || math.Abs(dy) < c.opts.WheelThreshold {
		return Snap{}, false
	}
	return c.step(direction(dy))
}

func (c *Controller) Key(key Key) (Snap, bool) {
	switch key {
	case KeyUp:
		return c.step(-1)
	case KeyDown:
		return c.step(1)
	}
	return Snap{}, false
}

func (c *Controller) TouchStart(y float64) {
	if c.forceScroll {
		return
	}
	c.touchActive = true
	c.touchStartY = y
}

// TouchEnd finishes a swipe. A displacement below the swipe threshold is a
// tap and re-snaps to the current card to undo any drift.
func (c *Controller) TouchEnd(y float64) (Snap, bool) {
	if !c.touchActive {
		return Snap{}, false
	}
	c.touchActive = false
	if c.forceScroll {
		return Snap{}, false
	}

	// Finger moving up means the next card
	displacement := c.touchStartY - y
	if math.Abs(displacement) < c.opts.SwipeThreshold {
		return c.step(0)
	}
	return c.step(direction(displacement))
}

func direction(delta float64) int {
	if delta < 0 {
		return -1
	}
	return 1
}

func (c *Controller) step(offset int) (Snap, bool) {
	cur := c.Current()
	if cur < 0 {
		return Snap{}, false
	}
	return c.SnapTo(c.first + cur + offset)
}

// SnapTo aligns the top of the card at post position seq with the top of
// the viewport. Positions outside the window are clamped to it. Until the
// matching Settle the controller is force-scrolling.
func (c *Controller) SnapTo(seq int) (Snap, bool) {
	if len(c.cards) == 0 {
		return Snap{}, false
	}
	if seq < c.first {
		seq = c.first
	}
	if seq > c.lastSeq() {
		seq = c.lastSeq()
	}

	c.scrollTop = c.clampScroll(c.top(seq - c.first))
	c.forceScroll = true
	c.snapGen++

	c.log.WithFields(log.Fields{
		"seq": seq,
		"top": c.scrollTop,
		"gen": c.snapGen,
	}).Debug("Snap")

	return Snap{
		Seq:   seq,
		Top:   c.scrollTop,
		Gen:   c.snapGen,
		Delay: c.opts.SettleDelay,
	}, true
}

// Settle ends the snap with generation gen and runs maintenance. Settles of
// superseded snaps are ignored so the flag lasts until the latest animation
// is done. Returns the page to fetch when a preload was triggered.
func (c *Controller) Settle(gen uint64) (int, bool) {
	if gen != c.snapGen || !c.forceScroll {
		return 0, false
	}
	c.forceScroll = false
	return c.maintain()
}

// Resize re-measures the rendered cards after the viewport changed and
// keeps the current card aligned to the top
func (c *Controller) Resize() {
	cur := c.Current()
	if cur < 0 {
		return
	}
	for _, card := range c.cards {
		card.Height = c.surface.Measure(card)
	}
	c.scrollTop = c.clampScroll(c.top(cur))
}
