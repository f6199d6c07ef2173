package feed

import (
	log "github.com/sirupsen/logrus"
)

func (c *Controller) newCard(seq int) *Card {
	card := &Card{Seq: seq, Post: c.posts[seq]}
	c.surface.Mount(card)
	card.Height = c.surface.Measure(card)
	return card
}

// mountBelow mounts fetched posts after the last card up to position end.
// Content grows below the viewport only, so the scroll offset stays.
func (c *Controller) mountBelow(end int) {
	for seq := c.lastSeq() + 1; seq <= end && seq < len(c.posts); seq++ {
		c.cards = append(c.cards, c.newCard(seq))
	}
}

// mountAbove mounts fetched posts before the first card down to position
// start and shifts the scroll offset by the mounted height so nothing moves
// on screen
func (c *Controller) mountAbove(start int) {
	if len(c.cards) == 0 {
		return
	}
	added := 0
	for seq := c.first - 1; seq >= start && seq >= 0; seq-- {
		card := c.newCard(seq)
		c.cards = append([]*Card{card}, c.cards...)
		c.first = seq
		added += card.Height
	}
	c.scrollTop += added
}

// maintain runs at every settle point: preload, then fill, then prune. It
// returns the page to fetch when a preload was triggered.
func (c *Controller) maintain() (int, bool) {
	page, fetch := c.preload()
	c.fill()
	c.prune()
	return page, fetch
}

// preload asks for the next page when fewer than PreloadThreshold fetched
// posts remain after the current one
func (c *Controller) preload() (int, bool) {
	remaining := len(c.posts) - 1 - c.currentSeq()
	if len(c.cards) == 0 {
		remaining = len(c.posts)
	}
	if remaining >= c.opts.PreloadThreshold {
		return 0, false
	}
	return c.NextPage()
}

// fill mounts already fetched posts that belong in the window
func (c *Controller) fill() {
	if len(c.posts) == 0 {
		return
	}
	start, end := c.windowRange()
	c.mountBelow(end)
	c.mountAbove(start)
}

// prune keeps the cards in [current-KeepBehind, current+PreloadAhead].
// Cards after the window go first, which cannot move anything on screen.
// Cards before the window are removed next and the scroll offset is reduced
// by exactly their height, so the current card stays where it is.
func (c *Controller) prune() {
	cur := c.Current()
	if cur < 0 {
		return
	}

	start := cur - c.opts.KeepBehind
	if start < 0 {
		start = 0
	}
	end := cur + c.opts.PreloadAhead
	if end > len(c.cards)-1 {
		end = len(c.cards) - 1
	}

	below := c.cards[end+1:]
	for _, card := range below {
		c.remove(card)
	}

	removed := 0
	above := c.cards[:start]
	for _, card := range above {
		removed += card.Height
		c.remove(card)
	}

	if len(below) == 0 && len(above) == 0 {
		return
	}

	c.cards = append([]*Card(nil), c.cards[start:end+1]...)
	c.first += start
	c.scrollTop -= removed
	if c.scrollTop < 0 {
		c.scrollTop = 0
	}

	c.log.WithFields(log.Fields{
		"above":    len(above),
		"below":    len(below),
		"height":   removed,
		"rendered": len(c.cards),
		"first":    c.first,
	}).Debug("Pruned cards")
}

// remove unmounts a card and drops everything it owns
func (c *Controller) remove(card *Card) {
	c.release(card.Seq)
	if card.Panel != nil {
		card.Panel.Open = false
		card.Panel.Comments = nil
	}
	c.surface.Unmount(card)
}

// release unregisters the outside-tap listener owned by a card
func (c *Controller) release(seq int) {
	cancel, ok := c.listeners[seq]
	if !ok {
		return
	}
	delete(c.listeners, seq)
	if cancel != nil {
		cancel()
	}
}
