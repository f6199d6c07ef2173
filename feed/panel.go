package feed

import (
	"errors"

	log "github.com/sirupsen/logrus"

	"snapboard/models"
)

// ToggleComments opens or closes the comment panel of the card at post
// position seq. Opening always starts over in the loading state; the return
// value tells the caller to fetch the comments and hand them to
// ReceiveComments.
func (c *Controller) ToggleComments(seq int) bool {
	card := c.Card(seq)
	if card == nil {
		return false
	}

	if card.Panel != nil && card.Panel.Open {
		c.closePanel(card)
		return false
	}

	if card.Panel == nil {
		card.Panel = &CommentPanel{}
	}
	*card.Panel = CommentPanel{Open: true, State: PanelLoading}

	if c.opts.Touch {
		c.release(card.Seq)
		c.listeners[card.Seq] = c.surface.ListenOutside(card, func() {
			c.closePanel(card)
		})
	}
	return true
}

func (c *Controller) closePanel(card *Card) {
	if card.Panel != nil {
		card.Panel.Open = false
	}
	c.release(card.Seq)
}

// ReceiveComments renders the outcome of a comment fetch. Fetches are not
// guarded, so whichever response arrives last wins. Responses for cards that
// left the window are dropped.
func (c *Controller) ReceiveComments(seq int, comments []models.Comment, err error) {
	card := c.Card(seq)
	if card == nil || card.Panel == nil {
		c.log.WithField("seq", seq).Debug("Dropping comments for removed card")
		return
	}

	panel := card.Panel
	panel.Comments = nil
	panel.Error = ""
	panel.Detail = nil

	switch {
	case err != nil:
		panel.State = PanelError
		panel.Error = err.Error()
		var commentsErr *CommentsError
		if errors.As(err, &commentsErr) {
			panel.Error = commentsErr.Failure.Error
			panel.Detail = commentsErr.Failure.Detail
		}
		c.log.WithFields(log.Fields{
			"post":  card.Post.Id,
			"error": err,
		}).Warn("Comments failed")
	case len(comments) == 0:
		panel.State = PanelEmpty
	default:
		panel.State = PanelLoaded
		panel.Comments = comments
	}
}
