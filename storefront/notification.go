package storefront

import (
	"time"

	"github.com/openmarket/marketplace/cart"
)

// Notification is the transient checkout confirmation.
type Notification struct {
	Message   string    `json:"message"`
	OrderID   string    `json:"order_id"`
	ShownAt   time.Time `json:"shown_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Notification returns the active confirmation, if any.
func (c *Controller) Notification() (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.notice == nil {
		return Notification{}, false
	}
	if !c.notice.ExpiresAt.IsZero() && time.Now().After(c.notice.ExpiresAt) {
		return Notification{}, false
	}
	return *c.notice, true
}

// showNotice replaces any current notification and arms its dismissal.
// Caller holds c.mu.
func (c *Controller) showNotice(r cart.Receipt) {
	if c.closed {
		return
	}
	c.stopNoticeTimer()

	c.noticeSeq++
	seq := c.noticeSeq
	now := time.Now()
	n := &Notification{Message: r.Message, OrderID: r.OrderID, ShownAt: now}

	if c.notificationTTL > 0 {
		n.ExpiresAt = now.Add(c.notificationTTL)
		c.noticeTimer = time.AfterFunc(c.notificationTTL, func() {
			c.dismissNotice(seq)
		})
	}
	c.notice = n
}

// dismissNotice clears the notification armed as seq. A newer checkout or
// Close bumps or clears the state, so a late timer does nothing.
func (c *Controller) dismissNotice(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || seq != c.noticeSeq {
		return
	}
	c.notice = nil
	c.noticeTimer = nil
}

// clearNotice drops the notification and its timer. Caller holds c.mu.
func (c *Controller) clearNotice() {
	c.stopNoticeTimer()
	c.noticeSeq++
	c.notice = nil
}

func (c *Controller) stopNoticeTimer() {
	if c.noticeTimer != nil {
		c.noticeTimer.Stop()
		c.noticeTimer = nil
	}
}
