// Package timeout owns the two independent timer clocks a live session
// carries: a resettable idle timer and a never-reset hard timer.
package timeout

import (
	"sync"
	"time"
)

// FireFunc is called at most once per Controller, when the first of its two
// timers expires, naming which clock fired.
type FireFunc func(kind Kind)

// Kind distinguishes which of a session's two clocks fired.
type Kind int

const (
	Idle Kind = iota
	Hard
)

func (k Kind) String() string {
	if k == Hard {
		return "hard"
	}
	return "idle"
}

// Controller owns the idle and hard timers for a single session. It is
// safe for concurrent use; Reset and Cancel may be called from any
// goroutine while the timers are live.
type Controller struct {
	mu          sync.Mutex
	idle        *time.Timer
	hard        *time.Timer
	idleTimeout time.Duration
	done        bool
}

// Start creates and arms both timers. fire is invoked from a timer
// goroutine when either clock expires; Start does not invoke fire itself.
func Start(idleTimeout, hardTimeout time.Duration, fire FireFunc) *Controller {
	c := &Controller{idleTimeout: idleTimeout}
	c.idle = time.AfterFunc(idleTimeout, func() {
		if c.markFiredAndStop(Idle) {
			fire(Idle)
		}
	})
	c.hard = time.AfterFunc(hardTimeout, func() {
		if c.markFiredAndStop(Hard) {
			fire(Hard)
		}
	})
	return c
}

func (c *Controller) markFiredAndStop(kind Kind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return false
	}
	c.done = true
	// Stop the sibling timer; its own AfterFunc callback, if already
	// queued, will observe done==true and no-op.
	if kind == Idle {
		c.hard.Stop()
	} else {
		c.idle.Stop()
	}
	return true
}

// ResetIdle re-arms the idle timer for another full duration, reflecting
// observed activity. It is a no-op once the controller has fired or been
// cancelled.
func (c *Controller) ResetIdle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return
	}
	if !c.idle.Stop() {
		select {
		case <-c.idle.C:
		default:
		}
	}
	c.idle.Reset(c.idleTimeout)
}

// Cancel stops both timers without invoking fire. It is idempotent.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return
	}
	c.done = true
	c.idle.Stop()
	c.hard.Stop()
}
