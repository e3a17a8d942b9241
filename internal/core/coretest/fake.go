// Package coretest provides in-memory transports for tests.
package coretest

import (
	"sync"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

// Conn is a SignalConnection that records notices in memory.
// A Capacity above zero makes TrySend fail once that many notices are queued.
type Conn struct {
	Capacity int

	mu      sync.Mutex
	notices []core.Notice
	closed  bool
}

func (c *Conn) TrySend(n core.Notice) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrClosed
	}
	if c.Capacity > 0 && len(c.notices) >= c.Capacity {
		return core.ErrBackpressure
	}
	c.notices = append(c.notices, n)
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) Notices() []core.Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.Notice(nil), c.notices...)
}

// Texts returns the text of every recorded notice in arrival order.
func (c *Conn) Texts() []string {
	ns := c.Notices()
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.Text
	}
	return out
}

func (c *Conn) Reset() {
	c.mu.Lock()
	c.notices = nil
	c.mu.Unlock()
}

// NewSession builds a MemberSession over a fresh Conn. A nil user makes an
// anonymous session.
func NewSession(sid string, user *domain.User) (core.MemberSession, *Conn) {
	conn := &Conn{}
	return core.NewMemberSession(core.SessionID(sid), domain.NewMember(user), conn), conn
}
