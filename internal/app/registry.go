package app

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Chat/internal/core"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

type sessionEntry struct {
	Session     core.MemberSession
	Cancel      context.CancelFunc
	ConnectedAt time.Time
	canceled    bool
}

// Sessions is the table of live connections. Cancel is how anything other
// than the gateway forces a session to disconnect.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
}

func NewSessions() *Sessions {
	return &Sessions{
		sessions: make(map[core.SessionID]*sessionEntry),
	}
}

func (r *Sessions) Bind(sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sess.ID()] = &sessionEntry{
		Session:     sess,
		Cancel:      cancel,
		ConnectedAt: time.Now(),
	}
	log.Info().Str("module", "app.sessions").Str("sid", string(sess.ID())).Msg("bound session")
}

func (r *Sessions) Get(sid core.SessionID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

// Unbind reports whether sid was bound.
func (r *Sessions) Unbind(sid core.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sid]; !ok {
		return false
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.sessions").Str("sid", string(sid)).Msg("unbind session")
	return true
}

func (r *Sessions) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Cancel asks the owner of sid to tear the connection down. Cleanup happens
// on the owner's side, so this is safe to call while holding a room lock.
// It reports true only the first time sid is canceled.
func (r *Sessions) Cancel(sid core.SessionID) bool {
	r.mu.Lock()
	e, ok := r.sessions[sid]
	if !ok || e.canceled {
		r.mu.Unlock()
		return false
	}
	e.canceled = true
	r.mu.Unlock()

	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.sessions").Str("sid", string(sid)).Msg("canceled session")
	return true
}

func (r *Sessions) CancelAll() {
	r.mu.Lock()
	pending := lo.Filter(lo.Values(r.sessions), func(e *sessionEntry, _ int) bool { return !e.canceled })
	for _, e := range pending {
		e.canceled = true
	}
	r.mu.Unlock()
	for _, e := range pending {
		if e.Cancel != nil {
			e.Cancel()
		}
	}
}
