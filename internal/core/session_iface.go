package core

import (
	"errors"

	"github.com/dkeye/Chat/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

type SessionID string

// SignalConnection abstracts the outbound side of a client transport.
// TrySend never blocks: a full queue yields ErrBackpressure.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Notice) error
	Close()
}

// MemberSession binds domain.Member and its transport endpoint.
// This is what a room stores and fans out to.
type MemberSession interface {
	ID() SessionID
	Meta() *domain.Member
	Signal() SignalConnection
}
