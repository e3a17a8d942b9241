package core

import (
	"github.com/dkeye/Chat/internal/domain"
)

// PublishResult reports delivery stats/backpressure to the dispatcher.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	SID         SessionID     `json:"sid"`
	UserID      domain.UserID `json:"user_id,omitempty"`
	DisplayName string        `json:"display_name"`
}

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"client_count"`
}

// MembersFunc runs while the room is locked, with the membership as it is
// after the triggering change. It must not block and must not call back
// into the registry.
type MembersFunc func(members []MemberSession)

// RoomRegistry maps room names to the sessions currently joined.
// Every mutation of one room and every MembersFunc run for it are
// serialized; different rooms never wait on each other.
type RoomRegistry interface {
	// Join adds ms to the room, creating it if needed. It reports false and
	// skips then if ms was already a member.
	Join(name domain.RoomName, ms MemberSession, then MembersFunc) bool
	// Leave removes sid from the room. It reports false and skips then if
	// sid was not a member. Empty rooms are pruned.
	Leave(name domain.RoomName, sid SessionID, then MembersFunc) bool
	// LeaveAll removes sid from every room and returns those rooms in
	// name order. then runs once per room.
	LeaveAll(sid SessionID, then func(name domain.RoomName, members []MemberSession)) []domain.RoomName
	// WithMembers runs fn under the room lock. It reports false when the
	// room has no members.
	WithMembers(name domain.RoomName, fn MembersFunc) bool

	MembersOf(name domain.RoomName) []SessionID
	IsMember(name domain.RoomName, sid SessionID) bool
	RoomsOf(sid SessionID) []domain.RoomName
	Snapshot(name domain.RoomName) []MemberDTO
	List() []RoomInfo
}
