package app

import (
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropNotice
)

// Policy decides what happens to a member whose outbound queue refused a
// notice.
type Policy interface {
	OnBackPressure(room domain.RoomName, member core.MemberSession) BackpressureAction
}

// DisconnectPolicy kicks slow consumers; they go through the normal
// disconnect path.
type DisconnectPolicy struct{}

func (DisconnectPolicy) OnBackPressure(domain.RoomName, core.MemberSession) BackpressureAction {
	return KickMember
}

// DropPolicy loses the notice for that member only.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(domain.RoomName, core.MemberSession) BackpressureAction {
	return DropNotice
}

// PolicyFor maps the overflow_policy config value to a Policy.
func PolicyFor(name string) Policy {
	if name == "drop" {
		return DropPolicy{}
	}
	return DisconnectPolicy{}
}
