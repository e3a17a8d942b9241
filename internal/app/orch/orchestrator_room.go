package orch

import (
	"strings"
	"unicode/utf8"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
)

func validateTarget(room domain.RoomName, displayName string) error {
	if room == "" {
		return domain.NewValidationError("room", "must not be empty")
	}
	if utf8.RuneCountInString(string(room)) > domain.MaxRoomNameLen {
		return domain.NewValidationError("room", "too long")
	}
	if strings.TrimSpace(displayName) == "" {
		return domain.NewValidationError("displayName", "must not be empty")
	}
	return nil
}

// join moves the session into ev.Room. A session is in at most one room, so
// any other room is left first, announced under the previous name.
func (o *Orchestrator) join(ms core.MemberSession, ev core.Join) error {
	if err := validateTarget(ev.Room, ev.DisplayName); err != nil {
		return err
	}
	sid := ms.ID()
	prev := ms.Meta().DisplayName()
	for _, current := range o.Rooms.RoomsOf(sid) {
		if current != ev.Room {
			o.leaveRoom(current, sid, prev)
			log.Info().Str("module", "orch").Str("sid", string(sid)).Str("from_room", string(current)).Msg("left for another room")
		}
	}
	ms.Meta().SetDisplayName(ev.DisplayName)

	var res core.PublishResult
	joined := o.Rooms.Join(ev.Room, ms, func(members []core.MemberSession) {
		res = core.Broadcast(members, core.EnteredNotice(ev.DisplayName))
	})
	if !joined {
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("room", string(ev.Room)).Msg("already a member")
		return nil
	}
	o.settle(ev.Room, res)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(ev.Room)).Msg("added to room")
	return nil
}

func (o *Orchestrator) leave(ms core.MemberSession, ev core.Leave) error {
	if err := validateTarget(ev.Room, ev.DisplayName); err != nil {
		return err
	}
	ms.Meta().SetDisplayName(ev.DisplayName)
	if o.leaveRoom(ev.Room, ms.ID(), ev.DisplayName) {
		log.Info().Str("module", "orch").Str("sid", string(ms.ID())).Str("room", string(ev.Room)).Msg("removed from room")
	}
	return nil
}

func (o *Orchestrator) leaveRoom(room domain.RoomName, sid core.SessionID, name string) bool {
	var res core.PublishResult
	left := o.Rooms.Leave(room, sid, func(members []core.MemberSession) {
		res = core.Broadcast(members, core.LeftNotice(name))
	})
	if left {
		o.settle(room, res)
	}
	return left
}
