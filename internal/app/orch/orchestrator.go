package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/observability"
	"github.com/dkeye/Chat/internal/store"
	"github.com/rs/zerolog/log"
)

// Orchestrator applies client events to rooms and the message store.
// Events of one session must be handled sequentially; sessions run in
// parallel.
type Orchestrator struct {
	Sessions *app.Sessions
	Rooms    core.RoomRegistry
	Store    store.MessageStore
	Policy   app.Policy
	Metrics  *observability.Metrics
}

// Connect registers a session. cancel must make the transport stop and call
// Disconnect.
func (o *Orchestrator) Connect(ms core.MemberSession, cancel context.CancelFunc) {
	o.Sessions.Bind(ms, cancel)
	o.Metrics.SessionOpened()
}

// Handle applies one inbound event. Any failure is reported to the sender
// only and leaves rooms and history untouched.
func (o *Orchestrator) Handle(ctx context.Context, sid core.SessionID, ev core.Event) {
	ms, ok := o.Sessions.Get(sid)
	if !ok {
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Msg("event for unknown session")
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "orch").Str("sid", string(sid)).Interface("panic", r).Msg("event handler panicked")
			o.reject(ms, fmt.Errorf("panic: %v", r))
		}
	}()

	var err error
	switch ev := ev.(type) {
	case core.Join:
		err = o.join(ms, ev)
	case core.Leave:
		err = o.leave(ms, ev)
	case core.Message:
		err = o.message(ctx, ms, ev)
	default:
		err = domain.NewValidationError("type", fmt.Sprintf("unsupported event %T", ev))
	}
	if err != nil {
		o.reject(ms, err)
	}
}

// Disconnect removes sid from every room, telling the remaining members.
// Calling it again for the same sid does nothing.
func (o *Orchestrator) Disconnect(sid core.SessionID) {
	ms, ok := o.Sessions.Get(sid)
	if !ok || !o.Sessions.Unbind(sid) {
		return
	}
	o.Metrics.SessionClosed()

	name := ms.Meta().DisplayName()
	type fanout struct {
		room domain.RoomName
		res  core.PublishResult
	}
	var sent []fanout
	rooms := o.Rooms.LeaveAll(sid, func(room domain.RoomName, members []core.MemberSession) {
		sent = append(sent, fanout{room, core.Broadcast(members, core.LeftNotice(name))})
	})
	for _, f := range sent {
		o.settle(f.room, f.res)
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Int("rooms", len(rooms)).Msg("session disconnected")
}

// Shutdown asks every live session to disconnect.
func (o *Orchestrator) Shutdown() {
	o.Sessions.CancelAll()
}

func (o *Orchestrator) reject(ms core.MemberSession, err error) {
	n := core.RejectionNotice(err)
	o.Metrics.Rejected(n.Error)
	log.Info().Str("module", "orch").Str("sid", string(ms.ID())).Str("kind", n.Error).Err(err).Msg("event rejected")
	if sendErr := ms.Signal().TrySend(n); sendErr != nil {
		log.Debug().Str("module", "orch").Str("sid", string(ms.ID())).Err(sendErr).Msg("rejection not delivered")
	}
}

// settle runs after the room lock is released and applies the backpressure
// policy to members whose queue refused the notice.
func (o *Orchestrator) settle(room domain.RoomName, res core.PublishResult) {
	o.Metrics.Delivered(res.SendTo, len(res.Dropped))
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			if o.Sessions.Cancel(slow.ID()) {
				o.Metrics.Kicked()
				log.Warn().Str("module", "orch").Str("sid", string(slow.ID())).Str("room", string(room)).Msg("kicked slow member")
			}
		case app.DropNotice, app.NoAction:
			log.Debug().Str("module", "orch").Str("sid", string(slow.ID())).Str("room", string(room)).Msg("notice dropped")
		}
	}
}
