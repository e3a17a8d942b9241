package orch

import (
	"context"
	"strings"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
)

// message persists the text and only then fans it out, so every broadcast
// line is in the history.
func (o *Orchestrator) message(ctx context.Context, ms core.MemberSession, ev core.Message) error {
	if err := validateTarget(ev.Room, ev.DisplayName); err != nil {
		return err
	}
	if strings.TrimSpace(ev.Text) == "" {
		return domain.NewValidationError("text", "must not be empty")
	}
	meta := ms.Meta()
	meta.SetDisplayName(ev.DisplayName)
	if !meta.Authenticated() {
		return domain.ErrUnauthenticated
	}
	if !o.Rooms.IsMember(ev.Room, ms.ID()) {
		return domain.NewValidationError("room", "not joined")
	}

	msg, err := o.Store.Append(ctx, ev.Room, ev.Text, meta.User)
	if err != nil {
		return err
	}
	o.Metrics.Persisted()

	var res core.PublishResult
	o.Rooms.WithMembers(ev.Room, func(members []core.MemberSession) {
		res = core.Broadcast(members, core.ChatNotice(ev.DisplayName, ev.Text))
	})
	o.settle(ev.Room, res)
	log.Debug().Str("module", "orch").Str("sid", string(ms.ID())).Str("room", string(ev.Room)).Uint64("id", uint64(msg.ID)).Msg("message broadcast")
	return nil
}
