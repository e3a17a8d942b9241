package core

import (
	"sort"
	"sync"

	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// room is a threadsafe in-memory membership set.
// It never closes adapter-owned resources.
type room struct {
	name domain.RoomName

	mu      sync.Mutex
	members map[SessionID]MemberSession
	// closed is set when the registry pruned the room; a joiner holding a
	// stale pointer must look the room up again.
	closed bool
}

func newRoom(name domain.RoomName) *room {
	return &room{
		name:    name,
		members: make(map[SessionID]MemberSession),
	}
}

// snapshotLocked returns members ordered by session id. Caller holds mu.
func (r *room) snapshotLocked() []MemberSession {
	out := lo.Values(r.members)
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Broadcast enqueues n on every member without blocking. Members whose
// queue refused the notice are returned in Dropped.
func Broadcast(members []MemberSession, n Notice) PublishResult {
	res := PublishResult{}
	for _, m := range members {
		if err := m.Signal().TrySend(n); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
