package core

import (
	"sort"
	"sync"

	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Registry is the in-memory RoomRegistry.
//
// Lock order is Registry.mu → room.mu → Registry.idxMu. The registry lock is
// only held to look up, create or prune a room entry.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomName]*room

	idxMu sync.Mutex
	bySID map[SessionID]map[domain.RoomName]struct{}
}

var _ RoomRegistry = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[domain.RoomName]*room),
		bySID: make(map[SessionID]map[domain.RoomName]struct{}),
	}
}

func (r *Registry) getOrCreate(name domain.RoomName) *room {
	r.mu.RLock()
	rm, ok := r.rooms[name]
	r.mu.RUnlock()
	if ok {
		return rm
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok = r.rooms[name]; ok {
		return rm
	}
	rm = newRoom(name)
	r.rooms[name] = rm
	log.Debug().Str("module", "core.registry").Str("room", string(name)).Msg("room created")
	return rm
}

func (r *Registry) lookup(name domain.RoomName) (*room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[name]
	return rm, ok
}

func (r *Registry) Join(name domain.RoomName, ms MemberSession, then MembersFunc) bool {
	sid := ms.ID()
	for {
		rm := r.getOrCreate(name)
		rm.mu.Lock()
		if rm.closed {
			rm.mu.Unlock()
			continue
		}
		if _, ok := rm.members[sid]; ok {
			rm.mu.Unlock()
			return false
		}
		rm.members[sid] = ms
		r.index(sid, name, true)
		log.Info().Str("module", "core.registry").Str("sid", string(sid)).Str("room", string(name)).Msg("member added")
		if then != nil {
			then(rm.snapshotLocked())
		}
		rm.mu.Unlock()
		return true
	}
}

func (r *Registry) Leave(name domain.RoomName, sid SessionID, then MembersFunc) bool {
	rm, ok := r.lookup(name)
	if !ok {
		return false
	}
	rm.mu.Lock()
	if _, ok = rm.members[sid]; !ok {
		rm.mu.Unlock()
		return false
	}
	delete(rm.members, sid)
	r.index(sid, name, false)
	log.Info().Str("module", "core.registry").Str("sid", string(sid)).Str("room", string(name)).Msg("member removed")
	if then != nil {
		then(rm.snapshotLocked())
	}
	empty := len(rm.members) == 0
	rm.mu.Unlock()

	if empty {
		r.prune(name, rm)
	}
	return true
}

func (r *Registry) prune(name domain.RoomName, rm *room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if len(rm.members) != 0 || r.rooms[name] != rm {
		return
	}
	rm.closed = true
	delete(r.rooms, name)
	log.Debug().Str("module", "core.registry").Str("room", string(name)).Msg("room pruned")
}

func (r *Registry) LeaveAll(sid SessionID, then func(name domain.RoomName, members []MemberSession)) []domain.RoomName {
	left := make([]domain.RoomName, 0, 1)
	for _, name := range r.RoomsOf(sid) {
		var fn MembersFunc
		if then != nil {
			fn = func(members []MemberSession) { then(name, members) }
		}
		if r.Leave(name, sid, fn) {
			left = append(left, name)
		}
	}
	return left
}

func (r *Registry) WithMembers(name domain.RoomName, fn MembersFunc) bool {
	rm, ok := r.lookup(name)
	if !ok {
		return false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if len(rm.members) == 0 {
		return false
	}
	fn(rm.snapshotLocked())
	return true
}

func (r *Registry) MembersOf(name domain.RoomName) []SessionID {
	rm, ok := r.lookup(name)
	if !ok {
		return nil
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	out := lo.Keys(rm.members)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) IsMember(name domain.RoomName, sid SessionID) bool {
	rm, ok := r.lookup(name)
	if !ok {
		return false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	_, ok = rm.members[sid]
	return ok
}

func (r *Registry) RoomsOf(sid SessionID) []domain.RoomName {
	r.idxMu.Lock()
	defer r.idxMu.Unlock()
	out := lo.Keys(r.bySID[sid])
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) Snapshot(name domain.RoomName) []MemberDTO {
	rm, ok := r.lookup(name)
	if !ok {
		return []MemberDTO{}
	}
	rm.mu.Lock()
	members := rm.snapshotLocked()
	rm.mu.Unlock()
	return lo.Map(members, func(ms MemberSession, _ int) MemberDTO {
		dto := MemberDTO{SID: ms.ID(), DisplayName: ms.Meta().DisplayName()}
		if u := ms.Meta().User; u != nil {
			dto.UserID = u.ID
		}
		return dto
	})
}

// List returns active rooms only, ordered by name.
func (r *Registry) List() []RoomInfo {
	r.mu.RLock()
	rooms := lo.Values(r.rooms)
	r.mu.RUnlock()

	out := make([]RoomInfo, 0, len(rooms))
	for _, rm := range rooms {
		rm.mu.Lock()
		n := len(rm.members)
		rm.mu.Unlock()
		if n == 0 {
			continue
		}
		out = append(out, RoomInfo{Name: rm.name, MemberCount: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// index keeps bySID in step with room membership. Caller holds the room lock.
func (r *Registry) index(sid SessionID, name domain.RoomName, joined bool) {
	r.idxMu.Lock()
	defer r.idxMu.Unlock()
	if joined {
		if r.bySID[sid] == nil {
			r.bySID[sid] = make(map[domain.RoomName]struct{})
		}
		r.bySID[sid][name] = struct{}{}
		return
	}
	delete(r.bySID[sid], name)
	if len(r.bySID[sid]) == 0 {
		delete(r.bySID, sid)
	}
}
