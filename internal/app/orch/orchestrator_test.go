package orch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/core/coretest"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/mocks"
	"github.com/dkeye/Chat/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	alice = &domain.User{ID: "1", Username: "alice"}
	bob   = &domain.User{ID: "2", Username: "bob"}
)

type fixture struct {
	orch     *Orchestrator
	store    *mocks.MockMessageStore
	mu       sync.Mutex
	canceled map[core.SessionID]int
}

func newFixture(t *testing.T, policy app.Policy) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		store:    mocks.NewMockMessageStore(ctrl),
		canceled: map[core.SessionID]int{},
	}
	f.orch = &Orchestrator{
		Sessions: app.NewSessions(),
		Rooms:    core.NewRegistry(),
		Store:    f.store,
		Policy:   policy,
	}
	return f
}

func (f *fixture) connect(sid string, user *domain.User) *coretest.Conn {
	ms, conn := coretest.NewSession(sid, user)
	id := ms.ID()
	f.orch.Connect(ms, func() {
		f.mu.Lock()
		f.canceled[id]++
		f.mu.Unlock()
	})
	return conn
}

func (f *fixture) cancels(sid core.SessionID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canceled[sid]
}

func (f *fixture) expectAppend(times int) {
	var next domain.MessageID
	var mu sync.Mutex
	f.store.EXPECT().
		Append(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, room domain.RoomName, content string, author *domain.User) (domain.ChatMessage, error) {
			mu.Lock()
			next++
			id := next
			mu.Unlock()
			return domain.ChatMessage{ID: id, Room: room, Content: content, AuthorID: author.ID, AuthorName: author.Username, CreatedAt: time.Now()}, nil
		}).
		Times(times)
}

func TestOrchestrator_JoinAndChat(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, app.DisconnectPolicy{})
	ctx := context.Background()
	a := f.connect("a", alice)
	b := f.connect("b", bob)

	f.orch.Handle(ctx, "a", core.Join{Room: "default", DisplayName: "A"})
	req.Equal([]string{"A has entered the room."}, a.Texts())

	f.orch.Handle(ctx, "b", core.Join{Room: "default", DisplayName: "B"})
	req.Equal([]string{"A has entered the room.", "B has entered the room."}, a.Texts())
	req.Equal([]string{"B has entered the room."}, b.Texts())

	f.store.EXPECT().Append(gomock.Any(), domain.RoomName("default"), "hi", alice).
		Return(domain.ChatMessage{ID: 1, Room: "default", Content: "hi", AuthorID: "1", AuthorName: "alice"}, nil)
	f.orch.Handle(ctx, "a", core.Message{Room: "default", DisplayName: "A", Text: "hi"})

	req.Equal("A: hi", a.Texts()[2])
	req.Equal("A: hi", b.Texts()[1])

	f.orch.Disconnect("b")
	req.Equal("B has left the room.", a.Texts()[3])
	req.Equal([]core.SessionID{"a"}, f.orch.Rooms.MembersOf("default"))
}

func TestOrchestrator_AnonymousMessageRejected(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, app.DisconnectPolicy{})
	ctx := context.Background()
	a := f.connect("a", alice)
	guest := f.connect("g", nil)

	f.orch.Handle(ctx, "a", core.Join{Room: "default", DisplayName: "A"})
	f.orch.Handle(ctx, "g", core.Join{Room: "default", DisplayName: "Guest"})
	a.Reset()
	guest.Reset()

	// no Append expectation: calling the store fails the test
	f.orch.Handle(ctx, "g", core.Message{Room: "default", DisplayName: "Guest", Text: "hi"})

	req.Empty(a.Notices())
	notices := guest.Notices()
	req.Len(notices, 1)
	req.Equal(domain.RejectUnauthenticated, notices[0].Error)
}

func TestOrchestrator_PersistenceFailureIsNotBroadcast(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, app.DisconnectPolicy{})
	ctx := context.Background()
	a := f.connect("a", alice)
	b := f.connect("b", bob)
	f.orch.Handle(ctx, "a", core.Join{Room: "default", DisplayName: "A"})
	f.orch.Handle(ctx, "b", core.Join{Room: "default", DisplayName: "B"})
	a.Reset()
	b.Reset()

	f.store.EXPECT().Append(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(domain.ChatMessage{}, domain.NewPersistenceError("append", errors.New("disk full")))
	f.orch.Handle(ctx, "a", core.Message{Room: "default", DisplayName: "A", Text: "hi"})

	req.Empty(b.Notices())
	notices := a.Notices()
	req.Len(notices, 1)
	req.Equal(domain.RejectStorage, notices[0].Error)
	req.NotContains(notices[0].Text, "disk full")
}

func TestOrchestrator_MessageValidation(t *testing.T) {
	f := newFixture(t, app.DisconnectPolicy{})
	ctx := context.Background()
	a := f.connect("a", alice)
	f.orch.Handle(ctx, "a", core.Join{Room: "default", DisplayName: "A"})

	cases := map[string]core.Event{
		"empty text":      core.Message{Room: "default", DisplayName: "A", Text: "  "},
		"empty room":      core.Message{Room: "", DisplayName: "A", Text: "hi"},
		"empty name":      core.Message{Room: "default", DisplayName: "", Text: "hi"},
		"not a member":    core.Message{Room: "other", DisplayName: "A", Text: "hi"},
		"join empty name": core.Join{Room: "other", DisplayName: ""},
		"join blank name": core.Join{Room: "other", DisplayName: "   "},
		"blank name":      core.Message{Room: "default", DisplayName: " \t", Text: "hi"},
		"room too long":   core.Join{Room: domain.RoomName(strings.Repeat("é", domain.MaxRoomNameLen+1)), DisplayName: "A"},
	}
	for name, ev := range cases {
		t.Run(name, func(t *testing.T) {
			a.Reset()
			f.orch.Handle(ctx, "a", ev)
			notices := a.Notices()
			require.Len(t, notices, 1)
			require.Equal(t, domain.RejectInvalid, notices[0].Error)
		})
	}
	require.Equal(t, []domain.RoomName{"default"}, f.orch.Rooms.RoomsOf("a"))
	ms, ok := f.orch.Sessions.Get("a")
	require.True(t, ok)
	require.Equal(t, "A", ms.Meta().DisplayName())
}

func TestOrchestrator_DuplicateJoinAndStrayLeaveAreSilent(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, app.DisconnectPolicy{})
	ctx := context.Background()
	a := f.connect("a", alice)
	b := f.connect("b", bob)
	f.orch.Handle(ctx, "a", core.Join{Room: "default", DisplayName: "A"})
	f.orch.Handle(ctx, "b", core.Join{Room: "default", DisplayName: "B"})
	a.Reset()
	b.Reset()

	f.orch.Handle(ctx, "a", core.Join{Room: "default", DisplayName: "A"})
	f.orch.Handle(ctx, "a", core.Leave{Room: "elsewhere", DisplayName: "A"})

	req.Empty(a.Notices())
	req.Empty(b.Notices())
	req.Equal([]core.SessionID{"a", "b"}, f.orch.Rooms.MembersOf("default"))
}

func TestOrchestrator_Leave(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, app.DisconnectPolicy{})
	ctx := context.Background()
	a := f.connect("a", alice)
	b := f.connect("b", bob)
	f.orch.Handle(ctx, "a", core.Join{Room: "default", DisplayName: "A"})
	f.orch.Handle(ctx, "b", core.Join{Room: "default", DisplayName: "B"})
	a.Reset()
	b.Reset()

	f.orch.Handle(ctx, "b", core.Leave{Room: "default", DisplayName: "B"})

	req.Equal([]string{"B has left the room."}, a.Texts())
	req.Empty(b.Notices())
	req.Equal([]core.SessionID{"a"}, f.orch.Rooms.MembersOf("default"))
}

func TestOrchestrator_JoinSwitchesRooms(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, app.DisconnectPolicy{})
	ctx := context.Background()
	a := f.connect("a", alice)
	b := f.connect("b", bob)
	f.orch.Handle(ctx, "a", core.Join{Room: "red", DisplayName: "A"})
	f.orch.Handle(ctx, "b", core.Join{Room: "red", DisplayName: "B"})
	a.Reset()
	b.Reset()

	f.orch.Handle(ctx, "a", core.Join{Room: "blue", DisplayName: "Ann"})

	req.Equal([]string{"A has left the room."}, b.Texts())
	req.Equal([]string{"Ann has entered the room."}, a.Texts())
	req.Equal([]domain.RoomName{"blue"}, f.orch.Rooms.RoomsOf("a"))
	req.Equal([]core.SessionID{"b"}, f.orch.Rooms.MembersOf("red"))
}

func TestOrchestrator_DisconnectAnnouncesOnce(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, app.DisconnectPolicy{})
	ctx := context.Background()
	f.connect("a", alice)
	b := f.connect("b", bob)
	f.orch.Handle(ctx, "a", core.Join{Room: "default", DisplayName: "A"})
	f.orch.Handle(ctx, "b", core.Join{Room: "default", DisplayName: "B"})
	b.Reset()

	f.orch.Disconnect("a")
	f.orch.Disconnect("a")

	req.Equal([]string{"A has left the room."}, b.Texts())
	req.Equal([]core.SessionID{"b"}, f.orch.Rooms.MembersOf("default"))
	_, ok := f.orch.Sessions.Get("a")
	req.False(ok)

	// events after disconnect are ignored
	f.orch.Handle(ctx, "a", core.Join{Room: "default", DisplayName: "A"})
	req.Equal([]core.SessionID{"b"}, f.orch.Rooms.MembersOf("default"))
}

func TestOrchestrator_SlowMemberIsKicked(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, app.DisconnectPolicy{})
	ctx := context.Background()
	a := f.connect("a", alice)
	b := f.connect("b", bob)
	b.Capacity = 1
	f.orch.Handle(ctx, "a", core.Join{Room: "default", DisplayName: "A"})
	f.orch.Handle(ctx, "b", core.Join{Room: "default", DisplayName: "B"})

	f.expectAppend(1)
	f.orch.Handle(ctx, "a", core.Message{Room: "default", DisplayName: "A", Text: "hi"})

	req.Contains(a.Texts(), "A: hi")
	req.NotContains(b.Texts(), "A: hi")
	req.Equal(1, f.cancels("b"))
	req.Zero(f.cancels("a"))

	// the kicked transport then runs the regular disconnect
	f.orch.Disconnect("b")
	req.Equal("B has left the room.", a.Texts()[len(a.Texts())-1])
}

func TestOrchestrator_SlowMemberIsKickedOnce(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, app.DisconnectPolicy{})
	f.orch.Metrics = observability.NewMetrics(prometheus.NewRegistry())
	ctx := context.Background()
	f.connect("a", alice)
	b := f.connect("b", bob)
	b.Capacity = 1
	f.orch.Handle(ctx, "a", core.Join{Room: "default", DisplayName: "A"})
	f.orch.Handle(ctx, "b", core.Join{Room: "default", DisplayName: "B"})

	// b stays in the room until its transport disconnects, so every
	// message in between is dropped for it again
	f.expectAppend(3)
	f.orch.Handle(ctx, "a", core.Message{Room: "default", DisplayName: "A", Text: "one"})
	b.Close()
	f.orch.Handle(ctx, "a", core.Message{Room: "default", DisplayName: "A", Text: "two"})
	f.orch.Handle(ctx, "a", core.Message{Room: "default", DisplayName: "A", Text: "three"})

	req.Equal(1, f.cancels("b"))
	req.Equal(1.0, testutil.ToFloat64(f.orch.Metrics.SessionsKicked))
	req.Equal(3.0, testutil.ToFloat64(f.orch.Metrics.NoticesDropped))
}

func TestOrchestrator_DropPolicyKeepsSlowMember(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, app.DropPolicy{})
	ctx := context.Background()
	f.connect("a", alice)
	b := f.connect("b", bob)
	b.Capacity = 1
	f.orch.Handle(ctx, "a", core.Join{Room: "default", DisplayName: "A"})
	f.orch.Handle(ctx, "b", core.Join{Room: "default", DisplayName: "B"})

	f.expectAppend(1)
	f.orch.Handle(ctx, "a", core.Message{Room: "default", DisplayName: "A", Text: "hi"})

	req.Zero(f.cancels("b"))
	req.True(f.orch.Rooms.IsMember("default", "b"))
}

func TestOrchestrator_PanicIsReportedAsInternal(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, app.DisconnectPolicy{})
	ctx := context.Background()
	a := f.connect("a", alice)
	f.orch.Handle(ctx, "a", core.Join{Room: "default", DisplayName: "A"})
	a.Reset()

	f.store.EXPECT().Append(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, domain.RoomName, string, *domain.User) (domain.ChatMessage, error) {
			panic("boom")
		})
	req.NotPanics(func() {
		f.orch.Handle(ctx, "a", core.Message{Room: "default", DisplayName: "A", Text: "hi"})
	})

	notices := a.Notices()
	req.Len(notices, 1)
	req.Equal(domain.RejectInternal, notices[0].Error)
}

// Every member of a room observes concurrent messages in the same order.
func TestOrchestrator_ConcurrentMessagesSameOrderForAll(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, app.DisconnectPolicy{})
	ctx := context.Background()

	const senders, each = 6, 20
	conns := make([]*coretest.Conn, senders)
	for i := range conns {
		sid := fmt.Sprintf("s%d", i)
		conns[i] = f.connect(sid, &domain.User{ID: domain.UserID(sid), Username: sid})
		f.orch.Handle(ctx, core.SessionID(sid), core.Join{Room: "default", DisplayName: sid})
	}
	for _, c := range conns {
		c.Reset()
	}

	f.expectAppend(senders * each)
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sid := fmt.Sprintf("s%d", i)
			for j := 0; j < each; j++ {
				f.orch.Handle(ctx, core.SessionID(sid), core.Message{Room: "default", DisplayName: sid, Text: fmt.Sprint(j)})
			}
		}(i)
	}
	wg.Wait()

	first := conns[0].Texts()
	req.Len(first, senders*each)
	for _, c := range conns[1:] {
		req.Equal(first, c.Texts())
	}
}

func TestOrchestrator_MultibyteRoomNameWithinLimit(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, app.DisconnectPolicy{})
	a := f.connect("a", alice)
	room := domain.RoomName(strings.Repeat("é", domain.MaxRoomNameLen))

	f.orch.Handle(context.Background(), "a", core.Join{Room: room, DisplayName: "A"})

	req.Equal([]string{"A has entered the room."}, a.Texts())
	req.Equal([]domain.RoomName{room}, f.orch.Rooms.RoomsOf("a"))
}
