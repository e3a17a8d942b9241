package app

import (
	"testing"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/core/coretest"
	"github.com/stretchr/testify/require"
)

func TestSessions_BindGetUnbind(t *testing.T) {
	req := require.New(t)
	s := NewSessions()
	ms, _ := coretest.NewSession("a", nil)

	s.Bind(ms, nil)
	got, ok := s.Get("a")
	req.True(ok)
	req.Equal(ms, got)
	req.Equal(1, s.Count())

	req.True(s.Unbind("a"))
	req.False(s.Unbind("a"))
	_, ok = s.Get("a")
	req.False(ok)
}

func TestSessions_Cancel(t *testing.T) {
	req := require.New(t)
	s := NewSessions()
	a, _ := coretest.NewSession("a", nil)
	b, _ := coretest.NewSession("b", nil)

	canceled := map[core.SessionID]int{}
	s.Bind(a, func() { canceled["a"]++ })
	s.Bind(b, func() { canceled["b"]++ })

	req.True(s.Cancel("a"))
	req.False(s.Cancel("a"), "second cancel is a no-op")
	req.False(s.Cancel("ghost"))
	req.Equal(map[core.SessionID]int{"a": 1}, canceled)

	s.CancelAll()
	req.Equal(map[core.SessionID]int{"a": 1, "b": 1}, canceled)
	req.False(s.Cancel("b"))
	req.Equal(2, s.Count(), "canceled sessions stay bound until unbound")
}

func TestPolicyFor(t *testing.T) {
	ms, _ := coretest.NewSession("a", nil)
	require.Equal(t, KickMember, PolicyFor("disconnect").OnBackPressure("r", ms))
	require.Equal(t, DropNotice, PolicyFor("drop").OnBackPressure("r", ms))
	require.Equal(t, KickMember, PolicyFor("").OnBackPressure("r", ms))
}
