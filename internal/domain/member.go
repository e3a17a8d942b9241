package domain

import "sync"

// Member represents a session's participation meta.
// No transport or lifecycle logic here.
type Member struct {
	// User is nil for anonymous sessions.
	User *User

	mu          sync.RWMutex
	displayName string
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(user *User) *Member {
	m := &Member{User: user}
	if user != nil {
		m.displayName = user.Username
	}
	return m
}

func (m *Member) Authenticated() bool { return m.User != nil }

// DisplayName is the last name the client presented. It is a presentation
// hint only and is never used for authorization.
func (m *Member) DisplayName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.displayName
}

func (m *Member) SetDisplayName(name string) {
	if name == "" {
		return
	}
	m.mu.Lock()
	m.displayName = name
	m.mu.Unlock()
}
