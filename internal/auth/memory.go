package auth

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps users for the lifetime of the process.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]User)}
}

func (m *MemoryStore) Get(_ context.Context, name string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[name]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *MemoryStore) Create(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.users[u.Name]; ok && existing.PasswordHash != "" {
		return ErrUserExists
	} else if ok {
		// A banned guest record keeps its flag when the name is registered.
		u.Banned = existing.Banned
	}
	m.users[u.Name] = u
	return nil
}

func (m *MemoryStore) SetPassword(_ context.Context, name, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[name]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	m.users[name] = u
	return nil
}

func (m *MemoryStore) SetBanned(_ context.Context, name string, banned bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[name]
	if !banned && u.PasswordHash == "" {
		delete(m.users, name)
		return nil
	}
	u.Name = name
	u.Banned = banned
	m.users[name] = u
	return nil
}

func (m *MemoryStore) Banned(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for name, u := range m.users {
		if u.Banned {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}
