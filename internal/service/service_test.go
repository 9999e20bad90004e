package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"boopsite/internal/auth"
	"boopsite/internal/domain"
)

// memUsers is an in-memory repository.UserRepository enforcing the same
// uniqueness rules as the sqlite store.
type memUsers struct {
	mu        sync.Mutex
	byID      map[string]domain.User
	createErr error
	updateErr error
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[string]domain.User)}
}

func (m *memUsers) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if err := m.checkUnique(user); err != nil {
		return err
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	m.byID[user.ID] = *user
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	return &u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Email == email })
}

func (m *memUsers) GetByFingerprint(_ context.Context, hash string) (*domain.User, error) {
	return m.find(func(u domain.User) bool { return u.FingerprintHash != "" && u.FingerprintHash == hash })
}

func (m *memUsers) List(_ context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *memUsers) Update(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.byID[user.ID]; !ok {
		return fmt.Errorf("update user: %w", domain.ErrNotFound)
	}
	if err := m.checkUnique(user); err != nil {
		return err
	}
	user.UpdatedAt = time.Now().UTC()
	m.byID[user.ID] = *user
	return nil
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return fmt.Errorf("delete user: %w", domain.ErrNotFound)
	}
	delete(m.byID, id)
	return nil
}

func (m *memUsers) find(match func(domain.User) bool) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if match(u) {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
}

func (m *memUsers) checkUnique(user *domain.User) error {
	for id, u := range m.byID {
		if id == user.ID {
			continue
		}
		if u.Email == user.Email {
			return fmt.Errorf("email already exists: %w", domain.ErrConflict)
		}
		if user.FingerprintHash != "" && u.FingerprintHash == user.FingerprintHash {
			return fmt.Errorf("fingerprint already registered: %w", domain.ErrConflict)
		}
	}
	return nil
}

func testHasher() *auth.PasswordHasher {
	return auth.NewPasswordHasher(bcrypt.MinCost)
}

func strPtr(s string) *string { return &s }

func rolePtr(r domain.Role) *domain.Role { return &r }
