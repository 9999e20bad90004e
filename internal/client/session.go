package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"boopsite/internal/domain"
)

const (
	currentUserKey = "currentUser"
	tokenKey       = "token"
)

// KeyValueStore persists session state between runs.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetMany(ctx context.Context, values map[string][]byte) error
	DeleteMany(ctx context.Context, keys ...string) error
}

// Authenticator performs the server side of a login.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	LoginWithFingerprint(ctx context.Context, fingerprintHash string) (*LoginResult, error)
}

// UserPatch holds the fields UpdateCurrentUser may change locally.
type UserPatch struct {
	Email     *string
	Role      *domain.Role
	FirstName *string
	LastName  *string
}

// SessionStore holds the signed-in user and token, mirrors them to a
// KeyValueStore and notifies subscribers on every change.
//
// State written by another process becomes visible only after Reload.
type SessionStore struct {
	kv   KeyValueStore
	auth Authenticator

	mu     sync.RWMutex
	user   *User
	token  string
	subs   map[int]chan *User
	nextID int
}

// NewSessionStore restores any persisted session from kv.
func NewSessionStore(ctx context.Context, kv KeyValueStore, auth Authenticator) (*SessionStore, error) {
	s := &SessionStore{
		kv:   kv,
		auth: auth,
		subs: make(map[int]chan *User),
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns a copy of the signed-in user, or nil.
func (s *SessionStore) Current() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyUser(s.user)
}

// Token returns the stored bearer token, or "".
func (s *SessionStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Subscribe returns a channel that immediately receives the current user and
// then every later change; nil means signed out. Slow readers only see the
// most recent value. The returned func stops delivery and closes the channel.
func (s *SessionStore) Subscribe() (<-chan *User, func()) {
	ch := make(chan *User, 1)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	ch <- copyUser(s.user)
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			close(ch)
			s.mu.Unlock()
		})
	}
}

// Login signs in with email and password. On failure the session is left as
// it was.
func (s *SessionStore) Login(ctx context.Context, email, password string) (*User, error) {
	res, err := s.auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.establish(ctx, res)
}

func (s *SessionStore) LoginWithFingerprint(ctx context.Context, fingerprintHash string) (*User, error) {
	res, err := s.auth.LoginWithFingerprint(ctx, fingerprintHash)
	if err != nil {
		return nil, err
	}
	return s.establish(ctx, res)
}

// Logout clears the persisted and in-memory session.
func (s *SessionStore) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.DeleteMany(ctx, currentUserKey, tokenKey); err != nil {
		return err
	}
	s.user = nil
	s.token = ""
	s.publishLocked()
	return nil
}

// UpdateCurrentUser merges patch into the signed-in user without contacting
// the server.
func (s *SessionStore) UpdateCurrentUser(ctx context.Context, patch UserPatch) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return nil, fmt.Errorf("no active session: %w", domain.ErrUnauthorized)
	}

	next := copyUser(s.user)
	if patch.Email != nil {
		next.Email = *patch.Email
	}
	if patch.Role != nil {
		next.Role = *patch.Role
	}
	if patch.FirstName != nil {
		next.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		next.LastName = *patch.LastName
	}

	if err := s.saveUser(ctx, next); err != nil {
		return nil, err
	}
	s.user = next
	s.publishLocked()
	return copyUser(next), nil
}

// Reload replaces the in-memory session with what is persisted.
func (s *SessionStore) Reload(ctx context.Context) error {
	rawUser, err := s.kv.Get(ctx, currentUserKey)
	if err != nil {
		return err
	}
	rawToken, err := s.kv.Get(ctx, tokenKey)
	if err != nil {
		return err
	}

	var user *User
	if rawUser != nil {
		user = &User{}
		if err := json.Unmarshal(rawUser, user); err != nil {
			return fmt.Errorf("decode stored user: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
	s.token = string(rawToken)
	s.publishLocked()
	return nil
}

func (s *SessionStore) establish(ctx context.Context, res *LoginResult) (*User, error) {
	user := res.User

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(&user)
	if err != nil {
		return nil, fmt.Errorf("encode user: %w", err)
	}
	// user and token are written together so a reload never sees half a session
	if err := s.kv.SetMany(ctx, map[string][]byte{
		currentUserKey: raw,
		tokenKey:       []byte(res.AccessToken),
	}); err != nil {
		return nil, err
	}
	s.user = &user
	s.token = res.AccessToken
	s.publishLocked()
	return copyUser(&user), nil
}

func (s *SessionStore) saveUser(ctx context.Context, user *User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	return s.kv.Set(ctx, currentUserKey, raw)
}

// publishLocked must be called with s.mu held for writing.
func (s *SessionStore) publishLocked() {
	for _, ch := range s.subs {
		v := copyUser(s.user)
		select {
		case ch <- v:
		default:
			// drop the stale value so the newest one fits
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

func copyUser(u *User) *User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}
