// Package session holds the single source of truth for who is signed in on
// one browser client. The durable copy lives in port.LocalStorage under the
// "user" key; the in-memory copy mirrors it after Restore.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arturoeanton/godsplan/internal/domain"
	"github.com/arturoeanton/godsplan/internal/logger"
	"github.com/arturoeanton/godsplan/internal/port"
)

const defaultRestoreTimeout = 2 * time.Second

// ErrMissingIdentifier is returned by Login for an identity without a uid.
var ErrMissingIdentifier = errors.New("session: identity has no uid")

// Store is a single-writer session holder with change notification.
type Store struct {
	storage port.LocalStorage
	lggr    logger.Logger

	restoreTimeout time.Duration

	mu       sync.RWMutex
	identity *domain.Identity
	loading  bool

	subsMu sync.RWMutex
	subs   []chan domain.SessionState
}

// Option configures a Store.
type Option func(*Store)

// WithRestoreTimeout bounds how long Restore waits on storage.
func WithRestoreTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.restoreTimeout = d
		}
	}
}

// NewStore returns an empty store in the loading state.
func NewStore(storage port.LocalStorage, lggr logger.Logger, opts ...Option) *Store {
	s := &Store{
		storage:        storage,
		lggr:           lggr.Named("session"),
		restoreTimeout: defaultRestoreTimeout,
		loading:        true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads the persisted identity. Unreadable or malformed data leaves
// the session empty. Restore always clears the loading flag.
func (s *Store) Restore(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.restoreTimeout)
	defer cancel()

	identity := s.readPersisted(ctx)

	s.mu.Lock()
	s.identity = identity
	s.loading = false
	s.mu.Unlock()

	s.publish()
}

func (s *Store) readPersisted(ctx context.Context) *domain.Identity {
	raw, ok, err := s.storage.GetItem(ctx, port.KeyUser)
	if err != nil {
		s.lggr.Warnw("restore: storage read failed, starting signed out", "err", err)
		return nil
	}
	if !ok {
		return nil
	}
	var id domain.Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		s.lggr.Warnw("restore: malformed persisted identity, starting signed out", "err", err)
		return nil
	}
	if !id.Valid() {
		s.lggr.Warnw("restore: persisted identity has no uid, starting signed out")
		return nil
	}
	return &id
}

// Login persists identity and makes it active. Memory is untouched when the
// durable write fails.
func (s *Store) Login(ctx context.Context, identity domain.Identity) error {
	if !identity.Valid() {
		return ErrMissingIdentifier
	}
	raw, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("session: encode identity: %w", err)
	}
	if err := s.storage.SetItem(ctx, port.KeyUser, string(raw)); err != nil {
		return fmt.Errorf("session: persist identity: %w", err)
	}

	s.mu.Lock()
	s.identity = &identity
	s.loading = false
	s.mu.Unlock()

	s.lggr.Infow("signed in", "uid", identity.UID, "provider", identity.Provider)
	s.publish()
	return nil
}

// Logout clears the durable record, then the active identity. Calling it
// without a session is a no-op.
func (s *Store) Logout(ctx context.Context) error {
	if err := s.storage.RemoveItem(ctx, port.KeyUser); err != nil {
		return fmt.Errorf("session: clear identity: %w", err)
	}

	s.mu.Lock()
	had := s.identity != nil
	s.identity = nil
	s.loading = false
	s.mu.Unlock()

	if had {
		s.lggr.Infow("signed out")
		s.publish()
	}
	return nil
}

// Current returns the active identity, or nil.
func (s *Store) Current() *domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

// IsAuthenticated reports whether an identity is active.
func (s *Store) IsAuthenticated() bool {
	return s.Current() != nil
}

// Loading reports whether Restore has not yet completed.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// State returns a snapshot of the session.
func (s *Store) State() domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := domain.SessionState{Loading: s.loading}
	if s.identity != nil {
		id := *s.identity
		st.Identity = &id
		st.Authenticated = true
	}
	return st
}

// Subscribe returns a channel receiving the state after every change and a
// func that ends the subscription. Slow subscribers miss updates.
func (s *Store) Subscribe() (<-chan domain.SessionState, func()) {
	ch := make(chan domain.SessionState, 4)
	s.subsMu.Lock()
	s.subs = append(s.subs, ch)
	s.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { s.unsubscribe(ch) })
	}
}

func (s *Store) unsubscribe(ch chan domain.SessionState) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for i, sub := range s.subs {
		if sub == ch {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			break
		}
	}
	close(ch)
}

func (s *Store) publish() {
	st := s.State()
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- st:
		default:
		}
	}
}
