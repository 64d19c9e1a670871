package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/farmsense/cava/backend/internal/model/registration"
)

const (
	defaultMaxSessions = 10000
	defaultTTL         = 30 * time.Minute
)

// Config bounds the store.
type Config struct {
	MaxSessions int
	TTL         time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

type entry struct {
	mu      sync.Mutex
	session *registration.Session
	// lastSeen is guarded by Store.mu.
	lastSeen time.Time
	purged   atomic.Bool
}

// Store keeps registration sessions in memory. It is bounded in size and
// forgets sessions after a period of inactivity. Turns for one session id are
// serialized; distinct ids proceed concurrently.
type Store struct {
	mu     sync.Mutex
	cache  *lru.Cache[string, *entry]
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewStore creates a store.
func NewStore(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	size := cfg.MaxSessions
	if size <= 0 {
		size = defaultMaxSessions
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	s := &Store{ttl: ttl, now: now, logger: logger.Named("session")}
	cache, err := lru.NewWithEvict[string, *entry](size, func(id string, e *entry) {
		e.purged.Store(true)
	})
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	s.cache = cache
	return s, nil
}

// Do runs fn on the session for id under that session's lock, creating the
// session if it does not exist or has expired. fn must not retain the pointer.
func (s *Store) Do(ctx context.Context, id string, fn func(*registration.Session) error) error {
	if id == "" {
		return registration.ErrSessionIDRequired
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		e := s.acquire(id)
		e.mu.Lock()
		if e.purged.Load() {
			// Purged or evicted while we waited; start over with a fresh one.
			e.mu.Unlock()
			continue
		}
		err := fn(e.session)
		e.mu.Unlock()
		return err
	}
}

// acquire returns the live entry for id and refreshes its expiry.
func (s *Store) acquire(id string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.cache.Get(id); ok {
		if now.Sub(e.lastSeen) <= s.ttl {
			e.lastSeen = now
			return e
		}
		s.logger.Info("session reset",
			zap.String("session_id", id),
			zap.Duration("idle", now.Sub(e.lastSeen)),
			zap.Error(registration.ErrSessionExpired),
		)
		s.cache.Remove(id)
	}

	e := &entry{session: registration.NewSession(id, now), lastSeen: now}
	s.cache.Add(id, e)
	return e
}

// GetOrCreate returns a snapshot of the session for id.
func (s *Store) GetOrCreate(ctx context.Context, id string) (registration.Session, error) {
	var snap registration.Session
	err := s.Do(ctx, id, func(sess *registration.Session) error {
		snap = sess.Snapshot()
		return nil
	})
	return snap, err
}

// Get returns a snapshot of a live session without creating one.
func (s *Store) Get(id string) (registration.Session, bool) {
	s.mu.Lock()
	e, ok := s.cache.Peek(id)
	if ok && s.now().Sub(e.lastSeen) > s.ttl {
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return registration.Session{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.purged.Load() {
		return registration.Session{}, false
	}
	return e.session.Snapshot(), true
}

// Merge applies an extraction to the session for id.
func (s *Store) Merge(ctx context.Context, id string, ext registration.Extraction) (registration.MergeResult, error) {
	var res registration.MergeResult
	err := s.Do(ctx, id, func(sess *registration.Session) error {
		res = sess.Merge(ext)
		sess.UpdatedAt = s.now()
		return nil
	})
	return res, err
}

// IsComplete reports whether every field of the session is filled and valid.
func (s *Store) IsComplete(ctx context.Context, id string) (bool, error) {
	var complete bool
	err := s.Do(ctx, id, func(sess *registration.Session) error {
		complete = sess.IsComplete()
		return nil
	})
	return complete, err
}

// Purge forgets the session for id. Safe to call from inside Do.
func (s *Store) Purge(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.cache.Peek(id)
	if !ok {
		return false
	}
	e.purged.Store(true)
	s.cache.Remove(id)
	return true
}

// Len returns the number of sessions held, expired ones included until swept.
func (s *Store) Len() int {
	return s.cache.Len()
}

// Sweep drops every expired session and returns how many went.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for _, id := range s.cache.Keys() {
		e, ok := s.cache.Peek(id)
		if !ok || now.Sub(e.lastSeen) <= s.ttl {
			continue
		}
		s.cache.Remove(id)
		removed++
	}
	return removed
}

// Run sweeps expired sessions every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.ttl / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("session sweeper started", zap.Duration("interval", interval), zap.Duration("ttl", s.ttl))
	for {
		select {
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Info("expired sessions swept", zap.Int("count", n))
			}
		case <-ctx.Done():
			s.logger.Info("session sweeper stopped", zap.Error(ctx.Err()))
			return
		}
	}
}
