package cart

import (
	"sync"
	"time"
)

const (
	// DefaultIdleTTL is how long an untouched cart survives.
	DefaultIdleTTL = 2 * time.Hour

	// DefaultCleanupInterval is how often idle sessions are swept.
	DefaultCleanupInterval = time.Minute
)

type session struct {
	mu       sync.Mutex
	store    *Store
	lastSeen time.Time
	closed   bool
}

// Sessions keeps one Store per mini-app user. All work on a user's cart runs under
// that user's lock, so one user's actions apply strictly in arrival order.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*session
	idleTTL  time.Duration
	now      func() time.Time

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

func NewSessions(idleTTL, cleanupInterval time.Duration) *Sessions {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	s := &Sessions{
		sessions:    make(map[string]*session),
		idleTTL:     idleTTL,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop(cleanupInterval)

	return s
}

// With runs fn against the user's cart, creating an empty cart on first use.
// The store must not be retained after fn returns.
func (s *Sessions) With(userID string, fn func(*Store) error) error {
	return s.WithEnd(userID, func(st *Store) (bool, error) {
		return false, fn(st)
	})
}

// WithEnd is With for work that can finish the session. When fn reports end, the
// cart is discarded before the user's lock is released, so a call queued behind
// it starts on a fresh cart.
func (s *Sessions) WithEnd(userID string, fn func(*Store) (end bool, err error)) error {
	for {
		sess := s.acquire(userID)

		sess.mu.Lock()
		if sess.closed {
			// expired or ended between lookup and lock; start over with a fresh cart
			sess.mu.Unlock()
			continue
		}
		sess.lastSeen = s.now()
		end, err := fn(sess.store)
		if end {
			s.discard(userID, sess)
		}
		sess.mu.Unlock()
		return err
	}
}

// discard closes sess and unlinks it from the map. sess.mu must be held.
func (s *Sessions) discard(userID string, sess *session) {
	sess.closed = true

	s.mu.Lock()
	if s.sessions[userID] == sess {
		delete(s.sessions, userID)
	}
	s.mu.Unlock()
}

// End discards the user's cart.
func (s *Sessions) End(userID string) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	if ok {
		delete(s.sessions, userID)
	}
	s.mu.Unlock()

	if ok {
		sess.mu.Lock()
		sess.closed = true
		sess.mu.Unlock()
	}
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Sessions) acquire(userID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		sess = &session{store: NewStore(), lastSeen: s.now()}
		s.sessions[userID] = sess
	}
	return sess
}

func (s *Sessions) cleanupLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.expireIdle()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *Sessions) expireIdle() {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		// a session busy in With is skipped and looked at on the next sweep
		if !sess.mu.TryLock() {
			continue
		}
		if sess.lastSeen.Before(cutoff) {
			sess.closed = true
			delete(s.sessions, id)
		}
		sess.mu.Unlock()
	}
}

// Close stops the background cleanup and waits for it to finish.
func (s *Sessions) Close() error {
	close(s.stopCleanup)
	s.wg.Wait()
	return nil
}
