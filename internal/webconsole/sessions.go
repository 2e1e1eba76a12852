// ABOUTME: Per-browser console sessions, each with its own backend cookie jar
// ABOUTME: Registry keyed by a random console cookie, evicting idle sessions in the background

package webconsole

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/posible/posible-admin/internal/admin"
	"github.com/posible/posible-admin/internal/backend"
	"github.com/posible/posible-admin/internal/chat"
	"github.com/posible/posible-admin/internal/dashboard"
	"github.com/posible/posible-admin/internal/session"
	"github.com/posible/posible-admin/internal/tenant"
)

const (
	defaultIdleTimeout     = 12 * time.Hour
	defaultCleanupInterval = 10 * time.Minute
	// defaultSignedOutIdle evicts sessions that are no longer authenticated.
	defaultSignedOutIdle = 10 * time.Minute
)

// flash is a one-shot notice shown on the next rendered page.
type flash struct {
	Message string
	Error   bool
}

// consoleSession is everything one browser holds: a backend session and
// the screen state built on it.
type consoleSession struct {
	id        string
	client    *backend.Client
	store     *session.Store
	tenant    *tenant.Context
	api       *admin.API
	dashboard *dashboard.Loader
	chat      *chat.Conversation
	createdAt time.Time

	unsubscribe func()

	mu         sync.Mutex
	lastUsed   time.Time
	verifiedAt time.Time
	flash      *flash
}

func (s *consoleSession) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *consoleSession) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// markVerified records that the backend just confirmed the session.
func (s *consoleSession) markVerified(now time.Time) {
	s.mu.Lock()
	s.verifiedAt = now
	s.mu.Unlock()
}

// claimRecheck reports whether the session is due a re-check, and if so
// counts it as verified now so that only one caller starts it.
func (s *consoleSession) claimRecheck(now time.Time, every time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.verifiedAt) < every {
		return false
	}
	s.verifiedAt = now
	return true
}

func (s *consoleSession) setFlash(msg string, isErr bool) {
	s.mu.Lock()
	s.flash = &flash{Message: msg, Error: isErr}
	s.mu.Unlock()
}

func (s *consoleSession) takeFlash() *flash {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.flash
	s.flash = nil
	return f
}

func (s *consoleSession) authenticated() bool {
	return s.store != nil && s.store.IsAuthenticated()
}

func (s *consoleSession) close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// newSession builds a console session with a fresh jar. Its store stays
// Pending until the login that created it settles.
func (c *Console) newSession(id string) (*consoleSession, error) {
	logger := c.logger.With("console_session", shortID(id))

	opts := []backend.Option{
		backend.WithTimeout(c.cfg.BackendTimeout),
		backend.WithLogger(logger),
	}
	if c.cfg.Recorder != nil {
		opts = append(opts, backend.WithObserver(c.cfg.Recorder))
	}
	client, err := backend.New(c.cfg.BackendURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating backend client: %w", err)
	}

	store := session.NewStore(client, logger)
	tc := tenant.New(store, c.cfg.Policy)
	api := admin.New(client, tc, logger)
	now := time.Now()

	cs := &consoleSession{
		id:        id,
		client:    client,
		store:     store,
		tenant:    tc,
		api:       api,
		dashboard: dashboard.NewLoader(api, logger),
		chat:      chat.NewConversation(api, tc, logger),
		createdAt:  now,
		lastUsed:   now,
		verifiedAt: now,
	}

	transitions, unsubscribe := store.Subscribe()
	cs.unsubscribe = unsubscribe
	go func() {
		for state := range transitions {
			logger.Info("session state changed", "state", state.String())
		}
	}()

	return cs, nil
}

// recheck asks the backend again about an authenticated session once
// RecheckInterval has passed since it was last confirmed. The store is
// Pending when recheck returns.
func (c *Console) recheck(cs *consoleSession) {
	if cs.store.State() != session.Authenticated {
		return
	}
	if !cs.claimRecheck(time.Now(), c.cfg.RecheckInterval) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.checkTimeout())
	done := cs.store.StartCheck(ctx)
	go func() {
		defer cancel()
		if state := <-done; state == session.Authenticated {
			cs.markVerified(time.Now())
		}
	}()
}

func (c *Console) checkTimeout() time.Duration {
	if c.cfg.BackendTimeout > 0 {
		return c.cfg.BackendTimeout
	}
	return backend.DefaultTimeout
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// registry manages active console sessions
type registry struct {
	mu        sync.RWMutex
	sessions  map[string]*consoleSession
	build     func(id string) (*consoleSession, error)
	idle      time.Duration
	signedOut time.Duration
	logger    *slog.Logger
	cancel    context.CancelFunc
	now       func() time.Time

	// onChange receives the session count after every add or removal.
	onChange func(n int)
}

func newRegistry(build func(id string) (*consoleSession, error), idle, interval time.Duration, logger *slog.Logger) *registry {
	if idle <= 0 {
		idle = defaultIdleTimeout
	}
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	reg := &registry{
		sessions:  make(map[string]*consoleSession),
		build:     build,
		idle:      idle,
		signedOut: min(idle, defaultSignedOutIdle),
		logger:    logger,
		cancel:    cancel,
		now:       time.Now,
	}
	go reg.cleanupLoop(ctx, interval)
	return reg
}

// get returns the live session for id and marks it used.
func (r *registry) get(id string) (*consoleSession, bool) {
	if id == "" {
		return nil, false
	}
	r.mu.RLock()
	cs, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		cs.touch(r.now())
	}
	return cs, ok
}

// create builds and registers a session under a fresh id.
func (r *registry) create() (*consoleSession, error) {
	cs, err := r.build(uuid.NewString())
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[cs.id] = cs
	n := len(r.sessions)
	r.mu.Unlock()

	r.changed(n)
	return cs, nil
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	cs, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()

	if ok {
		cs.close()
		r.changed(n)
	}
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *registry) changed(n int) {
	if r.onChange != nil {
		r.onChange(n)
	}
}

// cleanupLoop periodically removes idle sessions
func (r *registry) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.evictIdle()
		}
	}
}

// evictIdle drops sessions idle longer than the timeout, or longer than
// the signed-out timeout when they are not authenticated, and returns how
// many were dropped.
func (r *registry) evictIdle() int {
	now := r.now()
	cutoff := now.Add(-r.idle)
	signedOutCutoff := now.Add(-r.signedOut)

	r.mu.Lock()
	var stale []*consoleSession
	for id, cs := range r.sessions {
		last := cs.idleSince()
		if last.Before(cutoff) || (!cs.authenticated() && last.Before(signedOutCutoff)) {
			stale = append(stale, cs)
			delete(r.sessions, id)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	for _, cs := range stale {
		cs.close()
	}
	if len(stale) > 0 {
		r.logger.Debug("evicted idle console sessions", "count", len(stale))
		r.changed(n)
	}
	return len(stale)
}

// Close stops the cleanup loop and drops every session.
func (r *registry) Close() {
	r.cancel()

	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*consoleSession)
	r.mu.Unlock()

	for _, cs := range all {
		cs.close()
	}
	r.changed(0)
}
