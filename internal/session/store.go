// ABOUTME: Session store and auth gateway over the backend auth endpoints
// ABOUTME: Tracks pending/authenticated/unauthenticated and the identity behind a mutex

package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/posible/posible-admin/internal/backend"
)

// LoginFailedMessage is shown when the backend gives no reason for a failed login.
const LoginFailedMessage = "Login failed. Please try again."

// Gateway is the subset of the backend client the store needs.
type Gateway interface {
	Session(ctx context.Context) (*backend.AuthResponse, error)
	Login(ctx context.Context, email, password string) (*backend.AuthResponse, error)
	Logout(ctx context.Context) error
}

// LoginResult reports the outcome of Login. Failures are data, not errors.
type LoginResult struct {
	Success bool
	Error   string
}

// Store holds the authentication state of one backend session. It is safe
// for concurrent use.
type Store struct {
	gateway Gateway
	logger  *slog.Logger

	mu       sync.Mutex
	state    State
	identity *Identity
	settled  chan struct{}
	subs     map[chan State]struct{}
	// gen counts calls that may settle the store; only the latest one does.
	gen uint64
}

// NewStore returns a store in the Pending state. Call CheckSession to settle it.
func NewStore(gw Gateway, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		gateway: gw,
		logger:  logger.With("component", "session"),
		state:   Pending,
		settled: make(chan struct{}),
		subs:    make(map[chan State]struct{}),
	}
}

// CheckSession asks the backend whether the session cookie is still valid.
// Any failure settles to Unauthenticated. The pending state always ends,
// even if the gateway panics.
//
// A check overtaken by a later check, Login or Logout leaves the store to
// that call and only reports its own result.
func (s *Store) CheckSession(ctx context.Context) State {
	return s.check(ctx, s.begin())
}

// StartCheck enters Pending before returning and runs the check in the
// background. The returned channel receives the check's result.
func (s *Store) StartCheck(ctx context.Context) <-chan State {
	gen := s.begin()
	done := make(chan State, 1)
	go func() { done <- s.check(ctx, gen) }()
	return done
}

func (s *Store) check(ctx context.Context, gen uint64) (state State) {
	state = Unauthenticated
	var identity *Identity
	defer func() { s.settle(gen, state, identity) }()

	resp, err := s.gateway.Session(ctx)
	if err != nil {
		s.logger.Warn("session check failed", "error", err)
		return state
	}
	if !resp.Authenticated {
		return state
	}

	id, err := ParseIdentity(resp.User)
	if err != nil {
		s.logger.Warn("session check returned an unusable identity", "error", err)
		return state
	}
	identity = &id
	state = Authenticated
	return state
}

// Login establishes a backend session. On failure the store is left
// Unauthenticated with no identity.
func (s *Store) Login(ctx context.Context, email, password string) LoginResult {
	gen := s.supersede()
	resp, err := s.gateway.Login(ctx, email, password)
	if err != nil {
		s.logger.Warn("login failed", "email", email, "error", err)
		s.settle(gen, Unauthenticated, nil)
		return LoginResult{Error: backend.UserMessage(err, LoginFailedMessage)}
	}

	id, err := ParseIdentity(resp.User)
	if err != nil {
		s.logger.Warn("login returned an unusable identity", "email", email, "error", err)
		s.settle(gen, Unauthenticated, nil)
		return LoginResult{Error: LoginFailedMessage}
	}

	s.settle(gen, Authenticated, &id)
	s.logger.Info("logged in", "email", id.Email, "db_name", id.DBName)
	return LoginResult{Success: true}
}

// Logout ends the backend session. The local identity is cleared whether or
// not the backend call succeeds; the backend error is returned for logging.
func (s *Store) Logout(ctx context.Context) error {
	gen := s.supersede()
	defer s.settle(gen, Unauthenticated, nil)

	if err := s.gateway.Logout(ctx); err != nil {
		s.logger.Warn("logout failed, clearing session anyway", "error", err)
		return err
	}
	return nil
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identity returns a copy of the current identity.
func (s *Store) Identity() (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return Identity{}, false
	}
	return s.identity.clone(), true
}

// IsAuthenticated reports whether an identity is present.
func (s *Store) IsAuthenticated() bool {
	return s.State() == Authenticated
}

// Snapshot returns state and identity read under one lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{State: s.state}
	if s.identity != nil {
		id := s.identity.clone()
		snap.Identity = &id
	}
	return snap
}

// Settled returns a channel that is closed once the current pending period
// ends.
func (s *Store) Settled() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settled
}

// Wait blocks until the store leaves Pending or ctx is done, then returns
// the state.
func (s *Store) Wait(ctx context.Context) State {
	select {
	case <-s.Settled():
	case <-ctx.Done():
	}
	return s.State()
}

// Subscribe returns a channel receiving every state transition and a function
// that cancels the subscription. Slow subscribers miss transitions rather
// than block the store.
func (s *Store) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 8)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// begin enters Pending for an explicit re-check and returns its generation.
// The identity is unknown until the check settles.
func (s *Store) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.state == Pending {
		return s.gen
	}
	s.state = Pending
	s.identity = nil
	s.settled = make(chan struct{})
	s.notifyLocked()
	return s.gen
}

// supersede claims the next generation without changing state, so checks
// still in flight cannot settle over the caller.
func (s *Store) supersede() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return s.gen
}

// settle records the outcome of the call holding gen. Outcomes of
// superseded calls are dropped.
func (s *Store) settle(gen uint64, state State, identity *Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		s.logger.Debug("dropping superseded session result", "state", state.String())
		return
	}
	changed := s.state != state
	s.state = state
	s.identity = identity
	select {
	case <-s.settled:
	default:
		close(s.settled)
	}
	if changed {
		s.logger.Debug("session state changed", "state", state.String())
		s.notifyLocked()
	}
}

func (s *Store) notifyLocked() {
	for ch := range s.subs {
		select {
		case ch <- s.state:
		default:
		}
	}
}
