// Package authctx owns the process-wide session and profile state of a
// ScanSetu client. A Manager reconciles that state with the Session Store on
// startup and on every session-change notification, provisioning the
// matching profile row along the way.
package authctx

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// ReturnPath is where redirect-based sign-in flows land once the identity
// provider is done with the user.
const ReturnPath = "/dashboard"

const defaultEventBuffer = 16

// SignUpOutcome is what the sign-up form needs to decide its next message.
type SignUpOutcome struct {
	NeedsVerification bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for degraded-state warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithEventBuffer sets how many notifications may queue before the Session
// Store's dispatcher blocks.
func WithEventBuffer(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.events = make(chan queuedEvent, n)
		}
	}
}

// queuedEvent remembers which sign-out generation a notification arrived in.
type queuedEvent struct {
	ev  Event
	gen uint64
}

type subscriber struct {
	id int
	fn func(State)
}

// Manager is the single owner of session/profile state.
//
// Reconciles are ordered by a monotonically increasing token: each one takes
// the next token when it starts and commits only if no newer reconcile (or
// sign-out) has started since. Every commit resolves Loading to false. Once
// Close has been called nothing commits.
//
// SignOut also advances a barrier generation; notifications queued before it
// are dropped when dequeued, so they cannot bring the ended session back.
type Manager struct {
	sessions SessionStore
	profiles ProfileStore
	logger   *zap.Logger

	mu          sync.Mutex
	state       State
	seq         uint64
	barrier     uint64
	closed      bool
	subscribers []subscriber
	nextSubID   int

	// notifyMu keeps subscriber deliveries in commit order. Subscribers must
	// not call mutating Manager methods synchronously from their callback.
	notifyMu sync.Mutex

	events      chan queuedEvent
	stopped     chan struct{}
	done        chan struct{}
	cancel      context.CancelFunc
	unsubscribe func()
	startOnce   sync.Once
	closeOnce   sync.Once
}

// New constructs a Manager in the loading state. Call Start to subscribe to
// the Session Store and bootstrap.
func New(sessions SessionStore, profiles ProfileStore, opts ...Option) *Manager {
	m := &Manager{
		sessions: sessions,
		profiles: profiles,
		logger:   zap.NewNop(),
		state:    State{Loading: true},
		events:   make(chan queuedEvent, defaultEventBuffer),
		stopped:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start subscribes to session-change notifications, starts the event loop
// and bootstraps in the background. It is a no-op after the first call.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		unsubscribe := m.sessions.OnSessionChange(m.enqueue)

		m.mu.Lock()
		m.cancel = cancel
		m.unsubscribe = unsubscribe
		m.mu.Unlock()

		go m.loop(ctx)
		go m.Bootstrap(ctx)
	})
}

// Close unsubscribes from the Session Store and cancels outstanding work.
// Results of reconciles still in flight are discarded.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		cancel := m.cancel
		unsubscribe := m.unsubscribe
		m.mu.Unlock()

		close(m.stopped)
		if unsubscribe != nil {
			unsubscribe()
		}
		if cancel != nil {
			cancel()
			<-m.done
		}
	})
}

func (m *Manager) enqueue(ev Event) {
	m.mu.Lock()
	q := queuedEvent{ev: ev, gen: m.barrier}
	m.mu.Unlock()

	select {
	case m.events <- q:
	case <-m.stopped:
	}
}

func (m *Manager) loop(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			return
		case q := <-m.events:
			if m.beforeBarrier(q.gen) {
				m.logger.Debug("dropping notification queued before sign-out",
					zap.String("event", string(q.ev.Kind)))
				continue
			}
			m.OnSessionChange(ctx, q.ev)
		}
	}
}

// Bootstrap loads the current session and its profile. Store failures are
// logged and resolve to the signed-out state.
func (m *Manager) Bootstrap(ctx context.Context) {
	seq := m.begin()

	session, err := m.sessions.GetSession(ctx)
	if err != nil {
		m.logger.Warn("session fetch failed", zap.Error(err))
		session = nil
	}
	m.reconcile(ctx, seq, session)
}

// OnSessionChange reconciles state against the session carried by ev.
func (m *Manager) OnSessionChange(ctx context.Context, ev Event) {
	seq := m.begin()
	m.logger.Debug("session change",
		zap.String("event", string(ev.Kind)),
		zap.Bool("has_session", ev.Session != nil),
		zap.Uint64("seq", seq))
	m.reconcile(ctx, seq, ev.Session)
}

func (m *Manager) reconcile(ctx context.Context, seq uint64, session *Session) {
	var profile *Profile
	if session != nil {
		if !m.current(seq) {
			return
		}
		m.provisionProfile(ctx, session.User)
		profile = m.loadProfile(ctx, session.User.ID)
	}
	m.commit(seq, session, profile)
}

func (m *Manager) provisionProfile(ctx context.Context, user User) {
	err := m.profiles.UpsertProfile(ctx, ProfileInput{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
	})
	if err != nil {
		m.logger.Warn("profile upsert failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func (m *Manager) loadProfile(ctx context.Context, userID string) *Profile {
	profile, err := m.profiles.GetProfile(ctx, userID)
	if err != nil {
		m.logger.Warn("profile load failed", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	if profile != nil && profile.ID != userID {
		m.logger.Warn("profile store returned another user's row",
			zap.String("user_id", userID), zap.String("row_id", profile.ID))
		return nil
	}
	return profile
}

// SignInWithCredentials asks the Session Store to sign in. State changes
// arrive through the resulting notification; the provider's error is
// returned unchanged.
func (m *Manager) SignInWithCredentials(ctx context.Context, email, password string) error {
	return m.sessions.SignInWithPassword(ctx, email, password)
}

// SignUpWithCredentials registers a new account. NeedsVerification is set
// when the provider created the user without a confirmation timestamp.
func (m *Manager) SignUpWithCredentials(ctx context.Context, email, password, fullName string) (SignUpOutcome, error) {
	res, err := m.sessions.SignUp(ctx, email, password, fullName)
	if err != nil {
		return SignUpOutcome{}, err
	}
	return SignUpOutcome{
		NeedsVerification: res != nil && res.UserCreated && res.EmailConfirmedAt == nil,
	}, nil
}

// SendMagicLink requests a one-time sign-in link.
func (m *Manager) SendMagicLink(ctx context.Context, email string) error {
	return m.sessions.SendMagicLink(ctx, email, ReturnPath)
}

// SignInWithRedirect starts an external provider flow returning to
// ReturnPath.
func (m *Manager) SignInWithRedirect(ctx context.Context, provider string) error {
	if err := m.sessions.SignInWithOAuth(ctx, provider, ReturnPath); err != nil {
		m.logger.Warn("redirect sign-in failed", zap.String("provider", provider), zap.Error(err))
		return err
	}
	return nil
}

// SignOut ends the remote session and always clears local state, whatever
// the Session Store reports.
func (m *Manager) SignOut(ctx context.Context) {
	if err := m.sessions.SignOut(ctx); err != nil {
		m.logger.Warn("sign-out failed", zap.Error(err))
	}
	m.mu.Lock()
	m.seq++
	m.barrier++
	seq := m.seq
	m.mu.Unlock()
	m.commit(seq, nil, nil)
}

// State returns a copy of the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return snapshot(m.state)
}

// Subscribe registers fn to receive every committed state in order.
func (m *Manager) Subscribe(fn func(State)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers = append(m.subscribers, subscriber{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range m.subscribers {
			if s.id == id {
				m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
				return
			}
		}
	}
}

// WaitReady blocks until Loading is false or ctx is done.
func (m *Manager) WaitReady(ctx context.Context) (State, error) {
	ready := make(chan State, 1)
	unsubscribe := m.Subscribe(func(s State) {
		if s.Loading {
			return
		}
		select {
		case ready <- s:
		default:
		}
	})
	defer unsubscribe()

	if s := m.State(); !s.Loading {
		return s, nil
	}
	select {
	case s := <-ready:
		return s, nil
	case <-ctx.Done():
		return m.State(), ctx.Err()
	}
}

func (m *Manager) begin() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq
}

func (m *Manager) beforeBarrier(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen < m.barrier
}

func (m *Manager) current(seq uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed && seq == m.seq
}

func (m *Manager) commit(seq uint64, session *Session, profile *Profile) bool {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if m.closed || seq != m.seq {
		m.mu.Unlock()
		m.logger.Debug("discarding superseded reconcile", zap.Uint64("seq", seq))
		return false
	}
	m.state = snapshot(State{Session: session, Profile: profile})
	out := snapshot(m.state)
	subs := make([]subscriber, len(m.subscribers))
	copy(subs, m.subscribers)
	m.mu.Unlock()

	for _, s := range subs {
		s.fn(out)
	}
	return true
}

func snapshot(s State) State {
	out := State{Loading: s.Loading}
	if s.Session != nil {
		session := *s.Session
		out.Session = &session
	}
	if s.Profile != nil {
		profile := *s.Profile
		out.Profile = &profile
	}
	return out
}
