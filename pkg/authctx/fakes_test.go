package authctx

import (
	"context"
	"errors"
	"sync"
)

type fakeSessionStore struct {
	mu sync.Mutex

	session      *Session
	getErr       error
	signInErr    error
	signUpResult *SignUpResult
	signUpErr    error
	signOutErr   error
	oauthErr     error

	signOutCalls int
	magicLinks   []string
	oauthCalls   []string

	listeners map[int]func(Event)
	nextID    int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{listeners: make(map[int]func(Event))}
}

func (f *fakeSessionStore) GetSession(ctx context.Context) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.session == nil {
		return nil, nil
	}
	s := *f.session
	return &s, nil
}

func (f *fakeSessionStore) SignInWithPassword(ctx context.Context, email, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signInErr
}

func (f *fakeSessionStore) SignUp(ctx context.Context, email, password, fullName string) (*SignUpResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signUpResult, f.signUpErr
}

func (f *fakeSessionStore) SendMagicLink(ctx context.Context, email, returnPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.magicLinks = append(f.magicLinks, email+" "+returnPath)
	return nil
}

func (f *fakeSessionStore) SignInWithOAuth(ctx context.Context, provider, returnPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.oauthCalls = append(f.oauthCalls, provider+" "+returnPath)
	return f.oauthErr
}

func (f *fakeSessionStore) SignOut(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutCalls++
	f.session = nil
	return f.signOutErr
}

func (f *fakeSessionStore) OnSessionChange(fn func(Event)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}
}

func (f *fakeSessionStore) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func (f *fakeSessionStore) emit(ev Event) {
	f.mu.Lock()
	fns := make([]func(Event), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// fakeProfileStore mimics the hosted profile table, including server-side
// role assignment from an allow-list.
type fakeProfileStore struct {
	mu sync.Mutex

	rows      map[string]*Profile
	admins    map[string]bool
	upsertErr error
	getErr    error
	upserts   []ProfileInput

	// gates blocks GetProfile for a user id until the channel is closed.
	gates   map[string]chan struct{}
	entered chan string
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{
		rows:    make(map[string]*Profile),
		admins:  make(map[string]bool),
		gates:   make(map[string]chan struct{}),
		entered: make(chan string, 16),
	}
}

func (f *fakeProfileStore) UpsertProfile(ctx context.Context, in ProfileInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, in)
	if f.upsertErr != nil {
		return f.upsertErr
	}
	role := RoleStudent
	if f.admins[in.Email] {
		role = RoleAdmin
	}
	f.rows[in.ID] = &Profile{ID: in.ID, Email: in.Email, FullName: in.FullName, Role: role}
	return nil
}

func (f *fakeProfileStore) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	f.mu.Lock()
	gate := f.gates[userID]
	f.mu.Unlock()

	if gate != nil {
		f.entered <- userID
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	row, ok := f.rows[userID]
	if !ok {
		return nil, nil
	}
	p := *row
	return &p, nil
}

func (f *fakeProfileStore) gate(userID string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[userID] = ch
	return ch
}

var errStoreDown = errors.New("connection refused")

func sessionFor(id, email, name string) *Session {
	return &Session{User: User{ID: id, Email: email, FullName: name}}
}
