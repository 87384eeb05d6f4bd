package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/danielcipriano1979/sentinel/apperr"
	"github.com/danielcipriano1979/sentinel/logging"
	"github.com/danielcipriano1979/sentinel/tokenstore"
)

// Watcher observes committed state transitions.
type Watcher func(State)

// Options configures a Manager.
type Options struct {
	Tokens tokenstore.Store
	Admin  AdminResolver
	User   UserResolver
	Logger *slog.Logger
}

// Manager is the single writer of session state. It seeds the admin token
// from the persistent store, drives both resolvers, and guarantees that a
// late resolver response can never overwrite state produced by a
// more-recently-issued request.
type Manager struct {
	mu       sync.Mutex
	state    State
	adminGen uint64
	userGen  uint64
	watchers map[int]Watcher
	nextID   int

	tokens tokenstore.Store
	admin  AdminResolver
	user   UserResolver
	logger *slog.Logger
}

// NewManager builds a Manager with the admin token seeded from the store.
// The user loading flag starts true; callers must not treat the user as
// unauthenticated before Start has let the resolver settle.
func NewManager(ctx context.Context, options Options) (*Manager, error) {
	if options.Admin == nil || options.User == nil {
		return nil, errors.New("admin and user resolvers are required")
	}
	tokens := options.Tokens
	if tokens == nil {
		tokens = tokenstore.NewMemoryStore()
	}
	logger := logging.WithComponent(options.Logger, "session")

	m := &Manager{
		state:    State{UserLoading: true},
		watchers: map[int]Watcher{},
		tokens:   tokens,
		admin:    options.Admin,
		user:     options.User,
		logger:   logger,
	}

	token, ok, err := tokens.Get(ctx)
	if err != nil {
		// A broken store degrades to a signed-out admin; it must not stop
		// the tenant side of the application.
		logger.Warn("token store read failed", "error", err)
	} else if ok {
		m.state.AdminToken = token
	}

	return m, nil
}

// Start kicks off initial principal resolution: the user resolver always
// (tenant sessions are ambient), the admin resolver only when a token was
// recovered from the store.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	token := m.state.AdminToken
	userGen := m.userGen + 1
	m.userGen = userGen
	m.state.UserLoading = true
	var adminGen uint64
	if token != "" {
		adminGen = m.adminGen + 1
		m.adminGen = adminGen
		m.state.AdminLoading = true
	}
	m.mu.Unlock()

	go m.resolveUser(ctx, userGen)
	if token != "" {
		go m.resolveAdmin(ctx, token, adminGen)
	}
}

// Snapshot returns the latest committed state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// AdminToken implements the token source consumed by the request helper.
func (m *Manager) AdminToken() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.AdminToken, m.state.AdminToken != ""
}

// Subscribe registers a watcher invoked after every committed transition.
// The returned function unsubscribes.
func (m *Manager) Subscribe(w Watcher) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = w
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}
}

// SetAdminToken stores a new bearer token and starts resolving its
// principal. Setting the currently held value is a no-op: no redundant
// refetch is issued. The write is mirrored to the persistent store before
// the in-memory state changes so a crash cannot lose a session that the
// caller believes established.
func (m *Manager) SetAdminToken(ctx context.Context, token string) error {
	if token == "" {
		return tokenstore.ErrEmptyToken
	}

	m.mu.Lock()
	if m.state.AdminToken == token {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if err := m.tokens.Set(ctx, token); err != nil {
		return err
	}

	m.mu.Lock()
	m.state.AdminToken = token
	m.state.AdminPrincipal = nil
	m.state.AdminError = ""
	m.state.AdminLoading = true
	m.adminGen++
	gen := m.adminGen
	m.mu.Unlock()
	m.notify()

	go m.resolveAdmin(ctx, token, gen)
	return nil
}

// RefreshAdmin re-resolves the admin principal for the currently held token,
// for example after a transient failure.
func (m *Manager) RefreshAdmin(ctx context.Context) {
	m.mu.Lock()
	token := m.state.AdminToken
	if token == "" {
		m.mu.Unlock()
		return
	}
	m.state.AdminLoading = true
	m.adminGen++
	gen := m.adminGen
	m.mu.Unlock()
	m.notify()

	go m.resolveAdmin(ctx, token, gen)
}

// AdminLogout is the only path that invalidates the stored token. It clears
// the persistent store and the in-memory admin identity; an in-flight
// resolution is superseded and its result discarded.
func (m *Manager) AdminLogout(ctx context.Context) error {
	if err := m.tokens.Clear(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	m.state.AdminToken = ""
	m.state.AdminPrincipal = nil
	m.state.AdminError = ""
	m.state.AdminLoading = false
	m.adminGen++
	m.mu.Unlock()
	m.notify()
	return nil
}

// RefreshUser re-resolves the tenant principal, blocking until the resolver
// settles. The surrounding user-management collaborator calls this after
// operations that may change the ambient session.
func (m *Manager) RefreshUser(ctx context.Context) {
	m.mu.Lock()
	m.state.UserLoading = true
	m.userGen++
	gen := m.userGen
	m.mu.Unlock()
	m.notify()

	m.resolveUser(ctx, gen)
}

// ClearUser drops the tenant principal after an explicit user logout. The
// server-side session teardown is the collaborator's responsibility.
func (m *Manager) ClearUser() {
	m.mu.Lock()
	m.state.UserPrincipal = nil
	m.state.UserLoading = false
	m.userGen++
	m.mu.Unlock()
	m.notify()
}

// resolveAdmin commits the resolver outcome only when gen still identifies
// the latest issued request (stale-response guard).
func (m *Manager) resolveAdmin(ctx context.Context, token string, gen uint64) {
	principal, err := m.admin.AdminMe(ctx, token)

	m.mu.Lock()
	if gen != m.adminGen {
		m.mu.Unlock()
		return
	}
	m.state.AdminLoading = false

	switch {
	case err == nil:
		m.state.AdminPrincipal = principal
		m.state.AdminError = ""
	case apperr.IsUnauthenticated(err):
		// The backend rejected the token. The stored token stays put:
		// invalidation is an explicit operator action, not a side effect.
		m.state.AdminPrincipal = nil
		m.state.AdminError = "admin session was rejected; sign in again"
	case apperr.IsTransient(err):
		// Keep the last known principal visible rather than bouncing the
		// operator to a login screen on a flaky network.
		m.state.AdminError = "cannot reach the server; reconnecting"
	default:
		m.state.AdminError = "unexpected response from the server"
	}
	m.mu.Unlock()
	m.notify()

	if err != nil {
		m.logger.Warn("admin principal resolution failed", "error", err)
	}
}

func (m *Manager) resolveUser(ctx context.Context, gen uint64) {
	principal, err := m.user.Me(ctx)

	m.mu.Lock()
	if gen != m.userGen {
		m.mu.Unlock()
		return
	}
	m.state.UserLoading = false

	switch {
	case err == nil:
		m.state.UserPrincipal = principal
	case apperr.IsUnauthenticated(err):
		// Signed out. This is the expected outcome for anonymous visitors
		// and the signal the route guard redirects on.
		m.state.UserPrincipal = nil
	default:
		// Transient or malformed: keep whatever principal we had. Absence
		// means unauthenticated here, and a network blip is not that.
		m.logger.Warn("user principal resolution failed", "error", err)
	}
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) notify() {
	m.mu.Lock()
	snapshot := m.state
	watchers := make([]Watcher, 0, len(m.watchers))
	for _, w := range m.watchers {
		watchers = append(watchers, w)
	}
	m.mu.Unlock()

	for _, w := range watchers {
		w(snapshot)
	}
}
