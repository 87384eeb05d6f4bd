package session

import (
	"context"
	"sync"
	"testing"
	"time"

	sentinel "github.com/danielcipriano1979/sentinel"
	"github.com/danielcipriano1979/sentinel/apperr"
	"github.com/danielcipriano1979/sentinel/tokenstore"
)

type adminOutcome struct {
	principal *sentinel.AdminPrincipal
	err       error
}

// scriptedAdmin resolves per-token outcomes and can hold a response until a
// gate is released, to exercise out-of-order completions.
type scriptedAdmin struct {
	mu       sync.Mutex
	calls    []string
	outcomes map[string]adminOutcome
	gates    map[string]chan struct{}
}

func newScriptedAdmin() *scriptedAdmin {
	return &scriptedAdmin{
		outcomes: map[string]adminOutcome{},
		gates:    map[string]chan struct{}{},
	}
}

func (s *scriptedAdmin) respond(token string, principal *sentinel.AdminPrincipal, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[token] = adminOutcome{principal: principal, err: err}
}

func (s *scriptedAdmin) hold(token string) chan struct{} {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[token] = gate
	s.mu.Unlock()
	return gate
}

func (s *scriptedAdmin) callCount(token string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, call := range s.calls {
		if call == token {
			count++
		}
	}
	return count
}

func (s *scriptedAdmin) AdminMe(_ context.Context, token string) (*sentinel.AdminPrincipal, error) {
	s.mu.Lock()
	s.calls = append(s.calls, token)
	gate := s.gates[token]
	outcome := s.outcomes[token]
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return outcome.principal, outcome.err
}

type scriptedUser struct {
	mu        sync.Mutex
	principal *sentinel.UserPrincipal
	err       error
}

func (s *scriptedUser) respond(principal *sentinel.UserPrincipal, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principal, s.err = principal, err
}

func (s *scriptedUser) Me(context.Context) (*sentinel.UserPrincipal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.principal, s.err
}

func waitFor(t *testing.T, condition func(State) bool, m *Manager) State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		state := m.Snapshot()
		if condition(state) {
			return state
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline; state: %+v", m.Snapshot())
	return State{}
}

func newTestManager(t *testing.T, tokens tokenstore.Store, admin AdminResolver, user UserResolver) *Manager {
	t.Helper()
	m, err := NewManager(context.Background(), Options{Tokens: tokens, Admin: admin, User: user})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestUserLoadingStartsTrue(t *testing.T) {
	m := newTestManager(t, nil, newScriptedAdmin(), &scriptedUser{})

	state := m.Snapshot()
	if !state.UserLoading {
		t.Fatalf("user loading must start true")
	}
	if state.UserAuthenticated() {
		t.Fatalf("no principal expected before resolution")
	}
}

func TestStartResolvesUser(t *testing.T) {
	ctx := context.Background()
	user := &scriptedUser{}
	user.respond(&sentinel.UserPrincipal{ID: "u1", Role: sentinel.RoleMember, OrganizationID: "org1"}, nil)

	m := newTestManager(t, nil, newScriptedAdmin(), user)
	m.Start(ctx)

	state := waitFor(t, func(s State) bool { return !s.UserLoading }, m)
	if state.UserPrincipal == nil || state.UserPrincipal.ID != "u1" {
		t.Fatalf("expected resolved user, got %+v", state.UserPrincipal)
	}
}

func TestStartUnauthenticatedUserIsNotAnError(t *testing.T) {
	ctx := context.Background()
	user := &scriptedUser{}
	user.respond(nil, apperr.Unauthenticated("no session", nil))

	m := newTestManager(t, nil, newScriptedAdmin(), user)
	m.Start(ctx)

	state := waitFor(t, func(s State) bool { return !s.UserLoading }, m)
	if state.UserPrincipal != nil {
		t.Fatalf("expected absent principal")
	}
}

func TestStartSkipsAdminResolverWithoutToken(t *testing.T) {
	ctx := context.Background()
	admin := newScriptedAdmin()
	user := &scriptedUser{}
	user.respond(nil, apperr.Unauthenticated("no session", nil))

	m := newTestManager(t, nil, admin, user)
	m.Start(ctx)

	waitFor(t, func(s State) bool { return !s.UserLoading }, m)
	if len(admin.calls) != 0 {
		t.Fatalf("admin resolver must not run without a token")
	}
}

func TestStartResolvesAdminFromStoredToken(t *testing.T) {
	ctx := context.Background()
	tokens := tokenstore.NewMemoryStore()
	if err := tokens.Set(ctx, "stored-token"); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	admin := newScriptedAdmin()
	admin.respond("stored-token", &sentinel.AdminPrincipal{ID: "a1", Email: "op@example.com"}, nil)
	user := &scriptedUser{}
	user.respond(nil, apperr.Unauthenticated("no session", nil))

	m := newTestManager(t, tokens, admin, user)
	if token, ok := m.AdminToken(); !ok || token != "stored-token" {
		t.Fatalf("expected seeded token, got %q ok=%v", token, ok)
	}

	m.Start(ctx)
	state := waitFor(t, func(s State) bool { return s.AdminPrincipal != nil }, m)
	if state.AdminPrincipal.ID != "a1" {
		t.Fatalf("expected resolved admin, got %+v", state.AdminPrincipal)
	}
	if state.AdminError != "" {
		t.Fatalf("unexpected admin error: %s", state.AdminError)
	}
}

func TestSetAdminTokenIdempotent(t *testing.T) {
	ctx := context.Background()
	admin := newScriptedAdmin()
	admin.respond("T", &sentinel.AdminPrincipal{ID: "a1"}, nil)
	user := &scriptedUser{}
	user.respond(nil, apperr.Unauthenticated("no session", nil))

	m := newTestManager(t, nil, admin, user)

	if err := m.SetAdminToken(ctx, "T"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	waitFor(t, func(s State) bool { return s.AdminPrincipal != nil }, m)

	if err := m.SetAdminToken(ctx, "T"); err != nil {
		t.Fatalf("repeat set token: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if got := admin.callCount("T"); got != 1 {
		t.Fatalf("expected a single resolver invocation, got %d", got)
	}
}

func TestStaleResponseGuard(t *testing.T) {
	ctx := context.Background()
	admin := newScriptedAdmin()
	gate := admin.hold("T1")
	admin.respond("T1", &sentinel.AdminPrincipal{ID: "stale"}, nil)
	admin.respond("T2", &sentinel.AdminPrincipal{ID: "fresh"}, nil)
	user := &scriptedUser{}
	user.respond(nil, apperr.Unauthenticated("no session", nil))

	m := newTestManager(t, nil, admin, user)

	if err := m.SetAdminToken(ctx, "T1"); err != nil {
		t.Fatalf("set T1: %v", err)
	}
	if err := m.SetAdminToken(ctx, "T2"); err != nil {
		t.Fatalf("set T2: %v", err)
	}

	state := waitFor(t, func(s State) bool { return s.AdminPrincipal != nil }, m)
	if state.AdminPrincipal.ID != "fresh" {
		t.Fatalf("expected T2 principal, got %s", state.AdminPrincipal.ID)
	}

	// Release the T1 response after T2 committed; it must be discarded.
	close(gate)
	time.Sleep(20 * time.Millisecond)

	state = m.Snapshot()
	if state.AdminPrincipal == nil || state.AdminPrincipal.ID != "fresh" {
		t.Fatalf("stale response overwrote fresh state: %+v", state.AdminPrincipal)
	}
}

func TestAdminRejectionKeepsStoredToken(t *testing.T) {
	ctx := context.Background()
	tokens := tokenstore.NewMemoryStore()
	admin := newScriptedAdmin()
	admin.respond("T", nil, apperr.Unauthenticated("token expired", nil))
	user := &scriptedUser{}
	user.respond(nil, apperr.Unauthenticated("no session", nil))

	m := newTestManager(t, tokens, admin, user)

	if err := m.SetAdminToken(ctx, "T"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	state := waitFor(t, func(s State) bool { return !s.AdminLoading && s.AdminError != "" }, m)

	if state.AdminPrincipal != nil {
		t.Fatalf("expected cleared principal")
	}
	if token, ok, _ := tokens.Get(ctx); !ok || token != "T" {
		t.Fatalf("rejection must not clear the stored token, got %q ok=%v", token, ok)
	}
}

func TestTransientAdminFailureKeepsPrincipal(t *testing.T) {
	ctx := context.Background()
	admin := newScriptedAdmin()
	admin.respond("T", &sentinel.AdminPrincipal{ID: "a1"}, nil)
	user := &scriptedUser{}
	user.respond(nil, apperr.Unauthenticated("no session", nil))

	m := newTestManager(t, nil, admin, user)
	if err := m.SetAdminToken(ctx, "T"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	waitFor(t, func(s State) bool { return s.AdminPrincipal != nil }, m)

	admin.respond("T", nil, apperr.Transient("connection refused", nil))
	m.RefreshAdmin(ctx)

	state := waitFor(t, func(s State) bool { return s.AdminError != "" }, m)
	if state.AdminPrincipal == nil || state.AdminPrincipal.ID != "a1" {
		t.Fatalf("transient failure must keep the last principal, got %+v", state.AdminPrincipal)
	}
}

func TestAdminLogoutClearsStoreAndState(t *testing.T) {
	ctx := context.Background()
	tokens := tokenstore.NewMemoryStore()
	admin := newScriptedAdmin()
	admin.respond("T", &sentinel.AdminPrincipal{ID: "a1"}, nil)
	user := &scriptedUser{}
	user.respond(nil, apperr.Unauthenticated("no session", nil))

	m := newTestManager(t, tokens, admin, user)
	if err := m.SetAdminToken(ctx, "T"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	waitFor(t, func(s State) bool { return s.AdminPrincipal != nil }, m)

	if err := m.AdminLogout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}

	state := m.Snapshot()
	if state.AdminToken != "" || state.AdminPrincipal != nil || state.AdminError != "" {
		t.Fatalf("expected empty admin state, got %+v", state)
	}
	if _, ok, _ := tokens.Get(ctx); ok {
		t.Fatalf("expected cleared store")
	}
}

func TestTokenRoundTripAcrossManagers(t *testing.T) {
	ctx := context.Background()
	tokens := tokenstore.NewMemoryStore()
	admin := newScriptedAdmin()
	admin.respond("T", &sentinel.AdminPrincipal{ID: "a1"}, nil)
	user := &scriptedUser{}
	user.respond(nil, apperr.Unauthenticated("no session", nil))

	first := newTestManager(t, tokens, admin, user)
	if err := first.SetAdminToken(ctx, "T"); err != nil {
		t.Fatalf("set token: %v", err)
	}

	// A second manager over the same store models a process restart.
	second := newTestManager(t, tokens, admin, user)
	if token, ok := second.AdminToken(); !ok || token != "T" {
		t.Fatalf("expected recovered token, got %q ok=%v", token, ok)
	}

	if err := first.AdminLogout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	third := newTestManager(t, tokens, admin, user)
	if _, ok := third.AdminToken(); ok {
		t.Fatalf("expected absent token after logout and restart")
	}
}

func TestTransientUserFailureKeepsPrincipal(t *testing.T) {
	ctx := context.Background()
	user := &scriptedUser{}
	user.respond(&sentinel.UserPrincipal{ID: "u1", Role: sentinel.RoleOwner}, nil)

	m := newTestManager(t, nil, newScriptedAdmin(), user)
	m.Start(ctx)
	waitFor(t, func(s State) bool { return s.UserPrincipal != nil }, m)

	user.respond(nil, apperr.Transient("connection reset", nil))
	m.RefreshUser(ctx)

	state := m.Snapshot()
	if state.UserLoading {
		t.Fatalf("refresh must settle the loading flag")
	}
	if state.UserPrincipal == nil || state.UserPrincipal.ID != "u1" {
		t.Fatalf("transient failure must keep the tenant principal, got %+v", state.UserPrincipal)
	}
}

func TestClearUser(t *testing.T) {
	ctx := context.Background()
	user := &scriptedUser{}
	user.respond(&sentinel.UserPrincipal{ID: "u1"}, nil)

	m := newTestManager(t, nil, newScriptedAdmin(), user)
	m.Start(ctx)
	waitFor(t, func(s State) bool { return s.UserPrincipal != nil }, m)

	m.ClearUser()
	state := m.Snapshot()
	if state.UserPrincipal != nil || state.UserLoading {
		t.Fatalf("expected signed-out user state, got %+v", state)
	}
}

func TestSubscribeObservesTransitions(t *testing.T) {
	ctx := context.Background()
	user := &scriptedUser{}
	user.respond(&sentinel.UserPrincipal{ID: "u1"}, nil)

	m := newTestManager(t, nil, newScriptedAdmin(), user)

	var mu sync.Mutex
	var seen []State
	unsubscribe := m.Subscribe(func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	m.Start(ctx)
	waitFor(t, func(s State) bool { return s.UserPrincipal != nil }, m)

	mu.Lock()
	count := len(seen)
	mu.Unlock()
	if count == 0 {
		t.Fatalf("expected at least one notification")
	}

	unsubscribe()
	m.ClearUser()

	mu.Lock()
	after := len(seen)
	mu.Unlock()
	if after != count {
		t.Fatalf("watcher fired after unsubscribe")
	}
}
