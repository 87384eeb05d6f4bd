// Package testutil provides an in-memory ops-dashboard backend for tests:
// admin bearer authentication with signed tokens, cookie-backed tenant
// sessions, and a handful of protected endpoints to exercise response
// classification.
package testutil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	sentinel "github.com/danielcipriano1979/sentinel"
)

const sessionCookie = "ops_session"

type adminAccount struct {
	principal    sentinel.AdminPrincipal
	passwordHash []byte
}

type userAccount struct {
	principal    sentinel.UserPrincipal
	passwordHash []byte
}

type adminClaims struct {
	AdminID string `json:"aid"`
	jwt.RegisteredClaims
}

// FakeAPI is a live httptest server backed by in-memory accounts.
type FakeAPI struct {
	Server *httptest.Server

	mu        sync.Mutex
	secret    []byte
	admins    map[string]*adminAccount // by email
	users     map[string]*userAccount  // by email
	sessions  map[string]string        // session id -> user email
	revoked   bool
	failuresN int // pending 500s per request, for transient-path tests
}

// NewFakeAPI starts the fake backend. The server is shut down with the test.
func NewFakeAPI(t interface {
	Helper()
	Cleanup(func())
}) *FakeAPI {
	t.Helper()

	api := &FakeAPI{
		secret:   []byte(uuid.NewString()),
		admins:   map[string]*adminAccount{},
		users:    map[string]*userAccount{},
		sessions: map[string]string{},
	}

	router := chi.NewRouter()
	router.Post("/api/admin/login", api.handleAdminLogin)
	router.Get("/api/admin/me", api.handleAdminMe)
	router.Post("/api/login", api.handleLogin)
	router.Post("/api/logout", api.handleLogout)
	router.Get("/api/me", api.handleMe)
	router.Get("/api/orgs", api.handleOrgs)
	router.Get("/api/broken", handleBroken)

	api.Server = httptest.NewServer(router)
	t.Cleanup(api.Server.Close)
	return api
}

// URL returns the server origin.
func (a *FakeAPI) URL() string {
	return a.Server.URL
}

// SeedAdmin registers a platform operator and returns its principal.
func (a *FakeAPI) SeedAdmin(email, password string) sentinel.AdminPrincipal {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}

	principal := sentinel.AdminPrincipal{
		ID:        uuid.NewString(),
		Email:     email,
		FirstName: "Ada",
		LastName:  "Operator",
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.admins[email] = &adminAccount{principal: principal, passwordHash: hash}
	return principal
}

// SeedUser registers a tenant user and returns its principal.
func (a *FakeAPI) SeedUser(email, password string, role sentinel.Role) sentinel.UserPrincipal {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}

	principal := sentinel.UserPrincipal{
		ID:             uuid.NewString(),
		Email:          email,
		Role:           role,
		OrganizationID: uuid.NewString(),
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.users[email] = &userAccount{principal: principal, passwordHash: hash}
	return principal
}

// MintAdminToken issues a valid bearer token for a seeded admin, bypassing
// the login endpoint.
func (a *FakeAPI) MintAdminToken(email string) string {
	a.mu.Lock()
	account, ok := a.admins[email]
	secret := a.secret
	a.mu.Unlock()
	if !ok {
		panic("unknown admin: " + email)
	}

	token, err := signAdminToken(secret, account.principal.ID)
	if err != nil {
		panic(err)
	}
	return token
}

// OpenSession establishes a tenant session directly and returns the cookie,
// for tests that need an ambient session without driving the login flow.
func (a *FakeAPI) OpenSession(email string) *http.Cookie {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.users[email]; !ok {
		panic("unknown user: " + email)
	}
	id := uuid.NewString()
	a.sessions[id] = email
	return &http.Cookie{Name: sessionCookie, Value: id, Path: "/"}
}

// RevokeAdminTokens makes every outstanding admin token invalid, modeling
// server-side revocation.
func (a *FakeAPI) RevokeAdminTokens() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.revoked = true
}

// FailNext makes the next n requests answer 500, modeling a flapping
// backend.
func (a *FakeAPI) FailNext(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failuresN = n
}

func (a *FakeAPI) consumeFailure() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failuresN > 0 {
		a.failuresN--
		return true
	}
	return false
}

func (a *FakeAPI) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if a.consumeFailure() {
		writeError(w, http.StatusInternalServerError, "induced failure")
		return
	}

	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	a.mu.Lock()
	account, ok := a.admins[body.Email]
	secret := a.secret
	a.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(account.passwordHash, []byte(body.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := signAdminToken(secret, account.principal.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sign token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (a *FakeAPI) handleAdminMe(w http.ResponseWriter, r *http.Request) {
	if a.consumeFailure() {
		writeError(w, http.StatusInternalServerError, "induced failure")
		return
	}

	principal, err := a.adminFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	writeJSON(w, http.StatusOK, principal)
}

func (a *FakeAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	a.mu.Lock()
	account, ok := a.users[body.Email]
	a.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(account.passwordHash, []byte(body.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	id := uuid.NewString()
	a.mu.Lock()
	a.sessions[id] = body.Email
	a.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, account.principal)
}

func (a *FakeAPI) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		a.mu.Lock()
		delete(a.sessions, cookie.Value)
		a.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *FakeAPI) handleMe(w http.ResponseWriter, r *http.Request) {
	if a.consumeFailure() {
		writeError(w, http.StatusInternalServerError, "induced failure")
		return
	}

	principal, err := a.userFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	writeJSON(w, http.StatusOK, principal)
}

// handleOrgs is a role-gated tenant endpoint: owners and admins only.
func (a *FakeAPI) handleOrgs(w http.ResponseWriter, r *http.Request) {
	principal, err := a.userFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	if !principal.HasAnyRole(sentinel.RoleOwner, sentinel.RoleAdmin) {
		writeError(w, http.StatusForbidden, "insufficient role")
		return
	}
	writeJSON(w, http.StatusOK, []map[string]string{{"id": principal.OrganizationID}})
}

// handleBroken answers 200 with a body that is not JSON, for testing the
// malformed-response path.
func handleBroken(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("{this is not json"))
}

func (a *FakeAPI) adminFromRequest(r *http.Request) (*sentinel.AdminPrincipal, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, errors.New("missing bearer token")
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

	a.mu.Lock()
	secret := a.secret
	revoked := a.revoked
	a.mu.Unlock()
	if revoked {
		return nil, errors.New("token revoked")
	}

	claims := &adminClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, account := range a.admins {
		if account.principal.ID == claims.AdminID {
			principal := account.principal
			return &principal, nil
		}
	}
	return nil, errors.New("unknown admin")
}

func (a *FakeAPI) userFromRequest(r *http.Request) (*sentinel.UserPrincipal, error) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		return nil, errors.New("no session cookie")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	email, ok := a.sessions[cookie.Value]
	if !ok {
		return nil, errors.New("unknown session")
	}
	account, ok := a.users[email]
	if !ok {
		return nil, errors.New("unknown user")
	}
	principal := account.principal
	return &principal, nil
}

func signAdminToken(secret []byte, adminID string) (string, error) {
	claims := &adminClaims{
		AdminID: adminID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
