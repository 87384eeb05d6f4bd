package apiclient

import (
	"context"
	"net/http"

	sentinel "github.com/danielcipriano1979/sentinel"
	"github.com/danielcipriano1979/sentinel/apperr"
)

// Endpoints consumed by the principal resolvers.
const (
	AdminMePath    = "/api/admin/me"
	AdminLoginPath = "/api/admin/login"
	MePath         = "/api/me"
	LoginPath      = "/api/login"
	LogoutPath     = "/api/logout"
)

// AdminMe resolves the admin principal for an explicit token. The token is
// passed rather than read from the token source so a caller racing token
// changes can pin the request to the value it was issued for.
func (c *Client) AdminMe(ctx context.Context, token string) (*sentinel.AdminPrincipal, error) {
	if token == "" {
		return nil, apperr.Unauthenticated("no admin token", nil)
	}

	req, err := c.NewRequest(ctx, http.MethodGet, AdminMePath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.send(req, "admin")
	if err != nil {
		return nil, err
	}

	var principal sentinel.AdminPrincipal
	if err := decodeJSON(resp, &principal); err != nil {
		return nil, err
	}
	return &principal, nil
}

// Me resolves the tenant principal from the ambient session. An
// Unauthenticated result is the normal signed-out outcome, not a failure.
func (c *Client) Me(ctx context.Context) (*sentinel.UserPrincipal, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, MePath, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}

	var principal sentinel.UserPrincipal
	if err := decodeJSON(resp, &principal); err != nil {
		return nil, err
	}
	return &principal, nil
}

type adminLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type adminLoginResponse struct {
	Token string `json:"token"`
}

// AdminLogin exchanges operator credentials for a bearer token. Storing the
// token is the caller's decision.
func (c *Client) AdminLogin(ctx context.Context, email, password string) (string, error) {
	req, err := c.NewRequest(ctx, http.MethodPost, AdminLoginPath, adminLoginRequest{Email: email, Password: password})
	if err != nil {
		return "", err
	}

	resp, err := c.send(req, "admin")
	if err != nil {
		return "", err
	}

	var body adminLoginResponse
	if err := decodeJSON(resp, &body); err != nil {
		return "", err
	}
	if body.Token == "" {
		return "", apperr.Unexpected("login response missing token", nil)
	}
	return body.Token, nil
}

// Login establishes the ambient tenant session. The session cookie lands in
// the client's jar; the resolved principal is returned for convenience.
func (c *Client) Login(ctx context.Context, email, password string) (*sentinel.UserPrincipal, error) {
	req, err := c.NewRequest(ctx, http.MethodPost, LoginPath, adminLoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}

	var principal sentinel.UserPrincipal
	if err := decodeJSON(resp, &principal); err != nil {
		return nil, err
	}
	return &principal, nil
}

// Logout tears down the ambient tenant session server-side.
func (c *Client) Logout(ctx context.Context) error {
	req, err := c.NewRequest(ctx, http.MethodPost, LogoutPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil)
}
