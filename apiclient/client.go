// Package apiclient is the single place outgoing dashboard API calls acquire
// credentials: platform-admin calls carry a bearer token, tenant calls ride
// the ambient session cookie. Responses are classified uniformly into the
// apperr taxonomy so callers never interpret raw status codes themselves.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/danielcipriano1979/sentinel/apperr"
	"github.com/danielcipriano1979/sentinel/httpclient"
	"github.com/danielcipriano1979/sentinel/logging"
)

const tracerName = "sentinel/apiclient"

// TokenSource supplies the current admin bearer token for admin-scoped calls.
type TokenSource interface {
	AdminToken() (string, bool)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() (string, bool)

// AdminToken returns the current token.
func (f TokenFunc) AdminToken() (string, bool) { return f() }

// Options configures a Client.
type Options struct {
	// BaseURL is the dashboard API origin, e.g. https://ops.example.com.
	BaseURL string
	// HTTP overrides the underlying client. When nil a retrying client with
	// a cookie jar (the ambient session carrier) is built.
	HTTP *http.Client
	// Tokens supplies the admin bearer token. Optional; admin-scoped calls
	// fail fast with Unauthenticated when no source or token is present.
	Tokens TokenSource
	// Logger receives request-level diagnostics. Optional.
	Logger *slog.Logger
}

// Client issues authenticated requests against the dashboard API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
	logger  *slog.Logger
	tracer  trace.Tracer
}

// New builds a Client.
func New(options Options) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(options.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute: %s", options.BaseURL)
	}

	client := options.HTTP
	if client == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		clientOptions := httpclient.DefaultClientOptions()
		clientOptions.Retry = httpclient.RetryOptions{MaxRetries: 2}
		clientOptions.Jar = jar
		client = httpclient.New(clientOptions)
	}

	logger := logging.WithComponent(options.Logger, "apiclient")

	return &Client{
		baseURL: base,
		http:    client,
		tokens:  options.Tokens,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
	}, nil
}

// BaseURL returns the configured API origin.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Do issues a tenant-scoped request. The ambient session cookie travels with
// the request automatically; no header manipulation happens here.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.send(req, "tenant")
}

// AdminDo issues an admin-scoped request with the bearer token attached. When
// no token is held it fails fast without touching the network.
func (c *Client) AdminDo(req *http.Request) (*http.Response, error) {
	token, ok := c.adminToken()
	if !ok {
		return nil, apperr.Unauthenticated("no admin session", nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return c.send(req, "admin")
}

// NewRequest builds a request against the configured base URL.
func (c *Client) NewRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, apperr.Internal("encode request body", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// GetJSON issues a tenant-scoped GET and decodes the response body.
func (c *Client) GetJSON(ctx context.Context, path string, dst any) error {
	req, err := c.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	return decodeJSON(resp, dst)
}

// AdminGetJSON issues an admin-scoped GET and decodes the response body.
func (c *Client) AdminGetJSON(ctx context.Context, path string, dst any) error {
	req, err := c.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.AdminDo(req)
	if err != nil {
		return err
	}
	return decodeJSON(resp, dst)
}

func (c *Client) adminToken() (string, bool) {
	if c.tokens == nil {
		return "", false
	}
	token, ok := c.tokens.AdminToken()
	if token == "" {
		return "", false
	}
	return token, ok
}

// send executes the request inside a span and classifies the outcome. A
// returned response always has a 2xx status; everything else is translated
// into the apperr taxonomy and the body is drained.
func (c *Client) send(req *http.Request, scope string) (*http.Response, error) {
	spanCtx, span := c.tracer.Start(req.Context(), req.Method+" "+req.URL.Path)
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.target", req.URL.Path),
		attribute.String("auth.scope", scope),
	)
	req = req.WithContext(spanCtx)

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		c.logger.Warn("api request failed", "method", req.Method, "path", req.URL.Path, "error", err)
		return nil, apperr.Transient("request failed", err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if classified := Classify(resp); classified != nil {
		span.SetStatus(codes.Error, classified.Message)
		span.End()
		drain(resp)
		return nil, classified
	}

	span.SetStatus(codes.Ok, "")
	span.End()
	return resp, nil
}

// Classify maps a non-2xx response to the shared error taxonomy. A 2xx
// response yields nil.
func Classify(resp *http.Response) *apperr.Error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return apperr.Unauthenticated("credential missing or rejected", nil)
	case resp.StatusCode == http.StatusForbidden:
		return apperr.Forbidden("insufficient capability", nil)
	case resp.StatusCode >= http.StatusInternalServerError:
		return apperr.Transient(fmt.Sprintf("server error: %d", resp.StatusCode), nil)
	default:
		return apperr.Unexpected(fmt.Sprintf("unexpected status: %d", resp.StatusCode), nil)
	}
}

func decodeJSON(resp *http.Response, dst any) error {
	defer resp.Body.Close()
	if dst == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return apperr.Unexpected("malformed response body", err)
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
