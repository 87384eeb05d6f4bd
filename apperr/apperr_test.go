package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestConstructors(t *testing.T) {
	cause := errors.New("boom")

	cases := []struct {
		name   string
		err    *Error
		code   string
		status int
	}{
		{"unauthenticated", Unauthenticated("no credential", cause), CodeUnauthenticated, http.StatusUnauthorized},
		{"forbidden", Forbidden("insufficient role", nil), CodeForbidden, http.StatusForbidden},
		{"transient", Transient("upstream unavailable", cause), CodeTransient, http.StatusServiceUnavailable},
		{"unexpected", Unexpected("malformed body", cause), CodeUnexpected, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Code != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, tc.err.Code)
			}
			if tc.err.Status != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, tc.err.Status)
			}
		})
	}
}

func TestAsAndPredicates(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Unauthenticated("expired token", nil))

	appErr := As(err)
	if appErr == nil || appErr.Code != CodeUnauthenticated {
		t.Fatalf("expected unauthenticated error, got %v", appErr)
	}
	if !IsUnauthenticated(err) {
		t.Fatalf("expected IsUnauthenticated")
	}
	if IsForbidden(err) || IsTransient(err) {
		t.Fatalf("unexpected predicate match")
	}
	if As(errors.New("plain")) != nil {
		t.Fatalf("expected nil for plain error")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Transient("request failed", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to unwrap")
	}
	if err.Error() == "" {
		t.Fatalf("expected error string")
	}
}
