package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/gerrit-tools/serviceuser-cli/internal/gerrit"
)

// connErr mimics transport failures without a live server.
type connErr struct{ msg string }

func (e connErr) Error() string { return e.msg }

func TestHandleStatusErrors(t *testing.T) {
	denied := Handle("", &gerrit.StatusError{Code: 403, Message: "administrate server not permitted"})
	if denied == nil || !strings.Contains(denied.Error(), "permission denied") {
		t.Fatalf("403: got %v", denied)
	}

	missing := Handle("", &gerrit.StatusError{Code: 404, Message: "not found"})
	if missing == nil || !strings.Contains(missing.Error(), "not found") {
		t.Fatalf("404: got %v", missing)
	}

	conflict := Handle("", &gerrit.StatusError{Code: 409, Message: "username exists"})
	if conflict == nil || !strings.Contains(conflict.Error(), "username exists") {
		t.Fatalf("409 should keep the server message, got %v", conflict)
	}
}

func TestHandleNilPassesThrough(t *testing.T) {
	if err := Handle("https://review.example.com", nil); err != nil {
		t.Fatalf("nil must stay nil, got %v", err)
	}
}

func TestHandleConnectionErrors(t *testing.T) {
	err := Handle("https://review.example.com", connErr{`Get "x": dial tcp 10.0.0.1:443: connection refused`})
	if err == nil || !strings.Contains(err.Error(), "review.example.com") {
		t.Fatalf("expected site URL in message, got %v", err)
	}

	err = Handle("", connErr{"lookup review: no such host"})
	if err == nil || !strings.Contains(err.Error(), "could not connect") {
		t.Fatalf("expected generic connection message, got %v", err)
	}
}

func TestHandleUnknownErrorsPassThrough(t *testing.T) {
	orig := fmt.Errorf("decoding response: %w", errors.New("unexpected end of JSON input"))
	if err := Handle("", orig); err != orig {
		t.Fatalf("unknown errors must pass through unchanged, got %v", err)
	}
}
