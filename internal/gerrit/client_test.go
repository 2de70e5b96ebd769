package gerrit

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gerrit-tools/serviceuser-cli/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(&config.SiteConfig{
		URL:          srv.URL,
		Username:     "admin",
		HTTPPassword: "secret",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, srv
}

func TestNewRequiresURLAndCredentials(t *testing.T) {
	if _, err := New(&config.SiteConfig{Username: "a", HTTPPassword: "b"}); err == nil {
		t.Fatalf("expected error for missing URL")
	}
	if _, err := New(&config.SiteConfig{URL: "https://example.com"}); err == nil {
		t.Fatalf("expected error for missing credentials")
	}
	if _, err := New(&config.SiteConfig{URL: "https://example.com", Username: "a", HTTPPassword: "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetStripsXSSIPrefixAndAuthenticates(t *testing.T) {
	var gotPath, gotUser, gotPass string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		io.WriteString(w, ")]}'\n{\"name\":\"jenkins\"}")
	}))

	var out struct {
		Name string `json:"name"`
	}
	if err := c.Get(context.Background(), "/accounts/self", &out); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotPath != "/a/accounts/self" {
		t.Fatalf("expected authenticated /a/ path, got %q", gotPath)
	}
	if gotUser != "admin" || gotPass != "secret" {
		t.Fatalf("expected basic auth admin/secret, got %q/%q", gotUser, gotPass)
	}
	if out.Name != "jenkins" {
		t.Fatalf("expected decoded name jenkins, got %q", out.Name)
	}
}

func TestPostTextSendsPlainBody(t *testing.T) {
	var gotBody, gotContentType string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotContentType = r.Header.Get("Content-Type")
		io.WriteString(w, ")]}'\n{\"seq\":2}")
	}))

	var out struct {
		Seq int `json:"seq"`
	}
	err := c.PostText(context.Background(), "/x/sshkeys", "ssh-ed25519 AAAA comment", &out)
	if err != nil {
		t.Fatalf("PostText: %v", err)
	}
	if gotBody != "ssh-ed25519 AAAA comment" {
		t.Fatalf("expected raw key body, got %q", gotBody)
	}
	if gotContentType != "text/plain" {
		t.Fatalf("expected text/plain, got %q", gotContentType)
	}
	if out.Seq != 2 {
		t.Fatalf("expected seq 2, got %d", out.Seq)
	}
}

func TestPutMarshalsJSONBody(t *testing.T) {
	var gotBody, gotContentType string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotContentType = r.Header.Get("Content-Type")
		io.WriteString(w, ")]}'\n\"s3cr3t\"")
	}))

	var password string
	err := c.Put(context.Background(), "/accounts/x/password.http", map[string]bool{"generate": true}, &password)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if gotBody != `{"generate":true}` {
		t.Fatalf("unexpected body %q", gotBody)
	}
	if gotContentType != "application/json" {
		t.Fatalf("expected application/json, got %q", gotContentType)
	}
	if password != "s3cr3t" {
		t.Fatalf("expected decoded password, got %q", password)
	}
}

func TestDeleteAcceptsNoContent(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := c.Delete(context.Background(), "/x/active"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestErrorStatusMapsToStatusError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Service user jenkins not found", http.StatusNotFound)
	}))

	err := c.Get(context.Background(), "/missing", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsNotFound(err) {
		t.Fatalf("expected IsNotFound, got %v", err)
	}
	se, ok := err.(*StatusError)
	if !ok {
		t.Fatalf("expected *StatusError, got %T", err)
	}
	if se.Message != "Service user jenkins not found" {
		t.Fatalf("expected server message preserved, got %q", se.Message)
	}
}

func TestStatusHelpers(t *testing.T) {
	if !IsNotAuthorized(statusError(401, "")) || !IsNotAuthorized(statusError(403, "")) {
		t.Fatalf("401/403 should be not-authorized")
	}
	if !IsConflict(statusError(409, "exists")) {
		t.Fatalf("409 should be conflict")
	}
	if !IsBadRequest(statusError(400, "")) || !IsBadRequest(statusError(422, "")) {
		t.Fatalf("400/422 should be bad request")
	}
	if IsNotFound(nil) || IsNotFound(io.EOF) {
		t.Fatalf("non-status errors must not match")
	}
}
