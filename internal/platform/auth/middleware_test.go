package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type stubAuthenticator struct {
	identity Identity
	err      error
}

func (s stubAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	return s.identity, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestMiddlewareAllowsAuthenticatedRequest(t *testing.T) {
	var gotIdentity Identity
	var gotProject string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity, _ = IdentityFromContext(r.Context())
		gotProject, _ = ProjectIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	mw := Middleware{
		Logger:         discardLogger(),
		Authenticator:  stubAuthenticator{identity: Identity{Subject: "u1", Roles: []string{"editor"}}},
		Authorize:      MethodRoleAuthorizer(),
		ProjectResolve: RequireProjectIDResolver(nil),
	}

	req := httptest.NewRequest(http.MethodPost, "/pipelines?project_id=proj-1", nil)
	rec := httptest.NewRecorder()
	mw.Wrap(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if gotIdentity.Subject != "u1" {
		t.Fatalf("identity subject = %q, want u1", gotIdentity.Subject)
	}
	if gotProject != "proj-1" {
		t.Fatalf("project id = %q, want proj-1", gotProject)
	}
}

func TestMiddlewareRejectsUnauthenticated(t *testing.T) {
	mw := Middleware{
		Logger:        discardLogger(),
		Authenticator: stubAuthenticator{err: ErrUnauthenticated},
	}

	req := httptest.NewRequest(http.MethodGet, "/pipelines", nil)
	rec := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"unauthorized"`) {
		t.Fatalf("body = %q, want unauthorized error", rec.Body.String())
	}
}

func TestMiddlewareRejectsForbidden(t *testing.T) {
	var audited []DenyEvent
	mw := Middleware{
		Logger:        discardLogger(),
		Authenticator: stubAuthenticator{identity: Identity{Subject: "u1", Roles: []string{"viewer"}}},
		Authorize:     MethodRoleAuthorizer(),
		Audit: func(ctx context.Context, event DenyEvent) error {
			audited = append(audited, event)
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/pipelines", nil)
	req.Header.Set("X-Request-Id", "req-9")
	rec := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if len(audited) != 1 {
		t.Fatalf("audited %d events, want 1", len(audited))
	}
	event := audited[0]
	if event.Reason != "forbidden" || event.Subject != "u1" || event.RequestID != "req-9" {
		t.Fatalf("unexpected deny event: %+v", event)
	}
}

func TestMiddlewareRequiresProjectID(t *testing.T) {
	mw := Middleware{
		Logger:         discardLogger(),
		Authenticator:  stubAuthenticator{identity: Identity{Subject: "u1", Roles: []string{"admin"}}},
		ProjectResolve: RequireProjectIDResolver([]string{"/healthz"}),
	}

	req := httptest.NewRequest(http.MethodGet, "/pipelines", nil)
	rec := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "project_id_required") {
		t.Fatalf("body = %q, want project_id_required", rec.Body.String())
	}
}

func TestMiddlewareSkipsPrefixes(t *testing.T) {
	mw := Middleware{
		Logger:        discardLogger(),
		Authenticator: stubAuthenticator{err: errors.New("must not be called")},
		SkipPrefixes:  []string{"/healthz", "/readyz"},
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestGatewayHeadersAuthenticator(t *testing.T) {
	authn, err := NewGatewayHeadersAuthenticator("secret")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	authn.MaxSkew = 0

	req := httptest.NewRequest(http.MethodPost, "/pipelines", nil)
	req.Header.Set("X-Request-Id", "req-1")
	req.Header.Set(HeaderSubject, "u1")
	req.Header.Set(HeaderEmail, "u1@example.com")
	req.Header.Set(HeaderRoles, "editor,viewer")
	req.Header.Set(HeaderInternalAuthTimestamp, "1700000000")

	sig, err := ComputeInternalAuthSignature("secret", "1700000000", http.MethodPost, "/pipelines", "req-1", "u1", "u1@example.com", "editor,viewer")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	req.Header.Set(HeaderInternalAuthSignature, sig)

	identity, err := authn.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if identity.Subject != "u1" || identity.Email != "u1@example.com" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
	if len(identity.Roles) != 2 || identity.Roles[0] != "editor" || identity.Roles[1] != "viewer" {
		t.Fatalf("unexpected roles: %v", identity.Roles)
	}

	req.Header.Set(HeaderRoles, "admin")
	if _, err := authn.Authenticate(context.Background(), req); err == nil {
		t.Fatal("expected tampered roles to be rejected")
	}
}
