package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHashAndCheckPassword(t *testing.T) {
	h, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(h, "hunter22") {
		t.Fatal("correct password rejected")
	}
	if CheckPassword(h, "wrong") {
		t.Fatal("wrong password accepted")
	}
}

func TestIssueAndVerify(t *testing.T) {
	s := NewService("test-secret", time.Hour)
	tok, err := s.Issue("u1", "ghost")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	id, name, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id != "u1" || name != "ghost" {
		t.Fatalf("claims mismatch: %s %s", id, name)
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	a := NewService("secret-a", time.Hour)
	b := NewService("secret-b", time.Hour)
	tok, _ := a.Issue("u1", "ghost")
	if _, _, err := b.Verify(tok); err == nil {
		t.Fatal("token from another secret verified")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	s := &Service{secret: []byte("test-secret"), ttl: -time.Minute}
	tok, _ := s.Issue("u1", "ghost")
	if _, _, err := s.Verify(tok); err == nil {
		t.Fatal("expired token verified")
	}
}

func TestMiddlewareAttachesViewer(t *testing.T) {
	s := NewService("test-secret", time.Hour)
	tok, _ := s.Issue("u1", "ghost")

	var got Viewer
	var ok bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = FromContext(r.Context())
	})
	h := s.Middleware(map[string]bool{"/open": true})(inner)

	req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if !ok || got.ID != "u1" || got.Username != "ghost" {
		t.Fatalf("viewer not attached: %+v", got)
	}
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	s := NewService("test-secret", time.Hour)
	h := s.Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run without a token")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/conversations", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMiddlewareOpenPathAndQueryToken(t *testing.T) {
	s := NewService("test-secret", time.Hour)
	ran := false
	h := s.Middleware(map[string]bool{"/v1/login": true})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ran = true
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/login", nil))
	if !ran {
		t.Fatal("open path blocked")
	}

	// websocket clients pass the token as a query parameter
	ran = false
	tok, _ := s.Issue("u1", "ghost")
	req := httptest.NewRequest(http.MethodGet, "/v1/feed?token="+tok, nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if !ran {
		t.Fatal("query token rejected")
	}
}
