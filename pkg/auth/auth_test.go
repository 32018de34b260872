package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vocadrill/vocadrill/pkg/kvstore"
)

func TestLoginPersistsSession(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/login" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode login request: %v", err)
		}
		if req.Email != "user@example.com" || req.Password != "hunter2" {
			t.Errorf("unexpected credentials %+v", req)
		}
		json.NewEncoder(w).Encode(Session{Token: "tok-1", UserID: "u-1", Email: req.Email})
	}))
	defer server.Close()

	store := kvstore.NewMemoryStore()
	client := NewClient(server.URL, 5*time.Second, store)

	session, err := client.Login(ctx, "user@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if session.Token != "tok-1" || session.UserID != "u-1" {
		t.Fatalf("unexpected session %+v", session)
	}
	if session.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be stamped")
	}

	restored := client.Session(ctx)
	if restored == nil || restored.Token != "tok-1" {
		t.Fatalf("expected session round-trip through the store, got %+v", restored)
	}
	if client.Token(ctx) != "tok-1" {
		t.Fatalf("expected token accessor to return tok-1, got %q", client.Token(ctx))
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, kvstore.NewMemoryStore())
	if _, err := client.Login(context.Background(), "user@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, kvstore.NewMemoryStore())
	if _, err := client.Login(context.Background(), "user@example.com", "pw"); err == nil {
		t.Fatal("expected error on server failure")
	}
}

func TestSessionWhenLoggedOut(t *testing.T) {
	client := NewClient("http://localhost:0", time.Second, kvstore.NewMemoryStore())
	if session := client.Session(context.Background()); session != nil {
		t.Fatalf("expected nil session, got %+v", session)
	}
	if client.Token(context.Background()) != "" {
		t.Fatal("expected empty token when logged out")
	}
}

func TestLogoutRemovesSession(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	client := NewClient("http://localhost:0", time.Second, store)

	if err := store.Set(ctx, "session", `{"token":"tok-1"}`); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if err := client.Logout(ctx); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if session := client.Session(ctx); session != nil {
		t.Fatalf("expected session removed, got %+v", session)
	}
}

func TestCorruptSessionTreatedAsLoggedOut(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	client := NewClient("http://localhost:0", time.Second, store)

	if err := store.Set(ctx, "session", "{broken"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if session := client.Session(ctx); session != nil {
		t.Fatalf("expected corrupt session to read as logged out, got %+v", session)
	}
}
