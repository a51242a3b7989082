package cart

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestResolveOwnerUserWins(t *testing.T) {
	t.Parallel()
	userID := uuid.New()

	owner, err := ResolveOwner(&userID, "some-session-token")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !owner.IsUser() {
		t.Fatal("expected user identity to take precedence over session token")
	}
	if owner.UserID() != userID {
		t.Fatalf("unexpected user id %s", owner.UserID())
	}
	if owner.SessionToken() != "" {
		t.Fatalf("session token should be dropped, got %q", owner.SessionToken())
	}
}

func TestResolveOwnerSessionFallback(t *testing.T) {
	t.Parallel()

	owner, err := ResolveOwner(nil, "tok-123")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if owner.IsUser() {
		t.Fatal("expected session owner")
	}
	if owner.SessionToken() != "tok-123" {
		t.Fatalf("unexpected token %q", owner.SessionToken())
	}
}

func TestResolveOwnerNilUUIDIgnored(t *testing.T) {
	t.Parallel()

	nilID := uuid.Nil
	owner, err := ResolveOwner(&nilID, "tok-456")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if owner.IsUser() {
		t.Fatal("nil uuid must not count as a user identity")
	}
}

func TestResolveOwnerNoIdentity(t *testing.T) {
	t.Parallel()

	owner, err := ResolveOwner(nil, "")
	if err == nil {
		t.Fatal("expected error without any identity")
	}
	if !owner.IsZero() {
		t.Fatalf("expected zero owner, got %v", owner)
	}
}

func TestOwnerStringTruncatesToken(t *testing.T) {
	t.Parallel()

	owner := SessionOwner("abcdefghijklmnop")
	rendered := owner.String()
	if strings.Contains(rendered, "ijklmnop") {
		t.Fatalf("full token leaked into log rendering: %q", rendered)
	}
	if !strings.HasPrefix(rendered, "session:abcdefgh") {
		t.Fatalf("unexpected rendering %q", rendered)
	}
}

func TestNewSessionToken(t *testing.T) {
	t.Parallel()

	first, err := NewSessionToken()
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	second, err := NewSessionToken()
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	if first == second {
		t.Fatal("tokens must be unique")
	}
	if len(first) < 40 {
		t.Fatalf("token looks too short: %d chars", len(first))
	}
	if strings.ContainsAny(first, "+/=") {
		t.Fatalf("token must be URL-safe, got %q", first)
	}
}
