package auth

import (
	"context"
	"testing"
	"time"
)

func newTestIssuer(clock func() time.Time) *SessionIssuer {
	return NewSessionIssuer(SessionIssuerConfig{
		SigningSecret: []byte("test-signing-secret"),
		Issuer:        "agora-auth",
		Audience:      "agora-api",
		TokenTTL:      time.Hour,
		Clock:         clock,
	})
}

func TestIssueAndValidateSessionToken(t *testing.T) {
	now := time.Unix(1767400000, 0).UTC()
	issuer := newTestIssuer(func() time.Time { return now })

	token, expiresIn, err := issuer.IssueSessionToken(context.Background(), Identity{
		UID:      "uid-1",
		Email:    "sana@example.com",
		Username: " sana ",
	})
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}
	if expiresIn != int64(time.Hour.Seconds()) {
		t.Fatalf("expected expiry of one hour, got %d seconds", expiresIn)
	}

	username, err := issuer.ValidateToken(token)
	if err != nil {
		t.Fatalf("unexpected error validating token: %v", err)
	}
	if username != "sana" {
		t.Fatalf("expected trimmed username subject, got %q", username)
	}
}

func TestIssueSessionTokenRequiresUsername(t *testing.T) {
	issuer := newTestIssuer(nil)
	if _, _, err := issuer.IssueSessionToken(context.Background(), Identity{UID: "uid-1"}); err == nil {
		t.Fatalf("expected error for missing username")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	now := time.Unix(1767400000, 0).UTC()
	issuer := newTestIssuer(func() time.Time { return now })

	token, _, err := issuer.IssueSessionToken(context.Background(), Identity{Username: "sana"})
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	later := now.Add(2 * time.Hour)
	expiredView := newTestIssuer(func() time.Time { return later })
	if _, err := expiredView.ValidateToken(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestValidateTokenRejectsForeignAudience(t *testing.T) {
	now := time.Unix(1767400000, 0).UTC()
	foreign := NewSessionIssuer(SessionIssuerConfig{
		SigningSecret: []byte("test-signing-secret"),
		Issuer:        "agora-auth",
		Audience:      "some-other-service",
		TokenTTL:      time.Hour,
		Clock:         func() time.Time { return now },
	})
	token, _, err := foreign.IssueSessionToken(context.Background(), Identity{Username: "sana"})
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	issuer := newTestIssuer(func() time.Time { return now })
	if _, err := issuer.ValidateToken(token); err == nil {
		t.Fatalf("expected token for another audience to be rejected")
	}
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	now := time.Unix(1767400000, 0).UTC()
	issuer := newTestIssuer(func() time.Time { return now })

	token, _, err := issuer.IssueSessionToken(context.Background(), Identity{Username: "sana"})
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	otherKey := NewSessionIssuer(SessionIssuerConfig{
		SigningSecret: []byte("a-different-secret"),
		Issuer:        "agora-auth",
		Audience:      "agora-api",
		TokenTTL:      time.Hour,
		Clock:         func() time.Time { return now },
	})
	if _, err := otherKey.ValidateToken(token); err == nil {
		t.Fatalf("expected token signed with another key to be rejected")
	}
}
