package store

import (
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestRedisSessionStoreLifecycle(t *testing.T) {
	redisSrv := miniredis.RunT(t)
	s := NewRedisSessionStore(redisSrv.Addr(), "", time.Hour)

	token, err := s.NewSession("member-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	memberID, ok, err := s.GetMemberIDByToken(token)
	if err != nil || !ok {
		t.Fatalf("get session: ok=%v err=%v", ok, err)
	}
	if memberID != "member-1" {
		t.Fatalf("expected member-1, got %q", memberID)
	}

	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, _ := s.GetMemberIDByToken(token); ok {
		t.Fatalf("expected session to be gone after delete")
	}
}

func TestRedisSessionStoreExpiry(t *testing.T) {
	redisSrv := miniredis.RunT(t)
	s := NewRedisSessionStore(redisSrv.Addr(), "", time.Minute)

	token, err := s.NewSession("member-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	redisSrv.FastForward(2 * time.Minute)
	if _, ok, _ := s.GetMemberIDByToken(token); ok {
		t.Fatalf("expected session to expire with TTL")
	}
}

func TestJWTSessionStoreRoundTrip(t *testing.T) {
	s, err := NewJWTSessionStore(testSecret, time.Hour, NewMemoryTokenRevoker())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	token, err := s.NewSession("member-7")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	memberID, ok, err := s.GetMemberIDByToken(token)
	if err != nil || !ok {
		t.Fatalf("get session: ok=%v err=%v", ok, err)
	}
	if memberID != "member-7" {
		t.Fatalf("expected member-7, got %q", memberID)
	}
}

func TestJWTSessionStoreRejectsShortSecret(t *testing.T) {
	if _, err := NewJWTSessionStore("short", time.Hour, nil); err == nil {
		t.Fatalf("expected short secret to be rejected")
	}
}

func TestJWTSessionStoreRejectsTamperedToken(t *testing.T) {
	s, err := NewJWTSessionStore(testSecret, time.Hour, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	token, err := s.NewSession("member-7")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	tampered := token + "x"
	if _, ok, _ := s.GetMemberIDByToken(tampered); ok {
		t.Fatalf("expected tampered token to fail verification")
	}

	other, err := NewJWTSessionStore(strings.Repeat("z", 32), time.Hour, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, ok, _ := other.GetMemberIDByToken(token); ok {
		t.Fatalf("expected token signed with a different secret to fail")
	}
}

func TestJWTSessionStoreLogoutRevokes(t *testing.T) {
	s, err := NewJWTSessionStore(testSecret, time.Hour, NewMemoryTokenRevoker())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	token, err := s.NewSession("member-7")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, _ := s.GetMemberIDByToken(token); ok {
		t.Fatalf("expected revoked token to be rejected")
	}
}

func TestRedisTokenRevoker(t *testing.T) {
	redisSrv := miniredis.RunT(t)
	r := NewRedisTokenRevoker(redisSrv.Addr(), "")

	revoked, err := r.IsRevoked("tok-1")
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if revoked {
		t.Fatalf("fresh token should not be revoked")
	}

	if err := r.Revoke("tok-1", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err = r.IsRevoked("tok-1")
	if err != nil || !revoked {
		t.Fatalf("expected token revoked, got revoked=%v err=%v", revoked, err)
	}

	redisSrv.FastForward(2 * time.Minute)
	revoked, err = r.IsRevoked("tok-1")
	if err != nil || revoked {
		t.Fatalf("expected revocation to lapse with TTL, got revoked=%v err=%v", revoked, err)
	}
}
