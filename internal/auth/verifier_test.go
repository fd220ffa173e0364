package auth

import (
	"strings"
	"testing"
	"time"
)

func TestDevToken(t *testing.T) {
	v := NewVerifier("", "")
	p, err := v.Verify("acme:Solver")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.Tenant != "acme" || p.Role != "solver" || !p.CanSolve() {
		t.Fatalf("unexpected principal %+v", p)
	}
	if _, err := v.Verify("acme"); err == nil {
		t.Fatal("expected error for token without role")
	}
}

func TestOffMode(t *testing.T) {
	p, err := NewVerifier("off", "").Verify("")
	if err != nil || p.Tenant != DefaultTenant || !p.CanSolve() {
		t.Fatalf("off mode: %+v %v", p, err)
	}
}

func TestHMAC(t *testing.T) {
	v := NewVerifier("HMAC", "s3cret")
	v.now = func() time.Time { return time.Unix(1000, 0) }

	tok, err := SignHS256("s3cret", map[string]any{"tenant": "acme", "role": "admin", "exp": 2000})
	if err != nil {
		t.Fatal(err)
	}
	p, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.Tenant != "acme" || p.Role != "admin" {
		t.Fatalf("unexpected principal %+v", p)
	}

	forged, _ := SignHS256("other", map[string]any{"tenant": "acme", "role": "admin"})
	if _, err := v.Verify(forged); err == nil {
		t.Fatal("expected bad signature")
	}

	expired, _ := SignHS256("s3cret", map[string]any{"tenant": "acme", "exp": 999})
	if _, err := v.Verify(expired); err != ErrExpired {
		t.Fatalf("want ErrExpired, got %v", err)
	}

	noTenant, _ := SignHS256("s3cret", map[string]any{"role": "admin"})
	if _, err := v.Verify(noTenant); err == nil || !strings.Contains(err.Error(), "tenant") {
		t.Fatalf("want missing tenant error, got %v", err)
	}

	viewer, _ := SignHS256("s3cret", map[string]any{"tenant": "acme"})
	p, err = v.Verify(viewer)
	if err != nil || p.Role != "viewer" || p.CanSolve() {
		t.Fatalf("default role: %+v %v", p, err)
	}

	if _, err := v.Verify("a.b"); err != ErrInvalidToken {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}
