package security

import (
	"testing"
	"time"
)

func TestGenerateVerifyRoundtrip(t *testing.T) {
	opts := DefaultOptions([]byte("test-secret"))

	token, hash, exp, err := Generate(opts, "user-1", []string{"read"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if hash != HashToken(token) {
		t.Error("hash mismatch")
	}
	if !exp.After(time.Now()) {
		t.Error("expiry not in the future")
	}

	claims, err := Verify(opts, token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject() != "user-1" {
		t.Errorf("subject = %q", claims.Subject())
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, _, _, err := Generate(DefaultOptions([]byte("secret-a")), "user-1", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := Verify(DefaultOptions([]byte("secret-b")), token); err == nil {
		t.Error("wrong secret must fail verification")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	opts := DefaultOptions([]byte("secret"))
	opts.TTL = -time.Minute
	token, _, _, err := Generate(opts, "user-1", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := Verify(opts, token); err == nil {
		t.Error("expired token must fail verification")
	}
}

func TestUnsupportedAlg(t *testing.T) {
	opts := Options{Secret: []byte("x"), Alg: "RS256"}
	if _, _, _, err := Generate(opts, "u", nil); err == nil {
		t.Error("RS256 must be rejected")
	}
}
