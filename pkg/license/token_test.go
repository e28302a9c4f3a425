package license

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := CreateToken("secret", "machine-1", time.Hour)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	claims, err := ParseToken("secret", token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Machine != "machine-1" {
		t.Fatalf("machine = %s, want machine-1", claims.Machine)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := CreateToken("secret", "machine-1", time.Hour)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if _, err := ParseToken("other", token); err == nil {
		t.Fatal("expected signature verification to fail")
	}
}

func TestTokenExpired(t *testing.T) {
	token, err := CreateToken("secret", "machine-1", -time.Minute)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if _, err := ParseToken("secret", token); err == nil {
		t.Fatal("expected expired token to fail")
	}
}
