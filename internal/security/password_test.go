package security

import "testing"

func TestHashPasswordNonDeterministic(t *testing.T) {
	h1, err := HashPassword("Secret123!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h2, err := HashPassword("Secret123!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 == h2 {
		t.Fatal("expected distinct hashes for the same password")
	}
	if !VerifyPassword("Secret123!", h1) || !VerifyPassword("Secret123!", h2) {
		t.Fatal("expected both hashes to verify")
	}
}

func TestVerifyPasswordRejectsWrongPassword(t *testing.T) {
	h, err := HashPassword("Secret123!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if VerifyPassword("secret123!", h) {
		t.Fatal("expected wrong password to fail")
	}
}

func TestVerifyPasswordToleratesMalformedHash(t *testing.T) {
	for _, hash := range []string{"", "not-a-bcrypt-hash", "$2a$broken"} {
		if VerifyPassword("anything", hash) {
			t.Fatalf("expected malformed hash %q to verify false", hash)
		}
	}
}
