package auth

import (
	"testing"
	"time"
)

func TestGenerateAndParseToken(t *testing.T) {
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()

	token, err := GenerateToken("user-42", "Tani@Example.com", 15*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "user-42" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Email != "tani@example.com" {
		t.Fatalf("email was not normalized: %s", claims.Email)
	}
	if claims.Issuer != issuer {
		t.Fatalf("unexpected issuer: %s", claims.Issuer)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()

	token, err := GenerateToken("user-42", "a@b.id", time.Nanosecond)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := ParseAndValidate(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseRejectsForeignSecret(t *testing.T) {
	t.Setenv(secretEnvVariable, "secret-one")
	ResetSecretForTests()
	token, err := GenerateToken("user-42", "a@b.id", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	t.Setenv(secretEnvVariable, "secret-two")
	ResetSecretForTests()
	if _, err := ParseAndValidate(token); err == nil {
		t.Fatal("expected signature mismatch to be rejected")
	}
}

func TestGenerateRequiresSubjectAndTTL(t *testing.T) {
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()

	if _, err := GenerateToken("", "a@b.id", time.Minute); err == nil {
		t.Fatal("expected empty subject to be rejected")
	}
	if _, err := GenerateToken("user-42", "a@b.id", 0); err == nil {
		t.Fatal("expected zero ttl to be rejected")
	}
}
