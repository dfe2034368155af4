package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recordingDefaulter struct {
	calls []string
	err   error
}

func (d *recordingDefaulter) EnsureDefault(ctx context.Context, userID string) error {
	d.calls = append(d.calls, userID)
	return d.err
}

func newTestResolver(t *testing.T, opts ...ResolverOption) (*Resolver, *MemoryUserStore, *MemoryAPIKeyStore) {
	t.Helper()
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()
	users := NewMemoryUserStore()
	keys := NewMemoryAPIKeyStore()
	return NewResolver(users, keys, opts...), users, keys
}

func TestResolveProvisionsFirstSeenSubject(t *testing.T) {
	defaulter := &recordingDefaulter{}
	resolver, users, _ := newTestResolver(t, WithSubscriptionDefaulter(defaulter))

	token, err := GenerateToken("ext-subject-1", "tani@example.com", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	identity, err := resolver.Resolve(context.Background(), Credentials{BearerToken: token})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if identity.Role != RoleUser {
		t.Fatalf("expected default role user, got %s", identity.Role)
	}
	if identity.Email != "tani@example.com" {
		t.Fatalf("unexpected email: %s", identity.Email)
	}
	if len(defaulter.calls) != 1 || defaulter.calls[0] != identity.ID {
		t.Fatalf("expected default subscription for %s, got %v", identity.ID, defaulter.calls)
	}

	// Second resolution must reuse the provisioned row.
	again, err := resolver.Resolve(context.Background(), Credentials{BearerToken: token})
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if again.ID != identity.ID {
		t.Fatalf("expected same user id, got %s vs %s", again.ID, identity.ID)
	}
	if users.Count() != 1 {
		t.Fatalf("expected exactly one user row, got %d", users.Count())
	}
}

func TestResolveSuperAdminAllowList(t *testing.T) {
	resolver, _, _ := newTestResolver(t, WithSuperAdminEmails([]string{"Boss@Esawitku.app"}))

	token, err := GenerateToken("ext-boss", "boss@esawitku.app", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	identity, err := resolver.Resolve(context.Background(), Credentials{BearerToken: token})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if identity.Role != RoleSuperAdmin {
		t.Fatalf("expected super_admin, got %s", identity.Role)
	}
}

func TestResolveProvisioningConflictReReads(t *testing.T) {
	resolver, users, _ := newTestResolver(t)

	// Simulate the concurrent first login winning the insert.
	existing := &User{ID: "u-existing", Subject: "ext-race", Email: "race@example.com", Role: RoleUser, Status: UserStatusActive}
	if err := users.Create(context.Background(), existing); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	user, err := resolver.provision(context.Background(), "ext-race", "race@example.com")
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if user.ID != "u-existing" {
		t.Fatalf("expected conflict to resolve to existing row, got %s", user.ID)
	}
}

func TestResolveRejectsMissingAndInvalidCredentials(t *testing.T) {
	resolver, _, _ := newTestResolver(t)

	if _, err := resolver.Resolve(context.Background(), Credentials{}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for missing creds, got %v", err)
	}
	if _, err := resolver.Resolve(context.Background(), Credentials{BearerToken: "garbage"}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for invalid token, got %v", err)
	}
}

func TestResolveRejectsDisabledUser(t *testing.T) {
	resolver, users, _ := newTestResolver(t)

	token, err := GenerateToken("ext-disabled", "off@example.com", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	identity, err := resolver.Resolve(context.Background(), Credentials{BearerToken: token})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	users.SetStatus(identity.ID, UserStatusDisabled)

	if _, err := resolver.Resolve(context.Background(), Credentials{BearerToken: token}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected disabled user rejection, got %v", err)
	}
}

func TestResolveAPIKeyFallback(t *testing.T) {
	resolver, users, keys := newTestResolver(t)

	user := &User{ID: "u-key", Subject: "u-key", Email: "key@example.com", Role: RoleUser, Status: UserStatusActive}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	raw, hash, err := NewAPIKeySecret()
	if err != nil {
		t.Fatalf("NewAPIKeySecret: %v", err)
	}
	if err := keys.Create(context.Background(), &APIKey{ID: "k1", UserID: "u-key", Nama: "ci", KeyHash: hash}); err != nil {
		t.Fatalf("seed key: %v", err)
	}

	identity, err := resolver.Resolve(context.Background(), Credentials{APIKey: raw})
	if err != nil {
		t.Fatalf("Resolve with api key: %v", err)
	}
	if identity.ID != "u-key" {
		t.Fatalf("unexpected identity: %s", identity.ID)
	}

	if _, err := resolver.Resolve(context.Background(), Credentials{APIKey: "esk_unknown"}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unknown key rejection, got %v", err)
	}
}

func TestResolveTokenTakesPriorityOverAPIKey(t *testing.T) {
	resolver, users, keys := newTestResolver(t)

	other := &User{ID: "u-other", Subject: "u-other", Email: "other@example.com", Role: RoleUser, Status: UserStatusActive}
	if err := users.Create(context.Background(), other); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	raw, hash, err := NewAPIKeySecret()
	if err != nil {
		t.Fatalf("NewAPIKeySecret: %v", err)
	}
	if err := keys.Create(context.Background(), &APIKey{ID: "k1", UserID: "u-other", KeyHash: hash}); err != nil {
		t.Fatalf("seed key: %v", err)
	}

	token, err := GenerateToken("ext-token-user", "token@example.com", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	identity, err := resolver.Resolve(context.Background(), Credentials{BearerToken: token, APIKey: raw})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if identity.ID == "u-other" {
		t.Fatal("api key must not win over a bearer token")
	}
}
