package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"esawitku.app/internal/ids"
	"esawitku.app/internal/obs"
)

// Credentials carries the per-request credential material. Token-based
// session auth (bearer header, then session cookie) takes priority over
// API-key auth.
type Credentials struct {
	BearerToken  string
	SessionToken string
	APIKey       string
}

// SubscriptionDefaulter assigns the default (free) package to a freshly
// provisioned user. Implemented by the billing service.
type SubscriptionDefaulter interface {
	EnsureDefault(ctx context.Context, userID string) error
}

// Resolver turns inbound credentials into a verified Identity,
// provisioning a local user row on first sight of a valid but unknown
// external subject.
type Resolver struct {
	users       UserStore
	apiKeys     APIKeyStore
	defaults    SubscriptionDefaulter
	superAdmins map[string]struct{}
	now         func() time.Time
}

// ResolverOption configures Resolver behavior.
type ResolverOption func(*Resolver)

// WithSuperAdminEmails sets the allow-list of emails provisioned as
// super_admin instead of the default user role.
func WithSuperAdminEmails(emails []string) ResolverOption {
	return func(r *Resolver) {
		for _, e := range emails {
			e = strings.TrimSpace(strings.ToLower(e))
			if e == "" {
				continue
			}
			r.superAdmins[e] = struct{}{}
		}
	}
}

// WithSubscriptionDefaulter wires the billing hook run after provisioning.
func WithSubscriptionDefaulter(d SubscriptionDefaulter) ResolverOption {
	return func(r *Resolver) { r.defaults = d }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewResolver constructs a Resolver.
func NewResolver(users UserStore, apiKeys APIKeyStore, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		users:       users,
		apiKeys:     apiKeys,
		superAdmins: make(map[string]struct{}),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve verifies exactly one credential source and returns the
// caller's identity. Missing, invalid or expired credentials and
// disabled accounts all map to ErrUnauthenticated.
func (r *Resolver) Resolve(ctx context.Context, creds Credentials) (Identity, error) {
	token := strings.TrimSpace(creds.BearerToken)
	if token == "" {
		token = strings.TrimSpace(creds.SessionToken)
	}
	if token != "" {
		claims, err := ParseAndValidate(token)
		if err != nil {
			return Identity{}, ErrUnauthenticated
		}
		return r.resolveSubject(ctx, claims.Subject, claims.Email)
	}
	if key := strings.TrimSpace(creds.APIKey); key != "" {
		return r.resolveAPIKey(ctx, key)
	}
	return Identity{}, ErrUnauthenticated
}

func (r *Resolver) resolveSubject(ctx context.Context, subject, email string) (Identity, error) {
	user, err := r.users.FindBySubject(ctx, subject)
	if errors.Is(err, ErrNotFound) {
		user, err = r.provision(ctx, subject, email)
	}
	if err != nil {
		return Identity{}, err
	}
	return r.identityFor(user)
}

func (r *Resolver) resolveAPIKey(ctx context.Context, key string) (Identity, error) {
	apiKey, err := r.apiKeys.FindByHash(ctx, HashAPIKey(key))
	if errors.Is(err, ErrNotFound) {
		return Identity{}, ErrUnauthenticated
	}
	if err != nil {
		return Identity{}, err
	}
	user, err := r.users.FindByID(ctx, apiKey.UserID)
	if errors.Is(err, ErrNotFound) {
		return Identity{}, ErrUnauthenticated
	}
	if err != nil {
		return Identity{}, err
	}
	return r.identityFor(user)
}

func (r *Resolver) identityFor(user *User) (Identity, error) {
	if user.Status != UserStatusActive {
		return Identity{}, ErrUnauthenticated
	}
	role, err := ParseRole(string(user.Role))
	if err != nil {
		// Corrupt role values reject the request instead of defaulting.
		obs.Event("warn", "rejected identity with unknown role", map[string]any{
			"user": user.ID,
			"role": string(user.Role),
		})
		return Identity{}, ErrUnauthenticated
	}
	return Identity{ID: user.ID, Email: user.Email, Role: role}, nil
}

// provision creates the local row for a first-seen subject. A concurrent
// first login may win the insert; the unique-key conflict is resolved by
// re-reading the existing row.
func (r *Resolver) provision(ctx context.Context, subject, email string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	role := RoleUser
	if _, ok := r.superAdmins[email]; ok {
		role = RoleSuperAdmin
	}
	now := r.now().UTC()
	user := &User{
		ID:        ids.New(),
		Subject:   subject,
		Email:     email,
		Role:      role,
		Status:    UserStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			return r.users.FindBySubject(ctx, subject)
		}
		return nil, err
	}
	if r.defaults != nil {
		if err := r.defaults.EnsureDefault(ctx, user.ID); err != nil {
			obs.Event("warn", "default subscription assignment failed", map[string]any{
				"user":  user.ID,
				"error": err.Error(),
			})
		}
	}
	return user, nil
}

// HashAPIKey returns the hex SHA-256 digest stored for an API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// NewAPIKeySecret generates fresh API key material and its stored hash.
func NewAPIKeySecret() (raw, hash string, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = "esk_" + base64.RawURLEncoding.EncodeToString(buf)
	return raw, HashAPIKey(raw), nil
}
