package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"esawitku.app/internal/ids"
	"esawitku.app/internal/obs"
)

// Service owns subscription and payment flows. It also answers the
// kebun quota question for the plantation service and provisions the
// free-tier subscription for freshly resolved users.
type Service struct {
	store Store
	now   func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the Service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListPackages returns the active package catalogue. This endpoint is
// public so the catalogue hides inactive tiers.
func (s *Service) ListPackages(ctx context.Context) ([]Package, error) {
	return s.store.ListPackages(ctx, true)
}

// ActiveSubscription returns the user's current subscription, lazily
// expiring it when its period has passed.
func (s *Service) ActiveSubscription(ctx context.Context, userID string) (*Subscription, error) {
	sub, err := s.store.GetActiveSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !sub.Berakhir.IsZero() && sub.Berakhir.Before(s.now().UTC()) {
		sub.Status = SubscriptionStatusExpired
		sub.UpdatedAt = s.now().UTC()
		if err := s.store.UpdateSubscription(ctx, sub); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return sub, nil
}

// EnsureDefault provisions the free-tier subscription for a user that
// has none. Called as part of just-in-time user provisioning; it must
// be idempotent.
func (s *Service) EnsureDefault(ctx context.Context, userID string) error {
	_, err := s.store.GetActiveSubscription(ctx, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	pkg, err := s.store.GetDefaultPackage(ctx)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	sub := &Subscription{
		ID:        ids.New(),
		UserID:    userID,
		PackageID: pkg.ID,
		Status:    SubscriptionStatusActive,
		Mulai:     now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.store.CreateSubscription(ctx, sub)
	if errors.Is(err, ErrConflict) {
		// Lost a provisioning race; the row is there.
		return nil
	}
	return err
}

// KebunQuota reports the kebun limit of the user's active package.
// Zero means unlimited. A user without an active subscription falls
// back to the default package's limit.
func (s *Service) KebunQuota(ctx context.Context, userID string) (int, error) {
	sub, err := s.ActiveSubscription(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		pkg, derr := s.store.GetDefaultPackage(ctx)
		if derr != nil {
			return 0, derr
		}
		return pkg.BatasKebun, nil
	}
	if err != nil {
		return 0, err
	}
	pkg, err := s.store.GetPackage(ctx, sub.PackageID)
	if err != nil {
		return 0, err
	}
	return pkg.BatasKebun, nil
}

// SubmitPayment records a bank-transfer claim for a paid package. The
// declared amount must match the package price exactly.
func (s *Service) SubmitPayment(ctx context.Context, userID string, in PaymentInput) (*Payment, error) {
	if strings.TrimSpace(in.PackageID) == "" {
		return nil, fmt.Errorf("%w: packageId is required", ErrInvalidInput)
	}
	pkg, err := s.store.GetPackage(ctx, in.PackageID)
	if err != nil {
		return nil, err
	}
	if !pkg.Aktif {
		return nil, fmt.Errorf("%w: package is not available", ErrInvalidInput)
	}
	if pkg.Harga <= 0 {
		return nil, fmt.Errorf("%w: package does not require payment", ErrInvalidInput)
	}
	if in.Jumlah != pkg.Harga {
		return nil, fmt.Errorf("%w: jumlah must equal the package price %d", ErrInvalidInput, pkg.Harga)
	}
	now := s.now().UTC()
	p := &Payment{
		ID:        ids.New(),
		UserID:    userID,
		PackageID: pkg.ID,
		Jumlah:    in.Jumlah,
		Metode:    MetodeTransferBank,
		Referensi: uuid.NewString(),
		BuktiURL:  strings.TrimSpace(in.BuktiURL),
		Status:    PaymentStatusPending,
		CreatedAt: now,
	}
	if err := s.store.CreatePayment(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetUserPayment returns one payment scoped to its owner. A payment
// that belongs to someone else reads as not found.
func (s *Service) GetUserPayment(ctx context.Context, userID, id string) (*Payment, error) {
	p, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, ErrNotFound
	}
	return p, nil
}

// ListPayments returns the user's own payments, newest first.
func (s *Service) ListPayments(ctx context.Context, userID string) ([]Payment, error) {
	return s.store.ListPaymentsByUser(ctx, userID)
}

// ListPendingPayments returns every pending payment for admin review.
func (s *Service) ListPendingPayments(ctx context.Context) ([]Payment, error) {
	return s.store.ListPaymentsByStatus(ctx, PaymentStatusPending)
}

// VerifyPayment marks a pending payment as verified and activates the
// paid subscription. Verifying a non-pending payment is a conflict.
func (s *Service) VerifyPayment(ctx context.Context, paymentID, verifiedBy string) (*Payment, error) {
	p, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	ok, err := s.store.SetPaymentStatus(ctx, paymentID, PaymentStatusPending, PaymentStatusVerified, verifiedBy)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.conflictOn(ctx, paymentID)
	}
	if err := s.activateSubscription(ctx, p.UserID, p.PackageID); err != nil {
		// Roll the payment back to pending so a later retry can
		// complete the whole transition.
		if _, revertErr := s.store.SetPaymentStatus(ctx, paymentID, PaymentStatusVerified, PaymentStatusPending, ""); revertErr != nil {
			obs.Event("warn", "payment stuck verified after activation failure", map[string]any{
				"payment": paymentID,
				"error":   revertErr.Error(),
			})
		}
		return nil, err
	}
	return s.store.GetPayment(ctx, paymentID)
}

// conflictOn re-reads the payment so the conflict names the status it
// actually holds, not the one seen before the lost transition.
func (s *Service) conflictOn(ctx context.Context, paymentID string) error {
	cur, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: payment already %s", ErrConflict, cur.Status)
}

// RejectPayment marks a pending payment as rejected. The user keeps the
// subscription they already had.
func (s *Service) RejectPayment(ctx context.Context, paymentID, verifiedBy string) (*Payment, error) {
	ok, err := s.store.SetPaymentStatus(ctx, paymentID, PaymentStatusPending, PaymentStatusRejected, verifiedBy)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.conflictOn(ctx, paymentID)
	}
	return s.store.GetPayment(ctx, paymentID)
}

// activateSubscription expires the current subscription, if any, and
// starts a new one on the paid package.
func (s *Service) activateSubscription(ctx context.Context, userID, packageID string) error {
	pkg, err := s.store.GetPackage(ctx, packageID)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	if cur, err := s.store.GetActiveSubscription(ctx, userID); err == nil {
		cur.Status = SubscriptionStatusExpired
		cur.UpdatedAt = now
		if err := s.store.UpdateSubscription(ctx, cur); err != nil {
			return err
		}
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	sub := &Subscription{
		ID:        ids.New(),
		UserID:    userID,
		PackageID: pkg.ID,
		Status:    SubscriptionStatusActive,
		Mulai:     now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pkg.DurasiHari > 0 {
		sub.Berakhir = now.AddDate(0, 0, pkg.DurasiHari)
	}
	return s.store.CreateSubscription(ctx, sub)
}
