package billing

import "context"

// Store persists packages, subscriptions and payments.
type Store interface {
	// Packages.
	ListPackages(ctx context.Context, activeOnly bool) ([]Package, error)
	GetPackage(ctx context.Context, id string) (*Package, error)
	GetDefaultPackage(ctx context.Context) (*Package, error)

	// Subscriptions.
	CreateSubscription(ctx context.Context, s *Subscription) error
	GetActiveSubscription(ctx context.Context, userID string) (*Subscription, error)
	UpdateSubscription(ctx context.Context, s *Subscription) error

	// Payments.
	CreatePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, id string) (*Payment, error)
	ListPaymentsByUser(ctx context.Context, userID string) ([]Payment, error)
	ListPaymentsByStatus(ctx context.Context, status string) ([]Payment, error)
	// SetPaymentStatus transitions a payment from one status to another
	// and reports whether the transition happened. A false return with a
	// nil error means the payment was not in the expected status.
	SetPaymentStatus(ctx context.Context, id, from, to, verifiedBy string) (bool, error)
}
