package billing

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("billing: not found")
	ErrInvalidInput = errors.New("billing: invalid input")
	ErrConflict     = errors.New("billing: conflict")
)

// Payment statuses. A payment is born pending and moves exactly once to
// verified or rejected.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusVerified = "verified"
	PaymentStatusRejected = "rejected"
)

// Subscription statuses.
const (
	SubscriptionStatusActive  = "active"
	SubscriptionStatusExpired = "expired"
)

// MetodeTransferBank is the only supported payment method.
const MetodeTransferBank = "transfer_bank"

// Package is a subscription tier. Harga is in whole rupiah. BatasKebun
// zero means unlimited kebun.
type Package struct {
	ID         string    `json:"id"`
	Nama       string    `json:"nama"`
	Harga      int64     `json:"harga"`
	DurasiHari int       `json:"durasiHari"`
	BatasKebun int       `json:"batasKebun"`
	Aktif      bool      `json:"aktif"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Subscription ties a user to a package for a period. Berakhir is zero
// for the free tier, which never expires.
type Subscription struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	PackageID string    `json:"packageId"`
	Status    string    `json:"status"`
	Mulai     time.Time `json:"mulai"`
	Berakhir  time.Time `json:"berakhir,omitzero"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Payment is a manual bank-transfer claim awaiting admin review.
type Payment struct {
	ID         string     `json:"id"`
	UserID     string     `json:"-"`
	PackageID  string     `json:"packageId"`
	Jumlah     int64      `json:"jumlah"`
	Metode     string     `json:"metode"`
	Referensi  string     `json:"referensi"`
	BuktiURL   string     `json:"buktiUrl,omitempty"`
	Status     string     `json:"status"`
	VerifiedBy string     `json:"verifiedBy,omitempty"`
	VerifiedAt *time.Time `json:"verifiedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// PaymentInput carries the submit-payment request body.
type PaymentInput struct {
	PackageID string `json:"packageId"`
	Jumlah    int64  `json:"jumlah"`
	BuktiURL  string `json:"buktiUrl"`
}
