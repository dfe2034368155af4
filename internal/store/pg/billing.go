package pg

import (
	"context"
	"database/sql"
	"errors"

	"esawitku.app/internal/billing"
)

// BillingStore adapts Store to billing.Store.
type BillingStore struct{ s *Store }

func (s *Store) Billing() *BillingStore { return &BillingStore{s: s} }

var _ billing.Store = (*BillingStore)(nil)

func (b *BillingStore) ListPackages(ctx context.Context, activeOnly bool) ([]billing.Package, error) {
	q := `
		select id, nama, harga, durasi_hari, batas_kebun, aktif, created_at
		from packages`
	if activeOnly {
		q += ` where aktif`
	}
	q += ` order by harga`
	rows, err := b.s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]billing.Package, 0)
	for rows.Next() {
		var p billing.Package
		if err := rows.Scan(&p.ID, &p.Nama, &p.Harga, &p.DurasiHari, &p.BatasKebun, &p.Aktif, &p.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (b *BillingStore) GetPackage(ctx context.Context, id string) (*billing.Package, error) {
	var p billing.Package
	err := b.s.db.QueryRowContext(ctx, `
		select id, nama, harga, durasi_hari, batas_kebun, aktif, created_at
		from packages where id=$1
	`, id).Scan(&p.ID, &p.Nama, &p.Harga, &p.DurasiHari, &p.BatasKebun, &p.Aktif, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, billing.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetDefaultPackage returns the cheapest active free package. Tier
// downgrades and fresh users both land here.
func (b *BillingStore) GetDefaultPackage(ctx context.Context) (*billing.Package, error) {
	var p billing.Package
	err := b.s.db.QueryRowContext(ctx, `
		select id, nama, harga, durasi_hari, batas_kebun, aktif, created_at
		from packages where aktif and harga = 0
		order by id limit 1
	`).Scan(&p.ID, &p.Nama, &p.Harga, &p.DurasiHari, &p.BatasKebun, &p.Aktif, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, billing.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (b *BillingStore) CreateSubscription(ctx context.Context, sub *billing.Subscription) error {
	var berakhir any
	if !sub.Berakhir.IsZero() {
		berakhir = sub.Berakhir
	}
	_, err := b.s.db.ExecContext(ctx, `
		insert into subscriptions (id, user_id, package_id, status, mulai, berakhir, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, sub.ID, sub.UserID, sub.PackageID, sub.Status, sub.Mulai, berakhir, sub.CreatedAt, sub.UpdatedAt)
	if isUniqueViolation(err) {
		return billing.ErrConflict
	}
	return err
}

func (b *BillingStore) GetActiveSubscription(ctx context.Context, userID string) (*billing.Subscription, error) {
	var (
		sub      billing.Subscription
		berakhir sql.NullTime
	)
	err := b.s.db.QueryRowContext(ctx, `
		select id, user_id, package_id, status, mulai, berakhir, created_at, updated_at
		from subscriptions
		where user_id=$1 and status='active'
		order by mulai desc limit 1
	`, userID).Scan(&sub.ID, &sub.UserID, &sub.PackageID, &sub.Status, &sub.Mulai, &berakhir, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, billing.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if berakhir.Valid {
		sub.Berakhir = berakhir.Time
	}
	return &sub, nil
}

func (b *BillingStore) UpdateSubscription(ctx context.Context, sub *billing.Subscription) error {
	var berakhir any
	if !sub.Berakhir.IsZero() {
		berakhir = sub.Berakhir
	}
	res, err := b.s.db.ExecContext(ctx, `
		update subscriptions
		set package_id=$1, status=$2, mulai=$3, berakhir=$4, updated_at=$5
		where id=$6
	`, sub.PackageID, sub.Status, sub.Mulai, berakhir, sub.UpdatedAt, sub.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return billing.ErrNotFound
	}
	return nil
}

func (b *BillingStore) CreatePayment(ctx context.Context, p *billing.Payment) error {
	_, err := b.s.db.ExecContext(ctx, `
		insert into payments (id, user_id, package_id, jumlah, metode, referensi, bukti_url, status, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, p.ID, p.UserID, p.PackageID, p.Jumlah, p.Metode, p.Referensi, p.BuktiURL, p.Status, p.CreatedAt)
	if isUniqueViolation(err) {
		return billing.ErrConflict
	}
	return err
}

func (b *BillingStore) GetPayment(ctx context.Context, id string) (*billing.Payment, error) {
	var (
		p          billing.Payment
		verifiedBy sql.NullString
		verifiedAt sql.NullTime
	)
	err := b.s.db.QueryRowContext(ctx, `
		select id, user_id, package_id, jumlah, metode, referensi, bukti_url, status, verified_by, verified_at, created_at
		from payments where id=$1
	`, id).Scan(&p.ID, &p.UserID, &p.PackageID, &p.Jumlah, &p.Metode, &p.Referensi, &p.BuktiURL, &p.Status, &verifiedBy, &verifiedAt, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, billing.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if verifiedBy.Valid {
		p.VerifiedBy = verifiedBy.String
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		p.VerifiedAt = &t
	}
	return &p, nil
}

func (b *BillingStore) ListPaymentsByUser(ctx context.Context, userID string) ([]billing.Payment, error) {
	return b.listPayments(ctx, `where user_id=$1 order by created_at desc`, userID)
}

func (b *BillingStore) ListPaymentsByStatus(ctx context.Context, status string) ([]billing.Payment, error) {
	return b.listPayments(ctx, `where status=$1 order by created_at`, status)
}

func (b *BillingStore) listPayments(ctx context.Context, tail string, arg any) ([]billing.Payment, error) {
	rows, err := b.s.db.QueryContext(ctx, `
		select id, user_id, package_id, jumlah, metode, referensi, bukti_url, status, verified_by, verified_at, created_at
		from payments `+tail, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]billing.Payment, 0)
	for rows.Next() {
		var (
			p          billing.Payment
			verifiedBy sql.NullString
			verifiedAt sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.PackageID, &p.Jumlah, &p.Metode, &p.Referensi, &p.BuktiURL, &p.Status, &verifiedBy, &verifiedAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		if verifiedBy.Valid {
			p.VerifiedBy = verifiedBy.String
		}
		if verifiedAt.Valid {
			t := verifiedAt.Time
			p.VerifiedAt = &t
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SetPaymentStatus performs a conditional transition so concurrent
// reviewers cannot both win. The where clause carries the expected
// current status; zero affected rows means the payment had already
// moved on.
func (b *BillingStore) SetPaymentStatus(ctx context.Context, id, from, to, verifiedBy string) (bool, error) {
	res, err := b.s.db.ExecContext(ctx, `
		update payments
		set status=$1,
		    verified_by=nullif($2, ''),
		    verified_at=case when $2 = '' then null else now() end
		where id=$3 and status=$4
	`, to, verifiedBy, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		// Distinguish a missing payment from a lost transition.
		var exists bool
		if err := b.s.db.QueryRowContext(ctx, `select exists (select 1 from payments where id=$1)`, id).Scan(&exists); err != nil {
			return false, err
		}
		if !exists {
			return false, billing.ErrNotFound
		}
		return false, nil
	}
	return true, nil
}
