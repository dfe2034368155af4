package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"esawitku.app/internal/auth"
	"esawitku.app/internal/billing"
	"esawitku.app/internal/plantation"
)

func fakeUniqueViolation() error {
	return &pgconn.PgError{Code: pgErrUniqueViolation, Message: "duplicate key value violates unique constraint"}
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db), mock
}

func TestUserCreateMapsUniqueViolationToConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("insert into users").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(fakeUniqueViolation())

	err := store.Users().Create(context.Background(), &auth.User{ID: "u1", Subject: "sub", Email: "a@b.c"})
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected auth.ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserFindBySubjectNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select id, subject, email, nama, password_hash, role, status, created_at, updated_at").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Users().FindBySubject(context.Background(), "ghost")
	if !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected auth.ErrNotFound, got %v", err)
	}
}

func TestUserFindByEmailLowercases(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery("select id, subject, email, nama, password_hash, role, status, created_at, updated_at").
		WithArgs("petani@sawit.id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "subject", "email", "nama", "password_hash", "role", "status", "created_at", "updated_at"}).
			AddRow("u1", "u1", "petani@sawit.id", "Pak Tani", "hash", "user", "active", now, now))

	u, err := store.Users().FindByEmail(context.Background(), "Petani@Sawit.ID")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if u.Role != auth.RoleUser {
		t.Fatalf("unexpected role %q", u.Role)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetKebunScopesToOwner(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select id, user_id, nama, lokasi, luas_hektar, jumlah_pohon, created_at, updated_at").
		WithArgs("k1", "intruder").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Plantation().GetKebun(context.Background(), "intruder", "k1")
	if !errors.Is(err, plantation.ErrNotFound) {
		t.Fatalf("expected plantation.ErrNotFound, got %v", err)
	}
}

func TestUpdateKebunZeroRowsIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("update kebun").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "k1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Plantation().UpdateKebun(context.Background(), &plantation.Kebun{ID: "k1", UserID: "u1", Nama: "K"})
	if !errors.Is(err, plantation.ErrNotFound) {
		t.Fatalf("expected plantation.ErrNotFound, got %v", err)
	}
}

func TestSummaryScansAggregates(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"kebun", "panen", "berat", "pendapatan", "biaya"}).
			AddRow(2, 5, 540.5, 1081000, 250000))

	sum, err := store.Plantation().Summary(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalKebun != 2 || sum.TotalPanen != 5 || sum.TotalPendapatan != 1081000 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestSetPaymentStatusLostTransition(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("update payments").
		WithArgs("verified", "admin-1", "p1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select exists").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := store.Billing().SetPaymentStatus(context.Background(), "p1", "pending", "verified", "admin-1")
	if err != nil {
		t.Fatalf("SetPaymentStatus: %v", err)
	}
	if ok {
		t.Fatal("expected lost transition to report false")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetPaymentStatusMissingPayment(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("update payments").
		WithArgs("verified", "admin-1", "ghost", "pending").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select exists").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := store.Billing().SetPaymentStatus(context.Background(), "ghost", "pending", "verified", "admin-1")
	if !errors.Is(err, billing.ErrNotFound) {
		t.Fatalf("expected billing.ErrNotFound, got %v", err)
	}
}

func TestRateLimitIncrReturnsCount(t *testing.T) {
	store, mock := newMockStore(t)

	windowStart := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("insert into rate_limits").
		WithArgs("1.2.3.4", "kebun.create", windowStart, windowStart.Add(15*time.Minute)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := store.RateLimits().Incr(context.Background(), "1.2.3.4", "kebun.create", windowStart, 15*time.Minute)
	if err != nil {
		t.Fatalf("Incr: %v", err)
	}
	if count != 7 {
		t.Fatalf("count = %d, want 7", count)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
