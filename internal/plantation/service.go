package plantation

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"esawitku.app/internal/ids"
)

// QuotaProvider reports how many kebun the user's active package allows.
// Zero or negative means unlimited. Implemented by the billing service.
type QuotaProvider interface {
	KebunQuota(ctx context.Context, userID string) (int, error)
}

// Service owns kebun/panen/pupuk operations for one resolved identity.
type Service struct {
	store Store
	quota QuotaProvider
	now   func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithQuota wires the package quota check applied on kebun creation.
func WithQuota(q QuotaProvider) Option {
	return func(s *Service) { s.quota = q }
}

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

// --- Kebun ---

func (s *Service) CreateKebun(ctx context.Context, userID string, in KebunInput) (*Kebun, error) {
	if err := validateKebun(in); err != nil {
		return nil, err
	}
	if s.quota != nil {
		limit, err := s.quota.KebunQuota(ctx, userID)
		if err != nil {
			return nil, err
		}
		if limit > 0 {
			count, err := s.store.CountKebun(ctx, userID)
			if err != nil {
				return nil, err
			}
			if count >= limit {
				return nil, ErrQuotaExceeded
			}
		}
	}
	now := s.now().UTC()
	k := &Kebun{
		ID:          ids.New(),
		UserID:      userID,
		Nama:        strings.TrimSpace(in.Nama),
		Lokasi:      strings.TrimSpace(in.Lokasi),
		LuasHektar:  in.LuasHektar,
		JumlahPohon: in.JumlahPohon,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateKebun(ctx, k); err != nil {
		return nil, err
	}
	return k, nil
}

func (s *Service) GetKebun(ctx context.Context, userID, id string) (*Kebun, error) {
	return s.store.GetKebun(ctx, userID, id)
}

func (s *Service) ListKebun(ctx context.Context, userID string) ([]Kebun, error) {
	return s.store.ListKebun(ctx, userID)
}

func (s *Service) UpdateKebun(ctx context.Context, userID, id string, in KebunInput) (*Kebun, error) {
	if err := validateKebun(in); err != nil {
		return nil, err
	}
	k, err := s.store.GetKebun(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	k.Nama = strings.TrimSpace(in.Nama)
	k.Lokasi = strings.TrimSpace(in.Lokasi)
	k.LuasHektar = in.LuasHektar
	k.JumlahPohon = in.JumlahPohon
	k.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateKebun(ctx, k); err != nil {
		return nil, err
	}
	return k, nil
}

func (s *Service) DeleteKebun(ctx context.Context, userID, id string) error {
	return s.store.DeleteKebun(ctx, userID, id)
}

// --- Panen ---

func (s *Service) CreatePanen(ctx context.Context, userID, kebunID string, in PanenInput) (*Panen, error) {
	if err := validatePanen(in); err != nil {
		return nil, err
	}
	// Ownership check doubles as existence check.
	if _, err := s.store.GetKebun(ctx, userID, kebunID); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	tanggal := in.Tanggal
	if tanggal.IsZero() {
		tanggal = now
	}
	p := &Panen{
		ID:              ids.New(),
		KebunID:         kebunID,
		UserID:          userID,
		Tanggal:         tanggal,
		BeratKg:         in.BeratKg,
		HargaPerKg:      in.HargaPerKg,
		TotalPendapatan: totalPendapatan(in.BeratKg, in.HargaPerKg),
		Catatan:         strings.TrimSpace(in.Catatan),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreatePanen(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPanen(ctx context.Context, userID, id string) (*Panen, error) {
	return s.store.GetPanen(ctx, userID, id)
}

func (s *Service) ListPanen(ctx context.Context, userID, kebunID string) ([]Panen, error) {
	if _, err := s.store.GetKebun(ctx, userID, kebunID); err != nil {
		return nil, err
	}
	return s.store.ListPanenByKebun(ctx, userID, kebunID)
}

func (s *Service) UpdatePanen(ctx context.Context, userID, id string, in PanenInput) (*Panen, error) {
	if err := validatePanen(in); err != nil {
		return nil, err
	}
	p, err := s.store.GetPanen(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !in.Tanggal.IsZero() {
		p.Tanggal = in.Tanggal
	}
	p.BeratKg = in.BeratKg
	p.HargaPerKg = in.HargaPerKg
	p.TotalPendapatan = totalPendapatan(in.BeratKg, in.HargaPerKg)
	p.Catatan = strings.TrimSpace(in.Catatan)
	p.UpdatedAt = s.now().UTC()
	if err := s.store.UpdatePanen(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) DeletePanen(ctx context.Context, userID, id string) error {
	return s.store.DeletePanen(ctx, userID, id)
}

// --- Pupuk ---

func (s *Service) CreatePupuk(ctx context.Context, userID, kebunID string, in PupukInput) (*Pupuk, error) {
	if err := validatePupuk(in); err != nil {
		return nil, err
	}
	if _, err := s.store.GetKebun(ctx, userID, kebunID); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	tanggal := in.Tanggal
	if tanggal.IsZero() {
		tanggal = now
	}
	p := &Pupuk{
		ID:        ids.New(),
		KebunID:   kebunID,
		UserID:    userID,
		Tanggal:   tanggal,
		Jenis:     strings.TrimSpace(in.Jenis),
		JumlahKg:  in.JumlahKg,
		Biaya:     in.Biaya,
		Catatan:   strings.TrimSpace(in.Catatan),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreatePupuk(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPupuk(ctx context.Context, userID, id string) (*Pupuk, error) {
	return s.store.GetPupuk(ctx, userID, id)
}

func (s *Service) ListPupuk(ctx context.Context, userID, kebunID string) ([]Pupuk, error) {
	if _, err := s.store.GetKebun(ctx, userID, kebunID); err != nil {
		return nil, err
	}
	return s.store.ListPupukByKebun(ctx, userID, kebunID)
}

func (s *Service) DeletePupuk(ctx context.Context, userID, id string) error {
	return s.store.DeletePupuk(ctx, userID, id)
}

// --- Dashboard / reports ---

func (s *Service) Dashboard(ctx context.Context, userID string) (Summary, error) {
	return s.store.Summary(ctx, userID)
}

func (s *Service) PanenReport(ctx context.Context, userID string, from, to time.Time) ([]PanenReportRow, error) {
	if to.IsZero() {
		to = s.now().UTC()
	}
	if from.After(to) {
		return nil, fmt.Errorf("%w: from must not be after to", ErrInvalidInput)
	}
	return s.store.PanenReport(ctx, userID, from, to)
}

// totalPendapatan rounds to whole rupiah.
func totalPendapatan(beratKg float64, hargaPerKg int64) int64 {
	return int64(math.Round(beratKg * float64(hargaPerKg)))
}

func validateKebun(in KebunInput) error {
	if strings.TrimSpace(in.Nama) == "" {
		return fmt.Errorf("%w: nama is required", ErrInvalidInput)
	}
	if in.LuasHektar <= 0 {
		return fmt.Errorf("%w: luasHektar must be > 0", ErrInvalidInput)
	}
	if in.JumlahPohon < 0 {
		return fmt.Errorf("%w: jumlahPohon must be >= 0", ErrInvalidInput)
	}
	return nil
}

func validatePanen(in PanenInput) error {
	if in.BeratKg <= 0 {
		return fmt.Errorf("%w: beratKg must be > 0", ErrInvalidInput)
	}
	if in.HargaPerKg <= 0 {
		return fmt.Errorf("%w: hargaPerKg must be > 0", ErrInvalidInput)
	}
	return nil
}

func validatePupuk(in PupukInput) error {
	if strings.TrimSpace(in.Jenis) == "" {
		return fmt.Errorf("%w: jenis is required", ErrInvalidInput)
	}
	if in.JumlahKg <= 0 {
		return fmt.Errorf("%w: jumlahKg must be > 0", ErrInvalidInput)
	}
	if in.Biaya < 0 {
		return fmt.Errorf("%w: biaya must be >= 0", ErrInvalidInput)
	}
	return nil
}
