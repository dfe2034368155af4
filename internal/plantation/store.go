package plantation

import (
	"context"
	"time"
)

// Store persists plantation records. Every read and mutation takes the
// owning user id and must filter by it; a miss is ErrNotFound.
type Store interface {
	CreateKebun(ctx context.Context, k *Kebun) error
	GetKebun(ctx context.Context, userID, id string) (*Kebun, error)
	ListKebun(ctx context.Context, userID string) ([]Kebun, error)
	UpdateKebun(ctx context.Context, k *Kebun) error
	DeleteKebun(ctx context.Context, userID, id string) error
	CountKebun(ctx context.Context, userID string) (int, error)

	CreatePanen(ctx context.Context, p *Panen) error
	GetPanen(ctx context.Context, userID, id string) (*Panen, error)
	ListPanenByKebun(ctx context.Context, userID, kebunID string) ([]Panen, error)
	UpdatePanen(ctx context.Context, p *Panen) error
	DeletePanen(ctx context.Context, userID, id string) error

	CreatePupuk(ctx context.Context, p *Pupuk) error
	GetPupuk(ctx context.Context, userID, id string) (*Pupuk, error)
	ListPupukByKebun(ctx context.Context, userID, kebunID string) ([]Pupuk, error)
	DeletePupuk(ctx context.Context, userID, id string) error

	Summary(ctx context.Context, userID string) (Summary, error)
	PanenReport(ctx context.Context, userID string, from, to time.Time) ([]PanenReportRow, error)
}
