package plantation

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("plantation: not found")
	ErrInvalidInput  = errors.New("plantation: invalid input")
	ErrQuotaExceeded = errors.New("plantation: kebun quota for the active package exceeded")
)

// Kebun is one plantation owned by a single user. Ownership is enforced
// by the user-id filter on every store query; a kebun that exists but
// belongs to someone else is indistinguishable from an absent one.
type Kebun struct {
	ID          string    `json:"id"`
	UserID      string    `json:"-"`
	Nama        string    `json:"nama"`
	Lokasi      string    `json:"lokasi"`
	LuasHektar  float64   `json:"luasHektar"`
	JumlahPohon int       `json:"jumlahPohon"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Panen is one harvest record. TotalPendapatan is always computed
// server-side from weight and price; client-supplied values are ignored.
type Panen struct {
	ID              string    `json:"id"`
	KebunID         string    `json:"kebunId"`
	UserID          string    `json:"-"`
	Tanggal         time.Time `json:"tanggal"`
	BeratKg         float64   `json:"beratKg"`
	HargaPerKg      int64     `json:"hargaPerKg"`
	TotalPendapatan int64     `json:"totalPendapatan"`
	Catatan         string    `json:"catatan,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Pupuk is one fertilizer application record.
type Pupuk struct {
	ID        string    `json:"id"`
	KebunID   string    `json:"kebunId"`
	UserID    string    `json:"-"`
	Tanggal   time.Time `json:"tanggal"`
	Jenis     string    `json:"jenis"`
	JumlahKg  float64   `json:"jumlahKg"`
	Biaya     int64     `json:"biaya"`
	Catatan   string    `json:"catatan,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// KebunInput carries create/update fields for a kebun.
type KebunInput struct {
	Nama        string  `json:"nama"`
	Lokasi      string  `json:"lokasi"`
	LuasHektar  float64 `json:"luasHektar"`
	JumlahPohon int     `json:"jumlahPohon"`
}

// PanenInput carries create/update fields for a harvest record.
type PanenInput struct {
	Tanggal    time.Time `json:"tanggal"`
	BeratKg    float64   `json:"beratKg"`
	HargaPerKg int64     `json:"hargaPerKg"`
	Catatan    string    `json:"catatan"`
}

// PupukInput carries create/update fields for a fertilizer record.
type PupukInput struct {
	Tanggal  time.Time `json:"tanggal"`
	Jenis    string    `json:"jenis"`
	JumlahKg float64   `json:"jumlahKg"`
	Biaya    int64     `json:"biaya"`
	Catatan  string    `json:"catatan"`
}

// Summary aggregates one owner's holdings for the dashboard.
type Summary struct {
	TotalKebun      int     `json:"totalKebun"`
	TotalPanen      int     `json:"totalPanen"`
	TotalBeratKg    float64 `json:"totalBeratKg"`
	TotalPendapatan int64   `json:"totalPendapatan"`
	TotalBiayaPupuk int64   `json:"totalBiayaPupuk"`
}

// PanenReportRow aggregates harvests per kebun over a period.
type PanenReportRow struct {
	KebunID         string  `json:"kebunId"`
	KebunNama       string  `json:"kebunNama"`
	JumlahPanen     int     `json:"jumlahPanen"`
	TotalBeratKg    float64 `json:"totalBeratKg"`
	TotalPendapatan int64   `json:"totalPendapatan"`
}
