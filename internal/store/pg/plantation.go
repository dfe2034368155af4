package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"esawitku.app/internal/plantation"
)

// PlantationStore adapts Store to plantation.Store. Every query filters
// by the owning user id; a miss maps to plantation.ErrNotFound.
type PlantationStore struct{ s *Store }

func (s *Store) Plantation() *PlantationStore { return &PlantationStore{s: s} }

var _ plantation.Store = (*PlantationStore)(nil)

func (p *PlantationStore) CreateKebun(ctx context.Context, k *plantation.Kebun) error {
	_, err := p.s.db.ExecContext(ctx, `
		insert into kebun (id, user_id, nama, lokasi, luas_hektar, jumlah_pohon, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, k.ID, k.UserID, k.Nama, k.Lokasi, k.LuasHektar, k.JumlahPohon, k.CreatedAt, k.UpdatedAt)
	return err
}

func (p *PlantationStore) GetKebun(ctx context.Context, userID, id string) (*plantation.Kebun, error) {
	var k plantation.Kebun
	err := p.s.db.QueryRowContext(ctx, `
		select id, user_id, nama, lokasi, luas_hektar, jumlah_pohon, created_at, updated_at
		from kebun where id=$1 and user_id=$2
	`, id, userID).Scan(&k.ID, &k.UserID, &k.Nama, &k.Lokasi, &k.LuasHektar, &k.JumlahPohon, &k.CreatedAt, &k.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, plantation.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func (p *PlantationStore) ListKebun(ctx context.Context, userID string) ([]plantation.Kebun, error) {
	rows, err := p.s.db.QueryContext(ctx, `
		select id, user_id, nama, lokasi, luas_hektar, jumlah_pohon, created_at, updated_at
		from kebun where user_id=$1
		order by created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]plantation.Kebun, 0)
	for rows.Next() {
		var k plantation.Kebun
		if err := rows.Scan(&k.ID, &k.UserID, &k.Nama, &k.Lokasi, &k.LuasHektar, &k.JumlahPohon, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *PlantationStore) UpdateKebun(ctx context.Context, k *plantation.Kebun) error {
	res, err := p.s.db.ExecContext(ctx, `
		update kebun
		set nama=$1, lokasi=$2, luas_hektar=$3, jumlah_pohon=$4, updated_at=$5
		where id=$6 and user_id=$7
	`, k.Nama, k.Lokasi, k.LuasHektar, k.JumlahPohon, k.UpdatedAt, k.ID, k.UserID)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (p *PlantationStore) DeleteKebun(ctx context.Context, userID, id string) error {
	res, err := p.s.db.ExecContext(ctx, `delete from kebun where id=$1 and user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (p *PlantationStore) CountKebun(ctx context.Context, userID string) (int, error) {
	var n int
	err := p.s.db.QueryRowContext(ctx, `select count(*) from kebun where user_id=$1`, userID).Scan(&n)
	return n, err
}

func (p *PlantationStore) CreatePanen(ctx context.Context, rec *plantation.Panen) error {
	_, err := p.s.db.ExecContext(ctx, `
		insert into panen (id, kebun_id, user_id, tanggal, berat_kg, harga_per_kg, total_pendapatan, catatan, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, rec.ID, rec.KebunID, rec.UserID, rec.Tanggal, rec.BeratKg, rec.HargaPerKg, rec.TotalPendapatan, rec.Catatan, rec.CreatedAt, rec.UpdatedAt)
	return err
}

func (p *PlantationStore) GetPanen(ctx context.Context, userID, id string) (*plantation.Panen, error) {
	var rec plantation.Panen
	err := p.s.db.QueryRowContext(ctx, `
		select id, kebun_id, user_id, tanggal, berat_kg, harga_per_kg, total_pendapatan, catatan, created_at, updated_at
		from panen where id=$1 and user_id=$2
	`, id, userID).Scan(&rec.ID, &rec.KebunID, &rec.UserID, &rec.Tanggal, &rec.BeratKg, &rec.HargaPerKg, &rec.TotalPendapatan, &rec.Catatan, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, plantation.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (p *PlantationStore) ListPanenByKebun(ctx context.Context, userID, kebunID string) ([]plantation.Panen, error) {
	rows, err := p.s.db.QueryContext(ctx, `
		select id, kebun_id, user_id, tanggal, berat_kg, harga_per_kg, total_pendapatan, catatan, created_at, updated_at
		from panen where kebun_id=$1 and user_id=$2
		order by tanggal
	`, kebunID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]plantation.Panen, 0)
	for rows.Next() {
		var rec plantation.Panen
		if err := rows.Scan(&rec.ID, &rec.KebunID, &rec.UserID, &rec.Tanggal, &rec.BeratKg, &rec.HargaPerKg, &rec.TotalPendapatan, &rec.Catatan, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *PlantationStore) UpdatePanen(ctx context.Context, rec *plantation.Panen) error {
	res, err := p.s.db.ExecContext(ctx, `
		update panen
		set tanggal=$1, berat_kg=$2, harga_per_kg=$3, total_pendapatan=$4, catatan=$5, updated_at=$6
		where id=$7 and user_id=$8
	`, rec.Tanggal, rec.BeratKg, rec.HargaPerKg, rec.TotalPendapatan, rec.Catatan, rec.UpdatedAt, rec.ID, rec.UserID)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (p *PlantationStore) DeletePanen(ctx context.Context, userID, id string) error {
	res, err := p.s.db.ExecContext(ctx, `delete from panen where id=$1 and user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (p *PlantationStore) CreatePupuk(ctx context.Context, rec *plantation.Pupuk) error {
	_, err := p.s.db.ExecContext(ctx, `
		insert into pupuk (id, kebun_id, user_id, tanggal, jenis, jumlah_kg, biaya, catatan, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, rec.ID, rec.KebunID, rec.UserID, rec.Tanggal, rec.Jenis, rec.JumlahKg, rec.Biaya, rec.Catatan, rec.CreatedAt, rec.UpdatedAt)
	return err
}

func (p *PlantationStore) GetPupuk(ctx context.Context, userID, id string) (*plantation.Pupuk, error) {
	var rec plantation.Pupuk
	err := p.s.db.QueryRowContext(ctx, `
		select id, kebun_id, user_id, tanggal, jenis, jumlah_kg, biaya, catatan, created_at, updated_at
		from pupuk where id=$1 and user_id=$2
	`, id, userID).Scan(&rec.ID, &rec.KebunID, &rec.UserID, &rec.Tanggal, &rec.Jenis, &rec.JumlahKg, &rec.Biaya, &rec.Catatan, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, plantation.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (p *PlantationStore) ListPupukByKebun(ctx context.Context, userID, kebunID string) ([]plantation.Pupuk, error) {
	rows, err := p.s.db.QueryContext(ctx, `
		select id, kebun_id, user_id, tanggal, jenis, jumlah_kg, biaya, catatan, created_at, updated_at
		from pupuk where kebun_id=$1 and user_id=$2
		order by tanggal
	`, kebunID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]plantation.Pupuk, 0)
	for rows.Next() {
		var rec plantation.Pupuk
		if err := rows.Scan(&rec.ID, &rec.KebunID, &rec.UserID, &rec.Tanggal, &rec.Jenis, &rec.JumlahKg, &rec.Biaya, &rec.Catatan, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *PlantationStore) DeletePupuk(ctx context.Context, userID, id string) error {
	res, err := p.s.db.ExecContext(ctx, `delete from pupuk where id=$1 and user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (p *PlantationStore) Summary(ctx context.Context, userID string) (plantation.Summary, error) {
	var sum plantation.Summary
	err := p.s.db.QueryRowContext(ctx, `
		select
			(select count(*) from kebun where user_id=$1),
			(select count(*) from panen where user_id=$1),
			(select coalesce(sum(berat_kg),0) from panen where user_id=$1),
			(select coalesce(sum(total_pendapatan),0) from panen where user_id=$1),
			(select coalesce(sum(biaya),0) from pupuk where user_id=$1)
	`, userID).Scan(&sum.TotalKebun, &sum.TotalPanen, &sum.TotalBeratKg, &sum.TotalPendapatan, &sum.TotalBiayaPupuk)
	return sum, err
}

func (p *PlantationStore) PanenReport(ctx context.Context, userID string, from, to time.Time) ([]plantation.PanenReportRow, error) {
	rows, err := p.s.db.QueryContext(ctx, `
		select k.id, k.nama, count(p.id), coalesce(sum(p.berat_kg),0), coalesce(sum(p.total_pendapatan),0)
		from panen p
		join kebun k on k.id = p.kebun_id
		where p.user_id=$1 and p.tanggal >= $2 and p.tanggal <= $3
		group by k.id, k.nama
		order by k.nama
	`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]plantation.PanenReportRow, 0)
	for rows.Next() {
		var row plantation.PanenReportRow
		if err := rows.Scan(&row.KebunID, &row.KebunNama, &row.JumlahPanen, &row.TotalBeratKg, &row.TotalPendapatan); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return plantation.ErrNotFound
	}
	return nil
}
