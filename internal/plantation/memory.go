package plantation

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a map-backed Store used by tests and by the API when
// no database is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	kebun map[string]Kebun
	panen map[string]Panen
	pupuk map[string]Pupuk
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		kebun: make(map[string]Kebun),
		panen: make(map[string]Panen),
		pupuk: make(map[string]Pupuk),
	}
}

func (m *MemoryStore) CreateKebun(_ context.Context, k *Kebun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kebun[k.ID] = *k
	return nil
}

func (m *MemoryStore) GetKebun(_ context.Context, userID, id string) (*Kebun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.kebun[id]
	if !ok || k.UserID != userID {
		return nil, ErrNotFound
	}
	out := k
	return &out, nil
}

func (m *MemoryStore) ListKebun(_ context.Context, userID string) ([]Kebun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Kebun, 0)
	for _, k := range m.kebun {
		if k.UserID == userID {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) UpdateKebun(_ context.Context, k *Kebun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.kebun[k.ID]
	if !ok || cur.UserID != k.UserID {
		return ErrNotFound
	}
	m.kebun[k.ID] = *k
	return nil
}

func (m *MemoryStore) DeleteKebun(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.kebun[id]
	if !ok || k.UserID != userID {
		return ErrNotFound
	}
	delete(m.kebun, id)
	for pid, p := range m.panen {
		if p.KebunID == id {
			delete(m.panen, pid)
		}
	}
	for pid, p := range m.pupuk {
		if p.KebunID == id {
			delete(m.pupuk, pid)
		}
	}
	return nil
}

func (m *MemoryStore) CountKebun(_ context.Context, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, k := range m.kebun {
		if k.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CreatePanen(_ context.Context, p *Panen) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panen[p.ID] = *p
	return nil
}

func (m *MemoryStore) GetPanen(_ context.Context, userID, id string) (*Panen, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.panen[id]
	if !ok || p.UserID != userID {
		return nil, ErrNotFound
	}
	out := p
	return &out, nil
}

func (m *MemoryStore) ListPanenByKebun(_ context.Context, userID, kebunID string) ([]Panen, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Panen, 0)
	for _, p := range m.panen {
		if p.UserID == userID && p.KebunID == kebunID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tanggal.Before(out[j].Tanggal) })
	return out, nil
}

func (m *MemoryStore) UpdatePanen(_ context.Context, p *Panen) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.panen[p.ID]
	if !ok || cur.UserID != p.UserID {
		return ErrNotFound
	}
	m.panen[p.ID] = *p
	return nil
}

func (m *MemoryStore) DeletePanen(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.panen[id]
	if !ok || p.UserID != userID {
		return ErrNotFound
	}
	delete(m.panen, id)
	return nil
}

func (m *MemoryStore) CreatePupuk(_ context.Context, p *Pupuk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pupuk[p.ID] = *p
	return nil
}

func (m *MemoryStore) GetPupuk(_ context.Context, userID, id string) (*Pupuk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pupuk[id]
	if !ok || p.UserID != userID {
		return nil, ErrNotFound
	}
	out := p
	return &out, nil
}

func (m *MemoryStore) ListPupukByKebun(_ context.Context, userID, kebunID string) ([]Pupuk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Pupuk, 0)
	for _, p := range m.pupuk {
		if p.UserID == userID && p.KebunID == kebunID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tanggal.Before(out[j].Tanggal) })
	return out, nil
}

func (m *MemoryStore) DeletePupuk(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pupuk[id]
	if !ok || p.UserID != userID {
		return ErrNotFound
	}
	delete(m.pupuk, id)
	return nil
}

func (m *MemoryStore) Summary(_ context.Context, userID string) (Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum Summary
	for _, k := range m.kebun {
		if k.UserID == userID {
			sum.TotalKebun++
		}
	}
	for _, p := range m.panen {
		if p.UserID == userID {
			sum.TotalPanen++
			sum.TotalBeratKg += p.BeratKg
			sum.TotalPendapatan += p.TotalPendapatan
		}
	}
	for _, p := range m.pupuk {
		if p.UserID == userID {
			sum.TotalBiayaPupuk += p.Biaya
		}
	}
	return sum, nil
}

func (m *MemoryStore) PanenReport(_ context.Context, userID string, from, to time.Time) ([]PanenReportRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := make(map[string]*PanenReportRow)
	for _, p := range m.panen {
		if p.UserID != userID {
			continue
		}
		if p.Tanggal.Before(from) || p.Tanggal.After(to) {
			continue
		}
		row, ok := rows[p.KebunID]
		if !ok {
			row = &PanenReportRow{KebunID: p.KebunID}
			if k, found := m.kebun[p.KebunID]; found {
				row.KebunNama = k.Nama
			}
			rows[p.KebunID] = row
		}
		row.JumlahPanen++
		row.TotalBeratKg += p.BeratKg
		row.TotalPendapatan += p.TotalPendapatan
	}
	out := make([]PanenReportRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KebunNama < out[j].KebunNama })
	return out, nil
}
