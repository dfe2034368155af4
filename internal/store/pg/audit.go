package pg

import (
	"context"

	"esawitku.app/internal/audit"
)

// AuditStore adapts Store to audit.Store. Rows are append-only; there
// is deliberately no update or delete path.
type AuditStore struct{ s *Store }

func (s *Store) Audit() *AuditStore { return &AuditStore{s: s} }

var _ audit.Store = (*AuditStore)(nil)

func (a *AuditStore) Append(ctx context.Context, e *audit.Entry) error {
	var oldValues, newValues any
	if len(e.OldValues) > 0 {
		oldValues = []byte(e.OldValues)
	}
	if len(e.NewValues) > 0 {
		newValues = []byte(e.NewValues)
	}
	_, err := a.s.db.ExecContext(ctx, `
		insert into audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, e.ID, nullIfEmpty(e.UserID), e.Action, e.Resource, nullIfEmpty(e.ResourceID),
		oldValues, newValues, nullIfEmpty(e.IPAddress), nullIfEmpty(e.UserAgent), e.CreatedAt)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
