package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"esawitku.app/internal/auth"
)

// UserStore adapts Store to auth.UserStore.
type UserStore struct{ s *Store }

func (s *Store) Users() *UserStore { return &UserStore{s: s} }

var _ auth.UserStore = (*UserStore)(nil)

func (u *UserStore) Create(ctx context.Context, user *auth.User) error {
	_, err := u.s.db.ExecContext(ctx, `
		insert into users (id, subject, email, nama, password_hash, role, status, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, user.ID, user.Subject, strings.ToLower(user.Email), user.Nama, user.PasswordHash,
		string(user.Role), user.Status, user.CreatedAt, user.UpdatedAt)
	if isUniqueViolation(err) {
		return auth.ErrConflict
	}
	return err
}

func (u *UserStore) FindByID(ctx context.Context, id string) (*auth.User, error) {
	return u.findOne(ctx, `where id=$1`, id)
}

func (u *UserStore) FindBySubject(ctx context.Context, subject string) (*auth.User, error) {
	return u.findOne(ctx, `where subject=$1`, subject)
}

func (u *UserStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return u.findOne(ctx, `where email=$1`, strings.ToLower(email))
}

func (u *UserStore) findOne(ctx context.Context, where string, arg any) (*auth.User, error) {
	var (
		user auth.User
		role string
	)
	err := u.s.db.QueryRowContext(ctx, `
		select id, subject, email, nama, password_hash, role, status, created_at, updated_at
		from users `+where, arg).Scan(
		&user.ID, &user.Subject, &user.Email, &user.Nama, &user.PasswordHash,
		&role, &user.Status, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	user.Role = auth.Role(role)
	return &user, nil
}

func (u *UserStore) List(ctx context.Context) ([]auth.User, error) {
	rows, err := u.s.db.QueryContext(ctx, `
		select id, subject, email, nama, password_hash, role, status, created_at, updated_at
		from users order by created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]auth.User, 0)
	for rows.Next() {
		var (
			user auth.User
			role string
		)
		if err := rows.Scan(&user.ID, &user.Subject, &user.Email, &user.Nama, &user.PasswordHash,
			&role, &user.Status, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		user.Role = auth.Role(role)
		result = append(result, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (u *UserStore) UpdateStatus(ctx context.Context, id, status string) error {
	return u.updateField(ctx, `update users set status=$1, updated_at=now() where id=$2`, status, id)
}

func (u *UserStore) UpdateRole(ctx context.Context, id string, role auth.Role) error {
	return u.updateField(ctx, `update users set role=$1, updated_at=now() where id=$2`, string(role), id)
}

func (u *UserStore) updateField(ctx context.Context, query string, args ...any) error {
	res, err := u.s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// APIKeyStore adapts Store to auth.APIKeyStore.
type APIKeyStore struct{ s *Store }

func (s *Store) APIKeys() *APIKeyStore { return &APIKeyStore{s: s} }

var _ auth.APIKeyStore = (*APIKeyStore)(nil)

func (a *APIKeyStore) Create(ctx context.Context, key *auth.APIKey) error {
	_, err := a.s.db.ExecContext(ctx, `
		insert into api_keys (id, user_id, nama, key_hash, created_at)
		values ($1,$2,$3,$4,$5)
	`, key.ID, key.UserID, key.Nama, key.KeyHash, key.CreatedAt)
	if isUniqueViolation(err) {
		return auth.ErrConflict
	}
	return err
}

func (a *APIKeyStore) FindByHash(ctx context.Context, keyHash string) (*auth.APIKey, error) {
	var key auth.APIKey
	err := a.s.db.QueryRowContext(ctx, `
		select id, user_id, nama, key_hash, created_at
		from api_keys where key_hash=$1
	`, keyHash).Scan(&key.ID, &key.UserID, &key.Nama, &key.KeyHash, &key.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (a *APIKeyStore) ListByUser(ctx context.Context, userID string) ([]auth.APIKey, error) {
	rows, err := a.s.db.QueryContext(ctx, `
		select id, user_id, nama, key_hash, created_at
		from api_keys where user_id=$1
		order by created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.APIKey
	for rows.Next() {
		var key auth.APIKey
		if err := rows.Scan(&key.ID, &key.UserID, &key.Nama, &key.KeyHash, &key.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
