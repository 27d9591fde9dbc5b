package sqlite

import (
	"context"
	"time"

	"github.com/tabservice/journeyd/internal/journey/domain"
)

type userRepo struct {
	q querier
}

func (r *userRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := toUnix(time.Now())
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, now, now,
	)
	return mapConflict(err)
}

func (r *userRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, username, password_hash, created_at, updated_at FROM users
		WHERE id = ? AND deleted_at IS NULL`, id)
	return scanUser(row)
}

func (r *userRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, username, password_hash, created_at, updated_at FROM users
		WHERE username = ? AND deleted_at IS NULL`, username)
	return scanUser(row)
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u                    domain.User
		createdAt, updatedAt int64
	)
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &createdAt, &updatedAt)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.CreatedAt = fromUnix(createdAt)
	u.UpdatedAt = fromUnix(updatedAt)
	return u, nil
}
