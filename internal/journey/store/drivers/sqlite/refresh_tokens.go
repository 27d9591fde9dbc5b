package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/tabservice/journeyd/internal/journey/domain"
	"github.com/tabservice/journeyd/internal/journey/store"
)

type refreshTokenRepo struct {
	q querier
}

func (r *refreshTokenRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	now := toUnix(time.Now())
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, kind, subject_id, client_id, token_hash, scopes,
			expires_at, revoked_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.Kind), t.SubjectID, t.ClientID, t.TokenHash,
		joinList(t.Scopes), toUnix(t.ExpiresAt), toNullUnix(t.RevokedAt),
		now, now,
	)
	return mapConflict(err)
}

func (r *refreshTokenRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, kind, subject_id, client_id, token_hash, scopes,
			expires_at, revoked_at, created_at, updated_at
		FROM refresh_tokens
		WHERE token_hash = ?`, hash)

	var (
		t                               domain.RefreshToken
		kind, scopes                    string
		expiresAt, createdAt, updatedAt int64
		revokedAt                       sql.NullInt64
	)
	err := row.Scan(
		&t.ID, &kind, &t.SubjectID, &t.ClientID, &t.TokenHash, &scopes,
		&expiresAt, &revokedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	t.Kind = domain.RefreshTokenKind(kind)
	t.Scopes = splitList(scopes)
	t.ExpiresAt = fromUnix(expiresAt)
	t.RevokedAt = fromNullUnix(revokedAt)
	t.CreatedAt = fromUnix(createdAt)
	t.UpdatedAt = fromUnix(updatedAt)
	return t, nil
}

func (r *refreshTokenRepo) RevokeRefreshToken(ctx context.Context, hash string) error {
	now := toUnix(time.Now())
	res, err := r.q.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = ?, updated_at = ?
		WHERE token_hash = ? AND revoked_at IS NULL`,
		now, now, hash,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *refreshTokenRepo) DeleteExpiredRefreshTokens(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx, `
		DELETE FROM refresh_tokens WHERE expires_at < ?`,
		toUnix(time.Now()),
	)
	return err
}
