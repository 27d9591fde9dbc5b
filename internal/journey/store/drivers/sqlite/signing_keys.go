package sqlite

import (
	"context"
	"time"

	"github.com/tabservice/journeyd/internal/journey/domain"
)

type signingKeyRepo struct {
	q querier
}

const signingKeyColumns = `id, kid, algorithm, public_key_pem, private_key_encrypted,
	active, row_version, created_at, expires_at`

func (r *signingKeyRepo) CreateSigningKey(ctx context.Context, key domain.SigningKey) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO signing_keys (id, kid, algorithm, public_key_pem, private_key_encrypted,
			active, row_version, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		key.ID, key.Kid, key.Algorithm, key.PublicKeyPEM, key.PrivateKeyEncrypted,
		boolToInt(key.Active), toUnix(key.CreatedAt), toUnix(key.ExpiresAt),
	)
	return mapConflict(err)
}

func (r *signingKeyRepo) GetSigningKeyByKid(ctx context.Context, kid string) (domain.SigningKey, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+signingKeyColumns+` FROM signing_keys
		WHERE kid = ? AND deleted_at IS NULL`, kid)
	return scanSigningKey(row)
}

func (r *signingKeyRepo) GetActiveSigningKey(ctx context.Context) (domain.SigningKey, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+signingKeyColumns+` FROM signing_keys
		WHERE active = 1 AND expires_at > ? AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, toUnix(time.Now()))
	return scanSigningKey(row)
}

func (r *signingKeyRepo) ListSigningKeys(ctx context.Context) ([]domain.SigningKey, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+signingKeyColumns+` FROM signing_keys
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SigningKey
	for rows.Next() {
		k, err := scanSigningKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (r *signingKeyRepo) DeactivateSigningKeys(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE signing_keys
		SET active = 0, row_version = row_version + 1
		WHERE active = 1 AND deleted_at IS NULL`)
	return err
}

func (r *signingKeyRepo) DeleteSigningKeysExpiredBefore(ctx context.Context, cutoff time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE signing_keys
		SET deleted_at = ?
		WHERE expires_at < ? AND deleted_at IS NULL`,
		toUnix(time.Now()), toUnix(cutoff),
	)
	return err
}

func scanSigningKey(row rowScanner) (domain.SigningKey, error) {
	var (
		k                    domain.SigningKey
		active               int64
		createdAt, expiresAt int64
	)
	err := row.Scan(
		&k.ID, &k.Kid, &k.Algorithm, &k.PublicKeyPEM, &k.PrivateKeyEncrypted,
		&active, &k.RowVersion, &createdAt, &expiresAt,
	)
	if err != nil {
		return domain.SigningKey{}, mapNotFound(err)
	}
	k.Active = active != 0
	k.CreatedAt = fromUnix(createdAt)
	k.ExpiresAt = fromUnix(expiresAt)
	return k, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
