package sqlite

import (
	"context"
	"time"

	"github.com/tabservice/journeyd/internal/journey/domain"
	"github.com/tabservice/journeyd/internal/journey/store"
)

type clientRepo struct {
	q querier
}

const clientColumns = `id, client_id, name, secret_hash, redirect_uris, grant_types,
	token_endpoint_auth_method, scopes, code_challenge_method, row_version, created_at, updated_at`

func (r *clientRepo) CreateClient(ctx context.Context, c domain.Client) error {
	now := toUnix(time.Now())
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO clients (id, client_id, name, secret_hash, redirect_uris, grant_types,
			token_endpoint_auth_method, scopes, code_challenge_method, row_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		c.ID, c.ClientID, c.Name, c.SecretHash,
		joinList(c.RedirectURIs), joinList(c.GrantTypes),
		c.TokenEndpointAuthMethod, joinList(c.Scopes), c.CodeChallengeMethod,
		now, now,
	)
	return mapConflict(err)
}

func (r *clientRepo) GetClientByClientID(ctx context.Context, clientID string) (domain.Client, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+clientColumns+` FROM clients
		WHERE client_id = ? AND deleted_at IS NULL`, clientID)
	return scanClient(row)
}

func (r *clientRepo) GetClientByID(ctx context.Context, id string) (domain.Client, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+clientColumns+` FROM clients
		WHERE id = ? AND deleted_at IS NULL`, id)
	return scanClient(row)
}

func (r *clientRepo) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+clientColumns+` FROM clients
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *clientRepo) DeleteClient(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE clients SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		toUnix(time.Now()), id)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (domain.Client, error) {
	var (
		c                                domain.Client
		redirectURIs, grantTypes, scopes string
		createdAt, updatedAt             int64
	)
	err := row.Scan(
		&c.ID, &c.ClientID, &c.Name, &c.SecretHash,
		&redirectURIs, &grantTypes, &c.TokenEndpointAuthMethod,
		&scopes, &c.CodeChallengeMethod, &c.RowVersion,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Client{}, mapNotFound(err)
	}
	c.RedirectURIs = splitList(redirectURIs)
	c.GrantTypes = splitList(grantTypes)
	c.Scopes = splitList(scopes)
	c.CreatedAt = fromUnix(createdAt)
	c.UpdatedAt = fromUnix(updatedAt)
	return c, nil
}
