package sqlite

import (
	"context"
	"time"

	"github.com/tabservice/journeyd/internal/journey/domain"
)

type serverRepo struct {
	q querier
}

func (r *serverRepo) CreateServer(ctx context.Context, s domain.Server) error {
	now := toUnix(time.Now())
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO servers (id, provided_id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.ProvidedID, s.Name, s.Description, now, now,
	)
	if err := mapConflict(err); err != nil {
		return err
	}
	for _, sc := range s.Scopes {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO server_scopes (server_id, scope_id, description)
			VALUES (?, ?, ?)`,
			s.ID, sc.ScopeID, sc.Description,
		)
		if err := mapConflict(err); err != nil {
			return err
		}
	}
	return nil
}

func (r *serverRepo) GetServerByID(ctx context.Context, id string) (domain.Server, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, provided_id, name, description, created_at, updated_at FROM servers
		WHERE id = ? AND deleted_at IS NULL`, id)
	return r.scanServerWithScopes(ctx, row)
}

func (r *serverRepo) GetServerByProvidedID(ctx context.Context, providedID string) (domain.Server, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, provided_id, name, description, created_at, updated_at FROM servers
		WHERE provided_id = ? AND deleted_at IS NULL`, providedID)
	return r.scanServerWithScopes(ctx, row)
}

func (r *serverRepo) ListServers(ctx context.Context) ([]domain.Server, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, provided_id, name, description, created_at, updated_at FROM servers
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Server
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		scopes, err := r.listScopes(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Scopes = scopes
	}
	return out, nil
}

func (r *serverRepo) scanServerWithScopes(ctx context.Context, row rowScanner) (domain.Server, error) {
	s, err := scanServer(row)
	if err != nil {
		return domain.Server{}, err
	}
	s.Scopes, err = r.listScopes(ctx, s.ID)
	if err != nil {
		return domain.Server{}, err
	}
	return s, nil
}

func (r *serverRepo) listScopes(ctx context.Context, serverID string) ([]domain.ServerScope, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT scope_id, description FROM server_scopes
		WHERE server_id = ?
		ORDER BY scope_id ASC`, serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ServerScope
	for rows.Next() {
		var sc domain.ServerScope
		if err := rows.Scan(&sc.ScopeID, &sc.Description); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func scanServer(row rowScanner) (domain.Server, error) {
	var (
		s                    domain.Server
		createdAt, updatedAt int64
	)
	err := row.Scan(&s.ID, &s.ProvidedID, &s.Name, &s.Description, &createdAt, &updatedAt)
	if err != nil {
		return domain.Server{}, mapNotFound(err)
	}
	s.CreatedAt = fromUnix(createdAt)
	s.UpdatedAt = fromUnix(updatedAt)
	return s, nil
}

type connectionRepo struct {
	q querier
}

const connectionColumns = `id, server_id, provided_id, friendly_name, client_id,
	client_secret, authorize_url, token_url, created_at, updated_at`

func (r *connectionRepo) CreateConnection(ctx context.Context, c domain.Connection) error {
	now := toUnix(time.Now())
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO connections (id, server_id, provided_id, friendly_name, client_id,
			client_secret, authorize_url, token_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ServerID, c.ProvidedID, c.FriendlyName, c.ClientID,
		c.ClientSecret, c.AuthorizeURL, c.TokenURL, now, now,
	)
	return mapConflict(err)
}

func (r *connectionRepo) GetConnectionByID(ctx context.Context, id string) (domain.Connection, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+connectionColumns+` FROM connections
		WHERE id = ? AND deleted_at IS NULL`, id)
	return scanConnection(row)
}

func (r *connectionRepo) GetConnectionByProvidedID(ctx context.Context, serverID, providedID string) (domain.Connection, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+connectionColumns+` FROM connections
		WHERE server_id = ? AND provided_id = ? AND deleted_at IS NULL`,
		serverID, providedID)
	return scanConnection(row)
}

func (r *connectionRepo) ListConnectionsByServer(ctx context.Context, serverID string) ([]domain.Connection, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+connectionColumns+` FROM connections
		WHERE server_id = ? AND deleted_at IS NULL
		ORDER BY created_at ASC, id ASC`, serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanConnection(row rowScanner) (domain.Connection, error) {
	var (
		c                    domain.Connection
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&c.ID, &c.ServerID, &c.ProvidedID, &c.FriendlyName, &c.ClientID,
		&c.ClientSecret, &c.AuthorizeURL, &c.TokenURL,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Connection{}, mapNotFound(err)
	}
	c.CreatedAt = fromUnix(createdAt)
	c.UpdatedAt = fromUnix(updatedAt)
	return c, nil
}

type scopeMappingRepo struct {
	q querier
}

func (r *scopeMappingRepo) CreateScopeMapping(ctx context.Context, m domain.ScopeMapping) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO scope_mappings (id, server_id, connection_id, scope_id, downstream_scope, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.ServerID, m.ConnectionID, m.ScopeID, m.DownstreamScope,
		toUnix(time.Now()),
	)
	return mapConflict(err)
}

func (r *scopeMappingRepo) ListMappingsByConnection(ctx context.Context, connectionID string) ([]domain.ScopeMapping, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, server_id, connection_id, scope_id, downstream_scope, created_at
		FROM scope_mappings
		WHERE connection_id = ? AND deleted_at IS NULL
		ORDER BY scope_id ASC, id ASC`, connectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ScopeMapping
	for rows.Next() {
		var (
			m         domain.ScopeMapping
			createdAt int64
		)
		err := rows.Scan(&m.ID, &m.ServerID, &m.ConnectionID, &m.ScopeID, &m.DownstreamScope, &createdAt)
		if err != nil {
			return nil, err
		}
		m.CreatedAt = fromUnix(createdAt)
		out = append(out, m)
	}
	return out, rows.Err()
}
