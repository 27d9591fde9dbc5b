package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/tabservice/journeyd/internal/journey/domain"
)

type connectionFlowRepo struct {
	q querier
}

const connectionFlowColumns = `id, journey_id, connection_id, status, state,
	access_token, refresh_token, token_expires_at, row_version, created_at, updated_at`

func (r *connectionFlowRepo) CreateConnectionFlow(ctx context.Context, f domain.ConnectionFlow) error {
	now := toUnix(time.Now())
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO connection_flows (id, journey_id, connection_id, status, state,
			access_token, refresh_token, token_expires_at, row_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		f.ID, f.JourneyID, f.ConnectionID, string(f.Status), f.State,
		f.AccessToken, f.RefreshToken, toNullUnix(f.TokenExpiresAt),
		now, now,
	)
	return mapConflict(err)
}

func (r *connectionFlowRepo) GetConnectionFlowByID(ctx context.Context, id string) (domain.ConnectionFlow, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+connectionFlowColumns+` FROM connection_flows
		WHERE id = ? AND deleted_at IS NULL`, id)
	return scanConnectionFlow(row)
}

func (r *connectionFlowRepo) GetConnectionFlowByState(ctx context.Context, state string) (domain.ConnectionFlow, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+connectionFlowColumns+` FROM connection_flows
		WHERE state = ? AND state != '' AND deleted_at IS NULL`, state)
	return scanConnectionFlow(row)
}

func (r *connectionFlowRepo) ListConnectionFlowsByJourney(ctx context.Context, journeyID string) ([]domain.ConnectionFlow, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+connectionFlowColumns+` FROM connection_flows
		WHERE journey_id = ? AND deleted_at IS NULL
		ORDER BY created_at ASC, id ASC`, journeyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ConnectionFlow
	for rows.Next() {
		f, err := scanConnectionFlow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *connectionFlowRepo) GetAuthorizedFlowByConnection(ctx context.Context, connectionID string) (domain.ConnectionFlow, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+connectionFlowColumns+` FROM connection_flows
		WHERE connection_id = ? AND status = ? AND deleted_at IS NULL
		ORDER BY updated_at DESC, id DESC
		LIMIT 1`, connectionID, string(domain.ConnectionAuthorized))
	return scanConnectionFlow(row)
}

func (r *connectionFlowRepo) UpdateConnectionFlowState(ctx context.Context, id, state string, rowVersion int64) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE connection_flows
		SET state = ?, row_version = row_version + 1, updated_at = ?
		WHERE id = ? AND row_version = ? AND deleted_at IS NULL`,
		state, toUnix(time.Now()), id, rowVersion,
	)
	return checkAffected(res, err)
}

func (r *connectionFlowRepo) UpdateConnectionFlowTokens(ctx context.Context, f domain.ConnectionFlow) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE connection_flows
		SET status = ?, access_token = ?, refresh_token = ?, token_expires_at = ?,
			row_version = row_version + 1, updated_at = ?
		WHERE id = ? AND row_version = ? AND deleted_at IS NULL`,
		string(f.Status), f.AccessToken, f.RefreshToken, toNullUnix(f.TokenExpiresAt),
		toUnix(time.Now()), f.ID, f.RowVersion,
	)
	return checkAffected(res, err)
}

func (r *connectionFlowRepo) UpdateConnectionFlowStatus(ctx context.Context, id string, status domain.ConnectionFlowStatus, rowVersion int64) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE connection_flows
		SET status = ?, row_version = row_version + 1, updated_at = ?
		WHERE id = ? AND row_version = ? AND deleted_at IS NULL`,
		string(status), toUnix(time.Now()), id, rowVersion,
	)
	return checkAffected(res, err)
}

func scanConnectionFlow(row rowScanner) (domain.ConnectionFlow, error) {
	var (
		f                    domain.ConnectionFlow
		status               string
		tokenExpiresAt       sql.NullInt64
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&f.ID, &f.JourneyID, &f.ConnectionID, &status, &f.State,
		&f.AccessToken, &f.RefreshToken, &tokenExpiresAt, &f.RowVersion,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return domain.ConnectionFlow{}, mapNotFound(err)
	}
	f.Status = domain.ConnectionFlowStatus(status)
	f.TokenExpiresAt = fromNullUnix(tokenExpiresAt)
	f.CreatedAt = fromUnix(createdAt)
	f.UpdatedAt = fromUnix(updatedAt)
	return f, nil
}
