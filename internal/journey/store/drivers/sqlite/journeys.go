package sqlite

import (
	"context"
	"time"

	"github.com/tabservice/journeyd/internal/journey/domain"
)

type journeyRepo struct {
	q querier
}

func (r *journeyRepo) CreateJourney(ctx context.Context, j domain.Journey) error {
	now := toUnix(time.Now())
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO journeys (id, status, row_version, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?)`,
		j.ID, string(j.Status), now, now,
	)
	return mapConflict(err)
}

func (r *journeyRepo) GetJourneyByID(ctx context.Context, id string) (domain.Journey, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, status, row_version, created_at, updated_at FROM journeys
		WHERE id = ? AND deleted_at IS NULL`, id)
	return scanJourney(row)
}

func (r *journeyRepo) ListJourneysByServer(ctx context.Context, serverID string) ([]domain.Journey, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT j.id, j.status, j.row_version, j.created_at, j.updated_at
		FROM journeys j
		JOIN mcp_flows f ON f.journey_id = j.id AND f.deleted_at IS NULL
		WHERE f.server_id = ? AND j.deleted_at IS NULL
		ORDER BY j.created_at DESC, j.id DESC`, serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Journey
	for rows.Next() {
		j, err := scanJourney(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *journeyRepo) UpdateJourneyStatus(ctx context.Context, id string, status domain.JourneyStatus, rowVersion int64) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE journeys
		SET status = ?, row_version = row_version + 1, updated_at = ?
		WHERE id = ? AND row_version = ? AND deleted_at IS NULL`,
		string(status), toUnix(time.Now()), id, rowVersion,
	)
	return checkAffected(res, err)
}

func scanJourney(row rowScanner) (domain.Journey, error) {
	var (
		j                    domain.Journey
		status               string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&j.ID, &status, &j.RowVersion, &createdAt, &updatedAt); err != nil {
		return domain.Journey{}, mapNotFound(err)
	}
	j.Status = domain.JourneyStatus(status)
	j.CreatedAt = fromUnix(createdAt)
	j.UpdatedAt = fromUnix(updatedAt)
	return j, nil
}
