package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/tabservice/journeyd/internal/journey/domain"
)

type mcpFlowRepo struct {
	q querier
}

const mcpFlowColumns = `id, journey_id, server_id, client_id, status, code_challenge,
	code_challenge_method, state, redirect_uri, scopes, resource, code_hash,
	code_expires_at, code_used_at, row_version, created_at, updated_at`

func (r *mcpFlowRepo) CreateMcpFlow(ctx context.Context, f domain.McpFlow) error {
	now := toUnix(time.Now())
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO mcp_flows (id, journey_id, server_id, client_id, status, code_challenge,
			code_challenge_method, state, redirect_uri, scopes, resource, code_hash,
			code_expires_at, code_used_at, row_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		f.ID, f.JourneyID, f.ServerID, f.ClientID, string(f.Status),
		f.CodeChallenge, f.CodeChallengeMethod, f.State, f.RedirectURI,
		joinList(f.Scopes), f.Resource, f.CodeHash,
		toNullUnix(f.CodeExpiresAt), toNullUnix(f.CodeUsedAt),
		now, now,
	)
	return mapConflict(err)
}

func (r *mcpFlowRepo) GetMcpFlowByID(ctx context.Context, id string) (domain.McpFlow, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+mcpFlowColumns+` FROM mcp_flows
		WHERE id = ? AND deleted_at IS NULL`, id)
	return scanMcpFlow(row)
}

func (r *mcpFlowRepo) GetMcpFlowByJourney(ctx context.Context, journeyID string) (domain.McpFlow, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+mcpFlowColumns+` FROM mcp_flows
		WHERE journey_id = ? AND deleted_at IS NULL`, journeyID)
	return scanMcpFlow(row)
}

func (r *mcpFlowRepo) GetMcpFlowByClientAndServer(ctx context.Context, clientID, serverID string) (domain.McpFlow, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+mcpFlowColumns+` FROM mcp_flows
		WHERE client_id = ? AND server_id = ? AND deleted_at IS NULL`,
		clientID, serverID)
	return scanMcpFlow(row)
}

func (r *mcpFlowRepo) GetMcpFlowByCodeHash(ctx context.Context, codeHash string) (domain.McpFlow, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+mcpFlowColumns+` FROM mcp_flows
		WHERE code_hash = ? AND code_hash != '' AND deleted_at IS NULL`,
		codeHash)
	return scanMcpFlow(row)
}

func (r *mcpFlowRepo) UpdateMcpFlowAuthRequest(ctx context.Context, f domain.McpFlow) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE mcp_flows
		SET status = ?, code_challenge = ?, code_challenge_method = ?, state = ?,
			redirect_uri = ?, scopes = ?, resource = ?,
			row_version = row_version + 1, updated_at = ?
		WHERE id = ? AND row_version = ? AND deleted_at IS NULL`,
		string(f.Status), f.CodeChallenge, f.CodeChallengeMethod, f.State,
		f.RedirectURI, joinList(f.Scopes), f.Resource,
		toUnix(time.Now()), f.ID, f.RowVersion,
	)
	return checkAffected(res, err)
}

func (r *mcpFlowRepo) UpdateMcpFlowStatus(ctx context.Context, id string, status domain.McpFlowStatus, rowVersion int64) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE mcp_flows
		SET status = ?, row_version = row_version + 1, updated_at = ?
		WHERE id = ? AND row_version = ? AND deleted_at IS NULL`,
		string(status), toUnix(time.Now()), id, rowVersion,
	)
	return checkAffected(res, err)
}

func (r *mcpFlowRepo) IssueMcpFlowCode(ctx context.Context, id, codeHash string, expiresAt time.Time, rowVersion int64) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE mcp_flows
		SET status = ?, code_hash = ?, code_expires_at = ?, code_used_at = NULL,
			row_version = row_version + 1, updated_at = ?
		WHERE id = ? AND row_version = ? AND deleted_at IS NULL`,
		string(domain.FlowAuthCodeIssued), codeHash, toUnix(expiresAt),
		toUnix(time.Now()), id, rowVersion,
	)
	return checkAffected(res, err)
}

func (r *mcpFlowRepo) MarkMcpFlowCodeUsed(ctx context.Context, id string, rowVersion int64) error {
	now := toUnix(time.Now())
	res, err := r.q.ExecContext(ctx, `
		UPDATE mcp_flows
		SET status = ?, code_used_at = ?, row_version = row_version + 1, updated_at = ?
		WHERE id = ? AND row_version = ? AND code_used_at IS NULL AND deleted_at IS NULL`,
		string(domain.FlowAuthCodeExchanged), now, now, id, rowVersion,
	)
	return checkAffected(res, err)
}

func (r *mcpFlowRepo) DeleteExpiredMcpFlowCodes(ctx context.Context) error {
	now := toUnix(time.Now())
	_, err := r.q.ExecContext(ctx, `
		UPDATE mcp_flows
		SET code_hash = '', code_expires_at = NULL, updated_at = ?
		WHERE code_hash != '' AND code_used_at IS NULL
			AND code_expires_at IS NOT NULL AND code_expires_at < ?`,
		now, now,
	)
	return err
}

func scanMcpFlow(row rowScanner) (domain.McpFlow, error) {
	var (
		f                         domain.McpFlow
		status, scopes            string
		codeExpiresAt, codeUsedAt sql.NullInt64
		createdAt, updatedAt      int64
	)
	err := row.Scan(
		&f.ID, &f.JourneyID, &f.ServerID, &f.ClientID, &status,
		&f.CodeChallenge, &f.CodeChallengeMethod, &f.State, &f.RedirectURI,
		&scopes, &f.Resource, &f.CodeHash,
		&codeExpiresAt, &codeUsedAt, &f.RowVersion,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return domain.McpFlow{}, mapNotFound(err)
	}
	f.Status = domain.McpFlowStatus(status)
	f.Scopes = splitList(scopes)
	f.CodeExpiresAt = fromNullUnix(codeExpiresAt)
	f.CodeUsedAt = fromNullUnix(codeUsedAt)
	f.CreatedAt = fromUnix(createdAt)
	f.UpdatedAt = fromUnix(updatedAt)
	return f, nil
}
