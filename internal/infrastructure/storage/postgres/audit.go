package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"bread/internal/core/id"
	"bread/internal/domain/audit"
)

var _ audit.Sink = (*AuditStore)(nil)

// auditRow is one row of sys_audit. Changes are stored either as JSON or,
// above the codec threshold, zstd-compressed.
type auditRow struct {
	ID                id.ID             `db:"id"`
	Model             string            `db:"model"`
	RecordID          id.ID             `db:"record_id"`
	Action            string            `db:"action"`
	UserID            string            `db:"user_id"`
	UserEmail         string            `db:"user_email"`
	Changes           []byte            `db:"changes"`
	ChangesCompressed []byte            `db:"changes_compressed"`
	CompressionAlgo   audit.Compression `db:"compression_algo"`
	CreatedAt         time.Time         `db:"created_at"`
}

// AuditStore writes audit entries to the sys_audit table.
type AuditStore struct {
	txManager *TxManager
	codec     *audit.Codec
}

// NewAuditStore creates an audit store.
func NewAuditStore(txManager *TxManager, codec *audit.Codec) *AuditStore {
	return &AuditStore{txManager: txManager, codec: codec}
}

// Write inserts e.
func (s *AuditStore) Write(ctx context.Context, e audit.Entry) error {
	row := auditRow{
		ID:        e.ID,
		Model:     e.Model,
		RecordID:  e.RecordID,
		Action:    string(e.Action),
		UserID:    e.UserID,
		UserEmail: e.UserEmail,
		CreatedAt: e.CreatedAt,
	}
	stored, algo := s.codec.Encode(e.Changes)
	row.CompressionAlgo = algo
	if algo == audit.CompressionNone {
		row.Changes = stored
	} else {
		row.ChangesCompressed = stored
	}

	const sql = `
		INSERT INTO sys_audit (
			id, model, record_id, action, user_id, user_email,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, sql,
		row.ID, row.Model, row.RecordID, row.Action, row.UserID, row.UserEmail,
		json.RawMessage(row.Changes), row.ChangesCompressed, row.CompressionAlgo, row.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History returns the latest entries of one record, newest first.
func (s *AuditStore) History(ctx context.Context, model string, recordID id.ID, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	const sql = `
		SELECT id, model, record_id, action, user_id, user_email,
			   changes, changes_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE model = $1 AND record_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	var rows []auditRow
	if err := pgxscan.Select(ctx, s.txManager.GetQuerier(ctx), &rows, sql, model, recordID, limit); err != nil {
		return nil, fmt.Errorf("query audit history: %w", err)
	}

	entries := make([]audit.Entry, 0, len(rows))
	for _, row := range rows {
		stored := row.Changes
		if row.CompressionAlgo == audit.CompressionZstd {
			stored = row.ChangesCompressed
		}
		raw, err := s.codec.Decode(stored, row.CompressionAlgo)
		if err != nil {
			return nil, err
		}
		entries = append(entries, audit.Entry{
			ID:          row.ID,
			Model:       row.Model,
			RecordID:    row.RecordID,
			Action:      audit.Action(row.Action),
			UserID:      row.UserID,
			UserEmail:   row.UserEmail,
			Changes:     raw,
			Compression: row.CompressionAlgo,
			CreatedAt:   row.CreatedAt,
		})
	}
	return entries, nil
}
