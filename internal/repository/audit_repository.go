package repository

import (
	"context"
	"database/sql"
	"encoding/json"
)

// AuditRepo appends rows to the audit_logs table. The table is
// append-only; there are no update or delete paths.
type AuditRepo struct{ DB *sql.DB }

func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{DB: db} }

// CreateTx appends one audit row inside the transaction of the
// mutation it records, so a rolled back mutation leaves no trace.
// details is marshalled to JSON.
func (r *AuditRepo) CreateTx(ctx context.Context, tx *sql.Tx, userID uint64, action, entity string, entityID uint64, details any) error {
	body, err := json.Marshal(details)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO audit_logs (user_id, action, entity, entity_id, details) VALUES (?,?,?,?,?)",
		userID, action, entity, entityID, body)
	return err
}

// RatingAuditDetails is the snapshot stored for rating mutations.
// OldScore is nil on first submission.
type RatingAuditDetails struct {
	StoreID  uint64  `json:"store_id"`
	Score    int     `json:"score"`
	Comment  *string `json:"comment,omitempty"`
	OldScore *int    `json:"old_score,omitempty"`
}
