package model

// Constants for the append-only `audit_logs` table.  One row is
// written per mutating operation, inside the same transaction as the
// mutation it records.

// Audit actions recorded in audit_logs.action.
const (
	AuditActionCreate = "CREATE"
	AuditActionUpdate = "UPDATE"
)

// Audited entity kinds recorded in audit_logs.entity.
const (
	AuditEntityUser   = "USER"
	AuditEntityStore  = "STORE"
	AuditEntityRating = "RATING"
)
