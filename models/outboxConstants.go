package models

import "errors"

// Outbox publish statuses for EdoEventRecord.PublishStatus.
// Stored as strings.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// ErrJournalDisabled is returned by queries when no database is connected.
var ErrJournalDisabled = errors.New("edo journal is disabled (no database)")
