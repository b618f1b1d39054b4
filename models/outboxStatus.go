package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/kitchen_admin/config"
)

// EdoEventStatus is a UI-facing summary of a document's outbox rows.
type EdoEventStatus struct {
	DocflowId        string     `json:"docflow_id"`
	Total            int        `json:"total"`
	Pending          int        `json:"pending"`
	Sent             int        `json:"sent"`
	Failed           int        `json:"failed"`
	Dead             int        `json:"dead"`
	LatestEventType  string     `json:"latest_event_type"`
	LatestStatus     string     `json:"latest_publish_status"`
	LastPublishError *string    `json:"last_publish_error"`
	NextAttemptAt    *time.Time `json:"next_attempt_at"`
	PublishedAt      *time.Time `json:"published_at"`
}

// SummarizeEdoEvents folds outbox rows (oldest first) into a status view.
func SummarizeEdoEvents(docflowId string, records []EdoEventRecord) *EdoEventStatus {
	status := &EdoEventStatus{DocflowId: docflowId, Total: len(records)}
	for _, r := range records {
		switch r.PublishStatus {
		case OutboxPublishStatusSent:
			status.Sent++
		case OutboxPublishStatusFailed:
			status.Failed++
		case OutboxPublishStatusDead:
			status.Dead++
		default:
			status.Pending++
		}
	}
	if n := len(records); n > 0 {
		latest := records[n-1]
		status.LatestEventType = latest.EventType
		status.LatestStatus = latest.PublishStatus
		status.LastPublishError = latest.LastPublishError
		status.NextAttemptAt = latest.NextAttemptAt
		status.PublishedAt = latest.PublishedAt
	}
	return status
}

func GetEdoEventStatus(ctx context.Context, docflowId string) (*EdoEventStatus, error) {
	if config.GetDB() == nil {
		return nil, ErrJournalDisabled
	}
	records, err := ListEdoEvents(ctx, docflowId)
	if err != nil {
		return nil, err
	}
	return SummarizeEdoEvents(docflowId, records), nil
}
