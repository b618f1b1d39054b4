package models

import (
	"context"

	"github.com/mmdatafocus/kitchen_admin/config"
	"gorm.io/gorm"
)

// ReprocessEdoEvents puts a document's failed or dead events back in the dispatch queue.
func ReprocessEdoEvents(ctx context.Context, docflowId string) (*EdoEventStatus, error) {
	db := config.GetDB()
	if db == nil {
		return nil, ErrJournalDisabled
	}

	res := db.WithContext(ctx).
		Model(&EdoEventRecord{}).
		Where("docflow_id = ? AND publish_status IN ?", docflowId, []string{OutboxPublishStatusFailed, OutboxPublishStatusDead}).
		Updates(map[string]interface{}{
			"locked_at":          nil,
			"locked_by":          nil,
			"publish_status":     OutboxPublishStatusPending,
			"publish_attempts":   0,
			"next_attempt_at":    nil,
			"last_publish_error": nil,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	return GetEdoEventStatus(ctx, docflowId)
}
