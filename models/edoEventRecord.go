package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/kitchen_admin/config"
	"github.com/mmdatafocus/kitchen_admin/edo"
	"github.com/mmdatafocus/kitchen_admin/utils"
	"gorm.io/gorm"
)

// EdoEventRecord is the outbox row for one lifecycle event. The dispatcher publishes it after commit.
type EdoEventRecord struct {
	ID         int       `gorm:"primary_key;index:idx_edo_outbox_dispatch,priority:3" json:"id"`
	EventId    string    `gorm:"size:64;not null;uniqueIndex" json:"event_id"`
	DocflowId  string    `gorm:"size:255;not null;index" json:"docflow_id"`
	EventType  string    `gorm:"size:32;not null" json:"event_type"`
	Status     string    `gorm:"size:32;not null" json:"status"`
	Demo       bool      `gorm:"not null;default:false" json:"demo"`
	ReceiptId  string    `gorm:"size:255" json:"receipt_id"`
	Reason     string    `gorm:"type:text" json:"reason"`
	Actor      string    `gorm:"size:100" json:"actor"`
	OccurredAt time.Time `gorm:"index;not null" json:"occurred_at"`

	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_edo_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_edo_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToEdoEventMessage(record EdoEventRecord) config.EdoEventMessage {
	return config.EdoEventMessage{
		ID:            record.ID,
		DocflowId:     record.DocflowId,
		EventType:     record.EventType,
		Status:        record.Status,
		Demo:          record.Demo,
		ReceiptId:     record.ReceiptId,
		Reason:        record.Reason,
		Actor:         record.Actor,
		OccurredAt:    record.OccurredAt,
		CorrelationId: record.CorrelationId,
	}
}

func newEdoEventRecord(ctx context.Context, ev edo.Event) EdoEventRecord {
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	actor := ev.Actor
	if strings.TrimSpace(actor) == "" {
		actor = utils.ActorFromContext(ctx)
	}
	occurredAt := ev.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	return EdoEventRecord{
		EventId:       ev.ID,
		DocflowId:     ev.DocflowId,
		EventType:     string(ev.Type),
		Status:        string(ev.Status),
		Demo:          ev.Demo,
		ReceiptId:     ev.ReceiptId,
		Reason:        ev.Reason,
		Actor:         actor,
		OccurredAt:    occurredAt.UTC(),
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationId,
	}
}

// GormEventSink writes lifecycle events into the outbox table.
type GormEventSink struct {
	DB *gorm.DB
}

func NewGormEventSink(db *gorm.DB) *GormEventSink {
	return &GormEventSink{DB: db}
}

func (s *GormEventSink) Emit(ctx context.Context, ev edo.Event) error {
	if s == nil || s.DB == nil {
		return errors.New("event sink has no database")
	}
	record := newEdoEventRecord(ctx, ev)
	err := s.DB.WithContext(ctx).Create(&record).Error
	if config.IsDuplicateKey(err) {
		// same event id already queued
		return nil
	}
	return err
}

// ListEdoEvents returns the outbox rows of one document, oldest first.
func ListEdoEvents(ctx context.Context, docflowId string) ([]EdoEventRecord, error) {
	db := config.GetDB()
	if db == nil {
		return nil, ErrJournalDisabled
	}
	var records []EdoEventRecord
	err := db.WithContext(ctx).
		Where("docflow_id = ?", docflowId).
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
