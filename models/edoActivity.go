package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/kitchen_admin/config"
	"github.com/mmdatafocus/kitchen_admin/edo"
	"github.com/mmdatafocus/kitchen_admin/utils"
	"gorm.io/gorm"
)

// EdoActivity is a persisted history or activity-log entry.
type EdoActivity struct {
	ID        int       `gorm:"primary_key" json:"id"`
	EntryId   string    `gorm:"size:64;not null;uniqueIndex" json:"entry_id"`
	Kind      string    `gorm:"size:16;not null;index" json:"kind"`
	DocflowId string    `gorm:"size:255;index" json:"docflow_id"`
	SessionId string    `gorm:"size:64;index" json:"session_id"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	UserName  string    `gorm:"size:100" json:"user_name"`
	LoggedAt  time.Time `gorm:"index;not null" json:"logged_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func newEdoActivity(ctx context.Context, entry edo.JournalEntry) EdoActivity {
	actor := entry.Actor
	if actor == "" {
		actor = utils.ActorFromContext(ctx)
	}
	sessionId := entry.SessionId
	if sessionId == "" {
		sessionId, _ = utils.GetSessionIdFromContext(ctx)
	}
	loggedAt := entry.Timestamp
	if loggedAt.IsZero() {
		loggedAt = time.Now()
	}
	return EdoActivity{
		EntryId:   entry.ID,
		Kind:      string(entry.Kind),
		DocflowId: entry.DocflowId,
		SessionId: sessionId,
		Message:   entry.Message,
		UserName:  actor,
		LoggedAt:  loggedAt.UTC(),
	}
}

// GormJournal persists session history and activity.
type GormJournal struct {
	DB *gorm.DB
}

func NewGormJournal(db *gorm.DB) *GormJournal {
	return &GormJournal{DB: db}
}

func (j *GormJournal) Record(ctx context.Context, entry edo.JournalEntry) error {
	if j == nil || j.DB == nil {
		return errors.New("journal has no database")
	}
	row := newEdoActivity(ctx, entry)
	err := j.DB.WithContext(ctx).Create(&row).Error
	if config.IsDuplicateKey(err) {
		return nil
	}
	return err
}

type EdoActivityFilter struct {
	DocflowId string
	Kind      string
	Limit     int
}

// ListEdoActivity returns journal entries newest first. Limit defaults to 200.
func ListEdoActivity(ctx context.Context, filter EdoActivityFilter) ([]EdoActivity, error) {
	db := config.GetDB()
	if db == nil {
		return nil, ErrJournalDisabled
	}
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	q := db.WithContext(ctx).Model(&EdoActivity{})
	if filter.DocflowId != "" {
		q = q.Where("docflow_id = ?", filter.DocflowId)
	}
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}

	var rows []EdoActivity
	if err := q.Order("logged_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
