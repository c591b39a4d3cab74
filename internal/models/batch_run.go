package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailscan/internal/enum"
	"github.com/customeros/mailscan/internal/utils"
)

// BatchRun records one pipeline invocation so a run can be inspected after
// the fact.
type BatchRun struct {
	ID         string            `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	Trigger    enum.BatchTrigger `gorm:"column:trigger;type:varchar(20)" json:"trigger"`
	Mailbox    string            `gorm:"column:mailbox;type:varchar(255)" json:"mailbox"`
	State      enum.BatchState   `gorm:"column:state;type:varchar(30);index" json:"state"`
	Fetched    int               `gorm:"column:fetched;default:0" json:"fetched"`
	Succeeded  int               `gorm:"column:succeeded;default:0" json:"succeeded"`
	Duplicates int               `gorm:"column:duplicates;default:0" json:"duplicates"`
	Skipped    int               `gorm:"column:skipped;default:0" json:"skipped"`
	Error      string            `gorm:"column:error;type:text" json:"error,omitempty"`
	StartedAt  time.Time         `gorm:"column:started_at;type:timestamp;index" json:"startedAt"`
	FinishedAt *time.Time        `gorm:"column:finished_at;type:timestamp" json:"finishedAt,omitempty"`
}

func (BatchRun) TableName() string {
	return "batch_runs"
}

func (b *BatchRun) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = utils.GenerateNanoIDWithPrefix("batch", 16)
	}
	if b.StartedAt.IsZero() {
		b.StartedAt = utils.Now()
	}
	return nil
}
