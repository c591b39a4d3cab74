package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/customeros/mailscan/internal/utils"
)

// EmailAttachment is a StoredAttachment. StorageKey is empty when the blob
// write failed, in which case Unavailable is set and Error holds the reason.
type EmailAttachment struct {
	ID          string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	EmailID     string `gorm:"column:email_id;type:varchar(50);index;not null" json:"emailId"`
	Position    int    `gorm:"column:position;not null" json:"position"`
	Filename    string `gorm:"column:filename;type:varchar(500)" json:"filename"`
	StorageKey  string `gorm:"column:storage_key;type:varchar(255);index" json:"storageKey"`
	ContentType string `gorm:"column:content_type;type:varchar(255)" json:"contentType"`
	Size        int    `gorm:"column:size;default:0" json:"size"`
	ContentHash string `gorm:"column:content_hash;type:varchar(80)" json:"contentHash"`

	ExtractedText   string         `gorm:"column:extracted_text;type:text" json:"extractedText,omitempty"`
	IsInvoice       bool           `gorm:"column:is_invoice;default:false" json:"isInvoice"`
	MatchedKeywords pq.StringArray `gorm:"column:matched_keywords;type:text[]" json:"matchedKeywords,omitempty"`

	Unavailable bool   `gorm:"column:unavailable;default:false" json:"unavailable"`
	Error       string `gorm:"column:error;type:text" json:"error,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
}

func (EmailAttachment) TableName() string {
	return "email_attachments"
}

func (a *EmailAttachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIDWithPrefix("file", 12)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = utils.Now()
	}
	return nil
}

func (a *EmailAttachment) HasExtractedText() bool {
	return a.ExtractedText != ""
}
