package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailscan/internal/utils"
)

// Email is the persisted EmailRecord: parsed headers and body, the stored
// attachments in MIME part order, and the aggregated invoice flag.
type Email struct {
	ID        string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	MessageID string `gorm:"column:message_id;uniqueIndex;type:varchar(255);not null" json:"messageId"`
	BatchID   string `gorm:"column:batch_id;type:varchar(50);index" json:"batchId"`
	Mailbox   string `gorm:"column:mailbox;type:varchar(255)" json:"mailbox"`
	ImapSeq   uint32 `gorm:"column:imap_seq" json:"imapSeq"`
	ImapUID   uint32 `gorm:"column:imap_uid;index" json:"imapUid"`

	Subject  string     `gorm:"column:subject;type:varchar(1000)" json:"subject"`
	Sender   string     `gorm:"column:sender;type:varchar(500)" json:"sender"`
	Receiver string     `gorm:"column:receiver;type:text" json:"receiver"`
	Body     string     `gorm:"column:body;type:text" json:"body"`
	SentAt   *time.Time `gorm:"column:sent_at;type:timestamp" json:"sentAt,omitempty"`

	IsInvoice   bool              `gorm:"column:is_invoice;default:false;index" json:"isInvoice"`
	Attachments []EmailAttachment `gorm:"foreignKey:EmailID;constraint:OnDelete:CASCADE" json:"attachments"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp;index" json:"createdAt"`
}

func (Email) TableName() string {
	return "emails"
}

func (e *Email) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("email", 24)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = utils.Now()
	}
	return nil
}

// AggregateInvoiceFlag sets IsInvoice to the OR of the attachment flags.
// Subject and body text do not contribute.
func (e *Email) AggregateInvoiceFlag() bool {
	e.IsInvoice = false
	for _, attachment := range e.Attachments {
		if attachment.IsInvoice {
			e.IsInvoice = true
			break
		}
	}
	return e.IsInvoice
}
