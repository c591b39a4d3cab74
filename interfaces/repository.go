package interfaces

import (
	"context"

	"github.com/customeros/mailscan/internal/models"
)

type EmailRepository interface {
	// Create stores the email with its attachments in one transaction.
	// Returns mailscan_errors.ErrDuplicate when the MessageID already exists.
	Create(ctx context.Context, email *models.Email) error
	GetByID(ctx context.Context, id string) (*models.Email, error)
	GetByMessageID(ctx context.Context, messageID string) (*models.Email, error)
	ExistsByMessageID(ctx context.Context, messageID string) (bool, error)
	ListRecent(ctx context.Context, limit int) ([]*models.Email, error)
}

type EmailAttachmentRepository interface {
	GetByStorageKey(ctx context.Context, storageKey string) (*models.EmailAttachment, error)
	ListByEmail(ctx context.Context, emailID string) ([]*models.EmailAttachment, error)
}

type BatchRunRepository interface {
	Create(ctx context.Context, run *models.BatchRun) error
	Update(ctx context.Context, run *models.BatchRun) error
	GetLatest(ctx context.Context) (*models.BatchRun, error)
}
