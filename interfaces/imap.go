package interfaces

import (
	"context"

	"github.com/customeros/mailscan/internal/models"
)

// MailboxFetcher yields raw messages from one mailbox over a single
// connection. Returning an error from yield stops the fetch early and the
// connection is still closed.
type MailboxFetcher interface {
	Fetch(ctx context.Context, mailbox string, window models.FetchWindow, yield func(models.RawMessage) error) error
}
