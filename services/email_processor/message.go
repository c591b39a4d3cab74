package email_processor

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailscan/dto"
	mailscan_errors "github.com/customeros/mailscan/errors"
	"github.com/customeros/mailscan/internal/models"
	"github.com/customeros/mailscan/internal/tracing"
	"github.com/customeros/mailscan/internal/utils"
)

type messageStatus int

const (
	statusSkipped messageStatus = iota
	statusSucceeded
	statusDuplicate
)

func (s messageStatus) String() string {
	switch s {
	case statusSucceeded:
		return "succeeded"
	case statusDuplicate:
		return "duplicate"
	default:
		return "skipped"
	}
}

type messageOutcome struct {
	seqNum    uint32
	messageID string
	subject   string
	status    messageStatus
	reason    string
	email     *models.Email
}

func (p *emailProcessor) processMessage(ctx context.Context, raw models.RawMessage) messageOutcome {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailProcessor.processMessage")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("seq", raw.SeqNum)

	parsed := p.Parser.Parse(raw)
	outcome := messageOutcome{
		seqNum:    raw.SeqNum,
		messageID: parsed.MessageID,
		subject:   parsed.Subject,
	}
	span.SetTag("message-id", parsed.MessageID)

	exists, err := p.Emails.ExistsByMessageID(ctx, parsed.MessageID)
	if err != nil {
		tracing.TraceErr(span, err)
		return outcome.skip(p, mailscan_errors.NewPersistenceError("EmailRepository.ExistsByMessageID", err))
	}
	if exists {
		p.log.Debugf("Message %s already stored, skipping", parsed.MessageID)
		outcome.status = statusDuplicate
		return outcome
	}

	email := &models.Email{
		ID:          utils.GenerateNanoIDWithPrefix("email", 24),
		MessageID:   parsed.MessageID,
		BatchID:     utils.GetBatchIDFromContext(ctx),
		Mailbox:     p.cfg.Mailbox,
		ImapSeq:     raw.SeqNum,
		ImapUID:     raw.UID,
		Subject:     parsed.Subject,
		Sender:      parsed.Sender,
		Receiver:    parsed.Receiver,
		Body:        parsed.Body,
		SentAt:      parsed.SentAt,
		Attachments: p.processAttachments(ctx, parsed.Attachments),
	}
	for i := range email.Attachments {
		email.Attachments[i].EmailID = email.ID
	}
	email.AggregateInvoiceFlag()
	span.SetTag("invoice", email.IsInvoice)

	if err = p.Emails.Create(ctx, email); err != nil {
		p.discardStored(context.WithoutCancel(ctx), email.Attachments)
		if errors.Is(err, mailscan_errors.ErrDuplicate) {
			outcome.status = statusDuplicate
			return outcome
		}
		tracing.TraceErr(span, err)
		return outcome.skip(p, mailscan_errors.NewPersistenceError("EmailRepository.Create", err))
	}

	p.publishProcessed(ctx, email)

	outcome.status = statusSucceeded
	outcome.email = email
	return outcome
}

func (o messageOutcome) skip(p *emailProcessor, err error) messageOutcome {
	p.log.Warnf("Skipping message seq=%d (%s): %v", o.seqNum, o.messageID, err)
	o.status = statusSkipped
	o.reason = err.Error()
	return o
}

func (p *emailProcessor) publishProcessed(ctx context.Context, email *models.Email) {
	if p.Publisher == nil {
		return
	}

	invoiceAttachments := 0
	for _, attachment := range email.Attachments {
		if attachment.IsInvoice {
			invoiceAttachments++
		}
	}

	err := p.Publisher.PublishEmailProcessed(ctx, dto.EmailProcessed{
		EmailID:            email.ID,
		MessageID:          email.MessageID,
		BatchID:            email.BatchID,
		Subject:            email.Subject,
		Sender:             email.Sender,
		IsInvoice:          email.IsInvoice,
		AttachmentCount:    len(email.Attachments),
		InvoiceAttachments: invoiceAttachments,
	})
	if err != nil {
		p.log.Warnf("Failed to publish email processed event for %s: %v", email.ID, err)
	}
}
