package email_processor

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"golang.org/x/sync/errgroup"

	"github.com/customeros/mailscan/internal/enum"
	"github.com/customeros/mailscan/internal/metrics"
	"github.com/customeros/mailscan/internal/models"
	"github.com/customeros/mailscan/internal/tracing"
	"github.com/customeros/mailscan/internal/utils"
)

const attachmentPanicReason = "attachment processing panicked"

// processAttachments stores, extracts and classifies every attachment of one
// message. The result is indexed by MIME part position regardless of which
// worker finishes first.
func (p *emailProcessor) processAttachments(ctx context.Context, descriptors []models.AttachmentDescriptor) []models.EmailAttachment {
	stored := make([]models.EmailAttachment, len(descriptors))
	if len(descriptors) == 0 {
		return stored
	}

	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)
	for i := range descriptors {
		i := i
		g.Go(func() error {
			stored[i] = newAttachment(i, descriptors[i])
			completed := false
			defer func() {
				if !completed {
					markPanicked(&stored[i])
				}
			}()
			defer tracing.RecoverAndLogToJaeger(p.log)

			p.processAttachment(ctx, &stored[i], descriptors[i])
			completed = true
			return nil
		})
	}
	_ = g.Wait()

	return stored
}

func newAttachment(position int, descriptor models.AttachmentDescriptor) models.EmailAttachment {
	return models.EmailAttachment{
		Position:    position,
		Filename:    descriptor.Filename,
		ContentType: descriptor.ContentType,
		Size:        len(descriptor.Data),
		ContentHash: utils.ContentFingerprint(descriptor.Data),
	}
}

// markPanicked keeps whatever the worker recorded before it panicked, so a
// blob that was already written stays referenced.
func markPanicked(attachment *models.EmailAttachment) {
	attachment.IsInvoice = false
	attachment.MatchedKeywords = nil
	attachment.ExtractedText = ""
	if attachment.StorageKey == "" {
		attachment.Unavailable = true
	}
	attachment.Error = attachmentPanicReason
	metrics.IncrementAttachment(enum.ContentKindOf(attachment.ContentType).String(), "failed")
}

func (p *emailProcessor) processAttachment(ctx context.Context, attachment *models.EmailAttachment, descriptor models.AttachmentDescriptor) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailProcessor.processAttachment")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("filename", descriptor.Filename)
	span.SetTag("content-type", descriptor.ContentType)

	kind := enum.ContentKindOf(descriptor.ContentType)

	key, err := p.Store.Put(ctx, descriptor.Filename, descriptor.ContentType, descriptor.Data)
	if err != nil {
		tracing.TraceErr(span, err)
		p.log.Warnf("Attachment %q stored as unavailable: %v", descriptor.Filename, err)
		attachment.Unavailable = true
		attachment.Error = err.Error()
		metrics.IncrementAttachment(kind.String(), "unavailable")
	} else {
		attachment.StorageKey = key
		metrics.IncrementAttachment(kind.String(), "stored")
	}

	attachment.ExtractedText = utils.StripNUL(p.Extractor.Extract(ctx, descriptor.ContentType, descriptor.Data))
	attachment.IsInvoice = p.Classifier.Classify(attachment.ExtractedText)
	if attachment.IsInvoice {
		attachment.MatchedKeywords = p.Classifier.MatchedKeywords(attachment.ExtractedText)
	}
	span.SetTag("invoice", attachment.IsInvoice)
}

// discardStored removes the blobs of a record that was not persisted.
func (p *emailProcessor) discardStored(ctx context.Context, attachments []models.EmailAttachment) {
	for _, attachment := range attachments {
		if attachment.StorageKey == "" {
			continue
		}
		if err := p.Store.Delete(ctx, attachment.StorageKey); err != nil {
			p.log.Warnf("Failed to remove orphaned attachment %s: %v", attachment.StorageKey, err)
		}
	}
}
