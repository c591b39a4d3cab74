package email_processor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"golang.org/x/sync/errgroup"

	"github.com/customeros/mailscan/dto"
	mailscan_errors "github.com/customeros/mailscan/errors"
	"github.com/customeros/mailscan/internal/enum"
	"github.com/customeros/mailscan/internal/metrics"
	"github.com/customeros/mailscan/internal/models"
	"github.com/customeros/mailscan/internal/tracing"
	"github.com/customeros/mailscan/internal/utils"
)

// RunBatch fetches the configured window and processes every message.
// Mailbox failures abort the batch before anything is written and the
// returned result holds only the aborted summary. Any other failure is local
// to one message or attachment and shows up in the summary.
func (p *emailProcessor) RunBatch(ctx context.Context, trigger enum.BatchTrigger) (*dto.BatchResult, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, mailscan_errors.ErrBatchInProgress
	}
	defer p.running.Store(false)

	batchID := uuid.NewString()
	ctx = utils.WithBatchID(ctx, batchID)
	ctx = utils.WithMailbox(ctx, p.cfg.Mailbox)

	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailProcessor.RunBatch")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("trigger", trigger.String())

	summary := &dto.BatchSummary{
		BatchID:   batchID,
		Trigger:   trigger,
		Mailbox:   p.cfg.Mailbox,
		State:     enum.BatchConnecting,
		Skipped:   []dto.SkippedEmail{},
		StartedAt: utils.Now(),
	}
	run := &models.BatchRun{
		ID:        batchID,
		Trigger:   trigger,
		Mailbox:   p.cfg.Mailbox,
		State:     enum.BatchConnecting,
		StartedAt: summary.StartedAt,
	}
	p.createRun(ctx, run)

	p.log.Infof("Batch %s started (trigger=%s, mailbox=%s, limit=%d)", batchID, trigger, p.cfg.Mailbox, p.cfg.Window.Limit)

	raws, err := p.fetchAll(ctx, summary)
	if err != nil {
		tracing.TraceErr(span, err)
		p.abort(ctx, summary, run, err)
		return &dto.BatchResult{Summary: summary, Emails: []*models.Email{}}, err
	}
	summary.Fetched = len(raws)

	summary.State = enum.BatchProcessingMessages
	run.State = summary.State
	run.Fetched = summary.Fetched
	p.updateRun(ctx, run)

	outcomes := p.processMessages(ctx, raws)

	summary.State = enum.BatchSummarizing
	emails := summarize(summary, outcomes)

	summary.State = enum.BatchDone
	summary.FinishedAt = utils.Now()
	p.finishRun(ctx, summary, run)
	metrics.IncrementBatch(summary.State.String())
	p.setLastSummary(summary)

	p.log.Infof("Batch %s done: fetched=%d succeeded=%d duplicates=%d skipped=%d",
		batchID, summary.Fetched, summary.Succeeded, summary.Duplicates, len(summary.Skipped))

	return &dto.BatchResult{Summary: summary, Emails: emails}, nil
}

// fetchAll drains the mailbox before any processing starts so a connection
// dropping halfway through leaves nothing behind.
func (p *emailProcessor) fetchAll(ctx context.Context, summary *dto.BatchSummary) ([]models.RawMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailProcessor.fetchAll")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	var raws []models.RawMessage
	err := p.Fetcher.Fetch(ctx, p.cfg.Mailbox, p.cfg.Window, func(raw models.RawMessage) error {
		summary.State = enum.BatchFetching
		raws = append(raws, raw)
		return nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	summary.State = enum.BatchFetching
	span.SetTag("fetched", len(raws))
	return raws, nil
}

// processMessages runs the per-message stage on a bounded pool. Outcomes keep
// the fetch order.
func (p *emailProcessor) processMessages(ctx context.Context, raws []models.RawMessage) []messageOutcome {
	outcomes := make([]messageOutcome, len(raws))

	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)
	for i := range raws {
		i := i
		g.Go(func() error {
			outcomes[i] = messageOutcome{seqNum: raws[i].SeqNum, status: statusSkipped, reason: "processing panicked"}
			defer tracing.RecoverAndLogToJaeger(p.log)
			outcomes[i] = p.processMessage(ctx, raws[i])
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func summarize(summary *dto.BatchSummary, outcomes []messageOutcome) []*models.Email {
	emails := make([]*models.Email, 0, len(outcomes))
	for _, outcome := range outcomes {
		switch outcome.status {
		case statusSucceeded:
			summary.Succeeded++
			emails = append(emails, outcome.email)
		case statusDuplicate:
			summary.Duplicates++
		default:
			summary.Skipped = append(summary.Skipped, dto.SkippedEmail{
				SeqNum:    outcome.seqNum,
				MessageID: outcome.messageID,
				Subject:   outcome.subject,
				Reason:    outcome.reason,
			})
		}
		metrics.IncrementEmailProcessed(outcome.status.String())
	}
	return emails
}

func (p *emailProcessor) abort(ctx context.Context, summary *dto.BatchSummary, run *models.BatchRun, err error) {
	summary.State = enum.BatchAborted
	summary.Error = err.Error()
	summary.ErrorKind = string(mailscan_errors.KindOf(err))
	summary.FinishedAt = utils.Now()

	p.log.Errorf("Batch %s aborted (%s): %v", summary.BatchID, summary.ErrorKind, err)

	p.finishRun(ctx, summary, run)
	metrics.IncrementBatch(summary.State.String())
	p.setLastSummary(summary)
}

func (p *emailProcessor) createRun(ctx context.Context, run *models.BatchRun) {
	if p.BatchRuns == nil {
		return
	}
	if err := p.BatchRuns.Create(ctx, run); err != nil {
		p.log.Warnf("Failed to record batch run %s: %v", run.ID, err)
	}
}

func (p *emailProcessor) updateRun(ctx context.Context, run *models.BatchRun) {
	if p.BatchRuns == nil {
		return
	}
	if err := p.BatchRuns.Update(ctx, run); err != nil {
		p.log.Warnf("Failed to update batch run %s: %v", run.ID, err)
	}
}

func (p *emailProcessor) finishRun(ctx context.Context, summary *dto.BatchSummary, run *models.BatchRun) {
	finishedAt := summary.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now().UTC()
	}
	run.State = summary.State
	run.Fetched = summary.Fetched
	run.Succeeded = summary.Succeeded
	run.Duplicates = summary.Duplicates
	run.Skipped = len(summary.Skipped)
	run.Error = summary.Error
	run.FinishedAt = &finishedAt
	p.updateRun(context.WithoutCancel(ctx), run)
}
