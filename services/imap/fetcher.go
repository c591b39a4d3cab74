package imap

import (
	"context"
	"io"
	"time"

	"github.com/emersion/go-imap"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailscan/config"
	mailscan_errors "github.com/customeros/mailscan/errors"
	"github.com/customeros/mailscan/interfaces"
	"github.com/customeros/mailscan/internal/logger"
	"github.com/customeros/mailscan/internal/models"
	"github.com/customeros/mailscan/internal/tracing"
)

const defaultFetchLimit = 10

// Fetcher reads raw messages from one IMAP account. Every Fetch call opens
// its own connection and logs out before returning.
type Fetcher struct {
	cfg           *config.IMAPConfig
	log           logger.Logger
	dial          dialFunc
	logoutTimeout time.Duration
}

func NewFetcher(cfg *config.IMAPConfig, log logger.Logger) interfaces.MailboxFetcher {
	return &Fetcher{cfg: cfg, log: log, dial: dialIMAP, logoutTimeout: defaultLogoutTimeout}
}

func (f *Fetcher) Fetch(ctx context.Context, mailbox string, window models.FetchWindow, yield func(models.RawMessage) error) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Fetcher.Fetch")
	defer span.Finish()
	tracing.SetDefaultImapSpanTags(ctx, span)
	span.SetTag("mailbox", mailbox)
	span.SetTag("limit", window.Limit)

	c, err := f.connect(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	defer f.logout(c)

	// read-only select so nothing on the server changes
	status, err := c.Select(mailbox, true)
	if err != nil {
		tracing.TraceErr(span, err)
		if isNetworkError(err) {
			return mailscan_errors.NewConnectionError("imap.select", err)
		}
		return mailscan_errors.NewProtocolError("imap.select", errors.Wrapf(err, "select %s", mailbox))
	}

	seqSet, ok := sequenceWindow(status.Messages, window)
	span.SetTag("mailbox.messages", status.Messages)
	if !ok {
		f.log.Infof("Mailbox %s is empty, nothing to fetch", mailbox)
		return nil
	}

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, items, messages)
	}()

	var stopErr error
	for msg := range messages {
		// keep draining after a stop so the fetch goroutine can finish
		if stopErr != nil {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			stopErr = mailscan_errors.NewConnectionError("imap.fetch", ctxErr)
			continue
		}

		raw, err := toRawMessage(msg, section)
		if err != nil {
			stopErr = err
			continue
		}
		if err = yield(raw); err != nil {
			stopErr = err
		}
	}

	if fetchErr := <-done; fetchErr != nil && stopErr == nil {
		tracing.TraceErr(span, fetchErr)
		if isNetworkError(fetchErr) {
			return mailscan_errors.NewConnectionError("imap.fetch", fetchErr)
		}
		return mailscan_errors.NewProtocolError("imap.fetch", fetchErr)
	}
	if stopErr != nil {
		tracing.TraceErr(span, stopErr)
		return stopErr
	}
	return nil
}

func toRawMessage(msg *imap.Message, section *imap.BodySectionName) (models.RawMessage, error) {
	if msg == nil {
		return models.RawMessage{}, mailscan_errors.NewProtocolError("imap.fetch", errors.New("nil message in fetch response"))
	}
	body := msg.GetBody(section)
	if body == nil {
		return models.RawMessage{}, mailscan_errors.NewProtocolError("imap.fetch",
			errors.Errorf("message %d has no body section", msg.SeqNum))
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return models.RawMessage{}, mailscan_errors.NewProtocolError("imap.fetch",
			errors.Wrapf(err, "read body of message %d", msg.SeqNum))
	}
	return models.RawMessage{SeqNum: msg.SeqNum, UID: msg.Uid, Data: data}, nil
}

// sequenceWindow converts a window into a sequence set over total messages.
func sequenceWindow(total uint32, window models.FetchWindow) (*imap.SeqSet, bool) {
	if total == 0 {
		return nil, false
	}
	limit := uint32(defaultFetchLimit)
	if window.Limit > 0 {
		limit = uint32(window.Limit)
	}
	if limit > total {
		limit = total
	}

	from, to := total-limit+1, total
	if window.FromOldest {
		from, to = 1, limit
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddRange(from, to)
	return seqSet, true
}
