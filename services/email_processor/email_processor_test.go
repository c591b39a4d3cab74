package email_processor

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailscan/dto"
	mailscan_errors "github.com/customeros/mailscan/errors"
	"github.com/customeros/mailscan/interfaces"
	"github.com/customeros/mailscan/internal/enum"
	"github.com/customeros/mailscan/internal/logger"
	"github.com/customeros/mailscan/internal/models"
	"github.com/customeros/mailscan/services/email_filter"
	"github.com/customeros/mailscan/services/email_parser"
)

type fakeFetcher struct {
	messages []models.RawMessage
	err      error
	entered  chan struct{}
	block    chan struct{}
	calls    int
}

func (f *fakeFetcher) Fetch(ctx context.Context, mailbox string, window models.FetchWindow, yield func(models.RawMessage) error) error {
	f.calls++
	if f.block != nil {
		close(f.entered)
		<-f.block
	}
	for _, msg := range f.messages {
		if err := yield(msg); err != nil {
			return err
		}
	}
	return f.err
}

type fakeStore struct {
	mu      sync.Mutex
	failOn  map[string]bool
	puts    []string
	deleted []string
}

func (s *fakeStore) Put(ctx context.Context, originalFilename, contentType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn[originalFilename] {
		return "", mailscan_errors.NewWriteError("AttachmentStore.Put", errors.New("disk full"))
	}
	key := fmt.Sprintf("%d_%s", len(s.puts), originalFilename)
	s.puts = append(s.puts, key)
	return key, nil
}

func (s *fakeStore) Get(ctx context.Context, storageKey string) ([]byte, error) {
	return nil, mailscan_errors.ErrNotFound
}

func (s *fakeStore) Delete(ctx context.Context, storageKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, storageKey)
	return nil
}

func (s *fakeStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.puts)
}

// fakeExtractor stands in for OCR: every pdf renders to the same invoice
// text and images carry text in their bytes after a "text:" prefix. Image
// text starting with "wait:" blocks until an image starting with "release:"
// is done, and "panic" crashes the worker.
type fakeExtractor struct {
	mu          sync.Mutex
	release     chan struct{}
	releaseOnce sync.Once
	completed   []string
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{release: make(chan struct{})}
}

func (f *fakeExtractor) Extract(ctx context.Context, contentType string, data []byte) string {
	var text string
	switch enum.ContentKindOf(contentType) {
	case enum.ContentKindPDF:
		text = "Invoice Due: $100\n"
	case enum.ContentKindImage:
		text = strings.TrimPrefix(string(data), "text:")
	}

	switch {
	case text == "panic":
		panic("renderer crashed")
	case strings.HasPrefix(text, "wait:"):
		<-f.release
		text = strings.TrimPrefix(text, "wait:")
	case strings.HasPrefix(text, "release:"):
		text = strings.TrimPrefix(text, "release:")
		defer f.releaseOnce.Do(func() { close(f.release) })
	}

	f.mu.Lock()
	f.completed = append(f.completed, text)
	f.mu.Unlock()
	return text
}

type fakeEmailRepository struct {
	mu       sync.Mutex
	stored   map[string]*models.Email
	failOn   map[string]bool
	lostRace map[string]bool
	existErr error
}

func newFakeEmailRepository() *fakeEmailRepository {
	return &fakeEmailRepository{stored: map[string]*models.Email{}, failOn: map[string]bool{}, lostRace: map[string]bool{}}
}

func (r *fakeEmailRepository) Create(ctx context.Context, email *models.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn[email.MessageID] {
		return errors.New("connection reset by peer")
	}
	if r.lostRace[email.MessageID] {
		return mailscan_errors.ErrDuplicate
	}
	if _, ok := r.stored[email.MessageID]; ok {
		return mailscan_errors.ErrDuplicate
	}
	r.stored[email.MessageID] = email
	return nil
}

func (r *fakeEmailRepository) GetByID(ctx context.Context, id string) (*models.Email, error) {
	return nil, nil
}

func (r *fakeEmailRepository) GetByMessageID(ctx context.Context, messageID string) (*models.Email, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stored[messageID], nil
}

func (r *fakeEmailRepository) ExistsByMessageID(ctx context.Context, messageID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.existErr != nil {
		return false, r.existErr
	}
	_, ok := r.stored[messageID]
	return ok, nil
}

func (r *fakeEmailRepository) ListRecent(ctx context.Context, limit int) ([]*models.Email, error) {
	return nil, nil
}

func (r *fakeEmailRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stored)
}

type fakeBatchRuns struct {
	mu     sync.Mutex
	states []enum.BatchState
	last   models.BatchRun
}

func (r *fakeBatchRuns) Create(ctx context.Context, run *models.BatchRun) error {
	return r.Update(ctx, run)
}

func (r *fakeBatchRuns) Update(ctx context.Context, run *models.BatchRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, run.State)
	r.last = *run
	return nil
}

func (r *fakeBatchRuns) GetLatest(ctx context.Context) (*models.BatchRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run := r.last
	return &run, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []dto.EmailProcessed
}

func (p *fakePublisher) PublishEmailProcessed(ctx context.Context, event dto.EmailProcessed) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) PublishFetchRequested(ctx context.Context, event dto.FetchRequested) error {
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type part struct {
	filename    string
	contentType string
	data        []byte
}

func buildMessage(messageID, subject, body string, parts ...part) []byte {
	lines := []string{
		"From: Vendor <billing@vendor.example>",
		"To: accounts@example.com",
		"Subject: " + subject,
		"Message-ID: <" + messageID + ">",
		"Date: Mon, 02 Sep 2024 10:00:00 +0000",
		"MIME-Version: 1.0",
	}
	if len(parts) == 0 {
		lines = append(lines, "Content-Type: text/plain; charset=utf-8", "", body, "")
		return []byte(strings.Join(lines, "\r\n"))
	}

	lines = append(lines,
		`Content-Type: multipart/mixed; boundary="B"`,
		"",
		"--B",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	)
	for _, p := range parts {
		lines = append(lines,
			"--B",
			fmt.Sprintf(`Content-Type: %s; name="%s"`, p.contentType, p.filename),
			fmt.Sprintf(`Content-Disposition: attachment; filename="%s"`, p.filename),
			"Content-Transfer-Encoding: base64",
			"",
			base64.StdEncoding.EncodeToString(p.data),
		)
	}
	lines = append(lines, "--B--", "")
	return []byte(strings.Join(lines, "\r\n"))
}

type testPipeline struct {
	pipeline  interfaces.EmailPipeline
	fetcher   *fakeFetcher
	store     *fakeStore
	extractor *fakeExtractor
	emails    *fakeEmailRepository
	runs      *fakeBatchRuns
	publisher *fakePublisher
}

func newTestPipeline(messages ...models.RawMessage) *testPipeline {
	tp := &testPipeline{
		fetcher:   &fakeFetcher{messages: messages},
		store:     &fakeStore{failOn: map[string]bool{}},
		extractor: newFakeExtractor(),
		emails:    newFakeEmailRepository(),
		runs:      &fakeBatchRuns{},
		publisher: &fakePublisher{},
	}
	log := logger.NewNopLogger()
	tp.pipeline = NewEmailProcessor(
		Config{Mailbox: "INBOX", Window: models.FetchWindow{Limit: 10}, Workers: 2},
		Dependencies{
			Fetcher:    tp.fetcher,
			Parser:     email_parser.NewEmailParser(log),
			Store:      tp.store,
			Extractor:  tp.extractor,
			Classifier: email_filter.NewInvoiceClassifier(nil),
			Emails:     tp.emails,
			BatchRuns:  tp.runs,
			Publisher:  tp.publisher,
		},
		log,
	)
	return tp
}

func emailByMessageID(t *testing.T, result *dto.BatchResult, messageID string) *models.Email {
	t.Helper()
	for _, email := range result.Emails {
		if email.MessageID == messageID {
			return email
		}
	}
	require.Failf(t, "email not in result", "message id %s", messageID)
	return nil
}

func TestRunBatch_InvoiceScenario(t *testing.T) {
	// Arrange
	tp := newTestPipeline(
		models.RawMessage{SeqNum: 1, UID: 101, Data: buildMessage("a@vendor", "March statement", "see attached",
			part{"statement.pdf", "application/pdf", []byte("%PDF-1.4 a")})},
		models.RawMessage{SeqNum: 2, UID: 102, Data: buildMessage("b@vendor", "Lunch?", "Are you free on Friday?")},
		models.RawMessage{SeqNum: 3, UID: 103, Data: buildMessage("c@vendor", "Receipt", "scan attached",
			part{"receipt.png", "image/png", []byte("text:Total: 50, Tax: 5")})},
	)

	// Act
	result, err := tp.pipeline.RunBatch(context.Background(), enum.BatchTriggerAPI)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, enum.BatchDone, result.Summary.State)
	assert.Equal(t, 3, result.Summary.Fetched)
	assert.Equal(t, 3, result.Summary.Succeeded)
	assert.Empty(t, result.Summary.Skipped)
	require.Len(t, result.Emails, 3)

	a := emailByMessageID(t, result, "a@vendor")
	assert.True(t, a.IsInvoice)
	require.Len(t, a.Attachments, 1)
	assert.NotEmpty(t, a.Attachments[0].ExtractedText)
	assert.Contains(t, a.Attachments[0].MatchedKeywords, "invoice")

	b := emailByMessageID(t, result, "b@vendor")
	assert.False(t, b.IsInvoice)
	assert.Empty(t, b.Attachments)

	c := emailByMessageID(t, result, "c@vendor")
	assert.True(t, c.IsInvoice)
	assert.Equal(t, uint32(103), c.ImapUID)

	assert.Equal(t, 3, tp.emails.count())
	assert.Len(t, tp.publisher.events, 3)
	assert.Equal(t, enum.BatchDone, tp.runs.last.State)
	assert.Equal(t, 3, tp.runs.last.Succeeded)
	assert.Contains(t, tp.runs.states, enum.BatchProcessingMessages)
}

func TestRunBatch_AttachmentWriteFailureStillSucceeds(t *testing.T) {
	// Arrange
	tp := newTestPipeline(models.RawMessage{SeqNum: 1, Data: buildMessage("w@vendor", "Docs", "two files",
		part{"broken.pdf", "application/pdf", []byte("%PDF-1.4 broken")},
		part{"notes.txt", "text/plain", []byte("hello")},
	)})
	tp.store.failOn["broken.pdf"] = true

	// Act
	result, err := tp.pipeline.RunBatch(context.Background(), enum.BatchTriggerCron)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.Succeeded)
	require.Len(t, result.Emails, 1)

	attachments := result.Emails[0].Attachments
	require.Len(t, attachments, 2)
	assert.Equal(t, "broken.pdf", attachments[0].Filename)
	assert.True(t, attachments[0].Unavailable)
	assert.Empty(t, attachments[0].StorageKey)
	assert.NotEmpty(t, attachments[0].Error)
	assert.True(t, attachments[0].IsInvoice, "text is still extracted from in-memory bytes")

	assert.Equal(t, "notes.txt", attachments[1].Filename)
	assert.False(t, attachments[1].Unavailable)
	assert.NotEmpty(t, attachments[1].StorageKey)
	assert.Equal(t, 1, attachments[1].Position)
	assert.True(t, result.Emails[0].IsInvoice)
}

func TestRunBatch_AuthFailureIsFatal(t *testing.T) {
	// Arrange
	tp := newTestPipeline(models.RawMessage{SeqNum: 1, Data: buildMessage("x@vendor", "Invoice", "body",
		part{"invoice.pdf", "application/pdf", []byte("%PDF")})})
	tp.fetcher.messages = nil
	tp.fetcher.err = mailscan_errors.NewAuthError("IMAP.Login", errors.New("invalid credentials"))

	// Act
	result, err := tp.pipeline.RunBatch(context.Background(), enum.BatchTriggerAPI)

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, mailscan_errors.ErrAuth)
	assert.True(t, mailscan_errors.IsFatal(err))
	require.NotNil(t, result)
	assert.Equal(t, enum.BatchAborted, result.Summary.State)
	assert.Equal(t, string(mailscan_errors.KindAuth), result.Summary.ErrorKind)
	assert.Empty(t, result.Emails)
	assert.Zero(t, result.Summary.Succeeded)
	assert.Zero(t, tp.store.putCount())
	assert.Zero(t, tp.emails.count())
	assert.Equal(t, enum.BatchAborted, tp.runs.last.State)
	assert.Equal(t, enum.BatchAborted, tp.pipeline.LastSummary().State)
}

func TestRunBatch_ProtocolErrorMidFetchLeavesNoPartialResults(t *testing.T) {
	// Arrange
	tp := newTestPipeline(models.RawMessage{SeqNum: 1, Data: buildMessage("p@vendor", "Bill", "body",
		part{"bill.pdf", "application/pdf", []byte("%PDF")})})
	tp.fetcher.err = mailscan_errors.NewProtocolError("IMAP.Fetch", errors.New("connection closed"))

	// Act
	result, err := tp.pipeline.RunBatch(context.Background(), enum.BatchTriggerAPI)

	// Assert
	assert.ErrorIs(t, err, mailscan_errors.ErrProtocol)
	assert.Empty(t, result.Emails)
	assert.Zero(t, tp.store.putCount())
	assert.Zero(t, tp.emails.count())
}

func TestRunBatch_PersistenceFailureIsSkipped(t *testing.T) {
	// Arrange
	tp := newTestPipeline(
		models.RawMessage{SeqNum: 1, Data: buildMessage("ok@vendor", "Hello", "first")},
		models.RawMessage{SeqNum: 2, Data: buildMessage("bad@vendor", "Hello again", "second")},
	)
	tp.emails.failOn["bad@vendor"] = true

	// Act
	result, err := tp.pipeline.RunBatch(context.Background(), enum.BatchTriggerAPI)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.Succeeded)
	require.Len(t, result.Summary.Skipped, 1)
	skipped := result.Summary.Skipped[0]
	assert.Equal(t, uint32(2), skipped.SeqNum)
	assert.Equal(t, "bad@vendor", skipped.MessageID)
	assert.Contains(t, skipped.Reason, "connection reset by peer")
	assert.Equal(t, 1, tp.runs.last.Skipped)
}

func TestRunBatch_PersistenceFailureRemovesStoredBlobs(t *testing.T) {
	// Arrange
	tp := newTestPipeline(models.RawMessage{SeqNum: 1, Data: buildMessage("lost@vendor", "Invoice", "body",
		part{"invoice.pdf", "application/pdf", []byte("%PDF")},
		part{"scan.png", "image/png", []byte("text:Total 10")},
	)})
	tp.emails.failOn["lost@vendor"] = true

	// Act
	result, err := tp.pipeline.RunBatch(context.Background(), enum.BatchTriggerAPI)

	// Assert
	require.NoError(t, err)
	require.Len(t, result.Summary.Skipped, 1)
	assert.Equal(t, 2, tp.store.putCount())
	assert.ElementsMatch(t, tp.store.puts, tp.store.deleted)
}

func TestRunBatch_InsertRaceCountsAsDuplicate(t *testing.T) {
	// Arrange
	tp := newTestPipeline(models.RawMessage{SeqNum: 1, Data: buildMessage("race@vendor", "Invoice", "body",
		part{"invoice.pdf", "application/pdf", []byte("%PDF")},
	)})
	tp.emails.lostRace["race@vendor"] = true

	// Act
	result, err := tp.pipeline.RunBatch(context.Background(), enum.BatchTriggerAPI)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.Duplicates)
	assert.Empty(t, result.Summary.Skipped)
	assert.Zero(t, result.Summary.Succeeded)
	assert.Equal(t, tp.store.puts, tp.store.deleted)
}

func TestRunBatch_SubjectAloneIsNotAnInvoice(t *testing.T) {
	tp := newTestPipeline(models.RawMessage{SeqNum: 1, Data: buildMessage("s@vendor", "Invoice #42", "no files here")})

	result, err := tp.pipeline.RunBatch(context.Background(), enum.BatchTriggerAPI)

	require.NoError(t, err)
	require.Len(t, result.Emails, 1)
	assert.False(t, result.Emails[0].IsInvoice)
}

func TestRunBatch_InvoiceFlagIsOrOfAttachments(t *testing.T) {
	tp := newTestPipeline(models.RawMessage{SeqNum: 1, Data: buildMessage("or@vendor", "Files", "body",
		part{"photo.png", "image/png", []byte("text:holiday photo")},
		part{"scan.png", "image/png", []byte("text:Subtotal 12.00")},
		part{"readme.txt", "text/plain", []byte("invoice")},
	)})

	result, err := tp.pipeline.RunBatch(context.Background(), enum.BatchTriggerAPI)

	require.NoError(t, err)
	require.Len(t, result.Emails, 1)
	attachments := result.Emails[0].Attachments
	require.Len(t, attachments, 3)
	assert.Equal(t, []string{"photo.png", "scan.png", "readme.txt"},
		[]string{attachments[0].Filename, attachments[1].Filename, attachments[2].Filename})
	assert.False(t, attachments[0].IsInvoice)
	assert.True(t, attachments[1].IsInvoice)
	assert.False(t, attachments[2].IsInvoice, "unsupported types yield no text")
	assert.True(t, result.Emails[0].IsInvoice)
}

func TestRunBatch_AttachmentOrderIgnoresCompletionOrder(t *testing.T) {
	// Arrange
	tp := newTestPipeline(models.RawMessage{SeqNum: 1, Data: buildMessage("order@vendor", "Scans", "body",
		part{"first.png", "image/png", []byte("text:wait:Invoice page one")},
		part{"second.png", "image/png", []byte("text:release:holiday photo")},
	)})

	// Act
	result, err := tp.pipeline.RunBatch(context.Background(), enum.BatchTriggerAPI)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"holiday photo", "Invoice page one"}, tp.extractor.completed,
		"the second attachment finishes first")

	require.Len(t, result.Emails, 1)
	attachments := result.Emails[0].Attachments
	require.Len(t, attachments, 2)
	assert.Equal(t, "first.png", attachments[0].Filename)
	assert.Equal(t, 0, attachments[0].Position)
	assert.Equal(t, "Invoice page one", attachments[0].ExtractedText)
	assert.True(t, attachments[0].IsInvoice)
	assert.Equal(t, "second.png", attachments[1].Filename)
	assert.Equal(t, 1, attachments[1].Position)
	assert.False(t, attachments[1].IsInvoice)

	stored := tp.emails.stored["order@vendor"]
	require.NotNil(t, stored)
	assert.Equal(t, "first.png", stored.Attachments[0].Filename)
	assert.Equal(t, "second.png", stored.Attachments[1].Filename)
}

func TestRunBatch_AttachmentPanicIsContained(t *testing.T) {
	// Arrange
	tp := newTestPipeline(models.RawMessage{SeqNum: 1, Data: buildMessage("crash@vendor", "Files", "body",
		part{"broken.png", "image/png", []byte("text:panic")},
		part{"invoice.pdf", "application/pdf", []byte("%PDF")},
	)})

	// Act
	result, err := tp.pipeline.RunBatch(context.Background(), enum.BatchTriggerAPI)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.Succeeded)
	require.Len(t, result.Emails, 1)
	attachments := result.Emails[0].Attachments
	require.Len(t, attachments, 2)

	assert.Equal(t, "broken.png", attachments[0].Filename)
	assert.Equal(t, attachmentPanicReason, attachments[0].Error)
	assert.False(t, attachments[0].IsInvoice)
	assert.NotEmpty(t, attachments[0].StorageKey, "the blob written before the panic stays referenced")

	assert.True(t, attachments[1].IsInvoice)
	assert.True(t, result.Emails[0].IsInvoice)
}

func TestRunBatch_RerunCountsDuplicatesWithoutRewriting(t *testing.T) {
	// Arrange
	raw := models.RawMessage{SeqNum: 1, Data: buildMessage("dup@vendor", "Invoice", "body",
		part{"invoice.pdf", "application/pdf", []byte("%PDF")})}
	tp := newTestPipeline(raw)

	first, err := tp.pipeline.RunBatch(context.Background(), enum.BatchTriggerCron)
	require.NoError(t, err)
	require.Equal(t, 1, first.Summary.Succeeded)
	putsAfterFirst := tp.store.putCount()

	// Act
	second, err := tp.pipeline.RunBatch(context.Background(), enum.BatchTriggerCron)

	// Assert
	require.NoError(t, err)
	assert.Zero(t, second.Summary.Succeeded)
	assert.Equal(t, 1, second.Summary.Duplicates)
	assert.Empty(t, second.Emails)
	assert.Equal(t, putsAfterFirst, tp.store.putCount())
	assert.Equal(t, 1, tp.emails.count())
	assert.NotEqual(t, first.Summary.BatchID, second.Summary.BatchID)
}

func TestRunBatch_DedupLookupFailureIsSkipped(t *testing.T) {
	tp := newTestPipeline(models.RawMessage{SeqNum: 4, Data: buildMessage("e@vendor", "Hi", "body")})
	tp.emails.existErr = errors.New("db down")

	result, err := tp.pipeline.RunBatch(context.Background(), enum.BatchTriggerAPI)

	require.NoError(t, err)
	require.Len(t, result.Summary.Skipped, 1)
	assert.Contains(t, result.Summary.Skipped[0].Reason, "db down")
}

func TestRunBatch_RejectsConcurrentRun(t *testing.T) {
	// Arrange
	tp := newTestPipeline()
	tp.fetcher.entered = make(chan struct{})
	tp.fetcher.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := tp.pipeline.RunBatch(context.Background(), enum.BatchTriggerCron)
		done <- err
	}()
	<-tp.fetcher.entered

	// Act
	result, err := tp.pipeline.RunBatch(context.Background(), enum.BatchTriggerAPI)

	// Assert
	assert.ErrorIs(t, err, mailscan_errors.ErrBatchInProgress)
	assert.Nil(t, result)
	close(tp.fetcher.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, tp.fetcher.calls)
}

func TestLastSummary(t *testing.T) {
	tp := newTestPipeline(models.RawMessage{SeqNum: 1, Data: buildMessage("l@vendor", "Hi", "body")})
	assert.Nil(t, tp.pipeline.LastSummary())

	result, err := tp.pipeline.RunBatch(context.Background(), enum.BatchTriggerCLI)
	require.NoError(t, err)

	last := tp.pipeline.LastSummary()
	require.NotNil(t, last)
	assert.Equal(t, result.Summary.BatchID, last.BatchID)
	assert.Equal(t, enum.BatchTriggerCLI, last.Trigger)
	assert.Equal(t, 1, last.Succeeded)
}
