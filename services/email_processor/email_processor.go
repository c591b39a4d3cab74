package email_processor

import (
	"sync"
	"sync/atomic"

	"github.com/customeros/mailscan/dto"
	"github.com/customeros/mailscan/interfaces"
	"github.com/customeros/mailscan/internal/logger"
	"github.com/customeros/mailscan/internal/models"
)

const defaultWorkers = 4

type Config struct {
	Mailbox string
	Window  models.FetchWindow
	// Workers bounds both the message pool and each message's attachment pool.
	Workers int
}

type Dependencies struct {
	Fetcher    interfaces.MailboxFetcher
	Parser     interfaces.EmailParser
	Store      interfaces.AttachmentStore
	Extractor  interfaces.TextExtractor
	Classifier interfaces.InvoiceClassifier
	Emails     interfaces.EmailRepository
	BatchRuns  interfaces.BatchRunRepository
	Publisher  interfaces.EventPublisher
}

// emailProcessor drives one batch through
// Connecting, Fetching, ProcessingMessages, Summarizing and Done. Only this
// type decides whether an error is fatal for the batch.
type emailProcessor struct {
	cfg Config
	log logger.Logger
	Dependencies

	running atomic.Bool

	mu   sync.RWMutex
	last *dto.BatchSummary
}

func NewEmailProcessor(cfg Config, deps Dependencies, log logger.Logger) interfaces.EmailPipeline {
	if cfg.Workers < 1 {
		cfg.Workers = defaultWorkers
	}
	return &emailProcessor{
		cfg:          cfg,
		log:          log,
		Dependencies: deps,
	}
}

func (p *emailProcessor) LastSummary() *dto.BatchSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return nil
	}
	summary := *p.last
	summary.Skipped = append([]dto.SkippedEmail{}, p.last.Skipped...)
	return &summary
}

func (p *emailProcessor) setLastSummary(summary *dto.BatchSummary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = summary
}
