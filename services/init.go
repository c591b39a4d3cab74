package services

import (
	"github.com/customeros/mailscan/config"
	"github.com/customeros/mailscan/interfaces"
	"github.com/customeros/mailscan/internal/logger"
	"github.com/customeros/mailscan/internal/models"
	"github.com/customeros/mailscan/internal/repository"
	"github.com/customeros/mailscan/services/email_filter"
	"github.com/customeros/mailscan/services/email_parser"
	"github.com/customeros/mailscan/services/email_processor"
	"github.com/customeros/mailscan/services/events"
	"github.com/customeros/mailscan/services/extraction"
	"github.com/customeros/mailscan/services/imap"
	"github.com/customeros/mailscan/services/ocr"
	"github.com/customeros/mailscan/services/storage"
)

type Services struct {
	// EventsService is nil when RABBITMQ_URL is not set.
	EventsService   *events.EventsService
	StorageService  interfaces.StorageService
	AttachmentStore interfaces.AttachmentStore
	OCREngine       interfaces.OCREngine
	Pipeline        interfaces.EmailPipeline
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	blobs, err := storage.NewStorageServiceFromConfig(cfg.StorageConfig)
	if err != nil {
		return nil, err
	}

	// events
	var eventsService *events.EventsService
	var publisher interfaces.EventPublisher
	if cfg.AppConfig.RabbitMQURL != "" {
		eventsService, err = events.NewEventsService(cfg.AppConfig.RabbitMQURL, log, events.DefaultPublisherConfig(), events.DefaultSubscriberConfig())
		if err != nil {
			return nil, err
		}
		publisher = eventsService.Publisher
	} else {
		log.Warn("RABBITMQ_URL not set, events are disabled")
	}

	store := storage.NewAttachmentStore(blobs, log)
	ocrEngine := ocr.NewEngine(cfg.OCRConfig.Language, log)

	pipeline := email_processor.NewEmailProcessor(
		email_processor.Config{
			Mailbox: cfg.IMAPConfig.Mailbox,
			Window:  models.FetchWindow{Limit: cfg.IMAPConfig.FetchLimit},
			Workers: cfg.PipelineConfig.Workers,
		},
		email_processor.Dependencies{
			Fetcher:    imap.NewFetcher(cfg.IMAPConfig, log),
			Parser:     email_parser.NewEmailParser(log),
			Store:      store,
			Classifier: email_filter.NewInvoiceClassifier(cfg.PipelineConfig.InvoiceKeywords),
			Extractor: extraction.NewTextExtractor(ocrEngine, ocr.NewRasterizer(), extraction.Config{
				RenderScale: cfg.OCRConfig.RenderScale,
				TempDir:     cfg.OCRConfig.TempDir,
				Timeout:     cfg.PipelineConfig.AttachmentTimeout,
			}, log),
			Emails:    repos.EmailRepository,
			BatchRuns: repos.BatchRunRepository,
			Publisher: publisher,
		},
		log,
	)

	return &Services{
		EventsService:   eventsService,
		StorageService:  blobs,
		AttachmentStore: store,
		OCREngine:       ocrEngine,
		Pipeline:        pipeline,
	}, nil
}

// Close releases the OCR engine and the RabbitMQ connections.
func (s *Services) Close() error {
	if s.OCREngine != nil {
		_ = s.OCREngine.Shutdown()
	}
	if s.EventsService != nil {
		return s.EventsService.Close()
	}
	return nil
}
