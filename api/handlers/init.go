package handlers

import (
	"github.com/customeros/mailscan/interfaces"
	"github.com/customeros/mailscan/internal/logger"
	"github.com/customeros/mailscan/internal/repository"
)

type APIHandlers struct {
	Emails      *EmailsHandler
	Attachments *AttachmentsHandler
	Status      *StatusHandler
}

func InitHandlers(r *repository.Repositories, pipeline interfaces.EmailPipeline, store interfaces.AttachmentStore, log logger.Logger) *APIHandlers {
	return &APIHandlers{
		Emails:      NewEmailsHandler(r.EmailRepository, pipeline, log),
		Attachments: NewAttachmentsHandler(r.EmailAttachmentRepository, store, log),
		Status:      NewStatusHandler(pipeline, r.BatchRunRepository, log),
	}
}
