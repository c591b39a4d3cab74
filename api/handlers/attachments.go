package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apierrors "github.com/customeros/mailscan/api/errors"
	"github.com/customeros/mailscan/dto"
	"github.com/customeros/mailscan/interfaces"
	"github.com/customeros/mailscan/internal/logger"
	"github.com/customeros/mailscan/internal/models"
	"github.com/customeros/mailscan/internal/tracing"
	"github.com/customeros/mailscan/internal/utils"
)

type AttachmentsHandler struct {
	attachments interfaces.EmailAttachmentRepository
	store       interfaces.AttachmentStore
	log         logger.Logger
}

func NewAttachmentsHandler(attachments interfaces.EmailAttachmentRepository, store interfaces.AttachmentStore, log logger.Logger) *AttachmentsHandler {
	return &AttachmentsHandler{
		attachments: attachments,
		store:       store,
		log:         log,
	}
}

// ListForEmail returns the attachment records of one email in part order.
func (h *AttachmentsHandler) ListForEmail() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "AttachmentsHandler.ListForEmail", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		emailID := c.Param("id")
		tracing.TagEntity(span, emailID)

		attachments, err := h.attachments.ListByEmail(ctx, emailID)
		if err != nil {
			tracing.TraceErr(span, err)
			h.log.Errorf("Failed to list attachments of %s: %v", emailID, err)
			c.JSON(http.StatusInternalServerError, apierrors.NewErrorResponse("Failed to list attachments", err))
			return
		}
		if attachments == nil {
			attachments = []*models.EmailAttachment{}
		}
		c.JSON(http.StatusOK, attachments)
	}
}

// Download streams a stored attachment as a file download. The storage key
// is read from the JSON body.
func (h *AttachmentsHandler) Download() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request dto.DownloadAttachmentRequest
		if err := c.ShouldBindJSON(&request); err != nil || request.Filename == "" {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "filename is required"})
			return
		}

		h.serve(c, "AttachmentsHandler.Download", request.Filename, "attachment")
	}
}

// Preview serves a stored attachment inline, for ?filename=<storage key>.
func (h *AttachmentsHandler) Preview() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Query("filename")
		if key == "" {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "filename is required"})
			return
		}

		h.serve(c, "AttachmentsHandler.Preview", key, "inline")
	}
}

func (h *AttachmentsHandler) serve(c *gin.Context, operation, key, disposition string) {
	ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), operation, c.Request.Header)
	defer span.Finish()
	tracing.TagComponentRest(span)
	span.SetTag("storage-key", key)

	data, err := h.store.Get(ctx, key)
	if err != nil {
		tracing.TraceErr(span, err)
		status := apierrors.HTTPStatus(err)
		if status == http.StatusInternalServerError {
			h.log.Errorf("Failed to read attachment %s: %v", key, err)
		}
		c.JSON(status, apierrors.NewErrorResponse("Failed to read attachment", err))
		return
	}

	record, err := h.attachments.GetByStorageKey(ctx, key)
	if err != nil {
		tracing.TraceErr(span, err)
		h.log.Warnf("Attachment record lookup failed for %s: %v", key, err)
	}

	contentType, filename, disposition := servingMetadata(record, key, disposition)
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, filename))
	c.Data(http.StatusOK, contentType, data)
}

// inlineMediaTypes are the only types served under their own content type.
// Anything else, svg and html included, is sent as an opaque download.
var inlineMediaTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
	"image/gif":       true,
	"image/webp":      true,
	"image/bmp":       true,
	"image/tiff":      true,
}

// servingMetadata prefers what was recorded at ingestion and falls back to
// the storage key's extension.
func servingMetadata(record *models.EmailAttachment, key, disposition string) (string, string, string) {
	filename := key
	contentType := ""
	if record != nil {
		filename = utils.FirstNonEmpty(utils.SanitizeFilename(record.Filename), key)
		contentType = record.ContentType
	}
	if contentType == "" && disposition == "inline" {
		contentType = utils.ContentTypeFromFilename(key)
	}

	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	if !inlineMediaTypes[mediaType] {
		return "application/octet-stream", filename, "attachment"
	}
	return mediaType, filename, disposition
}
