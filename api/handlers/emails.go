package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apierrors "github.com/customeros/mailscan/api/errors"
	"github.com/customeros/mailscan/dto"
	"github.com/customeros/mailscan/interfaces"
	"github.com/customeros/mailscan/internal/enum"
	"github.com/customeros/mailscan/internal/logger"
	"github.com/customeros/mailscan/internal/models"
	"github.com/customeros/mailscan/internal/tracing"
)

const defaultListLimit = 10

type EmailsHandler struct {
	emails   interfaces.EmailRepository
	pipeline interfaces.EmailPipeline
	log      logger.Logger
}

func NewEmailsHandler(emails interfaces.EmailRepository, pipeline interfaces.EmailPipeline, log logger.Logger) *EmailsHandler {
	return &EmailsHandler{
		emails:   emails,
		pipeline: pipeline,
		log:      log,
	}
}

// List returns the most recently stored emails with their attachments,
// newest first.
func (h *EmailsHandler) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "EmailsHandler.List", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		limit := defaultListLimit
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "limit must be a positive integer"})
				return
			}
			limit = parsed
		}
		span.SetTag("limit", limit)

		emails, err := h.emails.ListRecent(ctx, limit)
		if err != nil {
			tracing.TraceErr(span, err)
			h.log.Errorf("Failed to list emails: %v", err)
			c.JSON(http.StatusInternalServerError, apierrors.NewErrorResponse("Failed to list emails", err))
			return
		}

		if emails == nil {
			emails = []*models.Email{}
		}
		c.JSON(http.StatusOK, emails)
	}
}

// Fetch runs one batch synchronously and returns the stored records.
func (h *EmailsHandler) Fetch() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "EmailsHandler.Fetch", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		result, err := h.pipeline.RunBatch(ctx, enum.BatchTriggerAPI)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(apierrors.HTTPStatus(err), apierrors.NewErrorResponse("Failed to fetch emails", err))
			return
		}

		c.JSON(http.StatusOK, dto.FetchEmailsResponse{
			Message:     fmt.Sprintf("Fetched and processed %d emails", result.Summary.Succeeded),
			BatchResult: *result,
		})
	}
}

// Get returns one stored email with its attachments.
func (h *EmailsHandler) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "EmailsHandler.Get", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		id := c.Param("id")
		tracing.TagEntity(span, id)

		email, err := h.emails.GetByID(ctx, id)
		if err != nil {
			tracing.TraceErr(span, err)
			h.log.Errorf("Failed to get email %s: %v", id, err)
			c.JSON(http.StatusInternalServerError, apierrors.NewErrorResponse("Failed to get email", err))
			return
		}
		if email == nil {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "email not found"})
			return
		}
		c.JSON(http.StatusOK, email)
	}
}
