package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/customeros/mailscan/dto"
	"github.com/customeros/mailscan/interfaces"
	"github.com/customeros/mailscan/internal/logger"
)

// HealthCheck provides a simple health check endpoint
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{Status: "ok"})
}

type StatusHandler struct {
	pipeline interfaces.EmailPipeline
	runs     interfaces.BatchRunRepository
	log      logger.Logger
}

func NewStatusHandler(pipeline interfaces.EmailPipeline, runs interfaces.BatchRunRepository, log logger.Logger) *StatusHandler {
	return &StatusHandler{pipeline: pipeline, runs: runs, log: log}
}

// Status reports the summary of the most recent batch run by this process.
// After a restart it falls back to the last persisted run.
func (h *StatusHandler) Status() gin.HandlerFunc {
	return func(c *gin.Context) {
		if last := h.pipeline.LastSummary(); last != nil {
			c.JSON(http.StatusOK, gin.H{"status": last.State, "lastBatch": last})
			return
		}

		if h.runs != nil {
			run, err := h.runs.GetLatest(c.Request.Context())
			if err != nil {
				h.log.Warnf("Failed to load latest batch run: %v", err)
			} else if run != nil {
				c.JSON(http.StatusOK, gin.H{"status": run.State, "lastRun": run})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"status": "idle"})
	}
}
