package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/customeros/mailscan/api/handlers"
	"github.com/customeros/mailscan/api/middleware"
	"github.com/customeros/mailscan/interfaces"
	"github.com/customeros/mailscan/internal/logger"
	"github.com/customeros/mailscan/internal/repository"
	"github.com/customeros/mailscan/internal/tracing"
)

const APIKeyHeader = "X-MAILSCAN-API-KEY"

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(r *gin.Engine, repos *repository.Repositories, pipeline interfaces.EmailPipeline, store interfaces.AttachmentStore, log logger.Logger, apikey string) {
	if repos == nil {
		panic("Repositories cannot be nil")
	}
	if pipeline == nil {
		panic("Pipeline cannot be nil")
	}

	// Add recovery middlewares
	r.Use(gin.Recovery())                                         // Gin's built-in recovery
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer())) // Our custom Jaeger recovery

	apiHandlers := handlers.InitHandlers(repos, pipeline, store, log)

	// Health, status and metrics endpoints (no API key)
	r.GET("/health", handlers.HealthCheck)
	r.GET("/status", apiHandlers.Status.Status())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  APIKeyHeader,
		ValidAPIKey: apikey,
	})

	api := r.Group("/v1")
	api.Use(apiKeyMiddleware)
	api.Use(middleware.TracingMiddleware())
	{
		emails := api.Group("/emails")
		{
			emails.GET("", apiHandlers.Emails.List())
			emails.POST("/fetch", apiHandlers.Emails.Fetch())
			emails.GET("/:id", apiHandlers.Emails.Get())
			emails.GET("/:id/attachments", apiHandlers.Attachments.ListForEmail())
		}

		attachments := api.Group("/attachments")
		{
			attachments.POST("/download", apiHandlers.Attachments.Download())
			attachments.GET("/preview", apiHandlers.Attachments.Preview())
		}
	}
}
