package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/customeros/mailscan/internal/tracing"
)

// TraceIdHeader carries the request's trace id back to the caller.
const TraceIdHeader = "X-Mailscan-Trace-Id"

// TracingMiddleware creates a new span for each request and adds common tags
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Start span using existing utility
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(
			c.Request.Context(),
			c.Request.Method+" "+c.FullPath(),
			c.Request.Header,
		)
		defer span.Finish()

		// Tag as REST component with batch and mailbox when present
		tracing.SetDefaultRestSpanTags(ctx, span)

		if traceId := tracing.GetTraceId(span); traceId != "" {
			c.Header(TraceIdHeader, traceId)
		}

		// Add entity ID if present in URL params
		if id := c.Param("id"); id != "" {
			tracing.TagEntity(span, id)
		}

		// Store span in context
		c.Request = c.Request.WithContext(ctx)

		// Process request
		c.Next()

		// Add response status
		status := c.Writer.Status()
		span.SetTag("http.status_code", status)
		if status >= 400 {
			tracing.TraceErr(span, errors.New(http.StatusText(status)), log.String("event", "error"))
		}
	}
}
