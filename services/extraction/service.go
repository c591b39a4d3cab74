package extraction

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"

	mailscan_errors "github.com/customeros/mailscan/errors"
	"github.com/customeros/mailscan/interfaces"
	"github.com/customeros/mailscan/internal/enum"
	"github.com/customeros/mailscan/internal/logger"
	"github.com/customeros/mailscan/internal/metrics"
	"github.com/customeros/mailscan/internal/tracing"
)

const (
	// BaseDPI is the PDF user-space resolution; render scale multiplies it.
	BaseDPI            = 72.0
	DefaultRenderScale = 2.0
)

type Config struct {
	RenderScale float64
	TempDir     string
	Timeout     time.Duration
}

// strategy extracts text for one content kind.
type strategy interface {
	extract(ctx context.Context, data []byte) (string, error)
}

type textExtractor struct {
	log        logger.Logger
	timeout    time.Duration
	strategies map[enum.ContentKind]strategy
}

// NewTextExtractor dispatches each attachment to the pdf, image or
// unsupported strategy. Extraction never fails; errors are logged and yield
// empty text.
func NewTextExtractor(ocr interfaces.OCREngine, rasterizer interfaces.Rasterizer, cfg Config, log logger.Logger) interfaces.TextExtractor {
	scale := cfg.RenderScale
	if scale <= 0 {
		scale = DefaultRenderScale
	}
	return &textExtractor{
		log:     log,
		timeout: cfg.Timeout,
		strategies: map[enum.ContentKind]strategy{
			enum.ContentKindPDF: &pdfStrategy{
				ocr:        ocr,
				rasterizer: rasterizer,
				scale:      scale,
				tempDir:    cfg.TempDir,
				log:        log,
			},
			enum.ContentKindImage:       &imageStrategy{ocr: ocr},
			enum.ContentKindUnsupported: unsupportedStrategy{},
		},
	}
}

func (s *textExtractor) Extract(ctx context.Context, contentType string, data []byte) string {
	span, ctx := opentracing.StartSpanFromContext(ctx, "TextExtractor.Extract")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	kind := enum.ContentKindOf(contentType)
	span.SetTag("content-type", contentType)
	span.SetTag("kind", kind.String())
	span.SetTag("size", len(data))

	if kind == enum.ContentKindUnsupported {
		return ""
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := s.strategies[kind].extract(ctx, data)
	if err != nil {
		err = mailscan_errors.NewExtractionError("TextExtractor."+kind.String(), err)
		tracing.TraceErr(span, err)
		metrics.RecordExtractionDuration(kind.String(), "failed", time.Since(start))
		s.log.Warnf("Text extraction failed for %s attachment (%s, %d bytes): %v", kind, contentType, len(data), err)
		return ""
	}

	metrics.RecordExtractionDuration(kind.String(), "ok", time.Since(start))
	span.SetTag("text-length", len(text))
	return text
}

type unsupportedStrategy struct{}

func (unsupportedStrategy) extract(ctx context.Context, data []byte) (string, error) {
	return "", nil
}

type imageStrategy struct {
	ocr interfaces.OCREngine
}

func (s *imageStrategy) extract(ctx context.Context, data []byte) (string, error) {
	return s.ocr.RecognizeBytes(ctx, data)
}
