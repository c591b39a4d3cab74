package interfaces

import (
	"context"
	"image"

	"github.com/customeros/mailscan/internal/models"
)

type EmailParser interface {
	Parse(raw models.RawMessage) models.ParsedEmail
}

type InvoiceClassifier interface {
	Classify(text string) bool
	MatchedKeywords(text string) []string
}

type TextExtractor interface {
	Extract(ctx context.Context, contentType string, data []byte) string
}

// OCREngine recognizes text in images. Implementations serialize calls.
type OCREngine interface {
	RecognizeFile(ctx context.Context, path string) (string, error)
	RecognizeBytes(ctx context.Context, data []byte) (string, error)
	Shutdown() error
}

type Rasterizer interface {
	Open(data []byte) (RasterDocument, error)
}

type RasterDocument interface {
	NumPages() int
	RenderPage(page int, dpi float64) (image.Image, error)
	Close() error
}
