package extraction

import (
	"context"
	"image"
	"image/png"
	"os"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailscan/interfaces"
	"github.com/customeros/mailscan/internal/logger"
	"github.com/customeros/mailscan/internal/metrics"
	"github.com/customeros/mailscan/internal/tracing"
)

// pdfStrategy rasterizes every page in order, OCRs the rendered image and
// joins page texts with a trailing newline each. A page that fails
// contributes an empty line; the document only fails when it cannot be
// opened, has no pages or runs past its deadline.
type pdfStrategy struct {
	ocr        interfaces.OCREngine
	rasterizer interfaces.Rasterizer
	scale      float64
	tempDir    string
	log        logger.Logger
}

func (s *pdfStrategy) extract(ctx context.Context, data []byte) (string, error) {
	doc, err := s.rasterizer.Open(data)
	if err != nil {
		return "", err
	}
	defer doc.Close()

	pages := doc.NumPages()
	if pages <= 0 {
		return "", errors.New("pdf has no pages")
	}

	var sb strings.Builder
	for page := 0; page < pages; page++ {
		if err = ctx.Err(); err != nil {
			return "", errors.Wrapf(err, "stopped before page %d of %d", page+1, pages)
		}

		text, err := s.extractPage(ctx, doc, page)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", errors.Wrapf(ctxErr, "stopped on page %d of %d", page+1, pages)
			}
			metrics.IncrementPageFailure()
			s.log.Warnf("Skipping pdf page %d of %d: %v", page+1, pages, err)
			text = ""
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

func (s *pdfStrategy) extractPage(ctx context.Context, doc interfaces.RasterDocument, page int) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "TextExtractor.pdfPage")
	defer span.Finish()
	span.SetTag("page", page+1)

	img, err := doc.RenderPage(page, BaseDPI*s.scale)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}

	text, err := s.recognizePage(ctx, img, page)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}
	return text, nil
}

// recognizePage writes the page to a temporary PNG for the OCR engine. The
// file is removed on every return path.
func (s *pdfStrategy) recognizePage(ctx context.Context, img image.Image, page int) (string, error) {
	f, err := os.CreateTemp(s.tempDir, "mailscan-page-*.png")
	if err != nil {
		return "", errors.Wrap(err, "create page raster")
	}
	path := f.Name()
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			s.log.Warnf("Failed to remove page raster %s: %v", path, rmErr)
		}
	}()

	if err = png.Encode(f, img); err != nil {
		f.Close()
		return "", errors.Wrapf(err, "encode page %d", page+1)
	}
	if err = f.Close(); err != nil {
		return "", errors.Wrapf(err, "write page %d", page+1)
	}

	text, err := s.ocr.RecognizeFile(ctx, path)
	if err != nil {
		return "", errors.Wrapf(err, "ocr page %d", page+1)
	}
	return text, nil
}
