package extraction

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailscan/interfaces"
	"github.com/customeros/mailscan/internal/logger"
)

type fakeOCR struct {
	mu        sync.Mutex
	files     []string
	bytesSeen int
	fileErr   error
	failCalls map[int]bool
	bytesText string
	block     bool
}

func (f *fakeOCR) RecognizeFile(ctx context.Context, path string) (string, error) {
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, statErr := os.Stat(path)
	if statErr != nil {
		return "", statErr
	}
	f.files = append(f.files, path)
	if f.fileErr != nil {
		return "", f.fileErr
	}
	if f.failCalls[len(f.files)] {
		return "", errors.Errorf("unreadable page %d", len(f.files))
	}
	return fmt.Sprintf("page-%d", len(f.files)), nil
}

func (f *fakeOCR) RecognizeBytes(ctx context.Context, data []byte) (string, error) {
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bytesSeen++
	return f.bytesText, nil
}

func (f *fakeOCR) Shutdown() error { return nil }

func (f *fakeOCR) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files) + f.bytesSeen
}

type fakeRasterizer struct {
	pages    int
	openErr  error
	failPage map[int]bool
	rendered []int
	dpis     []float64
	closed   bool
}

func (r *fakeRasterizer) Open(data []byte) (interfaces.RasterDocument, error) {
	if r.openErr != nil {
		return nil, r.openErr
	}
	return r, nil
}

func (r *fakeRasterizer) NumPages() int { return r.pages }

func (r *fakeRasterizer) RenderPage(page int, dpi float64) (image.Image, error) {
	r.rendered = append(r.rendered, page)
	r.dpis = append(r.dpis, dpi)
	if r.failPage[page] {
		return nil, errors.Errorf("cannot render page %d", page)
	}
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}

func (r *fakeRasterizer) Close() error {
	r.closed = true
	return nil
}

func newTestExtractor(t *testing.T, engine *fakeOCR, raster *fakeRasterizer, timeout time.Duration) (interfaces.TextExtractor, string) {
	dir := t.TempDir()
	return NewTextExtractor(engine, raster, Config{TempDir: dir, Timeout: timeout}, logger.NewNopLogger()), dir
}

func TestExtract_PdfPagesInOrder(t *testing.T) {
	// Arrange
	engine := &fakeOCR{}
	raster := &fakeRasterizer{pages: 3}
	extractor, dir := newTestExtractor(t, engine, raster, time.Minute)

	// Act
	text := extractor.Extract(context.Background(), "application/pdf", []byte("%PDF-1.4"))

	// Assert
	assert.Equal(t, "page-1\npage-2\npage-3\n", text)
	assert.Equal(t, []int{0, 1, 2}, raster.rendered)
	for _, dpi := range raster.dpis {
		assert.Equal(t, BaseDPI*DefaultRenderScale, dpi)
	}
	assert.True(t, raster.closed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "page rasters must be removed")
}

func TestExtract_PdfOcrFailureRemovesRasters(t *testing.T) {
	// Arrange
	engine := &fakeOCR{fileErr: errors.New("tesseract crashed")}
	raster := &fakeRasterizer{pages: 2}
	extractor, dir := newTestExtractor(t, engine, raster, time.Minute)

	// Act
	text := extractor.Extract(context.Background(), "application/pdf", []byte("%PDF-1.4"))

	// Assert
	assert.Equal(t, "\n\n", text)
	assert.Equal(t, []int{0, 1}, raster.rendered)
	assert.True(t, raster.closed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExtract_PdfFailedPageKeepsOtherPages(t *testing.T) {
	// Arrange
	engine := &fakeOCR{failCalls: map[int]bool{2: true}}
	raster := &fakeRasterizer{pages: 3}
	extractor, dir := newTestExtractor(t, engine, raster, time.Minute)

	// Act
	text := extractor.Extract(context.Background(), "application/pdf", []byte("%PDF-1.4"))

	// Assert
	assert.Equal(t, "page-1\n\npage-3\n", text)
	assert.Equal(t, []int{0, 1, 2}, raster.rendered)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExtract_PdfRenderFailureKeepsOtherPages(t *testing.T) {
	engine := &fakeOCR{}
	raster := &fakeRasterizer{pages: 3, failPage: map[int]bool{0: true}}
	extractor, _ := newTestExtractor(t, engine, raster, time.Minute)

	text := extractor.Extract(context.Background(), "application/pdf", []byte("%PDF-1.4"))

	assert.Equal(t, "\npage-1\npage-2\n", text)
	assert.Equal(t, 2, engine.calls())
}

func TestExtract_PdfDeadlineDropsDocument(t *testing.T) {
	engine := &fakeOCR{block: true}
	raster := &fakeRasterizer{pages: 3}
	extractor, dir := newTestExtractor(t, engine, raster, 20*time.Millisecond)

	text := extractor.Extract(context.Background(), "application/pdf", []byte("%PDF-1.4"))

	assert.Empty(t, text)
	assert.Equal(t, []int{0}, raster.rendered)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExtract_CorruptPdfYieldsEmptyText(t *testing.T) {
	engine := &fakeOCR{}
	raster := &fakeRasterizer{openErr: errors.New("not a pdf")}
	extractor, _ := newTestExtractor(t, engine, raster, time.Minute)

	assert.Empty(t, extractor.Extract(context.Background(), "application/pdf", []byte("garbage")))
	assert.Zero(t, engine.calls())
}

func TestExtract_PdfWithoutPages(t *testing.T) {
	engine := &fakeOCR{}
	raster := &fakeRasterizer{pages: 0}
	extractor, _ := newTestExtractor(t, engine, raster, time.Minute)

	assert.Empty(t, extractor.Extract(context.Background(), "application/pdf", []byte("%PDF")))
	assert.Zero(t, engine.calls())
}

func TestExtract_ImageUsesRawBytes(t *testing.T) {
	engine := &fakeOCR{bytesText: "Amount due: 10 EUR"}
	extractor, _ := newTestExtractor(t, engine, &fakeRasterizer{}, time.Minute)

	text := extractor.Extract(context.Background(), "image/png; name=scan.png", []byte{0x89, 'P', 'N', 'G'})

	assert.Equal(t, "Amount due: 10 EUR", text)
	assert.Equal(t, 1, engine.calls())
}

func TestExtract_UnsupportedSkipsOcr(t *testing.T) {
	engine := &fakeOCR{bytesText: "should not be used"}
	raster := &fakeRasterizer{pages: 1}
	extractor, _ := newTestExtractor(t, engine, raster, time.Minute)

	for _, contentType := range []string{"text/plain", "application/zip", ""} {
		assert.Empty(t, extractor.Extract(context.Background(), contentType, []byte("invoice")))
	}
	assert.Zero(t, engine.calls())
	assert.Empty(t, raster.rendered)
}

func TestExtract_DeadlineYieldsEmptyText(t *testing.T) {
	// Arrange
	engine := &fakeOCR{block: true}
	extractor, _ := newTestExtractor(t, engine, &fakeRasterizer{}, 20*time.Millisecond)

	// Act
	start := time.Now()
	text := extractor.Extract(context.Background(), "image/jpeg", []byte{0xff, 0xd8})

	// Assert
	assert.Empty(t, text)
	assert.Less(t, time.Since(start), 5*time.Second)
}
