package ocr

import (
	"context"
	"sync"

	"github.com/opentracing/opentracing-go"
	"github.com/otiai10/gosseract/v2"
	"github.com/pkg/errors"

	"github.com/customeros/mailscan/interfaces"
	"github.com/customeros/mailscan/internal/logger"
	"github.com/customeros/mailscan/internal/tracing"
)

var ErrEngineShutdown = errors.New("ocr engine has been shut down")

// client is the part of *gosseract.Client the engine uses.
type client interface {
	SetImage(imagepath string) error
	SetImageFromBytes(data []byte) error
	Text() (string, error)
	Close() error
}

type clientFactory func(language string) (client, error)

func newTesseractClient(language string) (client, error) {
	c := gosseract.NewClient()
	if err := c.SetLanguage(language); err != nil {
		c.Close()
		return nil, errors.Wrapf(err, "set ocr language %s", language)
	}
	return c, nil
}

// Engine is the process wide OCR engine. The underlying tesseract client is
// created on first use, at most once, and recognition is exclusive.
type Engine struct {
	language  string
	log       logger.Logger
	newClient clientFactory

	initOnce sync.Once
	initErr  error
	client   client

	// one-slot semaphore; acquiring it honours context cancellation
	sem      chan struct{}
	shutdown bool
}

func NewEngine(language string, log logger.Logger) *Engine {
	return newEngine(language, log, newTesseractClient)
}

func newEngine(language string, log logger.Logger, factory clientFactory) *Engine {
	if language == "" {
		language = "eng"
	}
	return &Engine{
		language:  language,
		log:       log,
		newClient: factory,
		sem:       make(chan struct{}, 1),
	}
}

var _ interfaces.OCREngine = (*Engine)(nil)

func (e *Engine) RecognizeFile(ctx context.Context, path string) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "OCREngine.RecognizeFile")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	text, err := e.recognize(ctx, func(c client) error { return c.SetImage(path) })
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return text, err
}

func (e *Engine) RecognizeBytes(ctx context.Context, data []byte) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "OCREngine.RecognizeBytes")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("size", len(data))

	text, err := e.recognize(ctx, func(c client) error { return c.SetImageFromBytes(data) })
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return text, err
}

func (e *Engine) recognize(ctx context.Context, setImage func(c client) error) (string, error) {
	if err := e.acquire(ctx); err != nil {
		return "", err
	}
	defer e.release()

	if e.shutdown {
		return "", ErrEngineShutdown
	}

	c, err := e.ensureClient()
	if err != nil {
		return "", err
	}
	if err = setImage(c); err != nil {
		return "", errors.Wrap(err, "load image")
	}
	text, err := c.Text()
	if err != nil {
		return "", errors.Wrap(err, "recognize text")
	}
	return text, nil
}

func (e *Engine) ensureClient() (client, error) {
	e.initOnce.Do(func() {
		e.log.Infof("Initializing OCR engine (language=%s)", e.language)
		e.client, e.initErr = e.newClient(e.language)
		if e.initErr != nil {
			e.log.Errorf("OCR engine initialization failed: %v", e.initErr)
		}
	})
	return e.client, e.initErr
}

func (e *Engine) acquire(ctx context.Context) error {
	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) release() {
	<-e.sem
}

// Shutdown releases the tesseract client. Later calls fail with
// ErrEngineShutdown.
func (e *Engine) Shutdown() error {
	e.sem <- struct{}{}
	defer e.release()

	if e.shutdown {
		return nil
	}
	e.shutdown = true
	if e.client == nil {
		return nil
	}
	e.log.Info("Shutting down OCR engine")
	return e.client.Close()
}
