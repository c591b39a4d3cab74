package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailscan/interfaces"
	"github.com/customeros/mailscan/internal/tracing"
	"github.com/customeros/mailscan/services/storage/aws_client"
)

// LocalStorageService keeps blobs as flat files in a single directory.
// Callers must pass bare filename keys.
type LocalStorageService struct {
	dir string
}

func NewLocalStorageService(dir string) (interfaces.StorageService, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "create storage dir %s", dir)
	}
	return &LocalStorageService{dir: dir}, nil
}

func (s *LocalStorageService) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "LocalStorageService.Upload")
	defer span.Finish()
	tracing.SetDefaultStorageSpanTags(ctx, span)
	span.SetTag("key", key)

	f, err := os.OpenFile(filepath.Join(s.dir, key), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if _, err = f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		tracing.TraceErr(span, err)
		return err
	}
	if err = f.Close(); err != nil {
		os.Remove(f.Name())
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (s *LocalStorageService) Download(ctx context.Context, key string) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "LocalStorageService.Download")
	defer span.Finish()
	tracing.SetDefaultStorageSpanTags(ctx, span)
	span.SetTag("key", key)

	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, aws_client.ErrObjectNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return data, nil
}

func (s *LocalStorageService) Delete(ctx context.Context, key string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "LocalStorageService.Delete")
	defer span.Finish()
	tracing.SetDefaultStorageSpanTags(ctx, span)

	err := os.Remove(filepath.Join(s.dir, key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStorageService) GetPublicURL(key string) string {
	return ""
}
