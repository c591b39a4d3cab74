package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	mailscan_errors "github.com/customeros/mailscan/errors"
	"github.com/customeros/mailscan/interfaces"
	"github.com/customeros/mailscan/internal/logger"
	"github.com/customeros/mailscan/internal/tracing"
	"github.com/customeros/mailscan/internal/utils"
	"github.com/customeros/mailscan/services/storage/aws_client"
)

const keyDisambiguatorSize = 10

var (
	errEmptyKey     = errors.New("storage key is empty")
	errKeySeparator = errors.New("storage key contains a path separator")
	errKeyTraversal = errors.New("storage key refers to a parent or current directory")
)

type attachmentStore struct {
	blobs interfaces.StorageService
	log   logger.Logger
	now   func() int64
}

// NewAttachmentStore puts attachment bytes on blobs under generated keys of
// the form <unix nanos>_<random>_<sanitized filename>.
func NewAttachmentStore(blobs interfaces.StorageService, log logger.Logger) interfaces.AttachmentStore {
	return &attachmentStore{
		blobs: blobs,
		log:   log,
		now:   func() int64 { return utils.Now().UnixNano() },
	}
}

func (s *attachmentStore) Put(ctx context.Context, originalFilename, contentType string, data []byte) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AttachmentStore.Put")
	defer span.Finish()
	tracing.SetDefaultStorageSpanTags(ctx, span)
	span.LogKV("filename", originalFilename, "size", len(data))

	key := s.newKey(originalFilename, contentType)
	span.SetTag("key", key)

	if err := s.blobs.Upload(ctx, key, data, contentType); err != nil {
		tracing.TraceErr(span, err)
		return "", mailscan_errors.NewWriteError("AttachmentStore.Put", err)
	}

	return key, nil
}

func (s *attachmentStore) Get(ctx context.Context, storageKey string) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AttachmentStore.Get")
	defer span.Finish()
	tracing.SetDefaultStorageSpanTags(ctx, span)
	span.SetTag("key", storageKey)

	if err := ValidateStorageKey(storageKey); err != nil {
		tracing.TraceErr(span, err)
		return nil, mailscan_errors.NewInvalidKeyError("AttachmentStore.Get", err)
	}

	data, err := s.blobs.Download(ctx, storageKey)
	if err != nil {
		if errors.Is(err, aws_client.ErrObjectNotFound) {
			return nil, mailscan_errors.NewNotFoundError("AttachmentStore.Get", err)
		}
		tracing.TraceErr(span, err)
		s.log.Errorf("Failed to read attachment %s: %v", storageKey, err)
		return nil, err
	}
	return data, nil
}

func (s *attachmentStore) Delete(ctx context.Context, storageKey string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AttachmentStore.Delete")
	defer span.Finish()
	tracing.SetDefaultStorageSpanTags(ctx, span)
	span.SetTag("key", storageKey)

	if err := ValidateStorageKey(storageKey); err != nil {
		tracing.TraceErr(span, err)
		return mailscan_errors.NewInvalidKeyError("AttachmentStore.Delete", err)
	}

	if err := s.blobs.Delete(ctx, storageKey); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (s *attachmentStore) newKey(originalFilename, contentType string) string {
	name := utils.SanitizeFilename(originalFilename)
	if name == "" {
		name = "attachment." + utils.GetFileExtensionFromContentType(contentType)
	}
	return fmt.Sprintf("%d_%s_%s", s.now(), utils.GenerateNanoID(keyDisambiguatorSize), name)
}

// ValidateStorageKey accepts only bare filename components.
func ValidateStorageKey(key string) error {
	switch {
	case strings.TrimSpace(key) == "":
		return errEmptyKey
	case key == "." || key == "..":
		return errKeyTraversal
	case strings.ContainsAny(key, `/\`+"\x00"):
		return errKeySeparator
	case strings.Contains(key, ".."):
		return errKeyTraversal
	}
	return nil
}
