package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	mailscan_errors "github.com/customeros/mailscan/errors"
	"github.com/customeros/mailscan/internal/logger"
)

type mockStorageService struct {
	mock.Mock
}

func (m *mockStorageService) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

func (m *mockStorageService) Download(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if b, ok := args.Get(0).([]byte); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStorageService) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockStorageService) GetPublicURL(key string) string {
	return ""
}

func newLocalStore(t *testing.T) (*attachmentStore, string) {
	t.Helper()
	dir := t.TempDir()
	blobs, err := NewLocalStorageService(dir)
	require.NoError(t, err)
	return NewAttachmentStore(blobs, logger.NewNopLogger()).(*attachmentStore), dir
}

func TestAttachmentStore_RoundTrip(t *testing.T) {
	store, _ := newLocalStore(t)
	ctx := context.Background()

	binary := make([]byte, 256)
	for i := range binary {
		binary[i] = byte(i)
	}

	tests := []struct {
		name     string
		filename string
		data     []byte
	}{
		{"pdf", "invoice.pdf", []byte("%PDF-1.4 fake")},
		{"binary with all byte values", "scan.png", binary},
		{"empty attachment", "empty.txt", []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := store.Put(ctx, tt.filename, "application/octet-stream", tt.data)
			require.NoError(t, err)

			got, err := store.Get(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, len(tt.data), len(got))
			if len(tt.data) > 0 {
				assert.Equal(t, tt.data, got)
			}
		})
	}
}

func TestAttachmentStore_UniqueKeysForSameFilename(t *testing.T) {
	store, dir := newLocalStore(t)
	store.now = func() int64 { return 1700000000000000000 }
	ctx := context.Background()

	key1, err := store.Put(ctx, "invoice.pdf", "application/pdf", []byte("first"))
	require.NoError(t, err)
	key2, err := store.Put(ctx, "invoice.pdf", "application/pdf", []byte("second"))
	require.NoError(t, err)

	assert.NotEqual(t, key1, key2)
	assert.True(t, strings.HasSuffix(key1, "_invoice.pdf"))
	assert.True(t, strings.HasPrefix(key1, "1700000000000000000_"))

	first, err := store.Get(ctx, key1)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), first)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestAttachmentStore_KeyIsSanitized(t *testing.T) {
	store, dir := newLocalStore(t)

	key, err := store.Put(context.Background(), "../../etc/passwd", "text/plain", []byte("x"))
	require.NoError(t, err)

	assert.NoError(t, ValidateStorageKey(key))
	assert.True(t, strings.HasSuffix(key, "_passwd"))
	_, err = os.Stat(filepath.Join(dir, key))
	assert.NoError(t, err)
}

func TestAttachmentStore_EmptyFilenameUsesContentType(t *testing.T) {
	store, _ := newLocalStore(t)

	key, err := store.Put(context.Background(), "", "application/pdf", []byte("x"))
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(key, "_attachment.pdf"))
}

func TestAttachmentStore_GetRejectsInvalidKeys(t *testing.T) {
	blobs := new(mockStorageService)
	store := NewAttachmentStore(blobs, logger.NewNopLogger())

	for _, key := range []string{"", ".", "..", "../secret", "a/b", `a\b`, "x..y", "  "} {
		t.Run(key, func(t *testing.T) {
			_, err := store.Get(context.Background(), key)

			assert.ErrorIs(t, err, mailscan_errors.ErrInvalidKey)
		})
	}

	// storage must not be touched for rejected keys
	blobs.AssertNotCalled(t, "Download", mock.Anything, mock.Anything)
}

func TestAttachmentStore_GetUnknownKey(t *testing.T) {
	store, _ := newLocalStore(t)

	_, err := store.Get(context.Background(), "1_abc_missing.pdf")

	assert.ErrorIs(t, err, mailscan_errors.ErrNotFound)
}

func TestAttachmentStore_PutFailureIsWriteError(t *testing.T) {
	blobs := new(mockStorageService)
	blobs.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("disk full"))
	store := NewAttachmentStore(blobs, logger.NewNopLogger())

	key, err := store.Put(context.Background(), "invoice.pdf", "application/pdf", []byte("x"))

	assert.Empty(t, key)
	assert.ErrorIs(t, err, mailscan_errors.ErrWrite)
	assert.Equal(t, mailscan_errors.KindWrite, mailscan_errors.KindOf(err))
}

func TestLocalStorageService_WriteOnce(t *testing.T) {
	blobs, err := NewLocalStorageService(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, blobs.Upload(ctx, "k", []byte("a"), "text/plain"))
	assert.Error(t, blobs.Upload(ctx, "k", []byte("b"), "text/plain"))

	data, err := blobs.Download(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), data)
}

func TestAttachmentStore_Delete(t *testing.T) {
	// Arrange
	store, dir := newLocalStore(t)
	ctx := context.Background()
	key, err := store.Put(ctx, "invoice.pdf", "application/pdf", []byte("%PDF"))
	require.NoError(t, err)

	// Act
	require.NoError(t, store.Delete(ctx, key))

	// Assert
	_, err = os.Stat(filepath.Join(dir, key))
	assert.True(t, os.IsNotExist(err))
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, mailscan_errors.ErrNotFound)
	assert.NoError(t, store.Delete(ctx, key), "deleting twice is not an error")
}

func TestAttachmentStore_DeleteRejectsInvalidKeys(t *testing.T) {
	blobs := new(mockStorageService)
	store := NewAttachmentStore(blobs, logger.NewNopLogger())

	err := store.Delete(context.Background(), "../uploads")

	assert.ErrorIs(t, err, mailscan_errors.ErrInvalidKey)
	blobs.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}
