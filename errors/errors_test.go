package mailscan_errors

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestPipelineError_IsMatchesKindSentinel(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")

	err := NewConnectionError("imap.connect", cause)

	assert.True(t, errors.Is(err, ErrConnection))
	assert.False(t, errors.Is(err, ErrAuth))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "imap.connect")
	assert.Contains(t, err.Error(), "i/o timeout")
}

func TestKindOf_WrappedError(t *testing.T) {
	err := fmt.Errorf("batch: %w", NewAuthError("imap.login", errors.New("NO LOGIN failed")))

	assert.Equal(t, KindAuth, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, KindNotFound, KindOf(errors.Wrap(ErrNotFound, "get")))
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		err   error
		fatal bool
	}{
		{NewConnectionError("op", nil), true},
		{NewAuthError("op", nil), true},
		{NewProtocolError("op", nil), true},
		{NewWriteError("op", nil), false},
		{NewExtractionError("op", nil), false},
		{NewPersistenceError("op", nil), false},
		{errors.New("other"), false},
		{nil, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.fatal, IsFatal(tt.err), "%v", tt.err)
	}
}
