package mailscan_errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind sentinels. Every *PipelineError matches exactly one of them with errors.Is.
var (
	ErrConnection  = errors.New("mailbox connection failed")
	ErrAuth        = errors.New("mailbox authentication failed")
	ErrProtocol    = errors.New("mailbox protocol error")
	ErrWrite       = errors.New("attachment write failed")
	ErrExtraction  = errors.New("text extraction failed")
	ErrPersistence = errors.New("email persistence failed")
	ErrNotFound    = errors.New("attachment not found")
	ErrInvalidKey  = errors.New("invalid storage key")

	ErrBatchInProgress = errors.New("a batch is already running")
	ErrDuplicate       = errors.New("email already stored")
)

type Kind string

const (
	KindConnection  Kind = "connection"
	KindAuth        Kind = "auth"
	KindProtocol    Kind = "protocol"
	KindWrite       Kind = "write"
	KindExtraction  Kind = "extraction"
	KindPersistence Kind = "persistence"
	KindNotFound    Kind = "not_found"
	KindInvalidKey  Kind = "invalid_key"
	KindUnknown     Kind = "unknown"
)

var kindSentinels = map[Kind]error{
	KindConnection:  ErrConnection,
	KindAuth:        ErrAuth,
	KindProtocol:    ErrProtocol,
	KindWrite:       ErrWrite,
	KindExtraction:  ErrExtraction,
	KindPersistence: ErrPersistence,
	KindNotFound:    ErrNotFound,
	KindInvalidKey:  ErrInvalidKey,
}

// PipelineError tags an underlying error with the pipeline stage that produced it.
type PipelineError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, kindSentinels[e.Kind])
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, kindSentinels[e.Kind], e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func (e *PipelineError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

func newKind(kind Kind, op string, err error) error {
	return &PipelineError{Kind: kind, Op: op, Err: err}
}

func NewConnectionError(op string, err error) error  { return newKind(KindConnection, op, err) }
func NewAuthError(op string, err error) error        { return newKind(KindAuth, op, err) }
func NewProtocolError(op string, err error) error    { return newKind(KindProtocol, op, err) }
func NewWriteError(op string, err error) error       { return newKind(KindWrite, op, err) }
func NewExtractionError(op string, err error) error  { return newKind(KindExtraction, op, err) }
func NewPersistenceError(op string, err error) error { return newKind(KindPersistence, op, err) }
func NewNotFoundError(op string, err error) error    { return newKind(KindNotFound, op, err) }
func NewInvalidKeyError(op string, err error) error  { return newKind(KindInvalidKey, op, err) }

// KindOf reports the pipeline kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUnknown
}

// IsFatal reports whether err must abort a whole batch run.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindConnection, KindAuth, KindProtocol:
		return true
	default:
		return false
	}
}
