package models

import "time"

// RawMessage is one message as fetched from the mailbox. It is consumed once
// by the parser and never persisted.
type RawMessage struct {
	SeqNum uint32
	UID    uint32
	Data   []byte
}

// Defaults applied by the parser when a header or body is missing.
const (
	DefaultSubject  = "No Subject"
	DefaultSender   = "Unknown Sender"
	DefaultReceiver = "Unknown Receiver"
	DefaultBody     = "Empty Body"
)

// Column widths of the varchar fields a ParsedEmail is stored in, counted in
// characters.
const (
	MaxMessageIDLength   = 255
	MaxSubjectLength     = 1000
	MaxSenderLength      = 500
	MaxFilenameLength    = 500
	MaxContentTypeLength = 255
)

// ParsedEmail is the immutable result of decoding a RawMessage.
type ParsedEmail struct {
	MessageID   string
	Subject     string
	Sender      string
	Receiver    string
	Body        string
	SentAt      *time.Time
	Attachments []AttachmentDescriptor
}

// AttachmentDescriptor carries one attachment part verbatim until it is
// handed to the attachment store.
type AttachmentDescriptor struct {
	Filename    string
	ContentType string
	Size        int
	Data        []byte
}

// FetchWindow bounds a fetch to Limit messages by sequence number. The most
// recent messages are taken unless FromOldest is set.
type FetchWindow struct {
	Limit      int
	FromOldest bool
}
