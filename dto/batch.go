package dto

import (
	"time"

	"github.com/customeros/mailscan/internal/enum"
	"github.com/customeros/mailscan/internal/models"
)

// BatchSummary is the outcome of one pipeline run.
type BatchSummary struct {
	BatchID    string            `json:"batchId"`
	Trigger    enum.BatchTrigger `json:"trigger"`
	Mailbox    string            `json:"mailbox"`
	State      enum.BatchState   `json:"state"`
	Fetched    int               `json:"fetched"`
	Succeeded  int               `json:"succeeded"`
	Duplicates int               `json:"duplicates"`
	Skipped    []SkippedEmail    `json:"skipped"`
	Error      string            `json:"error,omitempty"`
	ErrorKind  string            `json:"errorKind,omitempty"`
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt time.Time         `json:"finishedAt"`
}

type SkippedEmail struct {
	SeqNum    uint32 `json:"seqNum"`
	MessageID string `json:"messageId,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Reason    string `json:"reason"`
}

// BatchResult carries the summary plus the records saved in the run.
type BatchResult struct {
	Summary *BatchSummary   `json:"summary"`
	Emails  []*models.Email `json:"emails"`
}
