package utils

import "context"

type contextKey string

const (
	batchIDKey contextKey = "batchId"
	mailboxKey contextKey = "mailbox"
)

func WithBatchID(ctx context.Context, batchID string) context.Context {
	return context.WithValue(ctx, batchIDKey, batchID)
}

func GetBatchIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(batchIDKey).(string); ok {
		return v
	}
	return ""
}

func WithMailbox(ctx context.Context, mailbox string) context.Context {
	return context.WithValue(ctx, mailboxKey, mailbox)
}

func GetMailboxFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(mailboxKey).(string); ok {
		return v
	}
	return ""
}
