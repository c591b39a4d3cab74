package interfaces

import (
	"context"

	"github.com/customeros/mailscan/dto"
	"github.com/customeros/mailscan/internal/enum"
)

type EmailPipeline interface {
	RunBatch(ctx context.Context, trigger enum.BatchTrigger) (*dto.BatchResult, error)
	LastSummary() *dto.BatchSummary
}
