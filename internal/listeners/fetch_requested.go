package listeners

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailscan/dto"
	mailscan_errors "github.com/customeros/mailscan/errors"
	"github.com/customeros/mailscan/interfaces"
	"github.com/customeros/mailscan/internal/enum"
	"github.com/customeros/mailscan/internal/logger"
	"github.com/customeros/mailscan/internal/tracing"
	"github.com/customeros/mailscan/services/events"
)

type FetchRequestedListener struct {
	events.BaseEventListener
	pipeline interfaces.EmailPipeline
}

func NewFetchRequestedListener(logger logger.Logger, pipeline interfaces.EmailPipeline) interfaces.EventListener {
	return &FetchRequestedListener{
		BaseEventListener: events.NewBaseEventListener(
			logger,
			events.GetEventType[dto.FetchRequested](), // subscribed event
			events.QueueFetchRequested,                // listening on Direct queue
		),
		pipeline: pipeline,
	}
}

// Handle runs one batch. A batch already in progress covers the request, so
// the message is acknowledged. Fatal mailbox errors are returned and the
// message goes to the dead letter queue.
func (l *FetchRequestedListener) Handle(ctx context.Context, baseEvent any) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "FetchRequestedListener.Handle")
	defer span.Finish()
	tracing.SetDefaultListenerSpanTags(ctx, span)
	tracing.LogObjectAsJson(span, "event", baseEvent)

	validatedEvent, err := l.ValidateBaseEvent(ctx, baseEvent)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	request, err := events.DecodeEventData[dto.FetchRequested](ctx, validatedEvent)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	span.SetTag("requested-by", request.RequestedBy)

	result, err := l.pipeline.RunBatch(ctx, enum.BatchTriggerEvent)
	if errors.Is(err, mailscan_errors.ErrBatchInProgress) {
		l.Logger().Infof("Fetch requested by %q ignored, a batch is already running", request.RequestedBy)
		return nil
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	l.Logger().Infof("Fetch requested by %q completed as batch %s", request.RequestedBy, result.Summary.BatchID)
	return nil
}
