package interfaces

import (
	"context"

	"github.com/customeros/mailscan/dto"
)

type EventPublisher interface {
	PublishEmailProcessed(ctx context.Context, event dto.EmailProcessed) error
	PublishFetchRequested(ctx context.Context, event dto.FetchRequested) error
	Close() error
}

type EventListener interface {
	Handle(ctx context.Context, event any) error
	GetEventType() string
	GetQueueName() string
}

type EventSubscriber interface {
	RegisterListener(listener EventListener)
	ListenQueue(queueName string) error
	Close() error
}
