package internal

import (
	"log"

	"github.com/customeros/mailscan/internal/listeners"
	"github.com/customeros/mailscan/internal/logger"
	"github.com/customeros/mailscan/services"
)

// InitListeners subscribes the fetch request listener when RabbitMQ is
// configured.
func InitListeners(s *services.Services, appLogger logger.Logger) error {
	if s.EventsService == nil || s.EventsService.Subscriber == nil {
		log.Println("Events disabled, no listeners registered")
		return nil
	}

	subscriber := s.EventsService.Subscriber
	fetchListener := listeners.NewFetchRequestedListener(appLogger, s.Pipeline)
	subscriber.RegisterListener(fetchListener)

	if err := subscriber.ListenQueue(fetchListener.GetQueueName()); err != nil {
		return err
	}

	log.Printf("Listening for %s on %s", fetchListener.GetEventType(), fetchListener.GetQueueName())
	return nil
}
