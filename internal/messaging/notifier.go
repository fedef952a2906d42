package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

var log = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

// NovelEventType - тип события жизненного цикла генерации
type NovelEventType string

// События жизненного цикла генерации
const (
	EventGenerationStarted   NovelEventType = "generation_started"
	EventChapterCompleted    NovelEventType = "chapter_completed"
	EventGenerationCompleted NovelEventType = "generation_completed"
	EventGenerationFailed    NovelEventType = "generation_failed"
)

// NovelEvent - полезная нагрузка уведомления о ходе генерации
type NovelEvent struct {
	Event         NovelEventType `json:"event"`
	NovelID       uuid.UUID      `json:"novel_id"`
	UserID        uuid.UUID      `json:"user_id"`
	ChapterNumber int            `json:"chapter_number,omitempty"`
	TotalChapters int            `json:"total_chapters,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// Notifier публикует события жизненного цикла генерации.
// Публикация - fire-and-forget: сбой уведомления не влияет на генерацию.
type Notifier interface {
	NotifyNovelEvent(ctx context.Context, event NovelEvent)
}

// RabbitMQNotifier публикует события в очередь RabbitMQ
type RabbitMQNotifier struct {
	channel   *amqp.Channel
	queueName string
}

// NewRabbitMQNotifier открывает канал и объявляет durable-очередь событий
func NewRabbitMQNotifier(conn *amqp.Connection, queueName string) (*RabbitMQNotifier, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("notifier: не удалось открыть канал: %w", err)
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("notifier: не удалось объявить очередь '%s': %w", queueName, err)
	}

	log.Info().Str("queue", queueName).Msg("Notifier initialized")
	return &RabbitMQNotifier{channel: ch, queueName: queueName}, nil
}

// NotifyNovelEvent публикует событие. Ошибки только логируются.
func (n *RabbitMQNotifier) NotifyNovelEvent(ctx context.Context, event NovelEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("novelID", event.NovelID.String()).Msg("Ошибка сериализации события")
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = n.channel.PublishWithContext(pubCtx,
		"",          // exchange (используем default)
		n.queueName, // routing key (имя очереди)
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    event.Timestamp,
			AppId:        "novelist-server",
		},
	)
	if err != nil {
		log.Error().Err(err).
			Str("event", string(event.Event)).
			Str("novelID", event.NovelID.String()).
			Msg("Ошибка публикации события")
		return
	}

	log.Debug().
		Str("event", string(event.Event)).
		Str("novelID", event.NovelID.String()).
		Msg("Событие опубликовано")
}

// Close закрывает канал нотификатора
func (n *RabbitMQNotifier) Close() error {
	return n.channel.Close()
}

// NoopNotifier - заглушка для запуска без RabbitMQ.
type NoopNotifier struct{}

// NewNoopNotifier создает нотификатор-заглушку
func NewNoopNotifier() *NoopNotifier {
	return &NoopNotifier{}
}

func (NoopNotifier) NotifyNovelEvent(ctx context.Context, event NovelEvent) {}
