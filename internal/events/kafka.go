package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/and161185/shopledger/internal/errs"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const publishTimeout = 10 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	logger *zap.SugaredLogger
}

// NewKafkaPublisher writes events to topic on the comma separated brokers.
func NewKafkaPublisher(brokers, topic string, logger *zap.SugaredLogger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(brokers, ",")...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}

	return &KafkaPublisher{writer: writer, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errs.Wrap(err, "marshal event")
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.Key()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errs.Wrapf(err, "publish %s", event.Type)
	}

	p.logger.Debugw("event published", "event_id", event.ID, "type", event.Type)
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
