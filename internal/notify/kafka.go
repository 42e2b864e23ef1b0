package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"wagerbot/internal/events"
	"wagerbot/internal/metrics"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter builds the writer used by Kafka.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	if topic == "" {
		topic = events.Topic
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           10 * time.Second,
	}
}

// Kafka appends every status event to a topic, keyed by wager id so one
// wager's events stay ordered within a partition.
type Kafka struct {
	w   messageWriter
	log *zap.Logger
}

func NewKafka(w messageWriter, log *zap.Logger) *Kafka {
	if log == nil {
		log = zap.NewNop()
	}
	return &Kafka{w: w, log: log.Named("kafka")}
}

func (k *Kafka) Notify(ctx context.Context, e events.Event) {
	value, err := json.Marshal(e)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		err = k.w.WriteMessages(ctx, kafka.Message{
			Key:   []byte(strconv.FormatInt(e.WagerID, 10)),
			Value: value,
			Time:  e.OccurredAt,
		})
	}
	if err != nil {
		metrics.NotifyFailures.WithLabelValues("kafka").Inc()
		k.log.Error("failed to publish status event", zap.String("event_id", e.ID), zap.Error(err))
		return
	}
	k.log.Debug("published status event", zap.String("event_id", e.ID), zap.String("kind", string(e.Kind)))
}

func (k *Kafka) Close() error {
	return k.w.Close()
}
