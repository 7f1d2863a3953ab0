// Package notify hands user notifications to the delivery pipeline. Delivery
// itself happens downstream; senders here never block the caller on it and
// never report failure back.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/zap"
)

// Sender delivers a notification to a user, fire-and-forget.
type Sender interface {
	Send(ctx context.Context, userID, title, body string)
}

// Message is the record published for each notification.
type Message struct {
	UserID string    `json:"user_id"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sent_at"`
}

type producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Close()
}

// KafkaSender publishes notifications to a Kafka topic keyed by user.
type KafkaSender struct {
	client producer
	topic  string
	logger *zap.Logger
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// NewKafkaSender connects a producer client with kprom hooks attached.
func NewKafkaSender(conf KafkaConfig, metrics *kprom.Metrics, logger *zap.Logger) (*KafkaSender, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(conf.Brokers...),
		kgo.DefaultProduceTopic(conf.Topic),
		kgo.WithHooks(metrics),
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	return &KafkaSender{client: client, topic: conf.Topic, logger: logger}, nil
}

var _ Sender = (*KafkaSender)(nil)

func (k *KafkaSender) Send(ctx context.Context, userID, title, body string) {
	payload, err := json.Marshal(Message{UserID: userID, Title: title, Body: body, SentAt: time.Now().UTC()})
	if err != nil {
		k.logger.Error("failed to marshal notification", zap.String("user_id", userID), zap.Error(err))
		return
	}

	record := &kgo.Record{Topic: k.topic, Key: []byte(userID), Value: payload}
	// The request context may be gone before the broker acks.
	k.client.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if err != nil {
			k.logger.Warn("failed to publish notification",
				zap.String("user_id", userID), zap.String("title", title), zap.Error(err))
		}
	})
}

func (k *KafkaSender) Close() {
	k.client.Close()
}

// LogSender writes notifications to the log. Used when no broker is configured.
type LogSender struct {
	Logger *zap.Logger
}

func (l LogSender) Send(_ context.Context, userID, title, body string) {
	l.Logger.Info("notification", zap.String("user_id", userID), zap.String("title", title), zap.String("body", body))
}
