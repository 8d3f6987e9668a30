package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/JaimeStill/einvoice/pkg/lifecycle"
)

const (
	eventTypePrefix      = "eg.gov.eta.einvoice.batch."
	cloudEventsMediaType = "application/cloudevents+json"
	pingTimeout          = 10 * time.Second
)

// Producer is the subset of *kgo.Client used to publish events.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Ping(ctx context.Context) error
	Close()
}

// Kafka publishes events as structured-mode CloudEvents to a Kafka topic,
// keyed by batch id.
type Kafka struct {
	producer Producer
	topic    string
	source   string
	logger   *slog.Logger
}

// NewKafka creates a Kafka notifier connected to the configured brokers.
func NewKafka(cfg *Config, logger *slog.Logger) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.BrokerList()...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return NewKafkaWithProducer(client, cfg.Topic, cfg.Source, logger), nil
}

// NewKafkaWithProducer creates a Kafka notifier on an existing producer.
func NewKafkaWithProducer(p Producer, topic, source string, logger *slog.Logger) *Kafka {
	return &Kafka{
		producer: p,
		topic:    topic,
		source:   source,
		logger:   logger.With("notifier", "kafka"),
	}
}

// Start registers a startup broker check and a shutdown hook that flushes
// and closes the producer. An unreachable broker is logged, not fatal.
func (k *Kafka) Start(lc *lifecycle.Coordinator) error {
	lc.OnStartup(func() error {
		ctx, cancel := context.WithTimeout(lc.Context(), pingTimeout)
		defer cancel()

		if err := k.producer.Ping(ctx); err != nil {
			k.logger.Warn("kafka brokers unreachable", "error", err)
			return nil
		}
		k.logger.Info("kafka notifier ready", "topic", k.topic)
		return nil
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		k.producer.Close()
		k.logger.Info("kafka notifier closed")
	})

	return nil
}

// Notify publishes e as a structured CloudEvent keyed by batch id.
func (k *Kafka) Notify(ctx context.Context, e Event) error {
	value, err := encodeCloudEvent(e, k.source)
	if err != nil {
		return err
	}

	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(e.BatchID.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "content-type", Value: []byte(cloudEventsMediaType)},
		},
	}

	if err := k.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish batch event: %w", err)
	}

	k.logger.Debug("batch event published", "batch_id", e.BatchID, "kind", e.Kind)
	return nil
}

func encodeCloudEvent(e Event, source string) ([]byte, error) {
	ce := cloudevents.NewEvent()
	ce.SetID(e.ID.String())
	ce.SetSource(source)
	ce.SetType(eventTypePrefix + string(e.Kind))
	ce.SetSubject(e.BatchID.String())
	ce.SetTime(e.OccurredAt)

	if err := ce.SetData(cloudevents.ApplicationJSON, e); err != nil {
		return nil, fmt.Errorf("set event data: %w", err)
	}
	if err := ce.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cloudevent: %w", err)
	}

	return json.Marshal(ce)
}
