package api

import (
	"fmt"

	"github.com/JaimeStill/einvoice/internal/batch"
	"github.com/JaimeStill/einvoice/internal/documents"
	"github.com/JaimeStill/einvoice/internal/notify"
	"github.com/JaimeStill/einvoice/internal/regulator"
	"github.com/JaimeStill/einvoice/internal/signing"
	"github.com/JaimeStill/einvoice/pkg/lifecycle"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Documents   documents.System
	Signer      *signing.Remote
	Regulator   *regulator.Client
	Kafka       *notify.Kafka
	Registry    *batch.Registry
	Coordinator *batch.Coordinator
}

// NewDomain creates all domain systems from the API runtime. The Kafka
// notifier is only created when brokers are configured; batch events are
// always written to the log.
func NewDomain(runtime *Runtime) (*Domain, error) {
	docsSystem := documents.New(
		runtime.Database.Connection(),
		runtime.Storage,
		runtime.Logger,
		runtime.Pagination,
	)

	signer := signing.New(&runtime.Signing, runtime.Logger)
	client := regulator.New(&runtime.Regulator, runtime.Storage, runtime.Logger)

	notifiers := notify.Fanout{notify.NewLog(runtime.Logger)}

	var kafka *notify.Kafka
	if runtime.Notify.KafkaEnabled() {
		k, err := notify.NewKafka(&runtime.Notify, runtime.Logger)
		if err != nil {
			return nil, fmt.Errorf("kafka notifier init failed: %w", err)
		}
		kafka = k
		notifiers = append(notifiers, k)
	}

	registry := batch.NewRegistry(runtime.Logger)

	coordinator := batch.NewCoordinator(batch.Deps{
		Store:         docsSystem,
		Signer:        signer,
		Submitter:     client,
		Notifier:      notifiers,
		Registry:      registry,
		Metrics:       batch.NewMetrics(runtime.Metrics),
		NotifyTimeout: runtime.Batch.NotifyTimeoutDuration(),
		Logger:        runtime.Logger,
	})

	return &Domain{
		Documents:   docsSystem,
		Signer:      signer,
		Regulator:   client,
		Kafka:       kafka,
		Registry:    registry,
		Coordinator: coordinator,
	}, nil
}

// Start registers the lifecycle hooks of the domain systems.
func (d *Domain) Start(lc *lifecycle.Coordinator) error {
	if err := d.Regulator.Start(lc); err != nil {
		return fmt.Errorf("regulator start failed: %w", err)
	}
	if d.Kafka != nil {
		if err := d.Kafka.Start(lc); err != nil {
			return fmt.Errorf("kafka start failed: %w", err)
		}
	}
	if err := d.Registry.Start(lc); err != nil {
		return fmt.Errorf("registry start failed: %w", err)
	}
	return nil
}
