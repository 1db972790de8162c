// Package alerting delivers fire-and-forget anomaly reports for persisted
// simulation failures. Delivery failures are logged and never propagated so
// the original error always wins.
package alerting

import (
	"context"

	"github.com/DataDog/datadog-go/v5/statsd"
	"go.uber.org/zap"
)

type ISink interface {
	ReportAnomaly(ctx context.Context, message string, simulationId string, forkId string)
}

// NoopSink is used when no alerting is configured; reporting is simply
// disabled rather than an error at call time.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) ReportAnomaly(ctx context.Context, message string, simulationId string, forkId string) {
}

// DogStatsdSink emits anomaly reports as datadog events.
type DogStatsdSink struct {
	client *statsd.Client
	logger *zap.Logger
}

func NewDogStatsdSink(url string, l *zap.Logger) (*DogStatsdSink, error) {
	client, err := statsd.New(url, statsd.WithNamespace("vaultsim."))
	if err != nil {
		return nil, err
	}
	return &DogStatsdSink{
		client: client,
		logger: l,
	}, nil
}

func (d *DogStatsdSink) ReportAnomaly(ctx context.Context, message string, simulationId string, forkId string) {
	event := statsd.NewEvent("vaultsim.simulation.anomaly", message)
	event.AlertType = statsd.Error
	event.Tags = []string{"simulation_id:" + simulationId}
	if forkId != "" {
		event.Tags = append(event.Tags, "fork_id:"+forkId)
	}

	if err := d.client.Event(event); err != nil {
		d.logger.Sugar().Errorw("Failed to report simulation anomaly",
			zap.Error(err),
			zap.String("simulationId", simulationId),
			zap.String("forkId", forkId),
		)
	}
}
