package dogstatsd

import (
	"fmt"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/meridian-fi/vaultsim/pkg/metrics/metricsTypes"
	"go.uber.org/zap"
)

type DogStatsdMetricsClient struct {
	client *statsd.Client
	logger *zap.Logger
}

func NewDogStatsdMetricsClient(url string, l *zap.Logger) (*DogStatsdMetricsClient, error) {
	client, err := statsd.New(url, statsd.WithNamespace("vaultsim."))
	if err != nil {
		return nil, err
	}
	return &DogStatsdMetricsClient{
		client: client,
		logger: l,
	}, nil
}

func labelsToTags(labels []metricsTypes.MetricsLabel) []string {
	tags := make([]string, 0, len(labels))
	for _, l := range labels {
		tags = append(tags, fmt.Sprintf("%s:%s", l.Name, l.Value))
	}
	return tags
}

func (d *DogStatsdMetricsClient) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	return d.client.Incr(name, labelsToTags(labels), value)
}

func (d *DogStatsdMetricsClient) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	return d.client.Gauge(name, value, labelsToTags(labels), 1)
}

func (d *DogStatsdMetricsClient) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	return d.client.Timing(name, value, labelsToTags(labels), 1)
}

func (d *DogStatsdMetricsClient) Flush() {
	if err := d.client.Flush(); err != nil {
		d.logger.Sugar().Errorw("Failed to flush statsd client", zap.Error(err))
	}
}
