package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
	Flush()
}

type MetricsLabel struct {
	Name  string
	Value string
}

var (
	Metric_Incr_SimulationSubmitted = "simulation.submitted"
	Metric_Incr_SimulationFailed    = "simulation.failed"
	Metric_Incr_ForkCreated         = "fork.created"
	Metric_Incr_ForkDeleted         = "fork.deleted"
	Metric_Incr_OperationPreviewed  = "operation.previewed"

	Metric_Timing_SimulationDuration = "simulation.duration"
	Metric_Timing_OperationDuration  = "operation.duration"
)

// NoopMetricsClient satisfies IMetricsClient for consumers that do not
// configure a metrics sink.
type NoopMetricsClient struct{}

func NewNoopMetricsClient() *NoopMetricsClient {
	return &NoopMetricsClient{}
}

func (n *NoopMetricsClient) Incr(name string, labels []MetricsLabel, value float64) error {
	return nil
}

func (n *NoopMetricsClient) Gauge(name string, value float64, labels []MetricsLabel) error {
	return nil
}

func (n *NoopMetricsClient) Timing(name string, value time.Duration, labels []MetricsLabel) error {
	return nil
}

func (n *NoopMetricsClient) Flush() {}
