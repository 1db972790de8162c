package simulation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/meridian-fi/vaultsim/internal/config"
	"github.com/meridian-fi/vaultsim/pkg/alerting"
	"github.com/meridian-fi/vaultsim/pkg/metrics/metricsTypes"
	"go.uber.org/zap"
)

const (
	// DefaultGasLimit is used when no populated-transaction estimate is
	// available for the request.
	DefaultGasLimit = uint64(8_000_000)
)

// Client talks to the remote simulation backend: it submits simulation
// requests, manages the fork lifecycle and classifies backend failures.
type Client struct {
	httpClient *http.Client
	config     *config.SimulationConfig
	alertSink  alerting.ISink
	metrics    metricsTypes.IMetricsClient
	logger     *zap.Logger
}

func NewClient(
	cfg *config.SimulationConfig,
	sink alerting.ISink,
	metrics metricsTypes.IMetricsClient,
	l *zap.Logger,
) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		config:    cfg,
		alertSink: sink,
		metrics:   metrics,
		logger:    l,
	}
}

// SetHttpClient overrides the underlying http client, mainly for testing.
func (c *Client) SetHttpClient(client *http.Client) {
	c.httpClient = client
}

type simulateRequestBody struct {
	From           string `json:"from"`
	To             string `json:"to"`
	Input          string `json:"input"`
	NetworkId      string `json:"network_id"`
	BlockNumber    int64  `json:"block_number"`
	SimulationType string `json:"simulation_type"`
	Root           string `json:"root,omitempty"`
	Value          string `json:"value"`
	Gas            uint64 `json:"gas"`
	GasPrice       string `json:"gas_price"`
	Save           bool   `json:"save"`
}

type simulateResponseBody struct {
	Simulation struct {
		Id string `json:"id"`
	} `json:"simulation"`
	Transaction struct {
		ErrorMessage    string `json:"error_message,omitempty"`
		TransactionInfo struct {
			CallTrace *CallTrace  `json:"call_trace"`
			Logs      []*EventLog `json:"logs"`
		} `json:"transaction_info"`
	} `json:"transaction"`
}

type createForkRequestBody struct {
	Alias       string `json:"alias"`
	Description string `json:"description"`
	NetworkId   string `json:"network_id"`
}

type createForkResponseBody struct {
	SimulationFork struct {
		Id string `json:"id"`
	} `json:"simulation_fork"`
}

func (c *Client) post(ctx context.Context, url string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("x-access-key", c.config.AccessKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend request failed with status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func (c *Client) simulateUrl(forkId string) string {
	if forkId != "" {
		return fmt.Sprintf("%s/fork/%s/simulate", c.config.BaseUrl, forkId)
	}
	return fmt.Sprintf("%s/simulate", c.config.BaseUrl)
}

// Simulate submits the request and classifies the result. A transport failure
// is a BackendCallError. A backend-reported revert is a SimulationRevertError.
// A success whose nested frames carry errors is a PartialRevertError: a nested
// revert swallowed by the outer frame must never pass as success.
func (c *Client) Simulate(ctx context.Context, request *SimulationRequest) (*SimulationResult, error) {
	gas := request.GasLimit
	if gas == 0 {
		gas = DefaultGasLimit
	}
	gasPrice := "0"
	if request.GasPrice != nil {
		gasPrice = request.GasPrice.String()
	}
	value := "0"
	if request.Value != nil {
		value = request.Value.String()
	}

	body := &simulateRequestBody{
		From:           request.From,
		To:             request.To,
		Input:          request.Input,
		NetworkId:      request.NetworkId,
		BlockNumber:    -1,
		SimulationType: "quick",
		Root:           request.RootSimulationId,
		Value:          value,
		Gas:            gas,
		GasPrice:       gasPrice,
		Save:           request.Save,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &BackendCallError{Err: err}
	}

	c.logger.Sugar().Debugw("Submitting simulation",
		zap.String("to", request.To),
		zap.String("networkId", request.NetworkId),
		zap.String("forkId", request.ForkId),
		zap.String("root", request.RootSimulationId),
		zap.Bool("save", request.Save),
	)

	start := time.Now()
	respBody, err := c.post(ctx, c.simulateUrl(request.ForkId), payload)
	_ = c.metrics.Timing(metricsTypes.Metric_Timing_SimulationDuration, time.Since(start), nil)
	if err != nil {
		c.incrFailure("backend_call")
		return nil, &BackendCallError{Err: err}
	}

	var decoded simulateResponseBody
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		c.incrFailure("backend_call")
		return nil, &BackendCallError{Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}

	result := &SimulationResult{
		Id:           decoded.Simulation.Id,
		CallTrace:    decoded.Transaction.TransactionInfo.CallTrace,
		Logs:         decoded.Transaction.TransactionInfo.Logs,
		ErrorMessage: decoded.Transaction.ErrorMessage,
	}

	_ = c.metrics.Incr(metricsTypes.Metric_Incr_SimulationSubmitted, nil, 1)

	if result.ErrorMessage != "" {
		revertErr := &SimulationRevertError{
			SimulationId: result.Id,
			Message:      result.ErrorMessage,
		}
		if request.Save {
			c.alertSink.ReportAnomaly(ctx, revertErr.Error(), result.Id, request.ForkId)
		}
		c.incrFailure("revert")
		return nil, revertErr
	}

	if nestedErrors := FlattenCallErrors(result.CallTrace); len(nestedErrors) > 0 {
		partialErr := &PartialRevertError{
			SimulationId: result.Id,
			NestedErrors: nestedErrors,
		}
		if request.Save {
			c.alertSink.ReportAnomaly(ctx, partialErr.Error(), result.Id, request.ForkId)
		}
		c.incrFailure("partial_revert")
		return nil, partialErr
	}

	return result, nil
}

// CreateFork opens a fresh disposable chain-state branch on the backend.
func (c *Client) CreateFork(ctx context.Context, networkId string) (*Fork, error) {
	body := &createForkRequestBody{
		Alias:       uuid.New().String(),
		Description: fmt.Sprintf("vaultsim preview fork (network %s)", networkId),
		NetworkId:   networkId,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &ForkCreationError{Err: err}
	}

	respBody, err := c.post(ctx, fmt.Sprintf("%s/fork", c.config.BaseUrl), payload)
	if err != nil {
		return nil, &ForkCreationError{Err: err}
	}

	var decoded createForkResponseBody
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, &ForkCreationError{Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}

	_ = c.metrics.Incr(metricsTypes.Metric_Incr_ForkCreated, nil, 1)
	c.logger.Sugar().Debugw("Created fork", zap.String("forkId", decoded.SimulationFork.Id))

	return &Fork{Id: decoded.SimulationFork.Id}, nil
}

// DeleteFork is best-effort cleanup. Failures are logged, never propagated;
// a fork left behind is only an inspection artifact on the backend.
func (c *Client) DeleteFork(ctx context.Context, forkId string) {
	url := fmt.Sprintf("%s/fork/%s", c.config.BaseUrl, forkId)
	req, err := http.NewRequestWithContext(ctx, "DELETE", url, nil)
	if err != nil {
		c.logger.Sugar().Errorw("Failed to create fork deletion request", zap.Error(err), zap.String("forkId", forkId))
		return
	}
	req.Header.Set("x-access-key", c.config.AccessKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Sugar().Errorw("Failed to delete fork", zap.Error(err), zap.String("forkId", forkId))
		return
	}
	defer resp.Body.Close()

	_ = c.metrics.Incr(metricsTypes.Metric_Incr_ForkDeleted, nil, 1)
	c.logger.Sugar().Debugw("Deleted fork", zap.String("forkId", forkId))
}

func (c *Client) incrFailure(kind string) {
	_ = c.metrics.Incr(metricsTypes.Metric_Incr_SimulationFailed, []metricsTypes.MetricsLabel{
		{Name: "kind", Value: kind},
	}, 1)
}
