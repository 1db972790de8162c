package ethereum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

type EthereumClientConfig struct {
	BaseUrl string
}

func DefaultEthereumClientConfig() *EthereumClientConfig {
	return &EthereumClientConfig{}
}

// Client is a minimal JSON-RPC client covering the read calls the SDK needs
// (eth_call, eth_estimateGas, eth_gasPrice).
type Client struct {
	httpClient *http.Client
	config     *EthereumClientConfig
	logger     *zap.Logger
	requestId  atomic.Uint64
}

func NewClient(cfg *EthereumClientConfig, l *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		config: cfg,
		logger: l,
	}
}

// SetHttpClient overrides the underlying http client, mainly for testing.
func (c *Client) SetHttpClient(client *http.Client) {
	c.httpClient = client
}

type rpcRequest struct {
	JsonRPC string        `json:"jsonrpc"`
	Id      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JsonRPC string          `json:"jsonrpc"`
	Id      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	reqBody := &rpcRequest{
		JsonRPC: "2.0",
		Id:      c.requestId.Add(1),
		Method:  method,
		Params:  params,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseUrl, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("content-type", "application/json")

	c.logger.Sugar().Debugw("Making Ethereum RPC request",
		zap.String("method", method),
	)

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
		return nil, fmt.Errorf("RPC request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("RPC error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}

// Call performs an eth_call against the latest block and returns the raw
// hex-encoded return data.
func (c *Client) Call(ctx context.Context, to string, data string) (string, error) {
	result, err := c.call(ctx, "eth_call", []interface{}{
		map[string]string{"to": to, "data": data},
		"latest",
	})
	if err != nil {
		return "", err
	}
	var out string
	if err := json.Unmarshal(result, &out); err != nil {
		return "", fmt.Errorf("failed to unmarshal eth_call result: %w", err)
	}
	return out, nil
}

// EstimateGas returns the gas estimate for the given call. value may be nil.
func (c *Client) EstimateGas(ctx context.Context, from string, to string, data string, value *big.Int) (uint64, error) {
	callArgs := map[string]string{
		"from": from,
		"to":   to,
		"data": data,
	}
	if value != nil && value.Sign() > 0 {
		callArgs["value"] = hexutil.EncodeBig(value)
	}
	result, err := c.call(ctx, "eth_estimateGas", []interface{}{callArgs})
	if err != nil {
		return 0, err
	}
	var out string
	if err := json.Unmarshal(result, &out); err != nil {
		return 0, fmt.Errorf("failed to unmarshal eth_estimateGas result: %w", err)
	}
	return hexutil.DecodeUint64(out)
}

// GasPrice returns the node's current gas price suggestion.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	result, err := c.call(ctx, "eth_gasPrice", []interface{}{})
	if err != nil {
		return nil, err
	}
	var out string
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal eth_gasPrice result: %w", err)
	}
	return hexutil.DecodeBig(out)
}
