package wido

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/meridian-fi/vaultsim/internal/config"
	"github.com/meridian-fi/vaultsim/pkg/zaps/zapTypes"
	"go.uber.org/zap"
)

// Client implements the zap provider interface against the Wido router API.
type Client struct {
	httpClient *http.Client
	baseUrl    string
	networkId  string
	logger     *zap.Logger
}

func NewClient(cfg *config.ZapConfig, networkId string, l *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseUrl:   cfg.WidoBaseUrl,
		networkId: networkId,
		logger:    l,
	}
}

// SetHttpClient overrides the underlying http client, mainly for testing.
func (c *Client) SetHttpClient(client *http.Client) {
	c.httpClient = client
}

func (c *Client) Tag() zapTypes.ProviderTag {
	return zapTypes.ProviderTag_Wido
}

type quoteResponse struct {
	To       string `json:"to"`
	Data     string `json:"data"`
	Value    string `json:"value"`
	GasLimit uint64 `json:"gas_limit"`
}

type tokenAllowanceResponse struct {
	Spender   string `json:"spender"`
	Allowance string `json:"allowance"`
}

type approvalTxResponse struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

func (c *Client) get(ctx context.Context, url string, query map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	q := req.URL.Query()
	for k, v := range query {
		q.Add(k, v)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("accept", "application/json")

	c.logger.Sugar().Debugw("Making Wido request", zap.String("url", req.URL.String()))

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
		return nil, fmt.Errorf("wido request failed with status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func (c *Client) Quote(ctx context.Context, request *zapTypes.QuoteRequest) (*zapTypes.Quote, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/quote", c.baseUrl), map[string]string{
		"chain_id":            c.networkId,
		"user":                request.Sender,
		"from_token":          request.SourceToken,
		"to_token":            request.TargetToken,
		"amount":              request.Amount.String(),
		"slippage_percentage": fmt.Sprintf("%g", request.Slippage),
	})
	if err != nil {
		return nil, err
	}

	var decoded quoteResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	value := big.NewInt(0)
	if decoded.Value != "" {
		if _, ok := value.SetString(decoded.Value, 10); !ok {
			return nil, fmt.Errorf("invalid tx value '%s'", decoded.Value)
		}
	}

	return &zapTypes.Quote{
		To:          decoded.To,
		Data:        decoded.Data,
		Value:       value,
		GasEstimate: decoded.GasLimit,
	}, nil
}

func (c *Client) GetApprovalState(ctx context.Context, owner string, token string, amount *big.Int) (*zapTypes.ApprovalState, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/token_allowance", c.baseUrl), map[string]string{
		"chain_id": c.networkId,
		"user":     owner,
		"token":    token,
	})
	if err != nil {
		return nil, err
	}

	var decoded tokenAllowanceResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	allowance := big.NewInt(0)
	if decoded.Allowance != "" {
		if _, ok := allowance.SetString(decoded.Allowance, 10); !ok {
			return nil, fmt.Errorf("invalid allowance '%s'", decoded.Allowance)
		}
	}

	return &zapTypes.ApprovalState{
		OwnerAddress:   owner,
		SpenderAddress: decoded.Spender,
		TokenAddress:   token,
		Allowance:      allowance,
		IsSufficient:   allowance.Cmp(amount) >= 0,
	}, nil
}

func (c *Client) BuildApprovalTransaction(ctx context.Context, token string, amount *big.Int) (*zapTypes.ApprovalTransaction, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/approval_transaction", c.baseUrl), map[string]string{
		"chain_id": c.networkId,
		"token":    token,
		"amount":   amount.String(),
	})
	if err != nil {
		return nil, err
	}

	var decoded approvalTxResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if decoded.To == "" || decoded.Data == "" {
		return nil, fmt.Errorf("wido returned no approval transaction for token %s", token)
	}

	return &zapTypes.ApprovalTransaction{
		To:   decoded.To,
		Data: decoded.Data,
	}, nil
}
