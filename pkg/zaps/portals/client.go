package portals

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

// Client implements the zap provider interface against the Portals router API.
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
		baseUrl:   cfg.PortalsBaseUrl,
		networkId: networkId,
		logger:    l,
	}
}

// SetHttpClient overrides the underlying http client, mainly for testing.
func (c *Client) SetHttpClient(client *http.Client) {
	c.httpClient = client
}

func (c *Client) Tag() zapTypes.ProviderTag {
	return zapTypes.ProviderTag_Portals
}

type portalResponse struct {
	Tx struct {
		To    string `json:"to"`
		Data  string `json:"data"`
		Value string `json:"value"`
	} `json:"tx"`
	Context struct {
		GasLimit uint64 `json:"gasLimit"`
	} `json:"context"`
}

type approvalResponse struct {
	Context struct {
		Spender       string `json:"spender"`
		Allowance     string `json:"allowance"`
		ShouldApprove bool   `json:"shouldApprove"`
	} `json:"context"`
	Approve struct {
		To   string `json:"to"`
		Data string `json:"data"`
	} `json:"approve"`
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

	c.logger.Sugar().Debugw("Making Portals request", zap.String("url", req.URL.String()))

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
		return nil, fmt.Errorf("portals request failed with status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func (c *Client) Quote(ctx context.Context, request *zapTypes.QuoteRequest) (*zapTypes.Quote, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/v2/portal", c.baseUrl), map[string]string{
		"network":                     c.networkId,
		"sender":                      request.Sender,
		"inputToken":                  request.SourceToken,
		"outputToken":                 request.TargetToken,
		"inputAmount":                 request.Amount.String(),
		"slippageTolerancePercentage": fmt.Sprintf("%g", request.Slippage),
	})
	if err != nil {
		return nil, err
	}

	var decoded portalResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	value := big.NewInt(0)
	if decoded.Tx.Value != "" {
		if _, ok := value.SetString(decoded.Tx.Value, 10); !ok {
			return nil, fmt.Errorf("invalid tx value '%s'", decoded.Tx.Value)
		}
	}

	return &zapTypes.Quote{
		To:          decoded.Tx.To,
		Data:        decoded.Tx.Data,
		Value:       value,
		GasEstimate: decoded.Context.GasLimit,
	}, nil
}

func (c *Client) GetApprovalState(ctx context.Context, owner string, token string, amount *big.Int) (*zapTypes.ApprovalState, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/v2/approval", c.baseUrl), map[string]string{
		"network":     c.networkId,
		"sender":      owner,
		"inputToken":  token,
		"inputAmount": amount.String(),
	})
	if err != nil {
		return nil, err
	}

	var decoded approvalResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	allowance := big.NewInt(0)
	if decoded.Context.Allowance != "" {
		if _, ok := allowance.SetString(decoded.Context.Allowance, 10); !ok {
			return nil, fmt.Errorf("invalid allowance '%s'", decoded.Context.Allowance)
		}
	}

	return &zapTypes.ApprovalState{
		OwnerAddress:   owner,
		SpenderAddress: decoded.Context.Spender,
		TokenAddress:   token,
		Allowance:      allowance,
		IsSufficient:   !decoded.Context.ShouldApprove,
	}, nil
}

func (c *Client) BuildApprovalTransaction(ctx context.Context, token string, amount *big.Int) (*zapTypes.ApprovalTransaction, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/v2/approval", c.baseUrl), map[string]string{
		"network":     c.networkId,
		"inputToken":  token,
		"inputAmount": amount.String(),
	})
	if err != nil {
		return nil, err
	}

	var decoded approvalResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if decoded.Approve.To == "" || decoded.Approve.Data == "" {
		return nil, fmt.Errorf("portals returned no approval transaction for token %s", token)
	}

	return &zapTypes.ApprovalTransaction{
		To:   decoded.Approve.To,
		Data: decoded.Approve.Data,
	}, nil
}
