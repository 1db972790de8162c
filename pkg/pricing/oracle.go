package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/meridian-fi/vaultsim/internal/config"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// IPriceOracle values a base-unit token amount in USDC terms.
type IPriceOracle interface {
	GetUsdValue(ctx context.Context, tokenAddress string, amount *big.Int) (decimal.Decimal, error)
}

// Client fetches token prices from a price-lens service.
type Client struct {
	httpClient *http.Client
	baseUrl    string
	networkId  string
	logger     *zap.Logger
}

type priceResponse struct {
	Address   string `json:"address"`
	PriceUsdc string `json:"price_usdc"`
	Decimals  int32  `json:"decimals"`
}

func NewClient(cfg *config.OracleConfig, networkId string, l *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseUrl:   cfg.BaseUrl,
		networkId: networkId,
		logger:    l,
	}
}

// SetHttpClient overrides the underlying http client, mainly for testing.
func (c *Client) SetHttpClient(client *http.Client) {
	c.httpClient = client
}

// GetUsdValue fetches the token's unit price and scales the base-unit amount
// by the token's decimals. Money math stays in decimals, never float64.
func (c *Client) GetUsdValue(ctx context.Context, tokenAddress string, amount *big.Int) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/prices/%s/%s", c.baseUrl, c.networkId, tokenAddress)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("accept", "application/json")

	c.logger.Sugar().Debugw("Making price oracle request",
		zap.String("url", url),
		zap.String("token", tokenAddress),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusNotFound {
			return decimal.Zero, fmt.Errorf("token not priced: %s", tokenAddress)
		}
		return decimal.Zero, fmt.Errorf("oracle request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var price priceResponse
	if err := json.Unmarshal(body, &price); err != nil {
		return decimal.Zero, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	unitPrice, err := decimal.NewFromString(price.PriceUsdc)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price '%s' for token %s: %w", price.PriceUsdc, tokenAddress, err)
	}

	scaled := decimal.NewFromBigInt(amount, -price.Decimals)
	return unitPrice.Mul(scaled), nil
}
