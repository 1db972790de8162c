package wido

import (
	"context"
	"math/big"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/meridian-fi/vaultsim/internal/config"
	"github.com/meridian-fi/vaultsim/pkg/logger"
	"github.com/meridian-fi/vaultsim/pkg/zaps/zapTypes"
	"github.com/stretchr/testify/assert"
)

func newTestClient() *Client {
	client := NewClient(&config.ZapConfig{WidoBaseUrl: "https://api.joinwido.com"}, "1", logger.NewNoopLogger())
	client.SetHttpClient(&http.Client{Transport: httpmock.DefaultTransport})
	return client
}

func Test_WidoClient(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	t.Run("Quote", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("GET", "https://api.joinwido.com/quote",
			httpmock.NewStringResponder(200, `{"to": "0xwido", "data": "0xfeedface", "value": "42", "gas_limit": 300000}`))

		quote, err := newTestClient().Quote(context.Background(), &zapTypes.QuoteRequest{
			Sender:      "0xabc0000000000000000000000000000000000001",
			SourceToken: "0xsource",
			TargetToken: "0xtarget",
			Amount:      big.NewInt(1000),
			Slippage:    1,
		})
		assert.Nil(t, err)
		assert.Equal(t, "0xwido", quote.To)
		assert.Equal(t, big.NewInt(42), quote.Value)
	})

	t.Run("GetApprovalState computes sufficiency", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("GET", "https://api.joinwido.com/token_allowance",
			httpmock.NewStringResponder(200, `{"spender": "0xspender", "allowance": "2000"}`))

		state, err := newTestClient().GetApprovalState(context.Background(), "0xowner", "0xtoken", big.NewInt(1000))
		assert.Nil(t, err)
		assert.True(t, state.IsSufficient)

		state, err = newTestClient().GetApprovalState(context.Background(), "0xowner", "0xtoken", big.NewInt(3000))
		assert.Nil(t, err)
		assert.False(t, state.IsSufficient)
	})

	t.Run("BuildApprovalTransaction requires a payload", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("GET", "https://api.joinwido.com/approval_transaction",
			httpmock.NewStringResponder(200, `{}`))

		_, err := newTestClient().BuildApprovalTransaction(context.Background(), "0xtoken", big.NewInt(1000))
		assert.NotNil(t, err)
	})
}
