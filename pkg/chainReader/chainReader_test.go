package chainReader

import (
	"context"
	"math/big"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/meridian-fi/vaultsim/pkg/clients/ethereum"
	"github.com/meridian-fi/vaultsim/pkg/logger"
	"github.com/stretchr/testify/assert"
)

const rpcUrl = "http://localhost:8545"

func newTestReader() *ChainReader {
	l := logger.NewNoopLogger()
	client := ethereum.NewClient(&ethereum.EthereumClientConfig{BaseUrl: rpcUrl}, l)
	client.SetHttpClient(&http.Client{Transport: httpmock.DefaultTransport})
	return NewChainReader(client, l)
}

func Test_ChainReader(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	t.Run("GetAllowance", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", rpcUrl,
			httpmock.NewStringResponder(200, `{"jsonrpc":"2.0","id":1,"result":"0x0000000000000000000000000000000000000000000000000de0b6b3a7640000"}`))

		reader := newTestReader()
		allowance, err := reader.GetAllowance(
			context.Background(),
			"0xabc0000000000000000000000000000000000001",
			"0xabc0000000000000000000000000000000000002",
			"0xabc0000000000000000000000000000000000003",
		)
		assert.Nil(t, err)
		expected, _ := new(big.Int).SetString("1000000000000000000", 10)
		assert.Equal(t, expected, allowance)
	})

	t.Run("GetUnderlyingAsset", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", rpcUrl,
			httpmock.NewStringResponder(200, `{"jsonrpc":"2.0","id":1,"result":"0x0000000000000000000000006b175474e89094c44da98b954eedeac495271d0f"}`))

		reader := newTestReader()
		underlying, err := reader.GetUnderlyingAsset(context.Background(), "0xabc0000000000000000000000000000000000004")
		assert.Nil(t, err)
		assert.Equal(t, "0x6B175474E89094C44Da98b954EedeAC495271d0F", underlying)
	})

	t.Run("GetUnderlyingAsset fails when both probes return null", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", rpcUrl,
			httpmock.NewStringResponder(200, `{"jsonrpc":"2.0","id":1,"result":"0x0000000000000000000000000000000000000000000000000000000000000000"}`))

		reader := newTestReader()
		_, err := reader.GetUnderlyingAsset(context.Background(), "0xabc0000000000000000000000000000000000004")
		assert.NotNil(t, err)
	})

	t.Run("PopulateTransaction", func(t *testing.T) {
		httpmock.Reset()
		responses := []string{
			`{"jsonrpc":"2.0","id":1,"result":"0x30d40"}`,
			`{"jsonrpc":"2.0","id":2,"result":"0x3b9aca00"}`,
		}
		call := 0
		httpmock.RegisterResponder("POST", rpcUrl, func(req *http.Request) (*http.Response, error) {
			resp := httpmock.NewStringResponse(200, responses[call])
			call++
			return resp, nil
		})

		reader := newTestReader()
		populated, err := reader.PopulateTransaction(
			context.Background(),
			"0xabc0000000000000000000000000000000000001",
			"0xabc0000000000000000000000000000000000004",
			"0xd0e30db0",
			nil,
		)
		assert.Nil(t, err)
		assert.Equal(t, uint64(200000), populated.GasLimit)
		assert.Equal(t, big.NewInt(1000000000), populated.GasPrice)
	})
}
