package zaps

import (
	"context"
	"math/big"
	"testing"

	"github.com/meridian-fi/vaultsim/pkg/zaps/zapTypes"
	"github.com/stretchr/testify/assert"
)

type stubProvider struct {
	tag zapTypes.ProviderTag
}

func (s *stubProvider) Tag() zapTypes.ProviderTag {
	return s.tag
}

func (s *stubProvider) Quote(ctx context.Context, request *zapTypes.QuoteRequest) (*zapTypes.Quote, error) {
	return nil, nil
}

func (s *stubProvider) GetApprovalState(ctx context.Context, owner string, token string, amount *big.Int) (*zapTypes.ApprovalState, error) {
	return nil, nil
}

func (s *stubProvider) BuildApprovalTransaction(ctx context.Context, token string, amount *big.Int) (*zapTypes.ApprovalTransaction, error) {
	return nil, nil
}

func Test_Registry(t *testing.T) {
	table := EligibilityTable{
		1: {
			"0xda816459f1ab5631232fe5e97a05bbbb94970c95": {zapTypes.ProviderTag_Portals, zapTypes.ProviderTag_Wido},
			"0xa354f35829ae975e850e23e9615b11da1b3dc4de": {zapTypes.ProviderTag_Wido},
		},
	}
	portals := &stubProvider{tag: zapTypes.ProviderTag_Portals}
	wido := &stubProvider{tag: zapTypes.ProviderTag_Wido}

	t.Run("first eligible provider wins", func(t *testing.T) {
		reg := NewRegistry(table, portals, wido)
		p, err := reg.SelectProvider(1, "0xdA816459F1AB5631232FE5e97a05BBBb94970c95")
		assert.Nil(t, err)
		assert.Equal(t, zapTypes.ProviderTag_Portals, p.Tag())
	})

	t.Run("falls through to a registered tag", func(t *testing.T) {
		reg := NewRegistry(table, wido)
		p, err := reg.SelectProvider(1, "0xda816459f1ab5631232fe5e97a05bbbb94970c95")
		assert.Nil(t, err)
		assert.Equal(t, zapTypes.ProviderTag_Wido, p.Tag())
	})

	t.Run("unknown network", func(t *testing.T) {
		reg := NewRegistry(table, portals, wido)
		_, err := reg.SelectProvider(137, "0xda816459f1ab5631232fe5e97a05bbbb94970c95")
		assert.NotNil(t, err)
	})

	t.Run("vault not in table", func(t *testing.T) {
		reg := NewRegistry(table, portals, wido)
		_, err := reg.SelectProvider(1, "0x0000000000000000000000000000000000000001")
		assert.NotNil(t, err)
	})

	t.Run("eligible but unregistered provider", func(t *testing.T) {
		reg := NewRegistry(table, portals)
		_, err := reg.SelectProvider(1, "0xa354f35829ae975e850e23e9615b11da1b3dc4de")
		assert.NotNil(t, err)
	})
}
