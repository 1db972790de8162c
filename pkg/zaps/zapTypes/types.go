package zapTypes

import (
	"context"
	"math/big"
)

// ProviderTag identifies one of the closed set of supported zap providers.
type ProviderTag string

const (
	ProviderTag_Portals ProviderTag = "portals"
	ProviderTag_Wido    ProviderTag = "wido"
)

// QuoteRequest asks a provider for a conversion route between two assets.
type QuoteRequest struct {
	Sender      string
	SourceToken string
	TargetToken string
	Amount      *big.Int

	// Slippage is the caller's tolerance in percent (e.g. 0.5). Zap routes
	// require it; there is no default.
	Slippage float64
}

// Quote is a provider-built transaction payload executing the conversion.
type Quote struct {
	To          string
	Data        string
	Value       *big.Int
	GasEstimate uint64
}

// ApprovalState is the provider's view of the owner's current allowance for
// the provider's spender contract. Derived fresh per call, never cached.
type ApprovalState struct {
	OwnerAddress   string
	SpenderAddress string
	TokenAddress   string
	Allowance      *big.Int
	IsSufficient   bool
}

// ApprovalTransaction is a provider-built approve() payload.
type ApprovalTransaction struct {
	To   string
	Data string
}

// IZapProvider is the shared capability surface of every zap provider.
type IZapProvider interface {
	Tag() ProviderTag

	// Quote builds the conversion transaction for the requested pair
	Quote(ctx context.Context, request *QuoteRequest) (*Quote, error)

	// GetApprovalState reports the owner's allowance toward the provider's spender
	GetApprovalState(ctx context.Context, owner string, token string, amount *big.Int) (*ApprovalState, error)

	// BuildApprovalTransaction builds the approve() call for the provider's spender
	BuildApprovalTransaction(ctx context.Context, token string, amount *big.Int) (*ApprovalTransaction, error)
}
