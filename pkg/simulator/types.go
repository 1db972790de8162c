package simulator

import (
	"context"
	"math/big"

	"github.com/meridian-fi/vaultsim/pkg/clients/simulation"
	"github.com/shopspring/decimal"
)

// ISimulationClient is the slice of the backend client the engine uses.
type ISimulationClient interface {
	Simulate(ctx context.Context, request *simulation.SimulationRequest) (*simulation.SimulationResult, error)
	CreateFork(ctx context.Context, networkId string) (*simulation.Fork, error)
	DeleteFork(ctx context.Context, forkId string)
}

// DepositRequest previews depositing Amount of Token into Vault.
type DepositRequest struct {
	Sender string
	Vault  string
	Token  string
	Amount *big.Int

	// Slippage tolerance in percent. Required whenever the token differs
	// from the vault's underlying asset (a zap route); there is no default.
	Slippage *float64
}

// WithdrawRequest previews redeeming Amount vault shares into Token.
type WithdrawRequest struct {
	Sender string
	Vault  string
	Token  string
	Amount *big.Int

	Slippage *float64
}

// TransactionOutcome is the fully-resolved preview of one deposit or
// withdrawal. Immutable once returned; never partially populated.
type TransactionOutcome struct {
	SourceTokenAddress string
	SourceTokenAmount  *big.Int

	TargetTokenAddress    string
	TargetTokenAmount     *big.Int
	TargetTokenAmountUsdc decimal.Decimal

	TargetUnderlyingTokenAddress string
	TargetUnderlyingTokenAmount  *big.Int

	// ConversionRate is target USD value over source USD value; Slippage is
	// 1 - ConversionRate.
	ConversionRate float64
	Slippage       float64
}

// approvalPlan is the result of resolving an approval: either empty (no
// approval needed) or the fork and root simulation id the main simulation
// must chain onto.
type approvalPlan struct {
	fork             *simulation.Fork
	rootSimulationId string
}
