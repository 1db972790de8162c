package simulator

import "fmt"

// The engine's typed failures. Together with the backend client's
// BackendCallError, ForkCreationError, SimulationRevertError and
// PartialRevertError they form the full taxonomy surfaced to callers: invalid
// inputs (ConfigurationError, ApprovalError), external-system failures
// (BackendCallError, ForkCreationError, QuoteError), and operations that
// would fail on-chain (SimulationRevertError, PartialRevertError,
// NoTransferLogError).

// ChainReadError means fetching vault or token metadata from the chain failed.
type ChainReadError struct {
	Err error
}

func (e *ChainReadError) Error() string {
	return fmt.Sprintf("chain read failed: %v", e.Err)
}

func (e *ChainReadError) Unwrap() error {
	return e.Err
}

// ApprovalError means the allowance check or the approval simulation failed.
// An approval failure always aborts the operation; it is never treated as
// approved.
type ApprovalError struct {
	Err error
}

func (e *ApprovalError) Error() string {
	return fmt.Sprintf("approval resolution failed: %v", e.Err)
}

func (e *ApprovalError) Unwrap() error {
	return e.Err
}

// QuoteError means a zap provider failed to produce a conversion quote.
type QuoteError struct {
	Err error
}

func (e *QuoteError) Error() string {
	return fmt.Sprintf("zap quote failed: %v", e.Err)
}

func (e *QuoteError) Unwrap() error {
	return e.Err
}

// NoTransferLogError means the simulated call produced no value transfer of
// the expected token to the expected recipient. A zero amount is never
// returned silently in its place.
type NoTransferLogError struct {
	TokenAddress     string
	RecipientAddress string
}

func (e *NoTransferLogError) Error() string {
	return fmt.Sprintf("no transfer of token %s to %s found in simulation logs", e.TokenAddress, e.RecipientAddress)
}

// ValuationError means USD pricing of one of the legs failed. An outcome is
// never returned with a missing valuation.
type ValuationError struct {
	TokenAddress string
	Err          error
}

func (e *ValuationError) Error() string {
	return fmt.Sprintf("valuation of token %s failed: %v", e.TokenAddress, e.Err)
}

func (e *ValuationError) Unwrap() error {
	return e.Err
}

// ConfigurationError means the caller's inputs cannot produce a route, e.g. a
// zap without a slippage tolerance.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}
