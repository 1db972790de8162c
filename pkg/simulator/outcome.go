package simulator

import (
	"context"
	"fmt"
	"math/big"

	"github.com/meridian-fi/vaultsim/pkg/utils"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// computeOutcome values both legs through the oracle and derives the
// conversion rate and slippage. Any oracle failure aborts with a
// ValuationError; an outcome is never returned with a missing valuation.
func (e *Executor) computeOutcome(
	ctx context.Context,
	sourceToken string,
	sourceAmount *big.Int,
	targetToken string,
	targetAmount *big.Int,
	underlyingToken string,
	underlyingAmount *big.Int,
) (*TransactionOutcome, error) {
	sourceValue, err := e.oracle.GetUsdValue(ctx, e.priceable(sourceToken), sourceAmount)
	if err != nil {
		return nil, &ValuationError{TokenAddress: sourceToken, Err: err}
	}
	targetValue, err := e.oracle.GetUsdValue(ctx, e.priceable(targetToken), targetAmount)
	if err != nil {
		return nil, &ValuationError{TokenAddress: targetToken, Err: err}
	}
	if sourceValue.Sign() <= 0 {
		return nil, &ValuationError{
			TokenAddress: sourceToken,
			Err:          fmt.Errorf("oracle valued the source leg at %s", sourceValue.String()),
		}
	}

	conversionRate := targetValue.Div(sourceValue)

	return &TransactionOutcome{
		SourceTokenAddress:           sourceToken,
		SourceTokenAmount:            sourceAmount,
		TargetTokenAddress:           targetToken,
		TargetTokenAmount:            targetAmount,
		TargetTokenAmountUsdc:        targetValue,
		TargetUnderlyingTokenAddress: underlyingToken,
		TargetUnderlyingTokenAmount:  underlyingAmount,
		ConversionRate:               conversionRate.InexactFloat64(),
		Slippage:                     one.Sub(conversionRate).InexactFloat64(),
	}, nil
}

// priceable maps the native-asset sentinel to the chain's wrapped native
// token, which is what the oracle prices.
func (e *Executor) priceable(token string) string {
	if utils.IsNativeToken(token) {
		return e.wrappedNative
	}
	return token
}
