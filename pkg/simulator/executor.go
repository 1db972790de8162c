// Package simulator previews vault deposits and withdrawals by executing them
// against a disposable forked chain-state snapshot on a remote simulation
// backend, then resolving the simulated value transfer into a priced outcome.
package simulator

import (
	"context"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/meridian-fi/vaultsim/internal/config"
	"github.com/meridian-fi/vaultsim/pkg/chainReader"
	"github.com/meridian-fi/vaultsim/pkg/clients/simulation"
	"github.com/meridian-fi/vaultsim/pkg/metrics/metricsTypes"
	"github.com/meridian-fi/vaultsim/pkg/pricing"
	"github.com/meridian-fi/vaultsim/pkg/utils"
	"github.com/meridian-fi/vaultsim/pkg/zaps"
	"github.com/meridian-fi/vaultsim/pkg/zaps/zapTypes"
	"go.uber.org/zap"
)

const nativeHelperAbiJson = `[
	{"inputs":[{"name":"vault","type":"address"}],"name":"depositNative","outputs":[{"name":"shares","type":"uint256"}],"stateMutability":"payable","type":"function"}
]`

var nativeHelperAbi abi.ABI

func init() {
	var err error
	nativeHelperAbi, err = abi.JSON(strings.NewReader(nativeHelperAbiJson))
	if err != nil {
		panic(err)
	}
}

type ExecutorOptions struct {
	// DiagnosticReplayOnFailure re-runs a failed main simulation once with
	// save=true so the backend captures it for inspection. The replay's
	// outcome is discarded; the original error always propagates.
	DiagnosticReplayOnFailure bool
}

// Executor routes deposit/withdraw previews between the direct vault call and
// the zap providers, sequencing approval, simulation and outcome resolution.
type Executor struct {
	chainReader   chainReader.IChainReader
	backend       ISimulationClient
	oracle        pricing.IPriceOracle
	zapRegistry   *zaps.Registry
	resolver      *approvalResolver
	networkId     uint64
	networkIdStr  string
	wrappedNative string
	nativeHelper  string
	metrics       metricsTypes.IMetricsClient
	logger        *zap.Logger
	options       ExecutorOptions
}

func NewExecutor(
	cfg *config.Config,
	cr chainReader.IChainReader,
	backend ISimulationClient,
	oracle pricing.IPriceOracle,
	registry *zaps.Registry,
	metrics metricsTypes.IMetricsClient,
	l *zap.Logger,
	opts *ExecutorOptions,
) (*Executor, error) {
	networkId, err := cfg.NetworkId()
	if err != nil {
		return nil, &ConfigurationError{Message: err.Error()}
	}
	if opts == nil {
		opts = &ExecutorOptions{}
	}
	networkIdStr := strconv.FormatUint(networkId, 10)
	return &Executor{
		chainReader: cr,
		backend:     backend,
		oracle:      oracle,
		zapRegistry: registry,
		resolver: &approvalResolver{
			chainReader: cr,
			backend:     backend,
			networkId:   networkIdStr,
			logger:      l,
		},
		networkId:     networkId,
		networkIdStr:  networkIdStr,
		wrappedNative: cfg.WrappedNativeTokenAddress(),
		nativeHelper:  config.NativeDepositHelperAddresses[cfg.Chain],
		metrics:       metrics,
		logger:        l,
		options:       *opts,
	}, nil
}

// Deposit previews depositing request.Amount of request.Token into
// request.Vault without broadcasting anything.
func (e *Executor) Deposit(ctx context.Context, request *DepositRequest) (*TransactionOutcome, error) {
	start := time.Now()
	defer func() {
		_ = e.metrics.Timing(metricsTypes.Metric_Timing_OperationDuration, time.Since(start), []metricsTypes.MetricsLabel{
			{Name: "operation", Value: "deposit"},
		})
	}()

	underlying, err := e.chainReader.GetUnderlyingAsset(ctx, request.Vault)
	if err != nil {
		return nil, &ChainReadError{Err: err}
	}

	switch {
	case utils.AreAddressesEqual(request.Token, underlying):
		e.incrPreview("deposit", "direct")
		return e.depositDirect(ctx, request, underlying)
	case utils.IsNativeToken(request.Token) && utils.AreAddressesEqual(underlying, e.wrappedNative) && e.nativeHelper != "":
		e.incrPreview("deposit", "native")
		return e.depositNative(ctx, request, underlying)
	default:
		e.incrPreview("deposit", "zap")
		return e.depositZap(ctx, request, underlying)
	}
}

// Withdraw previews redeeming request.Amount shares of request.Vault into
// request.Token.
func (e *Executor) Withdraw(ctx context.Context, request *WithdrawRequest) (*TransactionOutcome, error) {
	start := time.Now()
	defer func() {
		_ = e.metrics.Timing(metricsTypes.Metric_Timing_OperationDuration, time.Since(start), []metricsTypes.MetricsLabel{
			{Name: "operation", Value: "withdraw"},
		})
	}()

	underlying, err := e.chainReader.GetUnderlyingAsset(ctx, request.Vault)
	if err != nil {
		return nil, &ChainReadError{Err: err}
	}

	if utils.AreAddressesEqual(request.Token, underlying) {
		e.incrPreview("withdraw", "direct")
		return e.withdrawDirect(ctx, request, underlying)
	}
	e.incrPreview("withdraw", "zap")
	return e.withdrawZap(ctx, request, underlying)
}

func (e *Executor) depositDirect(ctx context.Context, request *DepositRequest, underlying string) (*TransactionOutcome, error) {
	plan, err := e.resolver.resolveDirect(ctx, request.Sender, request.Token, request.Vault, request.Amount)
	if err != nil {
		return nil, err
	}

	data, err := chainReader.VaultAbi.Pack("deposit", request.Amount)
	if err != nil {
		return nil, &ConfigurationError{Message: err.Error()}
	}

	result, err := e.runMainSimulation(ctx, request.Sender, request.Vault, utils.ConvertBytesToString(data), nil, 0, plan)
	if err != nil {
		return nil, err
	}

	shares, err := DecodeTransferAmount(result.Logs, request.Vault, request.Sender)
	if err != nil {
		return nil, err
	}

	return e.computeOutcome(ctx, request.Token, request.Amount, request.Vault, shares, underlying, request.Amount)
}

// depositNative routes a native-asset deposit into a wrapped-native vault
// through the chain's wrap-and-deposit helper contract in a single call.
func (e *Executor) depositNative(ctx context.Context, request *DepositRequest, underlying string) (*TransactionOutcome, error) {
	data, err := nativeHelperAbi.Pack("depositNative", common.HexToAddress(request.Vault))
	if err != nil {
		return nil, &ConfigurationError{Message: err.Error()}
	}

	result, err := e.runMainSimulation(ctx, request.Sender, e.nativeHelper, utils.ConvertBytesToString(data), request.Amount, 0, &approvalPlan{})
	if err != nil {
		return nil, err
	}

	shares, err := DecodeTransferAmount(result.Logs, request.Vault, request.Sender)
	if err != nil {
		return nil, err
	}
	wrapped, err := DecodeTransferAmount(result.Logs, underlying, request.Vault)
	if err != nil {
		return nil, err
	}

	return e.computeOutcome(ctx, request.Token, request.Amount, request.Vault, shares, underlying, wrapped)
}

func (e *Executor) depositZap(ctx context.Context, request *DepositRequest, underlying string) (*TransactionOutcome, error) {
	if request.Slippage == nil {
		return nil, &ConfigurationError{Message: "a slippage tolerance is required to zap into a vault"}
	}

	provider, err := e.zapRegistry.SelectProvider(e.networkId, request.Vault)
	if err != nil {
		return nil, &ConfigurationError{Message: err.Error()}
	}

	plan, err := e.resolver.resolveZap(ctx, request.Sender, request.Token, request.Amount, provider)
	if err != nil {
		return nil, err
	}

	quote, err := provider.Quote(ctx, &zapTypes.QuoteRequest{
		Sender:      request.Sender,
		SourceToken: request.Token,
		TargetToken: request.Vault,
		Amount:      request.Amount,
		Slippage:    *request.Slippage,
	})
	if err != nil {
		return nil, &QuoteError{Err: err}
	}

	result, err := e.runMainSimulation(ctx, request.Sender, quote.To, quote.Data, quote.Value, quote.GasEstimate, plan)
	if err != nil {
		return nil, err
	}

	shares, err := DecodeTransferAmount(result.Logs, request.Vault, request.Sender)
	if err != nil {
		return nil, err
	}
	deposited, err := DecodeTransferAmount(result.Logs, underlying, request.Vault)
	if err != nil {
		return nil, err
	}

	return e.computeOutcome(ctx, request.Token, request.Amount, request.Vault, shares, underlying, deposited)
}

func (e *Executor) withdrawDirect(ctx context.Context, request *WithdrawRequest, underlying string) (*TransactionOutcome, error) {
	// burning the vault's own shares needs no approval
	data, err := chainReader.VaultAbi.Pack("withdraw", request.Amount)
	if err != nil {
		return nil, &ConfigurationError{Message: err.Error()}
	}

	result, err := e.runMainSimulation(ctx, request.Sender, request.Vault, utils.ConvertBytesToString(data), nil, 0, &approvalPlan{})
	if err != nil {
		return nil, err
	}

	received, err := DecodeTransferAmount(result.Logs, underlying, request.Sender)
	if err != nil {
		return nil, err
	}

	return e.computeOutcome(ctx, request.Vault, request.Amount, request.Token, received, underlying, received)
}

func (e *Executor) withdrawZap(ctx context.Context, request *WithdrawRequest, underlying string) (*TransactionOutcome, error) {
	if request.Slippage == nil {
		return nil, &ConfigurationError{Message: "a slippage tolerance is required to zap out of a vault"}
	}

	provider, err := e.zapRegistry.SelectProvider(e.networkId, request.Vault)
	if err != nil {
		return nil, &ConfigurationError{Message: err.Error()}
	}

	// the router spends the caller's vault shares
	plan, err := e.resolver.resolveZap(ctx, request.Sender, request.Vault, request.Amount, provider)
	if err != nil {
		return nil, err
	}

	quote, err := provider.Quote(ctx, &zapTypes.QuoteRequest{
		Sender:      request.Sender,
		SourceToken: request.Vault,
		TargetToken: request.Token,
		Amount:      request.Amount,
		Slippage:    *request.Slippage,
	})
	if err != nil {
		return nil, &QuoteError{Err: err}
	}

	result, err := e.runMainSimulation(ctx, request.Sender, quote.To, quote.Data, quote.Value, quote.GasEstimate, plan)
	if err != nil {
		return nil, err
	}

	// A native-asset target leaves no ERC-20 Transfer to the sender; the
	// router receives wrapped native and unwraps it 1:1.
	decodeToken, recipient := request.Token, request.Sender
	if utils.IsNativeToken(request.Token) {
		decodeToken, recipient = e.wrappedNative, quote.To
	}
	received, err := DecodeTransferAmount(result.Logs, decodeToken, recipient)
	if err != nil {
		return nil, err
	}
	redeemed, err := DecodeTransferAmount(result.Logs, underlying, quote.To)
	if err != nil {
		return nil, err
	}

	return e.computeOutcome(ctx, request.Vault, request.Amount, request.Token, received, underlying, redeemed)
}

// runMainSimulation executes the main step of the operation, chaining the
// approval's fork and simulation id when one exists, and cleaning the fork up
// on success.
func (e *Executor) runMainSimulation(
	ctx context.Context,
	from string,
	to string,
	data string,
	value *big.Int,
	gasEstimate uint64,
	plan *approvalPlan,
) (*simulation.SimulationResult, error) {
	gasLimit, gasPrice := e.populateGas(ctx, from, to, data, value, gasEstimate, plan)

	return runWithCleanup(ctx, e.backend, plan.fork, e.options.DiagnosticReplayOnFailure, e.logger,
		func(ctx context.Context, persist bool) (*simulation.SimulationResult, error) {
			req := &simulation.SimulationRequest{
				From:      from,
				To:        to,
				Input:     data,
				Value:     value,
				NetworkId: e.networkIdStr,
				GasLimit:  gasLimit,
				GasPrice:  gasPrice,
				Save:      persist,
			}
			if plan.fork != nil {
				req.ForkId = plan.fork.Id
				req.RootSimulationId = plan.rootSimulationId
			}
			return e.backend.Simulate(ctx, req)
		})
}

// populateGas fills gas fields from a populated-transaction estimate when one
// can be obtained. A pending approval makes live estimation revert (the
// allowance does not exist yet), and estimation failures are not fatal; the
// backend client applies defaults for zero values.
func (e *Executor) populateGas(ctx context.Context, from string, to string, data string, value *big.Int, gasEstimate uint64, plan *approvalPlan) (uint64, *big.Int) {
	if plan.fork != nil {
		return gasEstimate, nil
	}
	populated, err := e.chainReader.PopulateTransaction(ctx, from, to, data, value)
	if err != nil {
		e.logger.Sugar().Debugw("Failed to populate transaction, using defaults", zap.Error(err))
		return gasEstimate, nil
	}
	return populated.GasLimit, populated.GasPrice
}

func (e *Executor) incrPreview(operation string, route string) {
	_ = e.metrics.Incr(metricsTypes.Metric_Incr_OperationPreviewed, []metricsTypes.MetricsLabel{
		{Name: "operation", Value: operation},
		{Name: "route", Value: route},
	}, 1)
}
