package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/meridian-fi/vaultsim/internal/config"
	"github.com/meridian-fi/vaultsim/pkg/chainReader"
	"github.com/meridian-fi/vaultsim/pkg/clients/simulation"
	"github.com/meridian-fi/vaultsim/pkg/logger"
	"github.com/meridian-fi/vaultsim/pkg/metrics/metricsTypes"
	"github.com/meridian-fi/vaultsim/pkg/zaps"
	"github.com/meridian-fi/vaultsim/pkg/zaps/zapTypes"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	vaultAddress  = "0xdA816459F1AB5631232FE5e97a05BBBb94970c95"
	daiAddress    = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
	usdcAddress   = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	senderAddress = "0xabc0000000000000000000000000000000000001"
	routerAddress = "0xdef0000000000000000000000000000000000001"
)

var oneToken, _ = new(big.Int).SetString("1000000000000000000", 10)

type fakeChainReader struct {
	underlying    string
	underlyingErr error
	allowance     *big.Int
	allowanceErr  error
}

func (f *fakeChainReader) GetAllowance(ctx context.Context, owner string, token string, spender string) (*big.Int, error) {
	if f.allowanceErr != nil {
		return nil, f.allowanceErr
	}
	return f.allowance, nil
}

func (f *fakeChainReader) GetUnderlyingAsset(ctx context.Context, vault string) (string, error) {
	if f.underlyingErr != nil {
		return "", f.underlyingErr
	}
	return f.underlying, nil
}

func (f *fakeChainReader) PopulateTransaction(ctx context.Context, from string, to string, data string, value *big.Int) (*chainReader.PopulatedTransaction, error) {
	return &chainReader.PopulatedTransaction{GasLimit: 500_000, GasPrice: big.NewInt(1)}, nil
}

type fakeBackend struct {
	requests     []*simulation.SimulationRequest
	forksCreated int
	forksDeleted []string
	simulateFn   func(request *simulation.SimulationRequest) (*simulation.SimulationResult, error)
}

func (f *fakeBackend) Simulate(ctx context.Context, request *simulation.SimulationRequest) (*simulation.SimulationResult, error) {
	f.requests = append(f.requests, request)
	return f.simulateFn(request)
}

func (f *fakeBackend) CreateFork(ctx context.Context, networkId string) (*simulation.Fork, error) {
	f.forksCreated++
	return &simulation.Fork{Id: fmt.Sprintf("fork-%d", f.forksCreated)}, nil
}

func (f *fakeBackend) DeleteFork(ctx context.Context, forkId string) {
	f.forksDeleted = append(f.forksDeleted, forkId)
}

type fakeOracle struct {
	values map[string]decimal.Decimal
	errs   map[string]error
}

func (f *fakeOracle) GetUsdValue(ctx context.Context, tokenAddress string, amount *big.Int) (decimal.Decimal, error) {
	key := strings.ToLower(tokenAddress)
	if err, ok := f.errs[key]; ok {
		return decimal.Zero, err
	}
	return f.values[key], nil
}

type fakeProvider struct {
	approvalState *zapTypes.ApprovalState
	approvalTx    *zapTypes.ApprovalTransaction
	quote         *zapTypes.Quote
	quoteErr      error
	quoteCalls    int
}

func (f *fakeProvider) Tag() zapTypes.ProviderTag {
	return zapTypes.ProviderTag_Portals
}

func (f *fakeProvider) Quote(ctx context.Context, request *zapTypes.QuoteRequest) (*zapTypes.Quote, error) {
	f.quoteCalls++
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return f.quote, nil
}

func (f *fakeProvider) GetApprovalState(ctx context.Context, owner string, token string, amount *big.Int) (*zapTypes.ApprovalState, error) {
	return f.approvalState, nil
}

func (f *fakeProvider) BuildApprovalTransaction(ctx context.Context, token string, amount *big.Int) (*zapTypes.ApprovalTransaction, error) {
	return f.approvalTx, nil
}

func eligibilityForVault() zaps.EligibilityTable {
	return zaps.EligibilityTable{
		1: {strings.ToLower(vaultAddress): {zapTypes.ProviderTag_Portals}},
	}
}

func newTestExecutor(t *testing.T, cr *fakeChainReader, backend *fakeBackend, oracle *fakeOracle, provider zapTypes.IZapProvider, opts *ExecutorOptions) *Executor {
	cfg := &config.Config{Chain: config.Chain_Mainnet}
	providers := []zapTypes.IZapProvider{}
	if provider != nil {
		providers = append(providers, provider)
	}
	executor, err := NewExecutor(
		cfg,
		cr,
		backend,
		oracle,
		zaps.NewRegistry(eligibilityForVault(), providers...),
		metricsTypes.NewNoopMetricsClient(),
		logger.NewNoopLogger(),
		opts,
	)
	require.Nil(t, err)
	return executor
}

func successfulDeposit(shares *big.Int) func(request *simulation.SimulationRequest) (*simulation.SimulationResult, error) {
	return func(request *simulation.SimulationRequest) (*simulation.SimulationResult, error) {
		if strings.HasPrefix(request.Input, "0x095ea7b3") {
			// approve step
			return &simulation.SimulationResult{Id: "sim-approval"}, nil
		}
		return &simulation.SimulationResult{
			Id: "sim-main",
			Logs: []*simulation.EventLog{
				transferLog(daiAddress, senderAddress, vaultAddress, oneToken),
				transferLog(vaultAddress, "0x0000000000000000000000000000000000000000", senderAddress, shares),
			},
		}, nil
	}
}

func Test_Deposit_DirectRoute(t *testing.T) {
	oracle := &fakeOracle{values: map[string]decimal.Decimal{
		strings.ToLower(daiAddress):   decimal.NewFromInt(100),
		strings.ToLower(vaultAddress): decimal.NewFromInt(100),
	}}

	t.Run("underlying token always routes direct, never through a provider", func(t *testing.T) {
		backend := &fakeBackend{simulateFn: successfulDeposit(oneToken)}
		provider := &fakeProvider{}
		executor := newTestExecutor(t, &fakeChainReader{underlying: daiAddress, allowance: oneToken}, backend, oracle, provider, nil)

		outcome, err := executor.Deposit(context.Background(), &DepositRequest{
			Sender: senderAddress,
			Vault:  vaultAddress,
			Token:  daiAddress,
			Amount: oneToken,
		})
		require.Nil(t, err)
		assert.Equal(t, 0, provider.quoteCalls)
		require.Len(t, backend.requests, 1)
		assert.Equal(t, vaultAddress, backend.requests[0].To)
		assert.Equal(t, outcome.TargetTokenAmount, oneToken)
	})

	t.Run("depositing the underlying yields rate 1 and slippage 0", func(t *testing.T) {
		backend := &fakeBackend{simulateFn: successfulDeposit(oneToken)}
		executor := newTestExecutor(t, &fakeChainReader{underlying: daiAddress, allowance: oneToken}, backend, oracle, nil, nil)

		outcome, err := executor.Deposit(context.Background(), &DepositRequest{
			Sender: senderAddress,
			Vault:  vaultAddress,
			Token:  daiAddress,
			Amount: oneToken,
		})
		require.Nil(t, err)
		assert.Equal(t, float64(1), outcome.ConversionRate)
		assert.Equal(t, float64(0), outcome.Slippage)
		assert.Equal(t, daiAddress, outcome.SourceTokenAddress)
		assert.Equal(t, daiAddress, outcome.TargetUnderlyingTokenAddress)
		assert.NotNil(t, outcome.TargetUnderlyingTokenAmount)
		assert.Equal(t, "100", outcome.TargetTokenAmountUsdc.String())
	})

	t.Run("sufficient allowance creates no fork", func(t *testing.T) {
		backend := &fakeBackend{simulateFn: successfulDeposit(oneToken)}
		executor := newTestExecutor(t, &fakeChainReader{underlying: daiAddress, allowance: oneToken}, backend, oracle, nil, nil)

		_, err := executor.Deposit(context.Background(), &DepositRequest{
			Sender: senderAddress,
			Vault:  vaultAddress,
			Token:  daiAddress,
			Amount: oneToken,
		})
		require.Nil(t, err)
		assert.Equal(t, 0, backend.forksCreated)
		assert.Empty(t, backend.forksDeleted)
	})
}

func Test_Deposit_ApprovalSequencing(t *testing.T) {
	oracle := &fakeOracle{values: map[string]decimal.Decimal{
		strings.ToLower(daiAddress):   decimal.NewFromInt(100),
		strings.ToLower(vaultAddress): decimal.NewFromInt(100),
	}}

	t.Run("insufficient allowance chains approve before the main call", func(t *testing.T) {
		backend := &fakeBackend{simulateFn: successfulDeposit(oneToken)}
		executor := newTestExecutor(t, &fakeChainReader{underlying: daiAddress, allowance: big.NewInt(0)}, backend, oracle, nil, nil)

		_, err := executor.Deposit(context.Background(), &DepositRequest{
			Sender: senderAddress,
			Vault:  vaultAddress,
			Token:  daiAddress,
			Amount: oneToken,
		})
		require.Nil(t, err)

		require.Len(t, backend.requests, 2)
		approval, main := backend.requests[0], backend.requests[1]

		assert.Equal(t, daiAddress, approval.To)
		assert.True(t, approval.Save)
		assert.Equal(t, "fork-1", approval.ForkId)

		assert.Equal(t, "sim-approval", main.RootSimulationId)
		assert.Equal(t, "fork-1", main.ForkId)
		assert.False(t, main.Save)
	})

	t.Run("exactly one fork, deleted exactly once on success", func(t *testing.T) {
		backend := &fakeBackend{simulateFn: successfulDeposit(oneToken)}
		executor := newTestExecutor(t, &fakeChainReader{underlying: daiAddress, allowance: big.NewInt(0)}, backend, oracle, nil, nil)

		_, err := executor.Deposit(context.Background(), &DepositRequest{
			Sender: senderAddress,
			Vault:  vaultAddress,
			Token:  daiAddress,
			Amount: oneToken,
		})
		require.Nil(t, err)
		assert.Equal(t, 1, backend.forksCreated)
		assert.Equal(t, []string{"fork-1"}, backend.forksDeleted)
	})

	t.Run("the fork is leaked when the main simulation fails", func(t *testing.T) {
		backend := &fakeBackend{}
		backend.simulateFn = func(request *simulation.SimulationRequest) (*simulation.SimulationResult, error) {
			if strings.HasPrefix(request.Input, "0x095ea7b3") {
				return &simulation.SimulationResult{Id: "sim-approval"}, nil
			}
			return nil, &simulation.SimulationRevertError{SimulationId: "sim-main", Message: "execution reverted"}
		}
		executor := newTestExecutor(t, &fakeChainReader{underlying: daiAddress, allowance: big.NewInt(0)}, backend, oracle, nil, nil)

		_, err := executor.Deposit(context.Background(), &DepositRequest{
			Sender: senderAddress,
			Vault:  vaultAddress,
			Token:  daiAddress,
			Amount: oneToken,
		})

		var revertErr *simulation.SimulationRevertError
		assert.True(t, errors.As(err, &revertErr))
		assert.Equal(t, 1, backend.forksCreated)
		assert.Empty(t, backend.forksDeleted)
	})

	t.Run("allowance read failure aborts as ApprovalError before any simulation", func(t *testing.T) {
		backend := &fakeBackend{}
		executor := newTestExecutor(t, &fakeChainReader{underlying: daiAddress, allowanceErr: errors.New("rpc down")}, backend, oracle, nil, nil)

		_, err := executor.Deposit(context.Background(), &DepositRequest{
			Sender: senderAddress,
			Vault:  vaultAddress,
			Token:  daiAddress,
			Amount: oneToken,
		})

		var approvalErr *ApprovalError
		assert.True(t, errors.As(err, &approvalErr))
		assert.Empty(t, backend.requests)
	})
}

func Test_Deposit_ZapRoute(t *testing.T) {
	oracle := &fakeOracle{values: map[string]decimal.Decimal{
		strings.ToLower(usdcAddress):  decimal.NewFromInt(100),
		strings.ToLower(vaultAddress): decimal.NewFromInt(99),
	}}

	zapSimulate := func(request *simulation.SimulationRequest) (*simulation.SimulationResult, error) {
		return &simulation.SimulationResult{
			Id: "sim-zap",
			Logs: []*simulation.EventLog{
				transferLog(daiAddress, routerAddress, vaultAddress, oneToken),
				transferLog(vaultAddress, "0x0000000000000000000000000000000000000000", senderAddress, big.NewInt(990)),
			},
		}, nil
	}

	slippage := 0.5
	quote := &zapTypes.Quote{To: routerAddress, Data: "0xfeedface", Value: big.NewInt(0), GasEstimate: 400_000}

	t.Run("missing slippage tolerance is a ConfigurationError", func(t *testing.T) {
		backend := &fakeBackend{simulateFn: zapSimulate}
		provider := &fakeProvider{approvalState: &zapTypes.ApprovalState{IsSufficient: true}, quote: quote}
		executor := newTestExecutor(t, &fakeChainReader{underlying: daiAddress}, backend, oracle, provider, nil)

		_, err := executor.Deposit(context.Background(), &DepositRequest{
			Sender: senderAddress,
			Vault:  vaultAddress,
			Token:  usdcAddress,
			Amount: big.NewInt(100_000_000),
		})

		var cfgErr *ConfigurationError
		assert.True(t, errors.As(err, &cfgErr))
		assert.Empty(t, backend.requests)
	})

	t.Run("zap deposit executes the provider transaction", func(t *testing.T) {
		backend := &fakeBackend{simulateFn: zapSimulate}
		provider := &fakeProvider{approvalState: &zapTypes.ApprovalState{IsSufficient: true}, quote: quote}
		executor := newTestExecutor(t, &fakeChainReader{underlying: daiAddress}, backend, oracle, provider, nil)

		outcome, err := executor.Deposit(context.Background(), &DepositRequest{
			Sender:   senderAddress,
			Vault:    vaultAddress,
			Token:    usdcAddress,
			Amount:   big.NewInt(100_000_000),
			Slippage: &slippage,
		})
		require.Nil(t, err)
		assert.Equal(t, 1, provider.quoteCalls)
		require.Len(t, backend.requests, 1)
		assert.Equal(t, routerAddress, backend.requests[0].To)
		assert.Equal(t, big.NewInt(990), outcome.TargetTokenAmount)
		assert.Equal(t, oneToken, outcome.TargetUnderlyingTokenAmount)
	})

	t.Run("no registered provider for the vault is a ConfigurationError", func(t *testing.T) {
		backend := &fakeBackend{simulateFn: zapSimulate}
		executor := newTestExecutor(t, &fakeChainReader{underlying: daiAddress}, backend, oracle, nil, nil)

		_, err := executor.Deposit(context.Background(), &DepositRequest{
			Sender:   senderAddress,
			Vault:    vaultAddress,
			Token:    usdcAddress,
			Amount:   big.NewInt(100_000_000),
			Slippage: &slippage,
		})

		var cfgErr *ConfigurationError
		assert.True(t, errors.As(err, &cfgErr))
	})

	t.Run("quote failure is a QuoteError", func(t *testing.T) {
		backend := &fakeBackend{simulateFn: zapSimulate}
		provider := &fakeProvider{approvalState: &zapTypes.ApprovalState{IsSufficient: true}, quoteErr: errors.New("no route")}
		executor := newTestExecutor(t, &fakeChainReader{underlying: daiAddress}, backend, oracle, provider, nil)

		_, err := executor.Deposit(context.Background(), &DepositRequest{
			Sender:   senderAddress,
			Vault:    vaultAddress,
			Token:    usdcAddress,
			Amount:   big.NewInt(100_000_000),
			Slippage: &slippage,
		})

		var quoteErr *QuoteError
		assert.True(t, errors.As(err, &quoteErr))
	})
}

func Test_Withdraw(t *testing.T) {
	t.Run("direct withdrawal decodes the underlying leg to the sender", func(t *testing.T) {
		oracle := &fakeOracle{values: map[string]decimal.Decimal{
			strings.ToLower(daiAddress):   decimal.NewFromInt(100),
			strings.ToLower(vaultAddress): decimal.NewFromInt(100),
		}}
		backend := &fakeBackend{simulateFn: func(request *simulation.SimulationRequest) (*simulation.SimulationResult, error) {
			return &simulation.SimulationResult{
				Id: "sim-withdraw",
				Logs: []*simulation.EventLog{
					transferLog(daiAddress, vaultAddress, senderAddress, oneToken),
				},
			}, nil
		}}
		executor := newTestExecutor(t, &fakeChainReader{underlying: daiAddress}, backend, oracle, nil, nil)

		outcome, err := executor.Withdraw(context.Background(), &WithdrawRequest{
			Sender: senderAddress,
			Vault:  vaultAddress,
			Token:  daiAddress,
			Amount: oneToken,
		})
		require.Nil(t, err)
		assert.Equal(t, oneToken, outcome.TargetTokenAmount)
		// no approval is needed to burn the vault's own shares
		assert.Equal(t, 0, backend.forksCreated)
	})

	t.Run("zap withdrawal with oracle values 100 and 98 yields rate 0.98 and slippage 0.02", func(t *testing.T) {
		oracle := &fakeOracle{values: map[string]decimal.Decimal{
			strings.ToLower(vaultAddress): decimal.NewFromInt(100),
			strings.ToLower(usdcAddress):  decimal.NewFromInt(98),
		}}
		backend := &fakeBackend{simulateFn: func(request *simulation.SimulationRequest) (*simulation.SimulationResult, error) {
			return &simulation.SimulationResult{
				Id: "sim-zap-out",
				Logs: []*simulation.EventLog{
					transferLog(daiAddress, vaultAddress, routerAddress, oneToken),
					transferLog(usdcAddress, routerAddress, senderAddress, big.NewInt(98_000_000)),
				},
			}, nil
		}}
		slippage := 1.0
		provider := &fakeProvider{
			approvalState: &zapTypes.ApprovalState{IsSufficient: true},
			quote:         &zapTypes.Quote{To: routerAddress, Data: "0xcafe", Value: big.NewInt(0)},
		}
		executor := newTestExecutor(t, &fakeChainReader{underlying: daiAddress}, backend, oracle, provider, nil)

		outcome, err := executor.Withdraw(context.Background(), &WithdrawRequest{
			Sender:   senderAddress,
			Vault:    vaultAddress,
			Token:    usdcAddress,
			Amount:   oneToken,
			Slippage: &slippage,
		})
		require.Nil(t, err)
		assert.Equal(t, 0.98, outcome.ConversionRate)
		assert.Equal(t, 0.02, outcome.Slippage)
		assert.Equal(t, big.NewInt(98_000_000), outcome.TargetTokenAmount)
		assert.Equal(t, "98", outcome.TargetTokenAmountUsdc.String())
	})
}

func Test_OutcomeCompleteness(t *testing.T) {
	backend := &fakeBackend{simulateFn: successfulDeposit(oneToken)}

	t.Run("target leg valuation failure aborts with ValuationError", func(t *testing.T) {
		oracle := &fakeOracle{
			values: map[string]decimal.Decimal{strings.ToLower(daiAddress): decimal.NewFromInt(100)},
			errs:   map[string]error{strings.ToLower(vaultAddress): errors.New("lens timeout")},
		}
		executor := newTestExecutor(t, &fakeChainReader{underlying: daiAddress, allowance: oneToken}, backend, oracle, nil, nil)

		outcome, err := executor.Deposit(context.Background(), &DepositRequest{
			Sender: senderAddress,
			Vault:  vaultAddress,
			Token:  daiAddress,
			Amount: oneToken,
		})
		assert.Nil(t, outcome)

		var valErr *ValuationError
		assert.True(t, errors.As(err, &valErr))
	})

	t.Run("zero source valuation aborts with ValuationError", func(t *testing.T) {
		oracle := &fakeOracle{values: map[string]decimal.Decimal{
			strings.ToLower(daiAddress):   decimal.Zero,
			strings.ToLower(vaultAddress): decimal.NewFromInt(100),
		}}
		executor := newTestExecutor(t, &fakeChainReader{underlying: daiAddress, allowance: oneToken}, backend, oracle, nil, nil)

		_, err := executor.Deposit(context.Background(), &DepositRequest{
			Sender: senderAddress,
			Vault:  vaultAddress,
			Token:  daiAddress,
			Amount: oneToken,
		})

		var valErr *ValuationError
		assert.True(t, errors.As(err, &valErr))
	})
}

func Test_ChainReadFailure(t *testing.T) {
	backend := &fakeBackend{}
	executor := newTestExecutor(t, &fakeChainReader{underlyingErr: errors.New("node unreachable")}, backend, &fakeOracle{}, nil, nil)

	_, err := executor.Deposit(context.Background(), &DepositRequest{
		Sender: senderAddress,
		Vault:  vaultAddress,
		Token:  daiAddress,
		Amount: oneToken,
	})

	var readErr *ChainReadError
	assert.True(t, errors.As(err, &readErr))
	assert.Empty(t, backend.requests)
}

func Test_NoTransferLog(t *testing.T) {
	oracle := &fakeOracle{values: map[string]decimal.Decimal{}}
	backend := &fakeBackend{simulateFn: func(request *simulation.SimulationRequest) (*simulation.SimulationResult, error) {
		// the call succeeded but moved no vault shares to the sender
		return &simulation.SimulationResult{Id: "sim-empty"}, nil
	}}
	executor := newTestExecutor(t, &fakeChainReader{underlying: daiAddress, allowance: oneToken}, backend, oracle, nil, nil)

	outcome, err := executor.Deposit(context.Background(), &DepositRequest{
		Sender: senderAddress,
		Vault:  vaultAddress,
		Token:  daiAddress,
		Amount: oneToken,
	})
	assert.Nil(t, outcome)

	var noLogErr *NoTransferLogError
	assert.True(t, errors.As(err, &noLogErr))
}
