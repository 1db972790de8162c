package simulator

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/meridian-fi/vaultsim/pkg/chainReader"
	"github.com/meridian-fi/vaultsim/pkg/clients/simulation"
	"github.com/meridian-fi/vaultsim/pkg/utils"
	"github.com/meridian-fi/vaultsim/pkg/zaps/zapTypes"
	"go.uber.org/zap"
)

// approvalResolver decides whether the operation needs an approve() step
// first, and when it does, opens the fork and simulates the approval as the
// root of the two-step sequence. Allowance is re-read on every call, never
// cached.
type approvalResolver struct {
	chainReader chainReader.IChainReader
	backend     ISimulationClient
	networkId   string
	logger      *zap.Logger
}

// resolveDirect handles the direct-route case: the spender is the vault and
// the approve calldata is packed locally.
func (a *approvalResolver) resolveDirect(ctx context.Context, owner string, token string, spender string, amount *big.Int) (*approvalPlan, error) {
	if utils.IsNativeToken(token) {
		return &approvalPlan{}, nil
	}

	allowance, err := a.chainReader.GetAllowance(ctx, owner, token, spender)
	if err != nil {
		return nil, &ApprovalError{Err: err}
	}
	if allowance.Cmp(amount) >= 0 {
		a.logger.Sugar().Debugw("Allowance already sufficient",
			zap.String("token", token),
			zap.String("spender", spender),
		)
		return &approvalPlan{}, nil
	}

	data, err := chainReader.Erc20Abi.Pack("approve", common.HexToAddress(spender), amount)
	if err != nil {
		return nil, &ApprovalError{Err: err}
	}

	return a.simulateApproval(ctx, owner, token, utils.ConvertBytesToString(data))
}

// resolveZap handles the zap-route case: the provider reports its spender's
// allowance state and builds the approve payload itself.
func (a *approvalResolver) resolveZap(ctx context.Context, owner string, token string, amount *big.Int, provider zapTypes.IZapProvider) (*approvalPlan, error) {
	if utils.IsNativeToken(token) {
		return &approvalPlan{}, nil
	}

	state, err := provider.GetApprovalState(ctx, owner, token, amount)
	if err != nil {
		return nil, &ApprovalError{Err: err}
	}
	if state.IsSufficient {
		return &approvalPlan{}, nil
	}

	approveTx, err := provider.BuildApprovalTransaction(ctx, token, amount)
	if err != nil {
		return nil, &ApprovalError{Err: err}
	}

	return a.simulateApproval(ctx, owner, approveTx.To, approveTx.Data)
}

// simulateApproval opens a fresh fork and runs the approval on it with
// save=true; the resulting simulation id becomes the causal root of the
// dependent main simulation.
func (a *approvalResolver) simulateApproval(ctx context.Context, owner string, to string, data string) (*approvalPlan, error) {
	fork, err := a.backend.CreateFork(ctx, a.networkId)
	if err != nil {
		return nil, &ApprovalError{Err: err}
	}

	result, err := a.backend.Simulate(ctx, &simulation.SimulationRequest{
		From:      owner,
		To:        to,
		Input:     data,
		NetworkId: a.networkId,
		ForkId:    fork.Id,
		Save:      true,
	})
	if err != nil {
		// the fork is leaked for inspection
		return nil, &ApprovalError{Err: err}
	}

	a.logger.Sugar().Debugw("Simulated approval",
		zap.String("forkId", fork.Id),
		zap.String("simulationId", result.Id),
	)

	return &approvalPlan{
		fork:             fork,
		rootSimulationId: result.Id,
	}, nil
}
