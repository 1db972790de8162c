package simulator

import (
	"context"

	"github.com/meridian-fi/vaultsim/pkg/clients/simulation"
	"go.uber.org/zap"
)

// runWithCleanup governs persistence and fork cleanup around a single logical
// simulation attempt. The attempt runs unsaved; on success the fork (if any)
// is deleted exactly once, since a successful sequence needs no forensic
// trail. On failure the fork is intentionally leaked for inspection and the
// original error propagates unchanged.
//
// When diagnosticReplay is set, a failure triggers one extra saved attempt
// purely so the backend captures it; its result and error are both discarded.
func runWithCleanup(
	ctx context.Context,
	backend ISimulationClient,
	fork *simulation.Fork,
	diagnosticReplay bool,
	l *zap.Logger,
	attempt func(ctx context.Context, persist bool) (*simulation.SimulationResult, error),
) (*simulation.SimulationResult, error) {
	result, err := attempt(ctx, false)
	if err != nil {
		if diagnosticReplay {
			l.Sugar().Debugw("Replaying failed simulation with persistence for diagnostics", zap.Error(err))
			if _, replayErr := attempt(ctx, true); replayErr != nil {
				l.Sugar().Debugw("Diagnostic replay failed", zap.Error(replayErr))
			}
		}
		return nil, err
	}

	if fork != nil {
		backend.DeleteFork(ctx, fork.Id)
	}
	return result, nil
}
