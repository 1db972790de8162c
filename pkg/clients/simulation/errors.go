package simulation

import (
	"fmt"
	"strings"
)

// BackendCallError is a transport-level failure talking to the simulation
// backend. The simulated transaction itself was never evaluated.
type BackendCallError struct {
	Err error
}

func (e *BackendCallError) Error() string {
	return fmt.Sprintf("simulation backend call failed: %v", e.Err)
}

func (e *BackendCallError) Unwrap() error {
	return e.Err
}

// ForkCreationError is a transport-level failure creating a fork.
type ForkCreationError struct {
	Err error
}

func (e *ForkCreationError) Error() string {
	return fmt.Sprintf("fork creation failed: %v", e.Err)
}

func (e *ForkCreationError) Unwrap() error {
	return e.Err
}

// SimulationRevertError means the backend evaluated the transaction and it
// reverted at the top-level frame.
type SimulationRevertError struct {
	SimulationId string
	Message      string
}

func (e *SimulationRevertError) Error() string {
	return fmt.Sprintf("simulation %s reverted: %s", e.SimulationId, e.Message)
}

// PartialRevertError means the top-level call succeeded but one or more
// nested calls reverted. A router or zap contract can swallow an inner revert
// at the outer frame; that is a hard failure, not a success.
type PartialRevertError struct {
	SimulationId string
	NestedErrors []string
}

func (e *PartialRevertError) Error() string {
	return fmt.Sprintf("simulation %s partially reverted: %s", e.SimulationId, strings.Join(e.NestedErrors, "; "))
}
