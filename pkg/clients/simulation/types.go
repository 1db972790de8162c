package simulation

import "math/big"

// SimulationRequest describes one transaction to execute against the
// backend's forked chain state. Built fresh per attempt; never mutated after
// submission.
type SimulationRequest struct {
	From      string
	To        string
	Input     string
	Value     *big.Int
	NetworkId string

	// GasLimit and GasPrice come from a populated-transaction estimate when
	// the caller has one; zero values fall back to defaults at submission.
	GasLimit uint64
	GasPrice *big.Int

	// RootSimulationId causally chains this simulation after a prior one
	// (e.g. an approval) on the same fork.
	RootSimulationId string
	ForkId           string

	// Save asks the backend to persist the simulation for later inspection.
	Save bool
}

// CallTrace is one frame of the backend's execution trace.
type CallTrace struct {
	Output string       `json:"output"`
	Error  string       `json:"error,omitempty"`
	Calls  []*CallTrace `json:"calls,omitempty"`
}

// EventLog is a raw emitted log: address, up to four 32-byte topics and the
// ABI-encoded data segment.
type EventLog struct {
	Name string    `json:"name,omitempty"`
	Raw  EventData `json:"raw"`
}

type EventData struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    string   `json:"data"`
}

// SimulationResult is the decoded outcome of one simulation attempt. Owned
// transiently by that attempt; read-only afterwards.
type SimulationResult struct {
	Id           string
	CallTrace    *CallTrace
	Logs         []*EventLog
	ErrorMessage string
}

// Fork is an opaque handle to a disposable sequential chain-state branch.
type Fork struct {
	Id string
}

// FlattenCallErrors walks the nested frames beneath the top-level call and
// collects every error string found. The top-level frame's own error is
// reported by the backend as error_message and is not included here.
func FlattenCallErrors(trace *CallTrace) []string {
	if trace == nil {
		return nil
	}
	errs := make([]string, 0)
	for _, call := range trace.Calls {
		errs = append(errs, collectCallErrors(call)...)
	}
	return errs
}

func collectCallErrors(trace *CallTrace) []string {
	errs := make([]string, 0)
	if trace.Error != "" {
		errs = append(errs, trace.Error)
	}
	for _, call := range trace.Calls {
		errs = append(errs, collectCallErrors(call)...)
	}
	return errs
}
