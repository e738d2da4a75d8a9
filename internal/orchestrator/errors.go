package orchestrator

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Failure kinds. A *StageError matches exactly one of them with errors.Is.
var (
	ErrValidation          = errors.New("validation failed")
	ErrWalletUnavailable   = errors.New("wallet unavailable")
	ErrChainSwitchRejected = errors.New("chain switch rejected")
	ErrChainSwitchTimeout  = errors.New("chain switch timed out")
	ErrApprovalRejected    = errors.New("approval rejected")
	ErrApprovalTimeout     = errors.New("approval timed out")
	ErrEntryRejected       = errors.New("entry rejected")
	ErrEntryTimeout        = errors.New("entry timed out")
	ErrPersistenceFailure  = errors.New("persistence failed")
	ErrSubmissionInFlight  = errors.New("submission already in flight")
	ErrCancelled           = errors.New("cancelled")
)

var kinds = []error{
	ErrValidation,
	ErrWalletUnavailable,
	ErrChainSwitchRejected,
	ErrChainSwitchTimeout,
	ErrApprovalRejected,
	ErrApprovalTimeout,
	ErrEntryRejected,
	ErrEntryTimeout,
	ErrPersistenceFailure,
	ErrSubmissionInFlight,
	ErrCancelled,
}

// kindOf returns the failure kind err wraps, or fallback.
func kindOf(err, fallback error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return fallback
}

// StageError is the Failed outcome of a session. Hashes of transactions that
// were broadcast before the failure are kept so the caller can recover.
type StageError struct {
	Stage      Stage
	Kind       error
	Err        error
	ApprovalTx common.Hash
	EntryTx    common.Hash
}

func (e *StageError) Error() string {
	msg := e.Kind.Error()
	if e.Err != nil && e.Err != e.Kind {
		msg = e.Err.Error()
	}
	s := fmt.Sprintf("%s: %s", e.Stage, msg)
	if e.EntryTx != (common.Hash{}) {
		s += " (entry tx " + e.EntryTx.Hex() + ")"
	} else if e.ApprovalTx != (common.Hash{}) {
		s += " (approval tx " + e.ApprovalTx.Hex() + ")"
	}
	return s
}

func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// OnChainConfirmed reports whether the entry transaction was mined before
// the failure.
func (e *StageError) OnChainConfirmed() bool {
	return errors.Is(e.Kind, ErrPersistenceFailure)
}
