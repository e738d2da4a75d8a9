package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"raffle-guess/internal/chain"
	"raffle-guess/internal/raffle"
)

var errNoApproval = errors.New("entry requires a confirmed fee approval")

// EntryReceipt is a mined raffle entry.
type EntryReceipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	Entered     *raffle.Entered // nil when the receipt carries no RaffleEntered log
}

// EntryStep calls enterRaffleWithGuess on the raffle contract.
type EntryStep struct {
	Raffle         common.Address
	RaffleNumber   *big.Int
	ConfirmTimeout time.Duration
}

// Submit broadcasts the entry. approval must come from ApprovalStep.Wait in
// the same session.
func (s EntryStep) Submit(ctx context.Context, p chain.Provider, approval *ApprovalReceipt, guess int64) (common.Hash, error) {
	if approval == nil || !approval.confirmed {
		return common.Hash{}, fmt.Errorf("%w: %w", ErrEntryRejected, errNoApproval)
	}
	data, err := raffle.PackEnter(guess, s.RaffleNumber)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %w", ErrEntryRejected, err)
	}
	hash, err := p.SendTransaction(ctx, chain.Call{To: s.Raffle, Data: data})
	if err != nil {
		return common.Hash{}, sendError(ctx, ErrEntryRejected, err)
	}
	return hash, nil
}

func (s EntryStep) Wait(ctx context.Context, p chain.Provider, hash common.Hash) (*EntryReceipt, error) {
	receipt, err := waitReceipt(ctx, p, hash, s.ConfirmTimeout, ErrEntryTimeout, ErrEntryRejected)
	if err != nil {
		return nil, err
	}
	out := &EntryReceipt{TxHash: hash, BlockNumber: blockOf(receipt)}
	for _, l := range receipt.Logs {
		if l == nil || l.Address != s.Raffle {
			continue
		}
		if ev, err := raffle.ParseEntered(*l); err == nil {
			out.Entered = &ev
			break
		}
	}
	return out, nil
}
