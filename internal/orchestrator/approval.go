package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"raffle-guess/internal/chain"
	"raffle-guess/internal/raffle"
)

// ApprovalReceipt proves the fee approval was mined. Only ApprovalStep.Wait
// produces a usable one.
type ApprovalReceipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	confirmed   bool
}

// ApprovalStep grants the raffle an allowance of the entry fee on the token.
type ApprovalStep struct {
	Token          common.Address
	Spender        common.Address
	Amount         *big.Int
	ConfirmTimeout time.Duration
}

// Submit broadcasts approve(spender, amount) and returns without waiting.
func (s ApprovalStep) Submit(ctx context.Context, p chain.Provider) (common.Hash, error) {
	data, err := raffle.PackApprove(s.Spender, s.Amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %w", ErrApprovalRejected, err)
	}
	hash, err := p.SendTransaction(ctx, chain.Call{To: s.Token, Data: data})
	if err != nil {
		return common.Hash{}, sendError(ctx, ErrApprovalRejected, err)
	}
	return hash, nil
}

// Wait blocks until hash is mined or the confirmation ceiling passes.
func (s ApprovalStep) Wait(ctx context.Context, p chain.Provider, hash common.Hash) (*ApprovalReceipt, error) {
	receipt, err := waitReceipt(ctx, p, hash, s.ConfirmTimeout, ErrApprovalTimeout, ErrApprovalRejected)
	if err != nil {
		return nil, err
	}
	return &ApprovalReceipt{TxHash: hash, BlockNumber: blockOf(receipt), confirmed: true}, nil
}

// sendError classifies a failed broadcast. Nothing reached the chain, so a
// cancelled context is a cancellation, not a timeout.
func sendError(ctx context.Context, rejected, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	if name := raffle.ExplainRevert(err); name != "" {
		return fmt.Errorf("%w: contract reverted with %s: %w", rejected, name, err)
	}
	return fmt.Errorf("%w: %w", rejected, err)
}

// waitReceipt waits for a successful receipt. Once a transaction is
// broadcast, any expired or cancelled wait is reported as timeout.
func waitReceipt(ctx context.Context, p chain.Provider, hash common.Hash, ceiling time.Duration, timeout, rejected error) (*types.Receipt, error) {
	if ceiling <= 0 {
		ceiling = 2 * time.Minute
	}
	wctx, cancel := context.WithTimeout(ctx, ceiling)
	defer cancel()

	receipt, err := p.WaitForReceipt(wctx, hash)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %s not mined: %w", timeout, hash.Hex(), err)
		}
		return nil, fmt.Errorf("%w: %w", rejected, err)
	}
	if receipt == nil || receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s reverted", rejected, hash.Hex())
	}
	return receipt, nil
}

func blockOf(r *types.Receipt) uint64 {
	if r.BlockNumber == nil {
		return 0
	}
	return r.BlockNumber.Uint64()
}
