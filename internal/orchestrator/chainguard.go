package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"raffle-guess/internal/chain"
)

// ChainGuard makes sure the wallet is on the required chain before any
// transaction is signed. It is consulted on every run.
type ChainGuard struct {
	Required uint64
	Timeout  time.Duration // how long to wait for the wallet to report the new chain
	Settle   time.Duration // pause after the switch is observed
	Poll     time.Duration
}

// Ensure issues at most one switch request. It returns whether a switch was
// needed.
func (g ChainGuard) Ensure(ctx context.Context, p chain.Provider) (bool, error) {
	current, err := p.ChainID(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: read chain id: %w", ErrChainSwitchRejected, err)
	}
	if current == g.Required {
		return false, nil
	}

	timeout := g.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.SwitchChain(wctx, g.Required); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return true, fmt.Errorf("%w: no answer to switch from %d to %d", ErrChainSwitchTimeout, current, g.Required)
		}
		return true, fmt.Errorf("%w: switch from %d to %d: %w", ErrChainSwitchRejected, current, g.Required, err)
	}

	if err := g.awaitChain(wctx, p); err != nil {
		return true, err
	}

	if g.Settle > 0 {
		t := time.NewTimer(g.Settle)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return true, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		case <-t.C:
		}
	}
	return true, nil
}

func (g ChainGuard) awaitChain(ctx context.Context, p chain.Provider) error {
	poll := g.Poll
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	last := uint64(0)
	for {
		id, err := p.ChainID(ctx)
		if err == nil {
			if id == g.Required {
				return nil
			}
			last = id
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: wallet still on chain %d", ErrChainSwitchTimeout, last)
		case <-ticker.C:
		}
	}
}
