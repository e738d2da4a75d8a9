// Package reconcile compares confirmed RaffleEntered logs with the guess
// store and reports entries that were never recorded off-chain.
package reconcile

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"raffle-guess/internal/logger"
	"raffle-guess/internal/raffle"
)

// Chain is the node API the scanner needs. *ethclient.Client satisfies it.
type Chain interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// Index answers whether an entry was recorded.
type Index interface {
	Exists(ctx context.Context, userAddress string, ts int64) (bool, error)
}

type Options struct {
	Raffle        common.Address
	RaffleNumber  *big.Int
	FromBlock     uint64
	ChunkSize     uint64        // blocks per eth_getLogs call
	Confirmations uint64        // blocks behind head considered final
	Interval      time.Duration // Run period
}

// Report is the result of one scan.
type Report struct {
	FromBlock uint64
	ToBlock   uint64
	Scanned   int
	Missing   []raffle.Entered
}

type Reconciler struct {
	opts  Options
	chain Chain
	index Index
	log   *logger.Logger

	mu   sync.Mutex
	next uint64 // first block of the next scan
}

func New(opts Options, chain Chain, index Index, log *logger.Logger) *Reconciler {
	if opts.ChunkSize == 0 {
		opts.ChunkSize = 2000
	}
	if opts.RaffleNumber == nil {
		opts.RaffleNumber = big.NewInt(1)
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Reconciler{opts: opts, chain: chain, index: index, log: log, next: opts.FromBlock}
}

// Scan checks every block since the previous scan up to the confirmed head.
// The cursor only advances past chunks that were fully checked.
func (r *Reconciler) Scan(ctx context.Context) (*Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	head, err := r.chain.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("head block: %w", err)
	}
	if head < r.opts.Confirmations {
		return &Report{FromBlock: r.next, ToBlock: r.next}, nil
	}
	last := head - r.opts.Confirmations

	rep := &Report{FromBlock: r.next, ToBlock: r.next}
	for from := r.next; from <= last; from += r.opts.ChunkSize {
		to := from + r.opts.ChunkSize - 1
		if to > last {
			to = last
		}
		scanned, missing, err := r.scanRange(ctx, from, to)
		if err != nil {
			return rep, err
		}
		rep.Scanned += scanned
		rep.Missing = append(rep.Missing, missing...)
		rep.ToBlock = to
		r.next = to + 1
	}
	return rep, nil
}

func (r *Reconciler) scanRange(ctx context.Context, from, to uint64) (int, []raffle.Entered, error) {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{r.opts.Raffle},
		Topics: [][]common.Hash{
			{raffle.EnteredTopic},
			{common.BigToHash(r.opts.RaffleNumber)},
		},
	}
	logs, err := r.chain.FilterLogs(ctx, q)
	if err != nil {
		return 0, nil, fmt.Errorf("filter logs %d-%d: %w", from, to, err)
	}

	var missing []raffle.Entered
	scanned := 0
	for _, l := range logs {
		if l.Removed {
			continue
		}
		ev, err := raffle.ParseEntered(l)
		if err != nil {
			r.log.Debug("skip log", "tx", l.TxHash.Hex(), "err", err)
			continue
		}
		scanned++
		if !ev.Guess.IsInt64() {
			missing = append(missing, ev)
			continue
		}
		ok, err := r.index.Exists(ctx, ev.Entrant.Hex(), ev.Guess.Int64())
		if err != nil {
			return 0, nil, err
		}
		if !ok {
			missing = append(missing, ev)
		}
	}
	r.log.Debug("scanned", "from", from, "to", to, "entries", scanned, "missing", len(missing))
	return scanned, missing, nil
}

// Run scans every Interval until ctx ends. Failed scans are logged and
// retried on the next tick.
func (r *Reconciler) Run(ctx context.Context, onReport func(*Report)) error {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()
	for {
		rep, err := r.Scan(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.log.Error("scan failed, retrying", "err", err)
		}
		if rep != nil && onReport != nil && (rep.Scanned > 0 || len(rep.Missing) > 0) {
			onReport(rep)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
