// Package orchestrator runs one raffle entry as an explicit state machine:
// validate the guess, connect the wallet, make sure it is on the required
// chain, approve the fee, enter the raffle, then record the guess off-chain.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"raffle-guess/internal/chain"
	"raffle-guess/internal/guesstime"
	"raffle-guess/internal/inflight"
	"raffle-guess/internal/journal"
	"raffle-guess/internal/logger"
	"raffle-guess/internal/models"
	"raffle-guess/internal/persistence"
)

// Persister records confirmed guesses off-chain.
type Persister interface {
	RecordGuess(ctx context.Context, g persistence.Guess) (*models.GuessRecord, error)
}

// Journal keeps confirmed entries whose persistence failed.
type Journal interface {
	Save(e journal.Entry) error
	Delete(entryTx string) error
}

// Config is the fixed on-chain context of every session.
type Config struct {
	ChainID      uint64
	Token        common.Address
	Raffle       common.Address
	RaffleNumber *big.Int
	EntryFee     *big.Int

	SwitchTimeout  time.Duration
	SettleDelay    time.Duration
	PollInterval   time.Duration
	ConfirmTimeout time.Duration
}

// Request is one user submission.
type Request struct {
	Date      string // YYYY-MM-DD
	Time      string // HH:MM or HH:MM:SS
	FID       int64  // 0 when unknown
	Connector string // wallet connector name; empty picks the first
}

// Result is the Completed outcome.
type Result struct {
	SessionID    string
	Address      common.Address
	Timestamp    int64
	ReadableTime string
	FID          int64
	ApprovalTx   common.Hash
	EntryTx      common.Hash
	EntryBlock   uint64
	Record       *models.GuessRecord
}

// Event describes one transition. Err is set only for StageFailed.
type Event struct {
	SessionID  string
	Stage      Stage
	Address    common.Address
	ApprovalTx common.Hash
	EntryTx    common.Hash
	Err        error
}

// Observer receives every transition of every session.
type Observer func(Event)

type Option func(*Orchestrator)

func WithLogger(l *logger.Logger) Option { return func(o *Orchestrator) { o.log = l } }

func WithGuard(g inflight.Guard) Option { return func(o *Orchestrator) { o.guard = g } }

func WithJournal(j Journal) Option { return func(o *Orchestrator) { o.journal = j } }

func WithObserver(fn Observer) Option { return func(o *Orchestrator) { o.observe = fn } }

// WithProvider supplies an already connected wallet; Connecting is skipped.
func WithProvider(p chain.Provider) Option { return func(o *Orchestrator) { o.provider = p } }

type Orchestrator struct {
	cfg        Config
	connectors []chain.Connector
	store      Persister
	guard      inflight.Guard
	journal    Journal
	log        *logger.Logger
	observe    Observer

	mu       sync.Mutex
	provider chain.Provider
}

func New(cfg Config, connectors []chain.Connector, store Persister, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:        cfg,
		connectors: connectors,
		store:      store,
		guard:      inflight.NewMemory(),
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.cfg.RaffleNumber == nil {
		o.cfg.RaffleNumber = big.NewInt(1)
	}
	return o
}

// session is the mutable state of one Submit call.
type session struct {
	id         string
	stage      Stage
	address    common.Address
	approvalTx common.Hash
	entryTx    common.Hash
	log        *logger.Logger
}

func (o *Orchestrator) enter(s *session, stage Stage) {
	s.stage = stage
	s.log.Debug("stage", "stage", stage.String())
	o.emit(s, nil)
}

func (o *Orchestrator) emit(s *session, err error) {
	if o.observe == nil {
		return
	}
	o.observe(Event{
		SessionID:  s.id,
		Stage:      s.stage,
		Address:    s.address,
		ApprovalTx: s.approvalTx,
		EntryTx:    s.entryTx,
		Err:        err,
	})
}

// fail ends the session at its current stage.
func (o *Orchestrator) fail(s *session, fallback, err error) error {
	se := &StageError{
		Stage:      s.stage,
		Kind:       kindOf(err, fallback),
		Err:        err,
		ApprovalTx: s.approvalTx,
		EntryTx:    s.entryTx,
	}
	s.log.Error("submission failed", "stage", s.stage.String(), "kind", se.Kind.Error(), "err", err)
	s.stage = StageFailed
	o.emit(s, se)
	return se
}

// checkpoint fails the session if ctx ended before the next stage starts.
func (o *Orchestrator) checkpoint(ctx context.Context, s *session) error {
	if err := ctx.Err(); err != nil {
		return o.fail(s, ErrCancelled, fmt.Errorf("%w: %w", ErrCancelled, err))
	}
	return nil
}

// Submit runs one session from Idle to Completed or Failed. Every failure
// is a *StageError. No step is retried automatically.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*Result, error) {
	s := &session{id: uuid.NewString()}
	s.log = o.log.With("session", s.id)
	o.enter(s, StageIdle)

	o.enter(s, StageValidating)
	ts, err := guesstime.Normalize(req.Date, req.Time)
	if err != nil {
		return nil, o.fail(s, ErrValidation, fmt.Errorf("%w: %w", ErrValidation, err))
	}
	if err := o.validateConfig(); err != nil {
		return nil, o.fail(s, ErrValidation, err)
	}
	readable := guesstime.Readable(ts)
	fid := models.FIDOrUnknown(req.FID)

	if err := o.checkpoint(ctx, s); err != nil {
		return nil, err
	}
	p := o.connected()
	if p == nil {
		o.enter(s, StageConnecting)
		p, err = o.connect(ctx, req.Connector)
		if err != nil {
			return nil, o.fail(s, ErrWalletUnavailable, err)
		}
	}
	s.address = p.Address()
	s.log = s.log.With("address", s.address.Hex())

	if err := o.checkpoint(ctx, s); err != nil {
		return nil, err
	}
	o.enter(s, StageChainChecking)
	release, err := o.guard.Acquire(ctx, strings.ToLower(s.address.Hex()), o.leaseTTL())
	if err != nil {
		if errors.Is(err, inflight.ErrBusy) {
			return nil, o.fail(s, ErrSubmissionInFlight, fmt.Errorf("%w: %s", ErrSubmissionInFlight, s.address.Hex()))
		}
		return nil, o.fail(s, ErrSubmissionInFlight, fmt.Errorf("%w: %w", ErrSubmissionInFlight, err))
	}
	defer release()

	guard := ChainGuard{
		Required: o.cfg.ChainID,
		Timeout:  o.cfg.SwitchTimeout,
		Settle:   o.cfg.SettleDelay,
		Poll:     o.cfg.PollInterval,
	}
	switched, err := guard.Ensure(ctx, p)
	if err != nil {
		return nil, o.fail(s, ErrChainSwitchRejected, err)
	}
	if switched {
		s.log.Info("switched chain", "chain", o.cfg.ChainID)
	}

	if err := o.checkpoint(ctx, s); err != nil {
		return nil, err
	}
	o.enter(s, StageApproving)
	approve := ApprovalStep{
		Token:          o.cfg.Token,
		Spender:        o.cfg.Raffle,
		Amount:         o.cfg.EntryFee,
		ConfirmTimeout: o.cfg.ConfirmTimeout,
	}
	s.approvalTx, err = approve.Submit(ctx, p)
	if err != nil {
		return nil, o.fail(s, ErrApprovalRejected, err)
	}
	s.log.Info("approval sent", "tx", s.approvalTx.Hex())

	o.enter(s, StageAwaitingApproval)
	approval, err := approve.Wait(ctx, p, s.approvalTx)
	if err != nil {
		return nil, o.fail(s, ErrApprovalTimeout, err)
	}

	if err := o.checkpoint(ctx, s); err != nil {
		return nil, err
	}
	o.enter(s, StageEntering)
	entry := EntryStep{
		Raffle:         o.cfg.Raffle,
		RaffleNumber:   o.cfg.RaffleNumber,
		ConfirmTimeout: o.cfg.ConfirmTimeout,
	}
	s.entryTx, err = entry.Submit(ctx, p, approval, ts)
	if err != nil {
		return nil, o.fail(s, ErrEntryRejected, err)
	}
	s.log.Info("entry sent", "tx", s.entryTx.Hex())

	o.enter(s, StageAwaitingEntry)
	entered, err := entry.Wait(ctx, p, s.entryTx)
	if err != nil {
		return nil, o.fail(s, ErrEntryTimeout, err)
	}

	o.enter(s, StagePersisting)
	guess := persistence.Guess{
		Timestamp:    ts,
		UserAddress:  s.address.Hex(),
		FID:          fid,
		ReadableTime: readable,
	}
	rec, err := o.store.RecordGuess(ctx, guess)
	if err != nil {
		perr := fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
		o.remember(s, guess, perr)
		return nil, o.fail(s, ErrPersistenceFailure, perr)
	}

	o.enter(s, StageCompleted)
	s.log.Info("guess recorded", "timestamp", ts, "fid", fid, "entry_tx", s.entryTx.Hex())
	return &Result{
		SessionID:    s.id,
		Address:      s.address,
		Timestamp:    ts,
		ReadableTime: readable,
		FID:          fid,
		ApprovalTx:   s.approvalTx,
		EntryTx:      s.entryTx,
		EntryBlock:   entered.BlockNumber,
		Record:       rec,
	}, nil
}

// RetryPersistence records a journalled entry without touching the chain
// and drops it from the journal on success.
func (o *Orchestrator) RetryPersistence(ctx context.Context, e journal.Entry) (*models.GuessRecord, error) {
	s := &session{
		id:         e.SessionID,
		address:    common.HexToAddress(e.UserAddress),
		approvalTx: common.HexToHash(e.ApprovalTx),
		entryTx:    common.HexToHash(e.EntryTx),
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	s.log = o.log.With("session", s.id, "retry", true)
	o.enter(s, StagePersisting)

	rec, err := o.store.RecordGuess(ctx, persistence.Guess{
		Timestamp:    e.Timestamp,
		UserAddress:  e.UserAddress,
		FID:          models.FIDOrUnknown(e.FID),
		ReadableTime: e.ReadableTime,
	})
	if err != nil {
		return nil, o.fail(s, ErrPersistenceFailure, fmt.Errorf("%w: %w", ErrPersistenceFailure, err))
	}
	if o.journal != nil {
		if err := o.journal.Delete(e.EntryTx); err != nil {
			s.log.Error("journal delete failed", "entry_tx", e.EntryTx, "err", err)
		}
	}
	o.enter(s, StageCompleted)
	return rec, nil
}

func (o *Orchestrator) remember(s *session, g persistence.Guess, cause error) {
	if o.journal == nil {
		return
	}
	err := o.journal.Save(journal.Entry{
		SessionID:    s.id,
		Timestamp:    g.Timestamp,
		UserAddress:  g.UserAddress,
		FID:          g.FID,
		ReadableTime: g.ReadableTime,
		ApprovalTx:   s.approvalTx.Hex(),
		EntryTx:      s.entryTx.Hex(),
		Reason:       cause.Error(),
	})
	if err != nil {
		s.log.Error("journal save failed", "entry_tx", s.entryTx.Hex(), "err", err)
	}
}

func (o *Orchestrator) connect(ctx context.Context, name string) (chain.Provider, error) {
	c, err := chain.SelectConnector(o.connectors, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWalletUnavailable, err)
	}
	p, err := c.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrWalletUnavailable, c.Name(), err)
	}
	o.mu.Lock()
	o.provider = p
	o.mu.Unlock()
	return p, nil
}

func (o *Orchestrator) connected() chain.Provider {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.provider
}

func (o *Orchestrator) validateConfig() error {
	switch {
	case o.cfg.Token == (common.Address{}):
		return fmt.Errorf("%w: token address not configured", ErrValidation)
	case o.cfg.Raffle == (common.Address{}):
		return fmt.Errorf("%w: raffle address not configured", ErrValidation)
	case o.cfg.EntryFee == nil || o.cfg.EntryFee.Sign() <= 0:
		return fmt.Errorf("%w: entry fee not configured", ErrValidation)
	}
	return nil
}

// leaseTTL covers the chain check plus both confirmation waits.
func (o *Orchestrator) leaseTTL() time.Duration {
	confirm := o.cfg.ConfirmTimeout
	if confirm <= 0 {
		confirm = 2 * time.Minute
	}
	return o.cfg.SwitchTimeout + o.cfg.SettleDelay + 2*confirm + time.Minute
}
