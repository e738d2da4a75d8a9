package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"raffle-guess/internal/chain"
	"raffle-guess/internal/journal"
	"raffle-guess/internal/models"
	"raffle-guess/internal/persistence"
	"raffle-guess/internal/raffle"
)

var (
	testToken  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	testRaffle = common.HexToAddress("0x0C8020F0F4D4fb6fe708B0ED91cc3BAd00D419A8")
	testWallet = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

// fakeProvider records every wallet interaction in order.
type fakeProvider struct {
	mu sync.Mutex

	chainID     uint64
	switchErr   error
	switchNoop  bool // accept the switch but stay on the old chain
	sendErr     map[string]error
	revert      map[string]bool
	waitErr     map[string]error
	blockOnWait map[string]bool

	calls []string
	sent  map[common.Hash]string
}

func newFakeProvider(chainID uint64) *fakeProvider {
	return &fakeProvider{
		chainID:     chainID,
		sendErr:     map[string]error{},
		revert:      map[string]bool{},
		waitErr:     map[string]error{},
		blockOnWait: map[string]bool{},
		sent:        map[common.Hash]string{},
	}
}

func (f *fakeProvider) record(c string) {
	f.calls = append(f.calls, c)
}

func (f *fakeProvider) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeProvider) count(c string) int {
	n := 0
	for _, got := range f.Calls() {
		if got == c {
			n++
		}
	}
	return n
}

func (f *fakeProvider) Address() common.Address { return testWallet }

func (f *fakeProvider) ChainID(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chainID, nil
}

func (f *fakeProvider) SwitchChain(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("switch")
	if f.switchErr != nil {
		return f.switchErr
	}
	if !f.switchNoop {
		f.chainID = id
	}
	return nil
}

func method(data []byte) string {
	switch {
	case bytes.HasPrefix(data, raffle.TokenABI.Methods["approve"].ID):
		return "approve"
	case bytes.HasPrefix(data, raffle.RaffleABI.Methods["enterRaffleWithGuess"].ID):
		return "enter"
	}
	return "unknown"
}

func (f *fakeProvider) SendTransaction(_ context.Context, call chain.Call) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := method(call.Data)
	f.record("send:" + m)
	if err := f.sendErr[m]; err != nil {
		return common.Hash{}, err
	}
	h := crypto.Keccak256Hash(call.To.Bytes(), call.Data)
	f.sent[h] = m
	return h, nil
}

func (f *fakeProvider) WaitForReceipt(ctx context.Context, h common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	m := f.sent[h]
	f.record("wait:" + m)
	err := f.waitErr[m]
	block := f.blockOnWait[m]
	revert := f.revert[m]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	status := types.ReceiptStatusSuccessful
	if revert {
		status = types.ReceiptStatusFailed
	}
	return &types.Receipt{Status: status, TxHash: h, BlockNumber: big.NewInt(100)}, nil
}

type fakeConnector struct {
	p        chain.Provider
	err      error
	connects int
}

func (c *fakeConnector) Name() string { return "fake" }

func (c *fakeConnector) Connect(context.Context) (chain.Provider, error) {
	c.connects++
	if c.err != nil {
		return nil, c.err
	}
	return c.p, nil
}

type fakeStore struct {
	mu    sync.Mutex
	err   error
	saved []persistence.Guess
}

func (s *fakeStore) RecordGuess(_ context.Context, g persistence.Guess) (*models.GuessRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.saved = append(s.saved, g)
	return &models.GuessRecord{
		ID:           uint(len(s.saved)),
		Timestamp:    g.Timestamp,
		UserAddress:  g.UserAddress,
		FID:          g.FID,
		ReadableTime: g.ReadableTime,
	}, nil
}

type memJournal struct {
	entries map[string]journal.Entry
}

func newMemJournal() *memJournal { return &memJournal{entries: map[string]journal.Entry{}} }

func (j *memJournal) Save(e journal.Entry) error {
	if e.EntryTx == "" {
		return errors.New("no entry tx")
	}
	j.entries[e.EntryTx] = e
	return nil
}

func (j *memJournal) Delete(tx string) error {
	delete(j.entries, tx)
	return nil
}
