package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"raffle-guess/internal/chain"
	"raffle-guess/internal/config"
	"raffle-guess/internal/fid"
	"raffle-guess/internal/inflight"
	"raffle-guess/internal/journal"
	"raffle-guess/internal/logger"
	"raffle-guess/internal/orchestrator"
	"raffle-guess/internal/persistence"
	"raffle-guess/internal/raffle"
	"raffle-guess/internal/tui"
)

type app struct {
	cfg config.Config
	log *logger.Logger
}

func (a *app) raffleNumber() *big.Int {
	return big.NewInt(a.cfg.RaffleNumber)
}

func (a *app) reader(ctx context.Context) (*raffle.Reader, func(), error) {
	client, err := ethclient.DialContext(ctx, a.cfg.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", a.cfg.RPCURL, err)
	}
	return raffle.NewReader(client, common.HexToAddress(a.cfg.RaffleAddr)), client.Close, nil
}

// connectors returns the configured wallets and the address of the first,
// if any.
func (a *app) connectors() ([]chain.Connector, common.Address, error) {
	if a.cfg.WalletKey == "" {
		return nil, common.Address{}, nil
	}
	kc, err := chain.NewKeyConnector(a.cfg.WalletKey, a.cfg.ChainRPCURLs, a.cfg.ChainID)
	if err != nil {
		return nil, common.Address{}, err
	}
	kc.PollInterval = a.cfg.PollInterval
	return []chain.Connector{kc}, crypto.PubkeyToAddress(kc.Key.PublicKey), nil
}

func (a *app) guard() (inflight.Guard, error) {
	if a.cfg.RedisURL == "" {
		return inflight.NewMemory(), nil
	}
	client, err := inflight.NewRedisClient(a.cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	return inflight.NewRedis(client), nil
}

// onChainConfig fills token and fee from the raffle contract when they are
// not configured.
func (a *app) onChainConfig(ctx context.Context) orchestrator.Config {
	oc := orchestrator.Config{
		ChainID:        a.cfg.ChainID,
		Raffle:         common.HexToAddress(a.cfg.RaffleAddr),
		RaffleNumber:   a.raffleNumber(),
		EntryFee:       a.cfg.EntryFee,
		SwitchTimeout:  a.cfg.SwitchTimeout,
		SettleDelay:    a.cfg.SettleDelay,
		PollInterval:   a.cfg.PollInterval,
		ConfirmTimeout: a.cfg.ConfirmTimeout,
	}
	if a.cfg.TokenAddress != "" {
		oc.Token = common.HexToAddress(a.cfg.TokenAddress)
	}
	if oc.Token != (common.Address{}) && oc.EntryFee != nil {
		return oc
	}

	r, closeFn, err := a.reader(ctx)
	if err != nil {
		a.log.Error("raffle contract unavailable", "err", err)
		return oc
	}
	defer closeFn()
	if oc.Token == (common.Address{}) {
		if oc.Token, err = r.TokenAddress(ctx); err != nil {
			a.log.Error("read token address", "err", err)
		}
	}
	if oc.EntryFee == nil {
		if oc.EntryFee, err = r.EntryFee(ctx, oc.RaffleNumber); err != nil {
			a.log.Error("read entry fee", "err", err)
		}
	}
	if open, err := r.IsOpen(ctx, oc.RaffleNumber); err == nil && !open {
		a.log.Info("raffle is closed; the entry will be rejected", "raffle", oc.RaffleNumber.String())
	}
	return oc
}

func (a *app) enter(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("enter", flag.ExitOnError)
	date := fs.String("date", "", "birth date, YYYY-MM-DD")
	clock := fs.String("time", "", "birth time in UTC-3, HH:MM")
	fidFlag := fs.Int64("fid", 0, "Farcaster ID (resolved from the wallet when 0)")
	connector := fs.String("connector", "", "wallet connector name")
	noTUI := fs.Bool("no-tui", false, "log progress instead of drawing it")
	_ = fs.Parse(args)

	connectors, addr, err := a.connectors()
	if err != nil {
		return err
	}
	guard, err := a.guard()
	if err != nil {
		return err
	}
	jr, err := journal.Open(a.cfg.JournalPath)
	if err != nil {
		return err
	}
	defer jr.Close()

	userFID := *fidFlag
	if userFID == 0 && addr != (common.Address{}) {
		userFID = fid.NewResolver(a.cfg.FIDAPIURL, a.cfg.FIDAPIKey, a.log).Resolve(ctx, addr.Hex())
	}

	req := orchestrator.Request{Date: *date, Time: *clock, FID: userFID, Connector: *connector}
	updates := make(chan interface{}, 64)
	orch := orchestrator.New(
		a.onChainConfig(ctx),
		connectors,
		persistence.NewClient(a.cfg.StoreURL),
		orchestrator.WithLogger(a.log),
		orchestrator.WithGuard(guard),
		orchestrator.WithJournal(jr),
		orchestrator.WithObserver(func(ev orchestrator.Event) {
			select {
			case updates <- ev:
			case <-ctx.Done():
			}
		}),
	)

	if *noTUI {
		go func() {
			for v := range updates {
				if ev, ok := v.(orchestrator.Event); ok {
					a.log.Info("stage", "stage", ev.Stage.String())
				}
			}
		}()
		res, err := orch.Submit(ctx, req)
		close(updates)
		return a.report(res, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	type outcome struct {
		res *orchestrator.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := orch.Submit(runCtx, req)
		done <- outcome{res, err}
		updates <- tui.OutcomeMsg{Result: res, Err: err}
		close(updates)
	}()

	info := tui.SessionInfo{
		ChainID:      a.cfg.ChainID,
		Raffle:       a.cfg.RaffleAddr,
		RaffleNumber: a.cfg.RaffleNumber,
		Date:         *date,
		Time:         *clock,
	}
	if _, err := tui.Run(info, updates); err != nil {
		a.log.Error("tui", "err", err)
	}
	// the user may quit early; stop the session and keep draining
	cancel()
	go func() {
		for range updates {
		}
	}()
	out := <-done
	return a.report(out.res, out.err)
}

func (a *app) report(res *orchestrator.Result, err error) error {
	if err == nil {
		fmt.Printf("entered raffle: guess %d (%s), fid %d\n  approval %s\n  entry    %s\n",
			res.Timestamp, res.ReadableTime, res.FID, res.ApprovalTx.Hex(), res.EntryTx.Hex())
		return nil
	}
	var se *orchestrator.StageError
	if errors.As(err, &se) && se.OnChainConfirmed() {
		fmt.Fprintf(os.Stderr, "entry %s is confirmed on-chain but was not recorded; run `raffle retry`\n", se.EntryTx.Hex())
	}
	return err
}

func (a *app) guesses(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("guesses", flag.ExitOnError)
	fidFlag := fs.Int64("fid", 0, "Farcaster ID (resolved from the wallet when 0)")
	width := fs.Int("width", 80, "table width")
	_ = fs.Parse(args)

	userFID := *fidFlag
	if userFID == 0 {
		_, addr, err := a.connectors()
		if err != nil {
			return err
		}
		if addr == (common.Address{}) {
			return errors.New("-fid is required without a configured wallet")
		}
		userFID = fid.NewResolver(a.cfg.FIDAPIURL, a.cfg.FIDAPIKey, a.log).Resolve(ctx, addr.Hex())
	}

	list, err := persistence.NewClient(a.cfg.StoreURL).ListGuesses(ctx, userFID)
	if err != nil {
		return err
	}
	fmt.Println(tui.RenderGuesses(userFID, list, *width))
	return nil
}

func (a *app) prizePool(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("prize-pool", flag.ExitOnError)
	number := fs.Int64("raffle", a.cfg.RaffleNumber, "raffle number")
	_ = fs.Parse(args)

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	r, closeFn, err := a.reader(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	pool, err := r.PrizePool(ctx, big.NewInt(*number))
	if err != nil {
		return err
	}
	fmt.Printf("raffle %d prize pool: %s\n", *number, pool.String())
	return nil
}

func (a *app) retry(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("retry", flag.ExitOnError)
	_ = fs.Parse(args)

	jr, err := journal.Open(a.cfg.JournalPath)
	if err != nil {
		return err
	}
	defer jr.Close()

	entries, err := jr.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("nothing to retry")
		return nil
	}

	orch := orchestrator.New(orchestrator.Config{}, nil, persistence.NewClient(a.cfg.StoreURL),
		orchestrator.WithLogger(a.log),
		orchestrator.WithJournal(jr),
	)
	failed := 0
	for _, e := range entries {
		if _, err := orch.RetryPersistence(ctx, e); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "entry %s: %v\n", e.EntryTx, err)
			continue
		}
		fmt.Printf("recorded entry %s (guess %d)\n", e.EntryTx, e.Timestamp)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d entries still unrecorded", failed, len(entries))
	}
	return nil
}
