// Package main reports confirmed raffle entries missing from the guess store.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"

	"raffle-guess/internal/config"
	dbpkg "raffle-guess/internal/db"
	"raffle-guess/internal/guesstime"
	"raffle-guess/internal/logger"
	"raffle-guess/internal/reconcile"
	"raffle-guess/internal/store"
)

func main() {
	if _, statErr := os.Stat(".env"); statErr == nil {
		_ = godotenv.Load(".env")
	}
	from := flag.Uint64("from", 0, "first block to scan")
	chunk := flag.Uint64("chunk", 2000, "blocks per log query")
	confirmations := flag.Uint64("confirmations", 5, "blocks behind head to treat as final")
	once := flag.Bool("once", false, "scan once and exit")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(cfg.Debug)

	gormDB, err := dbpkg.Open(cfg)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if gormDB == nil {
		log.Fatalf("DATABASE_URL is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		log.Fatalf("failed to dial %s: %v", cfg.RPCURL, err)
	}
	defer client.Close()

	r := reconcile.New(reconcile.Options{
		Raffle:        common.HexToAddress(cfg.RaffleAddr),
		RaffleNumber:  big.NewInt(cfg.RaffleNumber),
		FromBlock:     *from,
		ChunkSize:     *chunk,
		Confirmations: *confirmations,
	}, client, store.New(gormDB), log)

	report := func(rep *reconcile.Report) {
		log.Info("scan", "from", rep.FromBlock, "to", rep.ToBlock, "entries", rep.Scanned, "missing", len(rep.Missing))
		for _, ev := range rep.Missing {
			readable := "out of range"
			if ev.Guess.IsInt64() {
				readable = guesstime.Readable(ev.Guess.Int64())
			}
			fmt.Printf("missing: block=%d tx=%s entrant=%s guess=%s (%s)\n",
				ev.BlockNumber, ev.TxHash.Hex(), ev.Entrant.Hex(), ev.Guess.String(), readable)
		}
	}

	if *once {
		rep, err := r.Scan(ctx)
		if rep != nil {
			report(rep)
		}
		if err != nil {
			log.Fatalf("scan failed: %v", err)
		}
		if len(rep.Missing) > 0 {
			os.Exit(1)
		}
		return
	}
	if err := r.Run(ctx, report); err != nil {
		log.Fatalf("reconcile stopped: %v", err)
	}
}
