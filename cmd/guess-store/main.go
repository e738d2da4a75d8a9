// Package main serves the guess store REST API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"raffle-guess/internal/api"
	"raffle-guess/internal/config"
	dbpkg "raffle-guess/internal/db"
	"raffle-guess/internal/logger"
	"raffle-guess/internal/raffle"
	"raffle-guess/internal/store"
)

func main() {
	if _, statErr := os.Stat(".env"); statErr == nil {
		_ = godotenv.Load(".env")
	}

	cfg := config.Load()
	log := logger.New(cfg.Debug)
	log.Printf("Config loaded: %s", cfg.DebugString())
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	gormDB, err := dbpkg.Open(cfg)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if gormDB == nil {
		log.Fatalf("DATABASE_URL is required")
	}
	log.Printf("DB connected")
	if err := dbpkg.AutoMigrate(gormDB); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	log.Printf("Migrations applied")

	opts := api.Options{
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   cfg.RateLimit,
		RateBurst:   cfg.RateBurst,
		Log:         log,
	}
	if cfg.RPCURL != "" {
		dialCtx, cancelDial := context.WithTimeout(context.Background(), 10*time.Second)
		client, err := ethclient.DialContext(dialCtx, cfg.RPCURL)
		cancelDial()
		if err != nil {
			log.Error("prize pool route disabled", "err", err)
		} else {
			defer client.Close()
			opts.Prize = raffle.NewReader(client, common.HexToAddress(cfg.RaffleAddr))
		}
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(store.New(gormDB), opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		log.Info("listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
