package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"gem_exchange/internal/app"
	"gem_exchange/internal/domain"
	"gem_exchange/internal/execution"
	"gem_exchange/internal/infra"
	"gem_exchange/internal/market"
	"gem_exchange/internal/server"
	"gem_exchange/internal/service"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := bootstrap.Config

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Background Asset Sync (icons, favorites carry-over)
	go bootstrap.SyncAssets(ctx)

	// 4. Market simulation. One seed drives both walks so a run is
	// reproducible when market.seed is set.
	seed := cfg.Market.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	interval := time.Duration(cfg.Market.TickIntervalMS) * time.Millisecond

	store := market.NewStore(cfg.Market.Pairs, cfg.Market.HistorySize, interval, rand.New(rand.NewSource(seed)))

	// 5. Trading session with the demo wallet
	wallet := domain.NewWallet()
	for symbol, amount := range cfg.Wallet.Balances {
		wallet.Get(symbol).Credit(decimal.NewFromFloat(amount))
	}

	// 6. AI assistant (external collaborator; failures degrade to text)
	gemini := infra.NewGeminiClient(cfg.AI.APIURL, cfg.AI.APIKey, cfg.AI.Model,
		time.Duration(cfg.AI.TimeoutSec)*time.Second)
	assistant := service.NewAssistant(gemini)

	var srv *server.Server
	session := execution.NewSession(wallet, func(n domain.Notification) {
		slog.Info("Notification", slog.String("kind", n.Kind), slog.String("message", n.Message))
		if srv != nil {
			srv.Notify(n)
		}
	})
	srv = server.New(session, assistant, bootstrap.Storage)

	// 7. Tick pipeline: generator -> session reconciliation -> feed.
	generator := market.NewGenerator(store, market.GeneratorConfig{
		Interval:    interval,
		ActivePair:  cfg.Market.ActivePair,
		DepthLevels: cfg.Market.DepthLevels,
		TradePrints: cfg.Market.TradePrints,
		DepthStep:   cfg.Market.DepthStep,
		TradeJitter: cfg.Market.TradeJitter,
	}, rand.New(rand.NewSource(seed+1)), func(snap domain.MarketSnapshot) {
		session.ApplyTick(snap)
		assistant.UpdateContext(snap)
		srv.Broadcast(snap)
		infra.GlobalMetrics.RecordTick()
	})

	generator.Start(ctx)
	defer generator.Stop()
	slog.InfoContext(ctx, "✅ Market generator started",
		slog.Duration("interval", interval),
		slog.String("active_pair", cfg.Market.ActivePair),
		slog.Int64("seed", seed))

	// 8. HTTP/WebSocket surface
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Routes(),
	}
	go func() {
		slog.Info("✅ Server listening", slog.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", slog.Any("error", err))
			stop()
		}
	}()

	slog.InfoContext(ctx, "✨ Gem Exchange fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Server shutdown", slog.Any("error", err))
	}
	generator.Stop()
}
