package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gem_exchange/internal/domain"
	"gem_exchange/internal/infra"
	"gem_exchange/internal/infra/storage"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config     *infra.Config
	Storage    *storage.Storage
	Downloader *infra.IconDownloader
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, DB).
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping Gem Exchange...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (session DB)
	store, err := storage.NewStorage()
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Session store initialized")

	// 4. Initialize Icon Downloader
	downloader, err := infra.NewIconDownloader()
	if err != nil {
		return err
	}
	b.Downloader = downloader
	slog.Info("✅ Icon downloader ready")

	return nil
}

// SyncAssets upserts the tracked assets and fetches their icons in the
// background. Icon failures are cosmetic and only logged.
func (b *Bootstrap) SyncAssets(ctx context.Context) {
	slog.Info("🔄 Starting asset synchronization...")

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 5) // Limit concurrent downloads

	for _, pair := range b.Config.Market.Pairs {
		wg.Add(1)
		go func(pair domain.TrackedPair) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}: // Acquire
			}
			defer func() { <-semaphore }() // Release

			coin := &domain.CoinInfo{
				Symbol:    pair.Symbol,
				Name:      pair.DisplayName,
				UpdatedAt: time.Now(),
			}

			// Preserve favorite status and icon cache across restarts
			if existing, _ := b.Storage.GetCoin(pair.Symbol); existing != nil {
				coin.IsFavorite = existing.IsFavorite
				coin.IconPath = existing.IconPath
				coin.LastSyncedAt = existing.LastSyncedAt
			}

			if err := b.Storage.UpsertCoin(coin); err != nil {
				slog.Error("Failed to upsert coin", slog.String("symbol", pair.Symbol), slog.Any("error", err))
				return
			}

			path, err := b.Downloader.DownloadIcon(pair.Symbol)
			if err != nil {
				slog.Warn("Failed to download icon", slog.String("symbol", pair.Symbol), slog.Any("error", err))
			} else if path != "" {
				coin.IconPath = path
				coin.LastSyncedAt = time.Now()
				b.Storage.UpsertCoin(coin)
			}
		}(pair)
	}

	wg.Wait()
	slog.Info("✨ Asset synchronization completed")
}
