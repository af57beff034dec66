package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vibvoice/vibsynth/pkg/cli"
	"github.com/vibvoice/vibsynth/pkg/dataset"
	"github.com/vibvoice/vibsynth/pkg/noise"
	"github.com/vibvoice/vibsynth/pkg/segcache"
	"github.com/vibvoice/vibsynth/pkg/storage"
	"github.com/vibvoice/vibsynth/pkg/synth"
	"github.com/vibvoice/vibsynth/pkg/transfer"
)

// openStore opens the configured corpus storage.
func openStore() (storage.FileStore, error) {
	fs, err := storage.Open(pipeline.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return fs, nil
}

// openCache opens the configured segment cache. A badger cache without a
// directory lives under ~/.vibsynth/cache. The returned Store may be nil.
func openCache() (segcache.Store, error) {
	cfg := pipeline.Cache
	if cfg.Backend == "badger" && cfg.Dir == "" {
		paths, err := cli.NewPaths()
		if err != nil {
			return nil, err
		}
		if err := paths.EnsureCacheDir(); err != nil {
			return nil, err
		}
		cfg.Dir = paths.CacheDir()
	}
	store, err := segcache.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return store, nil
}

// loadGenerator builds the synthetic IMU generator from the transfer and
// noise corpora.
func loadGenerator(ctx context.Context, fs storage.FileStore) (*synth.Generator, error) {
	bins := pipeline.FreqBinHigh()
	pop, err := transfer.Load(ctx, fs, pipeline.TransferDir, transfer.LoadOptions{
		Size:   pipeline.Population,
		Bins:   bins,
		Logger: slog.Default(),
	})
	if err != nil {
		return nil, err
	}
	bank, err := noise.Load(ctx, fs, pipeline.NoiseDir, noise.LoadOptions{Bins: bins, Logger: slog.Default()})
	if err != nil {
		return nil, err
	}
	return synth.New(pop, bank, pipeline)
}

// streamRate returns the rate a manifest is indexed at: sensor logs run at
// the IMU rate and everything else at the microphone rate.
func streamRate(entries []dataset.Entry) int {
	if len(entries) > 0 && entries[0].Kind == dataset.SourceText {
		return pipeline.IMURate
	}
	return pipeline.MicRate
}
