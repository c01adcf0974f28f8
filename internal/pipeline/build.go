package pipeline

import (
	"context"
	"fmt"

	appconfig "oiflow/config"
	"oiflow/internal/notifier"
	"oiflow/internal/processor"
	"oiflow/internal/reader"
	"oiflow/internal/reader/binance"
	"oiflow/internal/reader/bitget"
	"oiflow/internal/reader/bybit"
	"oiflow/internal/reader/okx"
	"oiflow/internal/snapshot"
	"oiflow/logger"
)

// Build wires the production components described by cfg around one shared
// HTTP session.
func Build(ctx context.Context, cfg *appconfig.Config) (*Runner, error) {
	client := reader.NewHTTPClient(cfg.Reader)

	var sources []reader.Source
	if cfg.Source.Binance.Enabled {
		sources = append(sources, binance.Binance_OI_NewReader(cfg.Source.Binance, client))
	}
	if cfg.Source.Bybit.Enabled {
		sources = append(sources, bybit.Bybit_OI_NewReader(cfg.Source.Bybit, client))
	}
	if cfg.Source.Okx.Enabled {
		sources = append(sources, okx.Okx_OI_NewReader(cfg.Source.Okx, client))
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no open interest source enabled")
	}

	store, err := snapshot.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("create snapshot store: %w", err)
	}

	tg, err := notifier.Telegram_NewNotifier(cfg.Telegram, client)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, s.Name())
	}
	logger.GetLogger().WithComponent(component).WithFields(logger.Fields{
		"sources": names,
		"storage": cfg.Storage.Backend,
	}).Info("pipeline assembled")

	return NewRunner(
		bitget.Bitget_Watchlist_NewReader(cfg.Source.Bitget, client),
		sources,
		store,
		processor.NewClassifier(cfg.Classifier),
		tg,
		Options{BootstrapOnMissing: cfg.Storage.BootstrapOnMissing},
	), nil
}
