// Package snapshot persists the aggregated open interest of a run so the
// next run can diff against it.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	appconfig "oiflow/config"
	"oiflow/internal/models"
)

// ErrNotFound is returned by Load when no snapshot has been saved yet.
var ErrNotFound = errors.New("snapshot not found")

// Store is a single-slot blob store holding the latest snapshot.
type Store interface {
	Load(ctx context.Context) (models.Snapshot, error)
	Save(ctx context.Context, oi models.AggregatedOI) error
}

// New builds the store selected by cfg.Backend.
func New(ctx context.Context, cfg appconfig.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case appconfig.StorageBackendFile, "":
		return NewFileStore(cfg.File.Path), nil
	case appconfig.StorageBackendS3:
		store, err := NewS3StoreFromConfig(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return store, nil
	case appconfig.StorageBackendRedis:
		return NewRedisStore(cfg.Redis), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// encode renders oi as a flat JSON object. encoding/json writes the shortest
// representation that parses back to the same float64, so values survive a
// round trip bit for bit.
func encode(oi models.AggregatedOI) ([]byte, error) {
	if oi == nil {
		oi = models.AggregatedOI{}
	}
	data, err := json.Marshal(oi)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

func decode(data []byte) (models.Snapshot, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("decode snapshot: empty payload")
	}
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap == nil {
		snap = models.Snapshot{}
	}
	return snap, nil
}
