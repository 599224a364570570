package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/covercompare/membergate/internal/config"
	"github.com/covercompare/membergate/internal/engine"
	"github.com/covercompare/membergate/internal/server"
	"github.com/covercompare/membergate/internal/sqlstore"
	"github.com/rs/zerolog/log"
)

// backend is the opened persistence layer of the daemon.
type backend struct {
	store    engine.ProfileStore
	elevated engine.ProfileStore
	health   server.HealthFunc
	closers  []func() error
}

func (b *backend) Close() {
	for _, c := range b.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("Closing store failed")
		}
	}
}

func openBackend(ctx context.Context, cfg config.StoreConfig) (*backend, error) {
	switch cfg.Backend {
	case "memory":
		return &backend{store: engine.NewMemStore(nil, nil)}, nil

	case "file":
		ms, err := openFileStore(cfg.DataDir, cfg.DataKey)
		if err != nil {
			return nil, err
		}
		log.Info().Int("profiles", ms.Len()).Str("data_dir", cfg.DataDir).Bool("sealed", cfg.DataKey != nil).Msg("File store loaded")
		return &backend{store: ms}, nil

	case "postgres", "sqlite":
		dialect, err := sqlstore.ParseDialect(cfg.Backend)
		if err != nil {
			return nil, err
		}
		primary, err := sqlstore.Open(ctx, dialect, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open %s store: %w", dialect, err)
		}
		b := &backend{store: primary, health: primary.Ping, closers: []func() error{primary.Close}}

		if cfg.ServiceDatabaseURL != "" {
			elevated, err := sqlstore.Open(ctx, dialect, cfg.ServiceDatabaseURL)
			if err != nil {
				b.Close()
				return nil, fmt.Errorf("open elevated %s store: %w", dialect, err)
			}
			b.elevated = elevated
			b.closers = append(b.closers, elevated.Close)
		}
		return b, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Backend)
}

func openFileStore(dir string, key []byte) (*engine.MemStore, error) {
	p, err := engine.NewPersistence(dir)
	if err != nil {
		return nil, fmt.Errorf("initialize persistence: %w", err)
	}
	if key != nil {
		if _, err := p.WithKey(key); err != nil {
			return nil, err
		}
	}
	initial, err := p.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	return engine.NewMemStore(initial, p), nil
}

// openStoreRef opens a store from a "kind:location" reference used by migrate,
// e.g. "file:./data", "sqlite:members.db", "postgres:postgres://user@host/db".
func openStoreRef(ctx context.Context, ref string, key []byte) (engine.ProfileStore, func() error, error) {
	kind, location, ok := strings.Cut(ref, ":")
	if !ok || location == "" {
		return nil, nil, errors.New("store reference must look like kind:location")
	}
	switch kind {
	case "file":
		ms, err := openFileStore(location, key)
		if err != nil {
			return nil, nil, err
		}
		return ms, func() error { return nil }, nil
	case "postgres", "sqlite":
		dialect, err := sqlstore.ParseDialect(kind)
		if err != nil {
			return nil, nil, err
		}
		s, err := sqlstore.Open(ctx, dialect, location)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store kind %q", kind)
}
