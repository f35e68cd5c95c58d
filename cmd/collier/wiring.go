package main

import (
	"context"

	"collier/internal/apperr"
	"collier/internal/solana"
	"collier/internal/storage"
	chstore "collier/internal/storage/clickhouse"
	"collier/internal/storage/migrations"
	"collier/internal/storage/postgres"
	"collier/internal/storage/sqlite"
)

// openStore opens PostgreSQL when a DSN is configured, otherwise the sqlite file.
// Schema migrations are applied before the store is returned.
func (a *app) openStore(ctx context.Context) (storage.Store, error) {
	const op = "open store"

	if a.cfg.PostgresDSN != "" {
		pool, err := postgres.NewPool(ctx, a.cfg.PostgresDSN)
		if err != nil {
			return nil, apperr.New(apperr.Store, op, err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, apperr.New(apperr.Store, op, err)
		}
		a.logger.Debug().Msg("using postgres store")
		return storage.Instrument(postgres.NewStore(pool), "postgres"), nil
	}

	store, err := sqlite.Open(ctx, a.cfg.DB)
	if err != nil {
		return nil, apperr.New(apperr.Store, op, err)
	}
	a.logger.Debug().Str("path", a.cfg.DB).Msg("using sqlite store")
	return storage.Instrument(store, "sqlite"), nil
}

// openOutcomeLog opens the ClickHouse outcome log when a DSN is configured.
// The returned log is nil otherwise.
func (a *app) openOutcomeLog(ctx context.Context) (storage.OutcomeLog, func(), error) {
	if a.cfg.ClickhouseDSN == "" {
		return nil, func() {}, nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, a.cfg.ClickhouseDSN)
	if err != nil {
		return nil, nil, apperr.New(apperr.Store, "open outcome log", err)
	}
	return chstore.NewOutcomeLog(conn), func() { conn.Close() }, nil
}

func (a *app) newRPCClient(opts ...solana.ClientOption) *solana.HTTPClient {
	base := []solana.ClientOption{
		solana.WithTimeout(a.cfg.Timeout),
		solana.WithRateLimit(a.cfg.RateLimit, a.cfg.RateBurst),
		solana.WithCommitment(a.cfg.Commitment),
		solana.WithLogger(a.logger),
	}
	return solana.NewHTTPClient(a.cfg.RPC, append(base, opts...)...)
}

func (a *app) newWSClient(ctx context.Context) (*solana.WSClientImpl, error) {
	cfg := solana.DefaultWSConfig()
	cfg.Commitment = a.cfg.Commitment
	return solana.NewWSClient(ctx, a.cfg.WS, &cfg, a.logger)
}
