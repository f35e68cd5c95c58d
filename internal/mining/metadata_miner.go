// Package mining ingests Metaplex metadata and token holders into the local store.
package mining

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"collier/internal/apperr"
	"collier/internal/domain"
	"collier/internal/metaplex"
	"collier/internal/observability"
	rpc "collier/internal/solana"
	"collier/internal/storage"
)

// MineStats summarizes one metadata mining pass.
type MineStats struct {
	Scanned  int // accounts returned by the remote filter
	Stored   int // metadata rows upserted
	Skipped  int // accounts already stored (incremental mode)
	Links    int // creator links upserted
	Duration time.Duration
}

// MinerOptions configures a MetadataMiner.
type MinerOptions struct {
	// SkipExisting skips accounts whose metadata address is already stored.
	SkipExisting bool
	// AllCreatorPositions matches the creator in every creator slot, not only the first.
	AllCreatorPositions bool
	Logger              zerolog.Logger
}

// MetadataMiner finds metadata accounts by creator and reconciles them into the store.
type MetadataMiner struct {
	client rpc.RPCClient
	store  storage.Store
	opts   MinerOptions
}

// NewMetadataMiner creates a miner reading from client and writing to store.
func NewMetadataMiner(client rpc.RPCClient, store storage.Store, opts MinerOptions) *MetadataMiner {
	return &MetadataMiner{client: client, store: store, opts: opts}
}

// Mine fetches every metadata account listing creator and upserts it with its creator link.
// Accounts are processed in response order. A decode failure aborts the pass.
func (m *MetadataMiner) Mine(ctx context.Context, creator string) (MineStats, error) {
	const op = "mine metadata"

	start := time.Now()
	var stats MineStats

	creatorKey, err := solana.PublicKeyFromBase58(creator)
	if err != nil {
		return stats, apperr.New(apperr.Validation, op, fmt.Errorf("creator %q: %w", creator, err))
	}

	positions := 1
	if m.opts.AllCreatorPositions {
		positions = metaplex.MaxCreators
	}

	log := m.opts.Logger.With().Str("creator", creator).Logger()
	seen := make(map[string]struct{})

	for pos := 0; pos < positions; pos++ {
		filter := rpc.MemcmpFilter{
			Offset: metaplex.CreatorOffset(pos),
			Bytes:  creatorKey.Bytes(),
		}

		accounts, err := m.client.GetProgramAccounts(ctx, metaplex.ProgramID, filter)
		if err != nil {
			return stats, fmt.Errorf("%s: position %d: %w", op, pos, err)
		}

		stats.Scanned += len(accounts)
		observability.RecordMetadataScanned(len(accounts))
		log.Debug().Int("position", pos).Int("accounts", len(accounts)).Msg("program accounts fetched")

		for _, ka := range accounts {
			if _, dup := seen[ka.Address]; dup {
				continue
			}
			seen[ka.Address] = struct{}{}

			if err := m.ingest(ctx, creator, ka, &stats); err != nil {
				stats.Duration = time.Since(start)
				return stats, err
			}
		}
	}

	stats.Duration = time.Since(start)
	log.Info().
		Int("scanned", stats.Scanned).
		Int("stored", stats.Stored).
		Int("skipped", stats.Skipped).
		Dur("duration", stats.Duration).
		Msg("metadata mining complete")

	return stats, nil
}

func (m *MetadataMiner) ingest(ctx context.Context, creator string, ka rpc.KeyedAccount, stats *MineStats) error {
	if m.opts.SkipExisting {
		exists, err := m.store.MetadataExists(ctx, ka.Address)
		if err != nil {
			return apperr.New(apperr.Store, "metadata exists", err)
		}
		if exists {
			stats.Skipped++
			observability.RecordMetadataSkipped()
			return nil
		}
	}

	rec, err := metaplex.DecodeMetadata(ka.Address, ka.Account.Data)
	if err != nil {
		return err
	}

	if err := m.store.UpsertMetadata(ctx, rec); err != nil {
		return apperr.New(apperr.Store, "upsert metadata", err)
	}
	stats.Stored++
	observability.RecordMetadataStored()

	if err := m.store.UpsertCreatorLink(ctx, creator, rec.MetadataAddress); err != nil {
		return apperr.New(apperr.Store, "upsert creator link", err)
	}
	stats.Links++
	observability.RecordCreatorLinkStored()

	m.opts.Logger.Debug().
		Str("metadata", rec.MetadataAddress).
		Str("mint", rec.MintAddress).
		Str("name", rec.CleanName()).
		Msg("metadata stored")

	return nil
}

// MineMint fetches the metadata account derived from mint and stores it,
// linking every creator it lists.
func (m *MetadataMiner) MineMint(ctx context.Context, mint string) (*domain.MetadataRecord, error) {
	const op = "mine mint"

	address, _, err := metaplex.FindMetadataAddress(mint)
	if err != nil {
		return nil, apperr.New(apperr.Validation, op, err)
	}

	acct, err := m.client.GetAccountInfo(ctx, address)
	if err != nil {
		if errors.Is(err, rpc.ErrAccountNotFound) {
			return nil, apperr.Newf(apperr.Validation, op, "mint %s has no metadata account %s", mint, address)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if acct.Owner != "" && acct.Owner != metaplex.ProgramID {
		return nil, apperr.Newf(apperr.Validation, op, "account %s is owned by %s", address, acct.Owner)
	}

	rec, err := metaplex.DecodeMetadata(address, acct.Data)
	if err != nil {
		return nil, err
	}
	if rec.MintAddress != mint {
		return nil, apperr.Newf(apperr.Validation, op, "account %s describes mint %s, want %s", address, rec.MintAddress, mint)
	}

	if err := m.store.UpsertMetadata(ctx, rec); err != nil {
		return nil, apperr.New(apperr.Store, "upsert metadata", err)
	}
	observability.RecordMetadataStored()

	for _, c := range rec.Creators {
		if err := m.store.UpsertCreatorLink(ctx, c.Address, rec.MetadataAddress); err != nil {
			return nil, apperr.New(apperr.Store, "upsert creator link", err)
		}
		observability.RecordCreatorLinkStored()
	}

	m.opts.Logger.Info().
		Str("mint", mint).
		Str("metadata", address).
		Int("creators", len(rec.Creators)).
		Msg("mint metadata stored")

	return rec, nil
}
