package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"collier/internal/domain"
	"collier/internal/storage"
)

// Store implements storage.Store using PostgreSQL.
type Store struct {
	pool *Pool
}

// NewStore creates a new Store. The schema must already be migrated.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

// UpsertMetadata replaces or inserts the row keyed by metadata_address.
func (s *Store) UpsertMetadata(ctx context.Context, m *domain.MetadataRecord) error {
	if err := storage.ValidateMetadata(m); err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM metadata WHERE mint_address = $1 AND metadata_address <> $2`,
			m.MintAddress, m.MetadataAddress,
		); err != nil {
			return fmt.Errorf("delete conflicting mint: %w", err)
		}

		query := `
			INSERT INTO metadata (
				metadata_address, mint_address, update_authority, name, symbol, uri,
				seller_fee_basis_points, primary_sale_happened, is_mutable
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (metadata_address) DO UPDATE SET
				mint_address = EXCLUDED.mint_address,
				update_authority = EXCLUDED.update_authority,
				name = EXCLUDED.name,
				symbol = EXCLUDED.symbol,
				uri = EXCLUDED.uri,
				seller_fee_basis_points = EXCLUDED.seller_fee_basis_points,
				primary_sale_happened = EXCLUDED.primary_sale_happened,
				is_mutable = EXCLUDED.is_mutable
		`
		if _, err := tx.Exec(ctx, query,
			m.MetadataAddress,
			m.MintAddress,
			m.UpdateAuthority,
			m.CleanName(),
			m.CleanSymbol(),
			m.CleanURI(),
			int32(m.SellerFeeBasisPoints),
			m.PrimarySaleHappened,
			m.IsMutable,
		); err != nil {
			return fmt.Errorf("upsert metadata: %w", err)
		}
		return nil
	})
}

// UpsertCreatorLink inserts (creator, metadata) if absent.
func (s *Store) UpsertCreatorLink(ctx context.Context, creator, metadataAddress string) error {
	if creator == "" || metadataAddress == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO creators (creator_address, metadata_address) VALUES ($1, $2)
		ON CONFLICT (creator_address, metadata_address) DO NOTHING
	`, creator, metadataAddress)
	if err != nil {
		return fmt.Errorf("upsert creator link: %w", err)
	}
	return nil
}

// ReplaceHolder deletes the holder of mint and inserts the new one in one transaction.
func (s *Store) ReplaceHolder(ctx context.Context, mint, holder string) error {
	if mint == "" || holder == "" {
		return storage.ErrInvalidInput
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM holders WHERE mint_address = $1`, mint); err != nil {
			return fmt.Errorf("delete holder: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO holders (mint_address, holder_address) VALUES ($1, $2)`,
			mint, holder,
		); err != nil {
			return fmt.Errorf("insert holder: %w", err)
		}
		return nil
	})
}

// ListMintAddresses returns all mint addresses ordered ascending.
func (s *Store) ListMintAddresses(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, `SELECT mint_address FROM metadata ORDER BY mint_address`)
}

// ListMintAddressesByCreator returns mint addresses linked to creator.
func (s *Store) ListMintAddressesByCreator(ctx context.Context, creator string) ([]string, error) {
	return s.queryStrings(ctx, `
		SELECT m.mint_address
		FROM metadata m
		JOIN creators c ON c.metadata_address = m.metadata_address
		WHERE c.creator_address = $1
		ORDER BY m.mint_address
	`, creator)
}

// ListMetadataAddresses returns all metadata addresses ordered ascending.
func (s *Store) ListMetadataAddresses(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, `SELECT metadata_address FROM metadata ORDER BY metadata_address`)
}

func (s *Store) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect rows: %w", err)
	}
	return out, nil
}

// ListMetadata returns stored metadata rows ordered by metadata_address.
func (s *Store) ListMetadata(ctx context.Context) ([]*domain.MetadataRecord, error) {
	query := `
		SELECT metadata_address, mint_address, update_authority, name, symbol, uri,
			seller_fee_basis_points, primary_sale_happened, is_mutable
		FROM metadata
		ORDER BY metadata_address
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}
	defer rows.Close()

	var out []*domain.MetadataRecord
	for rows.Next() {
		m, err := scanMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("scan metadata: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metadata: %w", err)
	}
	return out, nil
}

// scanMetadata scans a single row into MetadataRecord.
func scanMetadata(row pgx.Row) (*domain.MetadataRecord, error) {
	var m domain.MetadataRecord
	var fee int32

	err := row.Scan(
		&m.MetadataAddress,
		&m.MintAddress,
		&m.UpdateAuthority,
		&m.Name,
		&m.Symbol,
		&m.URI,
		&fee,
		&m.PrimarySaleHappened,
		&m.IsMutable,
	)
	if err != nil {
		return nil, err
	}

	m.SellerFeeBasisPoints = uint16(fee)
	return &m, nil
}

// MetadataExists reports whether metadataAddress is stored.
func (s *Store) MetadataExists(ctx context.Context, metadataAddress string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM metadata WHERE metadata_address = $1)`, metadataAddress,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("metadata exists: %w", err)
	}
	return exists, nil
}

// MetadataExistsForCreator reports whether any metadata is linked to creator.
func (s *Store) MetadataExistsForCreator(ctx context.Context, creator string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM creators WHERE creator_address = $1)`, creator,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("metadata exists for creator: %w", err)
	}
	return exists, nil
}

// GetHolder returns the holder of mint. Returns ErrNotFound if none is recorded.
func (s *Store) GetHolder(ctx context.Context, mint string) (*domain.HolderRecord, error) {
	var h domain.HolderRecord
	err := s.pool.QueryRow(ctx,
		`SELECT mint_address, holder_address FROM holders WHERE mint_address = $1`, mint,
	).Scan(&h.MintAddress, &h.HolderAddress)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get holder: %w", err)
	}
	return &h, nil
}

// Counts returns row counts per relation.
func (s *Store) Counts(ctx context.Context) (storage.Counts, error) {
	var metadata, creators, holders int64
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM metadata),
			(SELECT COUNT(*) FROM creators),
			(SELECT COUNT(*) FROM holders)
	`).Scan(&metadata, &creators, &holders)
	if err != nil {
		return storage.Counts{}, fmt.Errorf("count rows: %w", err)
	}
	return storage.Counts{Metadata: int(metadata), Creators: int(creators), Holders: int(holders)}, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
