// Package sqlite implements storage.Store on a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"collier/internal/domain"
	"collier/internal/storage"
	"collier/internal/storage/migrations"
)

// Store implements storage.Store using SQLite.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite: db path required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection serializes writers and keeps pragmas in effect.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.applyPragmas(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrations.RunSQLiteMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) applyPragmas(ctx context.Context) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// withTx runs fn in a single transaction.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// UpsertMetadata replaces or inserts the row keyed by metadata_address.
func (s *Store) UpsertMetadata(ctx context.Context, m *domain.MetadataRecord) error {
	if err := storage.ValidateMetadata(m); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM metadata WHERE mint_address = ? AND metadata_address <> ?`,
			m.MintAddress, m.MetadataAddress,
		); err != nil {
			return fmt.Errorf("delete conflicting mint: %w", err)
		}

		query := `
			INSERT INTO metadata (
				metadata_address, mint_address, update_authority, name, symbol, uri,
				seller_fee_basis_points, primary_sale_happened, is_mutable
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (metadata_address) DO UPDATE SET
				mint_address = excluded.mint_address,
				update_authority = excluded.update_authority,
				name = excluded.name,
				symbol = excluded.symbol,
				uri = excluded.uri,
				seller_fee_basis_points = excluded.seller_fee_basis_points,
				primary_sale_happened = excluded.primary_sale_happened,
				is_mutable = excluded.is_mutable
		`
		if _, err := tx.ExecContext(ctx, query,
			m.MetadataAddress,
			m.MintAddress,
			m.UpdateAuthority,
			m.CleanName(),
			m.CleanSymbol(),
			m.CleanURI(),
			int(m.SellerFeeBasisPoints),
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO creators (creator_address, metadata_address) VALUES (?, ?)
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

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM holders WHERE mint_address = ?`, mint); err != nil {
			return fmt.Errorf("delete holder: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO holders (mint_address, holder_address) VALUES (?, ?)`,
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
		WHERE c.creator_address = ?
		ORDER BY m.mint_address
	`, creator)
}

// ListMetadataAddresses returns all metadata addresses ordered ascending.
func (s *Store) ListMetadataAddresses(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, `SELECT metadata_address FROM metadata ORDER BY metadata_address`)
}

func (s *Store) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// ListMetadata returns stored metadata rows ordered by metadata_address.
func (s *Store) ListMetadata(ctx context.Context) ([]*domain.MetadataRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT metadata_address, mint_address, update_authority, name, symbol, uri,
			seller_fee_basis_points, primary_sale_happened, is_mutable
		FROM metadata
		ORDER BY metadata_address
	`)
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}
	defer rows.Close()

	var out []*domain.MetadataRecord
	for rows.Next() {
		var m domain.MetadataRecord
		var fee int
		if err := rows.Scan(
			&m.MetadataAddress,
			&m.MintAddress,
			&m.UpdateAuthority,
			&m.Name,
			&m.Symbol,
			&m.URI,
			&fee,
			&m.PrimarySaleHappened,
			&m.IsMutable,
		); err != nil {
			return nil, fmt.Errorf("scan metadata: %w", err)
		}
		m.SellerFeeBasisPoints = uint16(fee)
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metadata: %w", err)
	}
	return out, nil
}

// MetadataExists reports whether metadataAddress is stored.
func (s *Store) MetadataExists(ctx context.Context, metadataAddress string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM metadata WHERE metadata_address = ? LIMIT 1`, metadataAddress)
}

// MetadataExistsForCreator reports whether any metadata is linked to creator.
func (s *Store) MetadataExistsForCreator(ctx context.Context, creator string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM creators WHERE creator_address = ? LIMIT 1`, creator)
}

func (s *Store) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	return true, nil
}

// GetHolder returns the holder of mint. Returns ErrNotFound if none is recorded.
func (s *Store) GetHolder(ctx context.Context, mint string) (*domain.HolderRecord, error) {
	var h domain.HolderRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT mint_address, holder_address FROM holders WHERE mint_address = ?`, mint,
	).Scan(&h.MintAddress, &h.HolderAddress)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get holder: %w", err)
	}
	return &h, nil
}

// Counts returns row counts per relation.
func (s *Store) Counts(ctx context.Context) (storage.Counts, error) {
	var c storage.Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM metadata),
			(SELECT COUNT(*) FROM creators),
			(SELECT COUNT(*) FROM holders)
	`).Scan(&c.Metadata, &c.Creators, &c.Holders)
	if err != nil {
		return storage.Counts{}, fmt.Errorf("count rows: %w", err)
	}
	return c, nil
}
