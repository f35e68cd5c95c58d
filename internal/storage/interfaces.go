package storage

import (
	"context"

	"collier/internal/domain"
)

// Counts holds row counts per relation.
type Counts struct {
	Metadata int
	Creators int
	Holders  int
}

// Store is the local relational store of mined metadata, creator links and holders.
// Writes are idempotent: repeating them against unchanged input leaves identical rows.
type Store interface {
	// UpsertMetadata replaces or inserts the row keyed by metadata_address.
	// A different row owning the same mint_address is removed first.
	UpsertMetadata(ctx context.Context, m *domain.MetadataRecord) error

	// UpsertCreatorLink inserts (creator, metadata) if absent.
	UpsertCreatorLink(ctx context.Context, creator, metadataAddress string) error

	// ReplaceHolder deletes the holder of mint and inserts the new one in one transaction.
	ReplaceHolder(ctx context.Context, mint, holder string) error

	// ListMintAddresses returns all mint addresses ordered ascending.
	ListMintAddresses(ctx context.Context) ([]string, error)

	// ListMintAddressesByCreator returns mint addresses linked to creator, ordered ascending.
	ListMintAddressesByCreator(ctx context.Context, creator string) ([]string, error)

	// ListMetadataAddresses returns all metadata addresses ordered ascending.
	ListMetadataAddresses(ctx context.Context) ([]string, error)

	// ListMetadata returns stored metadata rows ordered by metadata_address.
	// Creators are not populated.
	ListMetadata(ctx context.Context) ([]*domain.MetadataRecord, error)

	// MetadataExists reports whether metadataAddress is stored.
	MetadataExists(ctx context.Context, metadataAddress string) (bool, error)

	// MetadataExistsForCreator reports whether any metadata is linked to creator.
	MetadataExistsForCreator(ctx context.Context, creator string) (bool, error)

	// GetHolder returns the holder of mint. Returns ErrNotFound if none is recorded.
	GetHolder(ctx context.Context, mint string) (*domain.HolderRecord, error)

	// Counts returns row counts per relation.
	Counts(ctx context.Context) (Counts, error)

	// Close releases the underlying connection.
	Close() error
}

// OutcomeLog is the append-only log of remediation outcomes.
type OutcomeLog interface {
	// Append adds outcomes to the log.
	Append(ctx context.Context, outcomes []*domain.RemediationOutcome) error

	// ListByRun returns the outcomes of a run ordered by observation time.
	ListByRun(ctx context.Context, runID string) ([]*domain.RemediationOutcome, error)
}

// ValidateMetadata checks the fields every backend requires before writing.
func ValidateMetadata(m *domain.MetadataRecord) error {
	if m == nil || m.MetadataAddress == "" || m.MintAddress == "" {
		return ErrInvalidInput
	}
	return nil
}
