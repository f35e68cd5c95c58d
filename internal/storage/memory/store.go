package memory

import (
	"context"
	"sort"
	"sync"

	"collier/internal/domain"
	"collier/internal/storage"
)

type creatorLink struct {
	creator  string
	metadata string
}

// Store is an in-memory implementation of storage.Store.
type Store struct {
	mu       sync.RWMutex
	metadata map[string]*domain.MetadataRecord // keyed by metadata_address
	byMint   map[string]string                 // mint_address -> metadata_address (unique)
	links    map[creatorLink]struct{}
	holders  map[string]string // mint_address -> holder_address
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		metadata: make(map[string]*domain.MetadataRecord),
		byMint:   make(map[string]string),
		links:    make(map[creatorLink]struct{}),
		holders:  make(map[string]string),
	}
}

var _ storage.Store = (*Store)(nil)

// UpsertMetadata replaces or inserts the row keyed by metadata_address.
func (s *Store) UpsertMetadata(_ context.Context, m *domain.MetadataRecord) error {
	if err := storage.ValidateMetadata(m); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.metadata[m.MetadataAddress]; ok && prev.MintAddress != m.MintAddress {
		delete(s.byMint, prev.MintAddress)
	}
	if owner, ok := s.byMint[m.MintAddress]; ok && owner != m.MetadataAddress {
		delete(s.metadata, owner)
	}

	row := toRow(m)
	s.metadata[m.MetadataAddress] = row
	s.byMint[m.MintAddress] = m.MetadataAddress
	return nil
}

// toRow keeps the persisted columns only, with padding trimmed.
func toRow(m *domain.MetadataRecord) *domain.MetadataRecord {
	return &domain.MetadataRecord{
		MetadataAddress:      m.MetadataAddress,
		MintAddress:          m.MintAddress,
		UpdateAuthority:      m.UpdateAuthority,
		Name:                 m.CleanName(),
		Symbol:               m.CleanSymbol(),
		URI:                  m.CleanURI(),
		SellerFeeBasisPoints: m.SellerFeeBasisPoints,
		PrimarySaleHappened:  m.PrimarySaleHappened,
		IsMutable:            m.IsMutable,
	}
}

// UpsertCreatorLink inserts (creator, metadata) if absent.
func (s *Store) UpsertCreatorLink(_ context.Context, creator, metadataAddress string) error {
	if creator == "" || metadataAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.links[creatorLink{creator: creator, metadata: metadataAddress}] = struct{}{}
	return nil
}

// ReplaceHolder replaces the holder of mint.
func (s *Store) ReplaceHolder(_ context.Context, mint, holder string) error {
	if mint == "" || holder == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.holders[mint] = holder
	return nil
}

// ListMintAddresses returns all mint addresses ordered ascending.
func (s *Store) ListMintAddresses(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.byMint))
	for mint := range s.byMint {
		out = append(out, mint)
	}
	sort.Strings(out)
	return out, nil
}

// ListMintAddressesByCreator returns mint addresses linked to creator.
func (s *Store) ListMintAddressesByCreator(_ context.Context, creator string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for link := range s.links {
		if link.creator != creator {
			continue
		}
		if m, ok := s.metadata[link.metadata]; ok {
			out = append(out, m.MintAddress)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ListMetadataAddresses returns all metadata addresses ordered ascending.
func (s *Store) ListMetadataAddresses(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.metadata))
	for addr := range s.metadata {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out, nil
}

// ListMetadata returns copies of all stored rows ordered by metadata_address.
func (s *Store) ListMetadata(_ context.Context) ([]*domain.MetadataRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.MetadataRecord, 0, len(s.metadata))
	for _, m := range s.metadata {
		metaCopy := *m
		out = append(out, &metaCopy)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].MetadataAddress < out[j].MetadataAddress
	})
	return out, nil
}

// MetadataExists reports whether metadataAddress is stored.
func (s *Store) MetadataExists(_ context.Context, metadataAddress string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.metadata[metadataAddress]
	return ok, nil
}

// MetadataExistsForCreator reports whether any metadata is linked to creator.
func (s *Store) MetadataExistsForCreator(_ context.Context, creator string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for link := range s.links {
		if link.creator == creator {
			return true, nil
		}
	}
	return false, nil
}

// GetHolder returns the holder of mint. Returns ErrNotFound if none is recorded.
func (s *Store) GetHolder(_ context.Context, mint string) (*domain.HolderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	holder, ok := s.holders[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &domain.HolderRecord{MintAddress: mint, HolderAddress: holder}, nil
}

// Counts returns row counts per relation.
func (s *Store) Counts(_ context.Context) (storage.Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return storage.Counts{
		Metadata: len(s.metadata),
		Creators: len(s.links),
		Holders:  len(s.holders),
	}, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
