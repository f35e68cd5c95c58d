package storage

import (
	"context"
	"time"

	"collier/internal/domain"
	"collier/internal/observability"
)

// instrumentedStore records latency and errors of every Store call.
type instrumentedStore struct {
	next     Store
	database string
}

// Instrument wraps next so each call is observed under the given database label.
func Instrument(next Store, database string) Store {
	return &instrumentedStore{next: next, database: database}
}

func (s *instrumentedStore) observe(op string, start time.Time, err error) {
	observability.RecordDBQuery(s.database, op, time.Since(start).Seconds(), err)
}

func (s *instrumentedStore) UpsertMetadata(ctx context.Context, m *domain.MetadataRecord) (err error) {
	start := time.Now()
	defer func() { s.observe("upsert_metadata", start, err) }()
	return s.next.UpsertMetadata(ctx, m)
}

func (s *instrumentedStore) UpsertCreatorLink(ctx context.Context, creator, metadataAddress string) (err error) {
	start := time.Now()
	defer func() { s.observe("upsert_creator_link", start, err) }()
	return s.next.UpsertCreatorLink(ctx, creator, metadataAddress)
}

func (s *instrumentedStore) ReplaceHolder(ctx context.Context, mint, holder string) (err error) {
	start := time.Now()
	defer func() { s.observe("replace_holder", start, err) }()
	return s.next.ReplaceHolder(ctx, mint, holder)
}

func (s *instrumentedStore) ListMintAddresses(ctx context.Context) (_ []string, err error) {
	start := time.Now()
	defer func() { s.observe("list_mint_addresses", start, err) }()
	return s.next.ListMintAddresses(ctx)
}

func (s *instrumentedStore) ListMintAddressesByCreator(ctx context.Context, creator string) (_ []string, err error) {
	start := time.Now()
	defer func() { s.observe("list_mint_addresses_by_creator", start, err) }()
	return s.next.ListMintAddressesByCreator(ctx, creator)
}

func (s *instrumentedStore) ListMetadataAddresses(ctx context.Context) (_ []string, err error) {
	start := time.Now()
	defer func() { s.observe("list_metadata_addresses", start, err) }()
	return s.next.ListMetadataAddresses(ctx)
}

func (s *instrumentedStore) ListMetadata(ctx context.Context) (_ []*domain.MetadataRecord, err error) {
	start := time.Now()
	defer func() { s.observe("list_metadata", start, err) }()
	return s.next.ListMetadata(ctx)
}

func (s *instrumentedStore) MetadataExists(ctx context.Context, metadataAddress string) (_ bool, err error) {
	start := time.Now()
	defer func() { s.observe("metadata_exists", start, err) }()
	return s.next.MetadataExists(ctx, metadataAddress)
}

func (s *instrumentedStore) MetadataExistsForCreator(ctx context.Context, creator string) (_ bool, err error) {
	start := time.Now()
	defer func() { s.observe("metadata_exists_for_creator", start, err) }()
	return s.next.MetadataExistsForCreator(ctx, creator)
}

func (s *instrumentedStore) GetHolder(ctx context.Context, mint string) (_ *domain.HolderRecord, err error) {
	start := time.Now()
	defer func() { s.observe("get_holder", start, err) }()
	return s.next.GetHolder(ctx, mint)
}

func (s *instrumentedStore) Counts(ctx context.Context) (_ Counts, err error) {
	start := time.Now()
	defer func() { s.observe("counts", start, err) }()
	return s.next.Counts(ctx)
}

func (s *instrumentedStore) Close() error {
	return s.next.Close()
}
