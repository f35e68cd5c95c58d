package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collier/internal/domain"
	"collier/internal/storage"
)

func setupTestDB(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "collier.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(meta, mint string) *domain.MetadataRecord {
	return &domain.MetadataRecord{
		MetadataAddress:      meta,
		MintAddress:          mint,
		UpdateAuthority:      "auth",
		Name:                 "Token\x00\x00\x00",
		Symbol:               "TKN\x00",
		URI:                  "https://example.com/1.json\x00\x00",
		SellerFeeBasisPoints: 750,
		PrimarySaleHappened:  true,
		IsMutable:            true,
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.Error(t, err)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collier.db")
	ctx := context.Background()

	store, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.UpsertMetadata(ctx, testRecord("meta1", "mint1")))
	require.NoError(t, store.Close())

	store, err = Open(ctx, path)
	require.NoError(t, err)
	defer store.Close()

	ok, err := store.MetadataExists(ctx, "meta1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_UpsertIdempotent(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, store.UpsertMetadata(ctx, testRecord("meta1", "mint1")))
		require.NoError(t, store.UpsertCreatorLink(ctx, "creator1", "meta1"))
	}

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.Counts{Metadata: 1, Creators: 1, Holders: 0}, counts)

	rows, err := store.ListMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Token", rows[0].Name)
	assert.Equal(t, "TKN", rows[0].Symbol)
	assert.Equal(t, "https://example.com/1.json", rows[0].URI)
	assert.Equal(t, uint16(750), rows[0].SellerFeeBasisPoints)
	assert.True(t, rows[0].PrimarySaleHappened)
}

func TestStore_MintUnique(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertMetadata(ctx, testRecord("meta1", "mint1")))
	require.NoError(t, store.UpsertMetadata(ctx, testRecord("meta2", "mint1")))

	addrs, err := store.ListMetadataAddresses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"meta2"}, addrs)
}

func TestStore_ReplaceHolder(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	_, err := store.GetHolder(ctx, "mint1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.ReplaceHolder(ctx, "mint1", "owner1"))
	require.NoError(t, store.ReplaceHolder(ctx, "mint1", "owner2"))

	h, err := store.GetHolder(ctx, "mint1")
	require.NoError(t, err)
	assert.Equal(t, "owner2", h.HolderAddress)

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Holders)
}

func TestStore_CreatorQueries(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertMetadata(ctx, testRecord("meta1", "mintB")))
	require.NoError(t, store.UpsertMetadata(ctx, testRecord("meta2", "mintA")))
	require.NoError(t, store.UpsertCreatorLink(ctx, "creator1", "meta1"))
	require.NoError(t, store.UpsertCreatorLink(ctx, "creator1", "meta2"))

	mints, err := store.ListMintAddressesByCreator(ctx, "creator1")
	require.NoError(t, err)
	assert.Equal(t, []string{"mintA", "mintB"}, mints)

	all, err := store.ListMintAddresses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"mintA", "mintB"}, all)

	ok, err := store.MetadataExistsForCreator(ctx, "creator1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.MetadataExistsForCreator(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_InvalidInput(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.UpsertMetadata(ctx, &domain.MetadataRecord{}), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.UpsertCreatorLink(ctx, "c", ""), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.ReplaceHolder(ctx, "", "h"), storage.ErrInvalidInput)
}
