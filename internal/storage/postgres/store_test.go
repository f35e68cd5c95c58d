package postgres

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collier/internal/domain"
	"collier/internal/storage"
)

func testRecord(meta, mint string) *domain.MetadataRecord {
	return &domain.MetadataRecord{
		MetadataAddress:      meta,
		MintAddress:          mint,
		UpdateAuthority:      "auth",
		Name:                 "Token\x00\x00",
		Symbol:               "TKN\x00",
		URI:                  "https://example.com/1.json\x00",
		SellerFeeBasisPoints: 500,
		IsMutable:            true,
	}
}

func TestStore_UpsertIdempotent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewStore(pool)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, store.UpsertMetadata(ctx, testRecord("meta1", "mint1")))
		require.NoError(t, store.UpsertCreatorLink(ctx, "creator1", "meta1"))
	}

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.Counts{Metadata: 1, Creators: 1}, counts)

	rows, err := store.ListMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Token", rows[0].Name)
	assert.Equal(t, "https://example.com/1.json", rows[0].URI)
	assert.Equal(t, uint16(500), rows[0].SellerFeeBasisPoints)
}

func TestStore_MintUnique(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewStore(pool)
	ctx := context.Background()

	require.NoError(t, store.UpsertMetadata(ctx, testRecord("meta1", "mint1")))
	require.NoError(t, store.UpsertMetadata(ctx, testRecord("meta2", "mint1")))

	addrs, err := store.ListMetadataAddresses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"meta2"}, addrs)

	ok, err := store.MetadataExists(ctx, "meta1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ReplaceHolderConcurrent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewStore(pool)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Concurrent replaces may conflict; the survivor must still be a single row.
			_ = store.ReplaceHolder(ctx, "mint1", "owner")
		}()
	}
	wg.Wait()

	require.NoError(t, store.ReplaceHolder(ctx, "mint1", "final"))

	h, err := store.GetHolder(ctx, "mint1")
	require.NoError(t, err)
	assert.Equal(t, "final", h.HolderAddress)

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Holders)

	_, err = store.GetHolder(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_CreatorQueries(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewStore(pool)
	ctx := context.Background()

	require.NoError(t, store.UpsertMetadata(ctx, testRecord("meta1", "mintB")))
	require.NoError(t, store.UpsertMetadata(ctx, testRecord("meta2", "mintA")))
	require.NoError(t, store.UpsertCreatorLink(ctx, "creator1", "meta1"))
	require.NoError(t, store.UpsertCreatorLink(ctx, "creator1", "meta2"))

	mints, err := store.ListMintAddressesByCreator(ctx, "creator1")
	require.NoError(t, err)
	assert.Equal(t, []string{"mintA", "mintB"}, mints)

	ok, err := store.MetadataExistsForCreator(ctx, "creator1")
	require.NoError(t, err)
	assert.True(t, ok)
}
