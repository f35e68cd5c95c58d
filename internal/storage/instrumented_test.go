package storage_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collier/internal/domain"
	"collier/internal/observability"
	"collier/internal/storage"
	"collier/internal/storage/memory"
)

func TestInstrument_RecordsQueries(t *testing.T) {
	ctx := context.Background()
	store := storage.Instrument(memory.NewStore(), "instrumented_test")

	errCounter := observability.DefaultMetrics.DBQueryErrors.WithLabelValues("instrumented_test", "upsert_metadata")
	before := testutil.ToFloat64(errCounter)

	require.NoError(t, store.UpsertMetadata(ctx, &domain.MetadataRecord{MetadataAddress: "meta1", MintAddress: "mint1"}))
	assert.Equal(t, before, testutil.ToFloat64(errCounter))

	err := store.UpsertMetadata(ctx, &domain.MetadataRecord{MetadataAddress: "meta2"})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
	assert.Equal(t, before+1, testutil.ToFloat64(errCounter))

	mints, err := store.ListMintAddresses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"mint1"}, mints)

	_, err = store.GetHolder(ctx, "mint1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Close())
}
