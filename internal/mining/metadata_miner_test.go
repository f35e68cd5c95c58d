package mining

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collier/internal/apperr"
	"collier/internal/domain"
	"collier/internal/metaplex"
	"collier/internal/metaplex/metaplextest"
	rpc "collier/internal/solana"
	"collier/internal/solana/stub"
	"collier/internal/storage"
	"collier/internal/storage/memory"
)

var (
	testCreator   = metaplextest.Key(10)
	otherCreator  = metaplextest.Key(11)
	testAuthority = metaplextest.Key(1)
)

// testMetadata returns a record for the i-th test mint whose creator list is creators.
func testMetadata(i byte, creators ...string) *domain.MetadataRecord {
	rec := &domain.MetadataRecord{
		MetadataAddress:      metaplextest.Key(100 + i),
		MintAddress:          metaplextest.Key(50 + i),
		UpdateAuthority:      testAuthority,
		Name:                 "Collier",
		Symbol:               "COL",
		URI:                  "https://arweave.net/collier.json",
		SellerFeeBasisPoints: 500,
		IsMutable:            true,
	}
	share := uint8(100 / len(creators))
	for j, c := range creators {
		s := share
		if j == 0 {
			s = 100 - share*uint8(len(creators)-1)
		}
		rec.Creators = append(rec.Creators, domain.Creator{Address: c, Verified: j == 0, Share: s})
	}
	return rec
}

func addMetadata(client *stub.RPCClient, rec *domain.MetadataRecord) {
	client.AddProgramAccount(metaplex.ProgramID, &rpc.Account{
		Address:  rec.MetadataAddress,
		Lamports: 5616720,
		Data:     metaplextest.MetadataAccount(rec),
	})
}

func newMiner(client rpc.RPCClient, store storage.Store, opts MinerOptions) *MetadataMiner {
	opts.Logger = zerolog.Nop()
	return NewMetadataMiner(client, store, opts)
}

func TestMine_StoresMatchingMetadata(t *testing.T) {
	ctx := context.Background()
	client := stub.NewRPCClient()
	store := memory.NewStore()

	addMetadata(client, testMetadata(1, testCreator, otherCreator))
	addMetadata(client, testMetadata(2, testCreator))
	addMetadata(client, testMetadata(3, otherCreator, testCreator))

	stats, err := newMiner(client, store, MinerOptions{}).Mine(ctx, testCreator)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Scanned)
	assert.Equal(t, 2, stats.Stored)
	assert.Equal(t, 2, stats.Links)

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.Counts{Metadata: 2, Creators: 2}, counts)

	rows, err := store.ListMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Collier", rows[0].Name)
	assert.Equal(t, "https://arweave.net/collier.json", rows[0].URI)

	mints, err := store.ListMintAddressesByCreator(ctx, testCreator)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{metaplextest.Key(51), metaplextest.Key(52)}, mints)
}

func TestMine_Idempotent(t *testing.T) {
	ctx := context.Background()
	client := stub.NewRPCClient()
	store := memory.NewStore()

	addMetadata(client, testMetadata(1, testCreator))

	miner := newMiner(client, store, MinerOptions{})

	_, err := miner.Mine(ctx, testCreator)
	require.NoError(t, err)
	first, err := store.ListMetadata(ctx)
	require.NoError(t, err)

	_, err = miner.Mine(ctx, testCreator)
	require.NoError(t, err)
	second, err := store.ListMetadata(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.Counts{Metadata: 1, Creators: 1}, counts)
}

func TestMine_DecodeErrorAbortsPass(t *testing.T) {
	ctx := context.Background()
	client := stub.NewRPCClient()
	store := memory.NewStore()

	bad := testMetadata(1, testCreator)
	data := metaplextest.MetadataAccount(bad)
	data[0] = 9 // not a MetadataV1 key
	client.AddProgramAccount(metaplex.ProgramID, &rpc.Account{Address: bad.MetadataAddress, Data: data})
	addMetadata(client, testMetadata(2, testCreator))

	stats, err := newMiner(client, store, MinerOptions{}).Mine(ctx, testCreator)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Decode))
	assert.Less(t, stats.Stored, 2)

	exists, err := store.MetadataExists(ctx, bad.MetadataAddress)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMine_NetworkError(t *testing.T) {
	client := stub.NewRPCClient()
	client.Fail("getProgramAccounts", 0)

	_, err := newMiner(client, memory.NewStore(), MinerOptions{}).Mine(context.Background(), testCreator)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Network))
	assert.ErrorIs(t, err, stub.ErrInjected)
}

func TestMine_InvalidCreator(t *testing.T) {
	client := stub.NewRPCClient()

	_, err := newMiner(client, memory.NewStore(), MinerOptions{}).Mine(context.Background(), "not-a-key")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Validation))
	assert.Equal(t, 0, client.CallCount("getProgramAccounts"))
}

func TestMine_SkipExisting(t *testing.T) {
	ctx := context.Background()
	client := stub.NewRPCClient()
	store := memory.NewStore()

	addMetadata(client, testMetadata(1, testCreator))
	addMetadata(client, testMetadata(2, testCreator))

	_, err := newMiner(client, store, MinerOptions{}).Mine(ctx, testCreator)
	require.NoError(t, err)

	addMetadata(client, testMetadata(3, testCreator))

	stats, err := newMiner(client, store, MinerOptions{SkipExisting: true}).Mine(ctx, testCreator)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Scanned)
	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, 1, stats.Stored)

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Metadata)
}

func TestMine_AllCreatorPositions(t *testing.T) {
	ctx := context.Background()
	client := stub.NewRPCClient()

	addMetadata(client, testMetadata(1, otherCreator, testCreator))

	stats, err := newMiner(client, memory.NewStore(), MinerOptions{}).Mine(ctx, testCreator)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Stored)

	store := memory.NewStore()
	stats, err = newMiner(client, store, MinerOptions{AllCreatorPositions: true}).Mine(ctx, testCreator)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Stored)
	assert.Equal(t, metaplex.MaxCreators+1, client.CallCount("getProgramAccounts"))

	exists, err := store.MetadataExistsForCreator(ctx, testCreator)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMineMint(t *testing.T) {
	ctx := context.Background()
	client := stub.NewRPCClient()
	store := memory.NewStore()

	rec := testMetadata(1, testCreator, otherCreator)
	pda, _, err := metaplex.FindMetadataAddress(rec.MintAddress)
	require.NoError(t, err)
	rec.MetadataAddress = pda
	addMetadata(client, rec)

	got, err := newMiner(client, store, MinerOptions{}).MineMint(ctx, rec.MintAddress)
	require.NoError(t, err)
	assert.Equal(t, pda, got.MetadataAddress)
	assert.Equal(t, []string{testCreator, otherCreator}, got.CreatorAddresses())

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.Counts{Metadata: 1, Creators: 2}, counts)
}

func TestMineMint_NotFound(t *testing.T) {
	_, err := newMiner(stub.NewRPCClient(), memory.NewStore(), MinerOptions{}).MineMint(context.Background(), metaplextest.Key(77))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Validation))
}
