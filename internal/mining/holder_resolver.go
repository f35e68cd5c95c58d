package mining

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"collier/internal/apperr"
	"collier/internal/metaplex"
	"collier/internal/observability"
	rpc "collier/internal/solana"
	"collier/internal/storage"
)

// soleUnit is the raw balance of the account holding a non-fungible token.
var soleUnit = decimal.NewFromInt(1)

// ResolveStats summarizes one holder resolution pass.
type ResolveStats struct {
	Mints      int // mints considered
	Resolved   int // holder rows replaced
	Unresolved int // mints with no account holding exactly one unit
	Failed     int // mints skipped after a network or decode error
	Duration   time.Duration
}

// ResolverOptions configures a HolderResolver.
type ResolverOptions struct {
	// Workers bounds concurrent per-mint fetches. Values below 1 mean 1.
	Workers int
	// Creator restricts resolution to mints linked to this creator. Empty means all mints.
	Creator string
	Logger  zerolog.Logger
}

// HolderResolver determines the current sole holder of every known mint.
type HolderResolver struct {
	client rpc.RPCClient
	store  storage.Store
	opts   ResolverOptions
}

// NewHolderResolver creates a resolver reading from client and writing to store.
func NewHolderResolver(client rpc.RPCClient, store storage.Store, opts ResolverOptions) *HolderResolver {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &HolderResolver{client: client, store: store, opts: opts}
}

// mintResult is the outcome of fetching and evaluating one mint.
type mintResult struct {
	mint   string
	holder string
	found  bool
	err    error
}

// Resolve replaces the holder row of every mint whose largest accounts include
// one holding exactly one unit. When several accounts qualify, the last one in
// response order wins. Per-mint network and decode failures are logged and
// skipped; store failures abort the pass.
func (r *HolderResolver) Resolve(ctx context.Context) (ResolveStats, error) {
	start := time.Now()
	var stats ResolveStats

	mints, err := r.listMints(ctx)
	if err != nil {
		return stats, apperr.New(apperr.Store, "list mints", err)
	}
	stats.Mints = len(mints)

	log := r.opts.Logger.With().Int("mints", len(mints)).Int("workers", r.opts.Workers).Logger()
	log.Info().Msg("holder resolution started")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Single writer: all store writes and stats updates happen here.
	results := make(chan mintResult, r.opts.Workers)
	var writeErr error
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for res := range results {
			if writeErr != nil {
				continue
			}
			if err := r.commit(runCtx, res, &stats); err != nil {
				writeErr = err
				cancel()
			}
		}
	}()

	pool := new(errgroup.Group)
	pool.SetLimit(r.opts.Workers)
	for _, mint := range mints {
		if runCtx.Err() != nil {
			break
		}
		mint := mint
		pool.Go(func() error {
			holder, found, err := r.resolveMint(runCtx, mint)
			results <- mintResult{mint: mint, holder: holder, found: found, err: err}
			return nil
		})
	}
	pool.Wait()
	close(results)
	<-writerDone

	stats.Duration = time.Since(start)

	if writeErr != nil {
		return stats, writeErr
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	log.Info().
		Int("resolved", stats.Resolved).
		Int("unresolved", stats.Unresolved).
		Int("failed", stats.Failed).
		Dur("duration", stats.Duration).
		Msg("holder resolution complete")

	return stats, nil
}

func (r *HolderResolver) listMints(ctx context.Context) ([]string, error) {
	if r.opts.Creator != "" {
		return r.store.ListMintAddressesByCreator(ctx, r.opts.Creator)
	}
	return r.store.ListMintAddresses(ctx)
}

// commit records a per-mint result. Only store failures are returned.
func (r *HolderResolver) commit(ctx context.Context, res mintResult, stats *ResolveStats) error {
	switch {
	case res.err != nil:
		if ctx.Err() != nil {
			return nil
		}
		kind := apperr.KindOf(res.err)
		stats.Failed++
		observability.RecordHolderMintError(kind.String())
		r.opts.Logger.Warn().Err(res.err).Str("mint", res.mint).Str("kind", kind.String()).Msg("holder resolution skipped mint")
		return nil

	case !res.found:
		stats.Unresolved++
		observability.RecordHolderMint(false)
		r.opts.Logger.Debug().Str("mint", res.mint).Msg("no account holds exactly one unit")
		return nil
	}

	if err := r.store.ReplaceHolder(ctx, res.mint, res.holder); err != nil {
		return apperr.New(apperr.Store, "replace holder", fmt.Errorf("mint %s: %w", res.mint, err))
	}
	stats.Resolved++
	observability.RecordHolderMint(true)
	r.opts.Logger.Debug().Str("mint", res.mint).Str("holder", res.holder).Msg("holder replaced")
	return nil
}

// resolveMint returns the owner of the last largest account holding exactly one unit.
func (r *HolderResolver) resolveMint(ctx context.Context, mint string) (string, bool, error) {
	accounts, err := r.client.GetTokenLargestAccounts(ctx, mint)
	if err != nil {
		return "", false, err
	}

	var holder string
	found := false
	for _, la := range accounts {
		amount, err := decimal.NewFromString(la.Amount)
		if err != nil {
			return "", false, apperr.New(apperr.Decode, "parse amount", fmt.Errorf("account %s: %w", la.Address, err))
		}
		if !amount.Equal(soleUnit) {
			continue
		}

		acct, err := r.client.GetAccountInfo(ctx, la.Address)
		if err != nil {
			if errors.Is(err, rpc.ErrAccountNotFound) {
				return "", false, apperr.New(apperr.Network, "fetch token account", fmt.Errorf("%s: %w", la.Address, err))
			}
			return "", false, err
		}

		ta, err := metaplex.DecodeTokenAccount(acct.Data)
		if err != nil {
			return "", false, err
		}

		holder = ta.Owner
		found = true
	}

	return holder, found, nil
}
