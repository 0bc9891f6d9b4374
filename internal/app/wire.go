package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/detradefi/navoracle/internal/adapter"
	"github.com/detradefi/navoracle/internal/aggregator"
	s3blob "github.com/detradefi/navoracle/internal/blob/s3"
	"github.com/detradefi/navoracle/internal/cache/redis"
	"github.com/detradefi/navoracle/internal/chain"
	"github.com/detradefi/navoracle/internal/config"
	"github.com/detradefi/navoracle/internal/domain"
	"github.com/detradefi/navoracle/internal/platform/geckoterminal"
	"github.com/detradefi/navoracle/internal/platform/merkl"
	"github.com/detradefi/navoracle/internal/platform/swapquote"
	"github.com/detradefi/navoracle/internal/pricing"
	"github.com/detradefi/navoracle/internal/server/ws"
	"github.com/detradefi/navoracle/internal/service"
	"github.com/detradefi/navoracle/internal/store/postgres"
)

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Chains     chain.Registry
	Store      domain.SnapshotStore
	Locks      *redis.LockManager
	Aggregator *aggregator.Aggregator
	Persister  *service.Persister
	Hub        *ws.Hub
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Chain connections ---
	chains, err := chain.DialAll(ctx, cfg.Networks, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chains: %w", err)
	}
	closers = append(closers, chains.Close)
	deps.Chains = chains

	readers := make(adapter.Readers, len(chains))
	for name, client := range chains {
		readers[name] = client
	}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}
	deps.Store = postgres.NewSnapshotStore(pgClient.Pool())

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	rateCache := redis.NewRateCache(redisClient)
	deps.Locks = redis.NewLockManager(redisClient)

	// --- S3 archival (optional) ---
	var archiver service.SnapshotArchiver
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			logger,
		)
	}

	// --- External feeds ---
	quotes := swapquote.New(cfg.Quote.BaseURL, cfg.Quote.Timeout.Duration)
	feed := geckoterminal.New(cfg.PriceFeed.BaseURL)

	// --- Converter ---
	canonical := domain.TokenRef{
		Symbol:   cfg.Oracle.CanonicalSymbol,
		Address:  cfg.Oracle.CanonicalAddress,
		Decimals: uint8(cfg.Oracle.CanonicalDecimals),
	}

	canonicalReader, err := chains.Get(cfg.Oracle.CanonicalNetwork)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: canonical network: %w", err)
	}

	intermediates, err := resolveIntermediates(ctx, canonicalReader, cfg.Quote.Intermediates)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: intermediates: %w", err)
	}

	converter, err := pricing.New(canonical, cfg.Oracle.CanonicalNetwork, quotes, feed, pricing.Options{
		Cache:         rateCache,
		CacheTTL:      cfg.PriceFeed.CacheTTL.Duration,
		RatePools:     cfg.PriceFeed.RatePools,
		FallbackRate:  cfg.PriceFeed.FallbackRate,
		Intermediates: intermediates,
	}, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: converter: %w", err)
	}

	// --- Adapters ---
	var adapters []aggregator.Adapter
	if cfg.Spot.Enabled {
		adapters = append(adapters, adapter.NewSpot(readers, cfg.Spot, logger))
	}
	if cfg.Lending.Enabled {
		adapters = append(adapters, adapter.NewLending(readers, cfg.Lending, logger))
	}
	for protocol, pools := range poolsByProtocol(cfg.Pools) {
		adapters = append(adapters, adapter.NewLiquidity(readers, protocol, pools, logger))
	}
	if cfg.Rewards.Enabled {
		rewardsFeed := merkl.New(cfg.Rewards.BaseURL, rewardChainIDs(cfg))
		adapters = append(adapters, adapter.NewRewards(rewardsFeed, cfg.Rewards.Networks, logger))
	}

	// --- Aggregator ---
	aggOpts := aggregator.Options{
		RetryAttempts: cfg.Oracle.RetryAttempts,
		RetryBackoff:  cfg.Oracle.RetryBackoff.Duration,
	}
	if cfg.Oracle.ShareToken != "" {
		shareReader, err := chains.Get(cfg.Oracle.ShareTokenNetwork)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: share token network: %w", err)
		}
		shareMeta, err := shareReader.TokenMeta(ctx, cfg.Oracle.ShareToken)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: share token meta: %w", err)
		}
		aggOpts.ShareToken = &shareMeta
		aggOpts.ShareReader = shareReader
	}

	agg, err := aggregator.New(cfg.Oracle.Address, adapters, converter, aggregator.NewOptimizer(converter, logger), aggOpts, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: aggregator: %w", err)
	}
	deps.Aggregator = agg

	// --- Hub + persister ---
	var broadcast service.SnapshotBroadcaster
	if cfg.Server.Enabled {
		deps.Hub = ws.NewHub(logger)
		broadcast = deps.Hub
	}
	deps.Persister = service.NewPersister(deps.Store, archiver, broadcast, logger)

	return deps, cleanup, nil
}

// resolveIntermediates reads on-chain metadata for every configured
// two-hop intermediate so the converter works with full token
// references instead of bare addresses.
func resolveIntermediates(ctx context.Context, reader *chain.Client, configured map[string]string) (map[string]domain.TokenRef, error) {
	if len(configured) == 0 {
		return nil, nil
	}
	out := make(map[string]domain.TokenRef, len(configured))
	for token, via := range configured {
		meta, err := reader.TokenMeta(ctx, via)
		if err != nil {
			return nil, fmt.Errorf("intermediate %s: %w", via, err)
		}
		out[strings.ToLower(token)] = meta
	}
	return out, nil
}

// poolsByProtocol groups configured pools so each protocol gets one
// liquidity adapter and one snapshot section.
func poolsByProtocol(pools []config.PoolConfig) map[string][]config.PoolConfig {
	grouped := make(map[string][]config.PoolConfig)
	for _, p := range pools {
		grouped[p.Protocol] = append(grouped[p.Protocol], p)
	}
	return grouped
}

// rewardChainIDs maps each rewards-enabled network to its chain ID.
func rewardChainIDs(cfg *config.Config) map[string]int {
	ids := make(map[string]int, len(cfg.Rewards.Networks))
	for _, name := range cfg.Rewards.Networks {
		if net, ok := cfg.Networks[name]; ok {
			ids[name] = net.ChainID
		}
	}
	return ids
}
