// Package indexer implements app.Runner for the indexer process.
package indexer

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	gsrpc "github.com/centrifuge/go-substrate-rpc-client/v4"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chainsafe/sygma-indexer/pkg/api"
	apphttp "github.com/chainsafe/sygma-indexer/pkg/app/http"
	"github.com/chainsafe/sygma-indexer/pkg/config"
	"github.com/chainsafe/sygma-indexer/pkg/db"
	"github.com/chainsafe/sygma-indexer/pkg/indexer"
	"github.com/chainsafe/sygma-indexer/pkg/parser"
	evmparser "github.com/chainsafe/sygma-indexer/pkg/parser/evm"
	substrateparser "github.com/chainsafe/sygma-indexer/pkg/parser/substrate"
	"github.com/chainsafe/sygma-indexer/pkg/pgutil"
)

const defaultRequestTimeout = 60 * time.Second

// Server holds cfg to init the indexer process.
type Server struct {
	cfg   *config.Config
	ready atomic.Bool
}

// NewServer initializes a new indexer process.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Run starts the per-domain pipelines and the read API, and blocks until a
// shutdown signal arrives or a pipeline fails.
func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("indexer config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting transfer indexer",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port))

	bunDB, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer bunDB.Close()
	store := db.NewStore(bunDB)
	logger.Info("Connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database))

	shared, err := config.FetchSharedConfig(ctx, cfg.SharedConfig, logger)
	if err != nil {
		return err
	}

	if err := seedTopology(ctx, store, shared); err != nil {
		return fmt.Errorf("seed topology: %w", err)
	}

	pipelines, err := s.buildPipelines(shared, store, logger)
	if err != nil {
		return err
	}
	if len(pipelines) == 0 {
		return fmt.Errorf("no domain has an rpc endpoint configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pipelineErrs := make(chan error, len(pipelines))
	for _, p := range pipelines {
		go func(p *indexer.Pipeline) {
			pipelineErrs <- p.Run(runCtx)
		}(p)
	}
	s.ready.Store(true)

	// Surface the first pipeline failure as a process shutdown.
	go func() {
		if err := <-pipelineErrs; err != nil && runCtx.Err() == nil {
			logger.Error("Pipeline failed, shutting down", zap.Error(err))
			stop()
		}
	}()

	return apphttp.ServeAndWait(ctx, s.setupRouter(store, logger), logger, &cfg.Server)
}

func (s *Server) setupRouter(store *db.Store, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultRequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT_READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	})
	if s.cfg.Monitoring.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	api.RegisterRoutes(r, store, logger)
	return r
}

// buildPipelines constructs a parser for every domain in the shared
// configuration and a source plus pipeline for every domain with a configured
// RPC endpoint. Domains without an endpoint still get a parser so deposits
// targeting them can resolve destination addresses.
func (s *Server) buildPipelines(shared *config.SharedConfig, store *db.Store, logger *zap.Logger) ([]*indexer.Pipeline, error) {
	registry := parser.NewRegistry()
	reconciler := indexer.NewReconciler(logger)

	type domainSource struct {
		domain *config.Domain
		source indexer.Source
		parser parser.Parser
	}
	var sources []domainSource

	for i := range shared.Domains {
		domain := &shared.Domains[i]
		rpcURL := s.cfg.Indexer.RPC[strconv.Itoa(int(domain.ID))]

		switch domain.Type {
		case config.FamilyEVM:
			var client *ethclient.Client
			if rpcURL != "" {
				var err error
				client, err = ethclient.Dial(rpcURL)
				if err != nil {
					return nil, fmt.Errorf("connect to domain %d rpc: %w", domain.ID, err)
				}
			}

			var fees *evmparser.FeeCalculator
			if client != nil && domain.FeeRouter != "" {
				fees = evmparser.NewFeeCalculator(client, domain, logger)
			}
			p := evmparser.NewParser(domain, shared, fees, logger)
			registry.Register(domain.ID, p)

			if client != nil {
				sources = append(sources, domainSource{
					domain: domain,
					source: indexer.NewEVMSource(client, domain, s.cfg.Indexer, logger),
					parser: p,
				})
			}

		case config.FamilySubstrate:
			p := substrateparser.NewParser(domain, shared, store, logger)
			registry.Register(domain.ID, p)

			if rpcURL != "" {
				conn, err := gsrpc.NewSubstrateAPI(rpcURL)
				if err != nil {
					return nil, fmt.Errorf("connect to domain %d rpc: %w", domain.ID, err)
				}
				source, err := indexer.NewSubstrateSource(conn, domain, s.cfg.Indexer, logger)
				if err != nil {
					return nil, fmt.Errorf("domain %d source: %w", domain.ID, err)
				}
				sources = append(sources, domainSource{domain: domain, source: source, parser: p})
			}

		default:
			return nil, fmt.Errorf("domain %d has unknown chain family %q", domain.ID, domain.Type)
		}

		if rpcURL == "" {
			logger.Warn("No RPC endpoint for domain, indexing disabled",
				zap.Uint8("domain_id", domain.ID),
				zap.String("domain", domain.Name))
		}
	}
	registry.Bind()

	pipelines := make([]*indexer.Pipeline, 0, len(sources))
	for _, ds := range sources {
		pipelines = append(pipelines, indexer.NewPipeline(ds.domain, ds.source, ds.parser, store, reconciler, logger))
	}
	return pipelines, nil
}

// seedTopology inserts the static domain, resource and route rows described
// by the shared configuration. Routes pair every source domain with every
// other domain offering the same resource.
func seedTopology(ctx context.Context, store *db.Store, shared *config.SharedConfig) error {
	domains := make([]*db.Domain, 0, len(shared.Domains))
	resources := make([]*db.Resource, 0)
	routes := make([]*db.Route, 0)
	seenResources := make(map[string]struct{})

	for i := range shared.Domains {
		domain := &shared.Domains[i]
		domains = append(domains, &db.Domain{
			ID:   domain.ID,
			Name: domain.Name,
			Type: string(domain.Type),
		})

		for _, resource := range domain.Resources {
			if _, ok := seenResources[resource.ResourceID]; !ok {
				seenResources[resource.ResourceID] = struct{}{}
				decimals := resource.Decimals
				resources = append(resources, &db.Resource{
					ID:       resource.ResourceID,
					Type:     resource.Type,
					Decimals: &decimals,
				})
			}

			for j := range shared.Domains {
				dest := &shared.Domains[j]
				if dest.ID == domain.ID {
					continue
				}
				if _, ok := dest.Resource(resource.ResourceID); !ok {
					continue
				}
				routes = append(routes, &db.Route{
					ID:           fmt.Sprintf("%d-%d-%s", domain.ID, dest.ID, resource.ResourceID),
					FromDomainID: domain.ID,
					ToDomainID:   dest.ID,
					ResourceID:   resource.ResourceID,
				})
			}
		}
	}

	if err := store.SeedDomains(ctx, domains); err != nil {
		return err
	}
	if err := store.SeedResources(ctx, resources); err != nil {
		return err
	}
	return store.SeedRoutes(ctx, routes)
}
