// Command ingestd runs the ingestion daemon: it bootstraps index
// resources at startup, builds a buffered pipeline that ships documents to
// Elasticsearch in bulk, serves /healthz, and optionally runs a
// post-indexing enrichment pass. It opens no endpoint for submitting
// documents; /healthz is its only listener.
//
// # Usage
//
//	ingestd --config /etc/ingestd/ingestd.yaml
//
// # Configuration
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (INGESTD_*)
//   - Config file (--config)
//
// # Examples
//
// Run with flags:
//
//	ingestd --es-addr https://es.internal:9200 --es-index logs-app
//
// Run with a config file:
//
//	ingestd --config /etc/ingestd/ingestd.yaml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-ingest/internal/daemonconfig"
	"github.com/elastic/go-ingest/pkg/bootstrap"
	"github.com/elastic/go-ingest/pkg/enrich"
	"github.com/elastic/go-ingest/pkg/esexport"
	"github.com/elastic/go-ingest/pkg/health"
	"github.com/elastic/go-ingest/pkg/ingest"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	var (
		configFile = flag.String("config", "", "Path to config file")
		esAddr     = flag.String("es-addr", "", "Elasticsearch address (repeatable via config file for multiple nodes)")
		esIndex    = flag.String("es-index", "", "Elasticsearch index name")
		debug      = flag.Bool("debug", false, "Enable debug logging")
		version    = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *version {
		fmt.Printf("ingestd %s\n", Version)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	cfg := daemonconfig.DefaultConfig()
	if *configFile != "" {
		fileCfg, err := daemonconfig.LoadFromFile(*configFile)
		if err != nil {
			logger.Error("failed to load config file", "error", err)
			os.Exit(1)
		}
		cfg = fileCfg
	}

	cfg.ApplyEnvOverrides()

	if *esAddr != "" {
		cfg.Elasticsearch.Addresses = []string{*esAddr}
	}
	if *esIndex != "" {
		cfg.Elasticsearch.Index = *esIndex
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil && err != context.Canceled {
		logger.Error("ingestd exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("ingestd shutdown complete")
}

func run(ctx context.Context, cfg *daemonconfig.Config, logger *slog.Logger) error {
	credCfg := cfg.Credentials
	credResolver := bootstrap.NewCredentialResolver(bootstrap.CredentialConfig{
		Backend:              credCfg.Backend,
		EnvVar:               credCfg.EnvVar,
		OnePasswordHost:      credCfg.OnePasswordHost,
		OnePasswordToken:     os.Getenv("OP_CONNECT_TOKEN"),
		OnePasswordVaultID:   credCfg.OnePasswordVaultID,
		OnePasswordItemTitle: credCfg.OnePasswordItemName,
	}, logger)

	apiKey, err := credResolver.ResolveAPIKey(ctx)
	if err != nil {
		return fmt.Errorf("resolving elasticsearch credentials: %w", err)
	}

	bootstrapper := bootstrap.NewBootstrapper(cfg.Elasticsearch.Addresses[0], apiKey, nil, logger)
	if err := bootstrapper.EnsureIndexResources(ctx, bootstrap.IndexSpec{
		TemplateName:  cfg.Elasticsearch.Index + "-template",
		IndexPatterns: []string{cfg.Elasticsearch.Index + "*"},
		TemplateBody:  json.RawMessage(`{"mappings":{}}`),
		InitialIndex:  cfg.Elasticsearch.Index,
	}); err != nil {
		return fmt.Errorf("bootstrapping index resources: %w", err)
	}

	exporter := esexport.NewBulkExporter(esexport.Config{
		Addresses: cfg.Elasticsearch.Addresses,
		APIKey:    apiKey,
		Logger:    logger,
	})

	opts := cfg.Buffer.ToIngestOptions()
	channel := ingest.New[esexport.Document, esexport.BulkResponse](
		opts,
		exporter,
		esexport.Classifier{},
		ingest.Observer[esexport.Document, esexport.BulkResponse]{
			ExportException: func(err error, batch ingest.Batch[esexport.Document]) {
				logger.Error("bulk export failed fatally", "error", err, "batch_size", batch.Len())
			},
			ExportMaxRetries: func(batch ingest.Batch[esexport.Document]) {
				logger.Warn("bulk export abandoned after max retries", "batch_size", batch.Len())
			},
			BufferItemDropped: func(esexport.Document) {
				logger.Warn("dropped document: inbound buffer full")
			},
		},
	)

	collector := health.NewCollector(map[string]health.ChannelStatsProvider{
		"logs": channel,
	})

	var orchestrator *enrich.Orchestrator
	if cfg.Enrichment.Endpoint != "" {
		orchestrator = enrich.NewOrchestrator(enrich.Config{
			ESAddr:            cfg.Elasticsearch.Addresses[0],
			ESAPIKey:          apiKey,
			Index:             cfg.Elasticsearch.Index,
			EnrichEndpoint:    cfg.Enrichment.Endpoint,
			RequestsPerSecond: cfg.Enrichment.RequestsPerSecond,
			PollInterval:      cfg.Enrichment.PollInterval,
			Logger:            logger,
		})
	}

	healthSrv := newHealthServer(cfg.Health.ListenAddr, collector)
	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server exited", "error", err)
		}
	}()

	if orchestrator != nil {
		go func() {
			if err := orchestrator.Run(ctx); err != nil && err != context.Canceled {
				logger.Error("enrichment orchestrator exited", "error", err)
			}
		}()
	}

	logger.Info("ingestd started",
		"elasticsearch_addresses", cfg.Elasticsearch.Addresses,
		"index", cfg.Elasticsearch.Index,
		"health_addr", cfg.Health.ListenAddr,
	)

	<-ctx.Done()

	logger.Info("shutting down: draining inbound buffer")
	channel.Complete()
	drainCtx, drainCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer drainCancel()
	if err := channel.Wait(drainCtx); err != nil {
		logger.Warn("channel did not drain cleanly before shutdown deadline", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = healthSrv.Shutdown(shutdownCtx)

	return ctx.Err()
}

func newHealthServer(addr string, collector *health.Collector) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		report := collector.Report()
		w.Header().Set("Content-Type", "application/json")
		if report.Process.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	})
	return &http.Server{Addr: addr, Handler: mux}
}
