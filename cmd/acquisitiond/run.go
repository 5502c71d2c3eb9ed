package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/acquisitiond/pkg/cache"
	"github.com/cuemby/acquisitiond/pkg/config"
	"github.com/cuemby/acquisitiond/pkg/events"
	"github.com/cuemby/acquisitiond/pkg/health"
	"github.com/cuemby/acquisitiond/pkg/ingestion"
	"github.com/cuemby/acquisitiond/pkg/log"
	"github.com/cuemby/acquisitiond/pkg/metrics"
	"github.com/cuemby/acquisitiond/pkg/sink"
	"github.com/cuemby/acquisitiond/pkg/spool"
	"github.com/cuemby/acquisitiond/pkg/storage"
	"github.com/cuemby/acquisitiond/pkg/subscription"
	"github.com/cuemby/acquisitiond/pkg/types"
	"github.com/cuemby/acquisitiond/pkg/worker"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load configuration, wire the pipeline, and run until signaled",
	RunE:  runAcquisitiond,
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}

	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if logLevel, _ := cmd.Flags().GetString("log-level"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	return cfg, nil
}

func runAcquisitiond(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logJSON, _ := cmd.Flags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(cfg.Logging.Level), JSONOutput: logJSON && cfg.Logging.JSON})
	logger := log.WithComponent("main")
	metrics.SetVersion(Version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.ConnectionString)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	tagCache := cache.New(store)

	sp, err := spool.New(cfg.Resilience.StoreForwardPath, cfg.Resilience.MaxLocalStorageRecords)
	if err != nil {
		return fmt.Errorf("open spool: %w", err)
	}

	publisher, stopEvents := buildEventPublisher(cfg)
	defer stopEvents()

	batchSink := sink.New(store, sp, publisher, sink.Config{
		AutoFlushThreshold: cfg.Batch.AutoFlushThreshold,
		MaxChunk:           cfg.Batch.MaxChunk,
	})

	pipeline := ingestion.New(tagCache, batchSink)

	factory := subscription.NewSimulatorFactory(
		time.Duration(cfg.Opc.SamplingIntervalSeconds * float64(time.Second)))
	subMgr := subscription.NewManager(factory, func(ctx context.Context, s types.Sample) {
		pipeline.Ingest(ctx, s)
	})
	subMgr.SetPublisher(publisher)

	w := worker.New(subMgr, batchSink, worker.Config{
		FlushIntervalSeconds: cfg.Batch.FlushIntervalSeconds,
		ShutdownFlushTimeout: time.Duration(cfg.Resilience.ShutdownFlushTimeoutSeconds) * time.Second,
	})

	machines, err := store.ListActiveMachines(ctx)
	if err != nil {
		return fmt.Errorf("list active machines: %w", err)
	}
	logger.Info().Int("machines", len(machines)).Msg("starting worker loop")
	w.Start(ctx, machines)

	collector := metrics.NewCollector(store, batchSink, sp,
		time.Duration(cfg.Metrics.CollectorIntervalSeconds)*time.Second)
	collector.Start(ctx)
	defer collector.Stop()

	healthStop := startHealthLoop(ctx, store, batchSink, subMgr, machines)
	defer close(healthStop)

	go serveMetrics(cfg.Metrics.ListenAddr)
	go serveHealth(cfg.Health.ListenAddr)

	logger.Info().Msg("acquisitiond running, press Ctrl+C to stop")
	<-ctx.Done()

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	w.Stop(shutdownCtx)

	logger.Info().Msg("shutdown complete")
	return nil
}

func buildEventPublisher(cfg config.Config) (events.Publisher, func()) {
	switch cfg.EventBus.Kind {
	case "none":
		return nil, func() {}
	case "webhook":
		broker := events.NewBroker()
		broker.Start()
		webhook := events.NewWebhookPublisher(broker, cfg.EventBus.WebhookURL)
		webhook.Start()
		return broker, func() {
			webhook.Stop()
			broker.Stop()
		}
	default: // "broker"
		broker := events.NewBroker()
		broker.Start()
		return broker, broker.Stop
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	logger := log.WithComponent("metrics-server")
	logger.Info().Str("addr", addr).Msg("serving /metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}

func serveHealth(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/healthz", metrics.HealthHandler())
	mux.Handle("/readyz", metrics.ReadyHandler())
	mux.Handle("/livez", metrics.LivenessHandler())
	logger := log.WithComponent("health-server")
	logger.Info().Str("addr", addr).Msg("serving /healthz and /readyz")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("health server stopped")
	}
}

// startHealthLoop periodically re-probes the store, sink, and subscription
// connectivity and republishes them as named health components, matching
// the "store"/"sink"/"subscription" readiness set in pkg/metrics. Each
// machine's OPC endpoint is probed too, as a non-critical component, via
// health.TCPChecker.
func startHealthLoop(ctx context.Context, store storage.Store, batchSink *sink.Sink, subMgr *subscription.Manager, machines []*types.Machine) chan struct{} {
	stopCh := make(chan struct{})
	sqlChecker := health.NewSQLChecker(store)

	machineCheckers := make(map[string]*health.TCPChecker, len(machines))
	for _, m := range machines {
		addr, err := tcpAddrFromOpcEndpoint(m.OpcEndpoint)
		if err != nil {
			continue
		}
		machineCheckers[m.Name] = health.NewTCPChecker(addr)
	}

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			probeHealth(ctx, sqlChecker, batchSink, subMgr, machineCheckers)
			select {
			case <-ticker.C:
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return stopCh
}

func probeHealth(ctx context.Context, sqlChecker *health.SQLChecker, batchSink *sink.Sink, subMgr *subscription.Manager, machineCheckers map[string]*health.TCPChecker) {
	storeResult := sqlChecker.Check(ctx)
	metrics.RegisterComponent("store", storeResult.Healthy, storeResult.Message)
	metrics.RegisterComponent("sink", batchSink.Healthy(), fmt.Sprintf("pending=%d", batchSink.PendingCount()))
	metrics.RegisterComponent("subscription", !subMgr.AnyDisconnected(), fmt.Sprintf("connected=%d", subMgr.ConnectedCount()))

	for name, checker := range machineCheckers {
		result := checker.Check(ctx)
		metrics.RegisterComponent("machine:"+name, result.Healthy, result.Message)
	}
}

// tcpAddrFromOpcEndpoint extracts a host:port pair from an opc.tcp:// URI
// for TCPChecker, which dials raw TCP rather than parsing OPC UA framing.
func tcpAddrFromOpcEndpoint(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("no host in endpoint %q", endpoint)
	}
	if !strings.Contains(u.Host, ":") {
		return u.Host + ":4840", nil
	}
	return u.Host, nil
}

var reloadCacheCmd = &cobra.Command{
	Use:   "reload-cache",
	Short: "Trigger a Tag Cache reload",
	Long: `reload-cache signals that cached tag metadata should be refreshed.

There is no separate admin server in this build, so this command opens
the configured store directly, constructs a Tag Cache, and invalidates
it in-process — equivalent to what a running instance's admin endpoint
would do on receiving the same trigger.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.ConnectionString)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer store.Close()

		ctx := context.Background()
		if err := store.Reload(ctx); err != nil {
			return fmt.Errorf("reload store: %w", err)
		}
		tagCache := cache.New(store)
		tagCache.Invalidate()
		fmt.Println("tag cache reload triggered")
		return nil
	},
}
