package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aegisflux/obsfabric/internal/collectors"
	"github.com/aegisflux/obsfabric/internal/config"
	"github.com/aegisflux/obsfabric/internal/detect"
	"github.com/aegisflux/obsfabric/internal/fabric"
	"github.com/aegisflux/obsfabric/internal/kernel"
	"github.com/aegisflux/obsfabric/internal/metrics"
	"github.com/aegisflux/obsfabric/internal/natsbridge"
	"github.com/aegisflux/obsfabric/internal/obslog"
	"github.com/aegisflux/obsfabric/internal/processor"
	"github.com/aegisflux/obsfabric/internal/queryapi"
	"github.com/nats-io/nats.go"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("observability-fabric: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := obslog.New(cfg.LogLevel, "observability-fabric")
	obslog.LogLifecycle(log, "starting", "http_address", cfg.HTTPAddress, "nats_url", cfg.NATSURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	promMetrics := metrics.New()
	bus := fabric.NewBusWithMetrics(cfg.BusBufferSize, promMetrics)

	cache := processor.NewProcessCache(cfg.ProcessorCacheCapacity, cfg.ProcessorCacheTTL)
	history := processor.NewHistory(cfg.ProcessorEventHistorySize)
	proc := processor.New(bus, cache, history, cfg.MLHistoryWindowSize, processor.WithLogger(log), processor.WithMetrics(promMetrics))

	go func() {
		if err := proc.Run(ctx); err != nil {
			log.Error("processor stopped with error", "error", err)
		}
	}()

	startCollectors(ctx, cfg, bus, log)

	kernelReader, kernelSource := startKernelReader(ctx, cfg, bus, log)

	models := []detect.Model{
		detect.NewZScoreModel(cfg.MLZThreshold),
		detect.NewIsolationModel(cfg.MLMinSamples*5, cfg.MLMinSamples),
		detect.NewOneClassModel(cfg.MLMinSamples*5, cfg.MLMinSamples),
		detect.NewReconstructionModel(cfg.MLMinSamples*5, cfg.MLMinSamples, cfg.MLReconstructionOn),
	}
	pipelineCfg := detect.Config{
		DetectionInterval: cfg.MLDetectionInterval,
		MinSamples:        cfg.MLMinSamples,
		WindowSeconds:     detect.DefaultWindowSeconds,
		Cooldown:          cfg.MLCooldown,
		EnsembleThreshold: cfg.MLEnsembleThreshold,
		MinVoters:         cfg.MLMinVoters,
	}
	pipeline := detect.New(proc, pipelineCfg, models, log, detect.WithMetrics(promMetrics))
	go pipeline.Run(ctx, bus.Publish)

	nc, bridge := startNATSBridge(ctx, cfg, bus, log)

	server := queryapi.New(proc, pipeline, bus, log)
	go func() {
		if err := server.Run(ctx, cfg.HTTPAddress); err != nil {
			log.Error("query api stopped with error", "error", err)
		}
	}()
	server.MarkReady()

	obslog.LogLifecycle(log, "started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	obslog.LogLifecycle(log, "shutdown signal received")
	shutdown(cancel, bus, kernelReader, kernelSource, nc, bridge, log)
	obslog.LogLifecycle(log, "stopped")
}

func startCollectors(ctx context.Context, cfg *config.Config, bus *fabric.Bus, log *slog.Logger) {
	go collectors.RunPoller(ctx, collectors.NewCPUCollector(), cfg.CollectorsCPUInterval, bus.Publish, log)
	go collectors.RunPoller(ctx, collectors.NewMemoryCollector(), cfg.CollectorsMemoryInterval, bus.Publish, log)
	go collectors.RunPoller(ctx, collectors.NewDiskCollector(), cfg.CollectorsDiskInterval, bus.Publish, log)
	go collectors.RunPoller(ctx, collectors.NewNetworkCollector(), cfg.CollectorsNetworkInterval, bus.Publish, log)
	go collectors.RunPoller(ctx, collectors.NewProcessCollector(cfg.CollectorsProcessTopN), cfg.CollectorsProcessInterval, bus.Publish, log)
}

// startKernelReader wires the syscall-latency Reader to a software
// ChannelSource: no real eBPF probe object is loaded by this process, so
// the ring-buffer Reader runs against the same Source abstraction a real
// cilium/ebpf-backed deployment would use, just fed by nothing until a
// probe-loading component pushes raw records onto it.
func startKernelReader(ctx context.Context, cfg *config.Config, bus *fabric.Bus, log *slog.Logger) (*kernel.Reader, *kernel.ChannelSource) {
	if !cfg.EBPFEnableSyscallTrace {
		return nil, nil
	}
	source := kernel.NewChannelSource(cfg.EBPFBufferPages * 64)
	reader := kernel.NewReader(source, kernel.WithMinLatencyNs(cfg.EBPFMinLatencyNs), kernel.WithLogger(log))
	go func() {
		if err := reader.Run(ctx, bus.Publish); err != nil {
			log.Error("kernel reader stopped with error", "error", err)
		}
	}()
	return reader, source
}

func startNATSBridge(ctx context.Context, cfg *config.Config, bus *fabric.Bus, log *slog.Logger) (*nats.Conn, *natsbridge.Bridge) {
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		log.Warn("nats connect failed, anomaly forwarding disabled", "error", err)
		return nil, nil
	}
	bridge := natsbridge.New(bus, nc,
		natsbridge.WithSubject(cfg.NATSSubject),
		natsbridge.WithLogger(log),
		natsbridge.WithCompression(cfg.NATSCompress),
	)
	go func() {
		if err := bridge.Run(ctx); err != nil {
			log.Error("nats bridge stopped with error", "error", err)
		}
	}()
	return nc, bridge
}

func shutdown(cancel context.CancelFunc, bus *fabric.Bus, reader *kernel.Reader, source *kernel.ChannelSource, nc *nats.Conn, bridge *natsbridge.Bridge, log *slog.Logger) {
	if bridge != nil {
		forwarded, failed := bridge.Counters()
		log.Info("nats bridge counters", "forwarded", forwarded, "failed", failed, "rejected", bridge.Rejected())
	}
	if reader != nil {
		if err := reader.Stop(); err != nil {
			obslog.LogShutdownError(log, "kernel_reader", err)
		}
	}
	if source != nil {
		_ = source.Close()
	}

	cancel()
	bus.Drain(5 * time.Second)

	if nc != nil {
		nc.Close()
	}
}
