package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/zvirb/gpu-balancer/internal/logger"
	"github.com/zvirb/gpu-balancer/internal/metrics"
	"github.com/zvirb/gpu-balancer/internal/telemetry"
	"github.com/zvirb/gpu-balancer/pkg/balancer"
	"github.com/zvirb/gpu-balancer/pkg/config"
	"github.com/zvirb/gpu-balancer/pkg/core"
)

func main() {
	var configPath string
	var modelsPath string
	var metricsAddr string
	flag.StringVar(&configPath, "config", "", "path to balancer config yaml")
	flag.StringVar(&modelsPath, "models", "", "path to model data yaml")
	flag.StringVar(&metricsAddr, "metrics-addr", ":8080", "address for the /metrics endpoint")
	flag.Parse()

	log, err := logger.InitLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.SyncLogger()

	spec := config.DefaultBalancerSpec()
	if configPath != "" {
		if spec, err = config.ReadBalancerSpec(configPath); err != nil {
			log.Errorw("Failed to read balancer config", "error", err)
			os.Exit(1)
		}
	}

	registry := core.NewStaticModelRegistry()
	if modelsPath != "" {
		modelData, err := config.ReadModelData(modelsPath)
		if err != nil {
			log.Errorw("Failed to read model data", "error", err)
			os.Exit(1)
		}
		registry = core.NewStaticModelRegistryFromSpec(modelData)
	}

	promRegistry := prometheus.NewRegistry()
	emitter := metrics.InitMetricsAndEmitter(promRegistry)

	system := core.NewSystem(clock.RealClock{}, &spec.Allocation)

	var source telemetry.Source
	if spec.Telemetry.Endpoint != "" {
		source = telemetry.NewDCGMSource(spec.Telemetry.Endpoint)
		log.Infow("Using dcgm-exporter telemetry source", "endpoint", spec.Telemetry.Endpoint)
	} else {
		source = telemetry.NewStaticSource(demoSamples())
		log.Infow("No telemetry endpoint configured, using static demo source")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	discoverer := telemetry.NewDiscoverer(source, system)
	if err := discoverer.Discover(ctx); err != nil {
		log.Errorw("Device discovery failed", "error", err)
	}

	engine := balancer.NewEngine(system, registry, spec, emitter)
	engine.SetDiscoverer(discoverer.Discover)
	tracker := balancer.NewTracker(system, emitter)
	optimizer := balancer.NewStrategyOptimizer(engine, &spec.Optimizer)
	poller := telemetry.NewPoller(source, system, spec, emitter)

	go poller.Run(ctx)
	go optimizer.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(engine.Status()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	server := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		log.Infow("Serving metrics", "addr", metricsAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("Metrics server failed", "error", err)
		}
	}()

	if spec.Telemetry.Endpoint == "" {
		go runDemoAllocations(ctx, engine, tracker, log)
	}

	<-ctx.Done()
	log.Infow("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Metrics server shutdown failed", "error", err)
	}
}

// demoSamples models a two-GPU host for runs without real hardware.
func demoSamples() []core.DeviceSample {
	return []core.DeviceSample{
		{ID: 0, Name: "demo-gpu-0", MemoryTotalMB: 24576, MemoryUsedMB: 2048, MemoryFreeMB: 22528, UtilizationPct: 15, TemperatureC: 45, PowerDrawW: 80},
		{ID: 1, Name: "demo-gpu-1", MemoryTotalMB: 24576, MemoryUsedMB: 12288, MemoryFreeMB: 12288, UtilizationPct: 55, TemperatureC: 62, PowerDrawW: 180},
	}
}

// runDemoAllocations drives the engine with synthetic requests so the
// demo process has observable activity.
func runDemoAllocations(ctx context.Context, engine *balancer.Engine, tracker *balancer.Tracker, log *zap.SugaredLogger) {
	models := []string{"llama-7b", "llama-13b", "mistral-7b"}
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	i := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			model := models[i%len(models)]
			requestID := fmt.Sprintf("demo-%d", i)
			i++
			decision, err := engine.SelectOptimalDevice(ctx, model, config.Moderate, nil)
			if err != nil {
				log.Errorw("Allocation failed", "error", err)
				continue
			}
			if err := tracker.Allocate(decision.DeviceID, model, requestID); err != nil {
				log.Errorw("Allocate bookkeeping failed", "error", err)
				continue
			}
			processing := 500*time.Millisecond + time.Duration(i%4)*250*time.Millisecond
			time.Sleep(processing)
			if err := tracker.Deallocate(decision.DeviceID, model, requestID, processing.Seconds()); err != nil {
				log.Errorw("Deallocate bookkeeping failed", "error", err)
			}
			log.Infow("Demo allocation", "model", model, "device", decision.DeviceID,
				"strategy", decision.Strategy.String(), "confidence", decision.Confidence)
		}
	}
}
