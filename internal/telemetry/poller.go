package telemetry

import (
	"context"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/zvirb/gpu-balancer/internal/logger"
	"github.com/zvirb/gpu-balancer/internal/metrics"
	"github.com/zvirb/gpu-balancer/pkg/config"
	"github.com/zvirb/gpu-balancer/pkg/core"
)

// ScrapeBackoff bounds retries within one refresh cycle.
var ScrapeBackoff = wait.Backoff{
	Duration: 500 * time.Millisecond,
	Factor:   2.0,
	Jitter:   0.1,
	Steps:    3,
}

// Poller keeps live device fields fresh on a fixed interval for the
// lifetime of the process. A failed cycle is logged and skipped; stale
// data persists until the next successful cycle.
type Poller struct {
	source     Source
	system     *core.System
	thresholds *config.ThresholdSpec
	interval   time.Duration
	emitter    *metrics.MetricsEmitter
}

func NewPoller(source Source, system *core.System, spec *config.BalancerSpec, emitter *metrics.MetricsEmitter) *Poller {
	if spec == nil {
		spec = config.DefaultBalancerSpec()
	}
	return &Poller{
		source:     source,
		system:     system,
		thresholds: &spec.Thresholds,
		interval:   time.Duration(spec.Telemetry.IntervalSec) * time.Second,
		emitter:    emitter,
	}
}

// Run refreshes telemetry at the configured interval until the context is
// cancelled. The first refresh runs immediately.
func (p *Poller) Run(ctx context.Context) {
	wait.UntilWithContext(ctx, p.RefreshAll, p.interval)
}

// RefreshAll performs one telemetry cycle: sample with bounded retry,
// apply to the device table, and publish device gauges.
func (p *Poller) RefreshAll(ctx context.Context) {
	var samples []core.DeviceSample
	err := wait.ExponentialBackoffWithContext(ctx, ScrapeBackoff, func(ctx context.Context) (bool, error) {
		s, sampleErr := p.source.Sample(ctx)
		if sampleErr != nil {
			logger.Log.Debugw("Telemetry sample failed, retrying", "error", sampleErr)
			return false, nil
		}
		samples = s
		return true, nil
	})
	if err != nil {
		logger.Log.Errorw("Telemetry refresh failed, keeping stale data", "error", err)
		if p.emitter != nil {
			p.emitter.EmitTelemetryError()
		}
		return
	}

	p.system.ApplyTelemetry(samples, p.thresholds)
	if p.emitter != nil {
		for _, d := range p.system.Devices() {
			p.emitter.EmitDeviceMetrics(d)
		}
	}
	logger.Log.Debugw("Telemetry refresh complete", "devices", len(samples))
}
