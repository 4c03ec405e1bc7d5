package balancer

import (
	"context"
	"time"

	"gonum.org/v1/gonum/stat"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/zvirb/gpu-balancer/internal/logger"
	"github.com/zvirb/gpu-balancer/pkg/config"
)

// StrategyOptimizer periodically analyzes recent allocation outcomes and
// switches the active strategy when another consistently yields
// higher-confidence placements. Advisory only: a switch affects future
// decisions, never in-flight ones.
type StrategyOptimizer struct {
	engine *Engine
	spec   *config.OptimizerSpec
}

func NewStrategyOptimizer(engine *Engine, spec *config.OptimizerSpec) *StrategyOptimizer {
	if spec == nil {
		spec = &config.DefaultBalancerSpec().Optimizer
	}
	return &StrategyOptimizer{engine: engine, spec: spec}
}

// Run executes Optimize at the configured interval until the context is
// cancelled. Errors are logged and the loop continues.
func (o *StrategyOptimizer) Run(ctx context.Context) {
	interval := time.Duration(o.spec.IntervalSec) * time.Second
	wait.UntilWithContext(ctx, func(ctx context.Context) {
		if err := o.Optimize(ctx); err != nil {
			logger.Log.Errorw("Strategy optimization failed", "error", err)
		}
	}, interval)
}

// Optimize computes the mean decision confidence per strategy over the
// most recent window of allocation records and switches the active
// strategy if a different one clears the confidence bar.
func (o *StrategyOptimizer) Optimize(ctx context.Context) error {
	records := o.engine.System().RecentHistory(o.spec.Window)
	if len(records) < o.spec.MinHistory {
		return nil
	}

	confidences := map[config.AllocationStrategy][]float64{}
	for _, rec := range records {
		confidences[rec.Strategy] = append(confidences[rec.Strategy], rec.Confidence)
	}

	best := o.engine.ActiveStrategy()
	bestMean := -1.0
	for _, s := range config.AllStrategies() {
		values, exists := confidences[s]
		if !exists {
			continue
		}
		mean := stat.Mean(values, nil)
		if mean > bestMean {
			best, bestMean = s, mean
		}
	}

	active := o.engine.ActiveStrategy()
	if best != active && bestMean > o.spec.SwitchConfidence {
		logger.Log.Infow("Optimizer switching strategy",
			"from", active.String(),
			"to", best.String(),
			"meanConfidence", bestMean,
			"records", len(records))
		o.engine.SetActiveStrategy(best)
	}
	return nil
}
