package balancer

import (
	"context"
	"errors"
	"sync"

	"github.com/zvirb/gpu-balancer/internal/logger"
	"github.com/zvirb/gpu-balancer/internal/metrics"
	"github.com/zvirb/gpu-balancer/pkg/config"
	"github.com/zvirb/gpu-balancer/pkg/core"
	"github.com/zvirb/gpu-balancer/pkg/strategy"
)

// ErrNoDevices is the single fatal condition callers must handle: the
// device table is empty after discovery was attempted.
var ErrNoDevices = errors.New("no devices registered")

// DiscoverFunc populates the device table; invoked once lazily if the
// table is empty at the first allocation call.
type DiscoverFunc func(ctx context.Context) error

// Engine is the single entry point for allocation decisions. It filters
// eligible devices, dispatches to the active strategy, and records the
// decision for the optimizer. All decision-making is serialized on one
// lock so concurrent callers never race on transient device state.
type Engine struct {
	mu       sync.Mutex
	system   *core.System
	registry core.ModelRegistry
	spec     *config.BalancerSpec
	policies map[config.AllocationStrategy]strategy.Policy
	active   config.AllocationStrategy

	discover   DiscoverFunc
	discovered bool

	emitter *metrics.MetricsEmitter
}

func NewEngine(system *core.System, registry core.ModelRegistry, spec *config.BalancerSpec, emitter *metrics.MetricsEmitter) *Engine {
	if spec == nil {
		spec = config.DefaultBalancerSpec()
	}
	return &Engine{
		system:   system,
		registry: registry,
		spec:     spec,
		policies: strategy.Policies(registry, system.Affinity),
		active:   config.AllocationStrategyEnum(spec.Allocation.DefaultStrategy),
		emitter:  emitter,
	}
}

// SetDiscoverer installs the device discovery hook.
func (e *Engine) SetDiscoverer(fn DiscoverFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.discover = fn
}

func (e *Engine) System() *core.System {
	return e.system
}

func (e *Engine) ActiveStrategy() config.AllocationStrategy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// SetActiveStrategy switches the strategy used for future decisions.
// In-flight decisions are unaffected.
func (e *Engine) SetActiveStrategy(s config.AllocationStrategy) {
	e.mu.Lock()
	previous := e.active
	e.active = s
	e.mu.Unlock()
	if previous != s {
		logger.Log.Infow("Active strategy switched", "from", previous.String(), "to", s.String())
		if e.emitter != nil {
			e.emitter.EmitStrategySwitch(previous.String(), s.String())
		}
	}
}

// SelectOptimalDevice decides which device should serve one inference
// request. It always returns a decision, possibly at reduced confidence,
// unless zero devices are registered.
func (e *Engine) SelectOptimalDevice(ctx context.Context, modelName string, complexity config.Complexity, override *config.AllocationStrategy) (*core.Decision, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureDiscovered(ctx); err != nil {
		logger.Log.Errorw("Device discovery failed", "error", err)
	}
	if e.system.DeviceCount() == 0 {
		return nil, ErrNoDevices
	}

	req := e.buildRequest(modelName, complexity)
	devices := e.system.Devices()

	eligible := make([]*core.Device, 0, len(devices))
	for _, d := range devices {
		if d.Available && d.MemoryFreeMB >= req.RequiredMemoryMB {
			eligible = append(eligible, d)
		}
	}
	degraded := false
	if len(eligible) == 0 {
		// widen to all known devices rather than failing
		eligible = devices
		degraded = true
	}

	active := e.active
	if override != nil {
		active = *override
	}
	policy, exists := e.policies[active]
	if !exists {
		policy = e.policies[config.DefaultAllocationStrategy]
	}

	decision := policy.Select(req, eligible)
	decision.EstimatedWaitTime = estimateWaitTime(deviceByID(eligible, decision.DeviceID))
	if degraded {
		decision.Reason = "no eligible devices, widened to all; " + decision.Reason
	}

	e.system.AppendRecord(core.Record{
		DeviceID:   decision.DeviceID,
		Model:      modelName,
		Complexity: complexity,
		Strategy:   decision.Strategy,
		Confidence: decision.Confidence,
	})
	if e.spec.Allocation.AffinityLearning {
		e.system.SetAffinity(modelName, decision.DeviceID)
	}
	if e.emitter != nil {
		e.emitter.EmitAllocationDecision(decision)
	}
	logger.Log.Debugw("Allocation decision",
		"model", modelName,
		"complexity", complexity.String(),
		"device", decision.DeviceID,
		"strategy", decision.Strategy.String(),
		"confidence", decision.Confidence,
		"degraded", degraded)
	return decision, nil
}

func (e *Engine) ensureDiscovered(ctx context.Context) error {
	if e.discovered || e.discover == nil {
		return nil
	}
	if e.system.DeviceCount() > 0 {
		e.discovered = true
		return nil
	}
	err := e.discover(ctx)
	if err == nil {
		e.discovered = true
	}
	return err
}

func (e *Engine) buildRequest(modelName string, complexity config.Complexity) *strategy.Request {
	memoryGB := e.spec.Allocation.DefaultModelMemoryGB
	category := ""
	if e.registry != nil {
		if info := e.registry.Get(modelName); info != nil {
			memoryGB = info.MemoryGB
			category = info.Category
		}
	}
	return &strategy.Request{
		Model:            modelName,
		Complexity:       complexity,
		RequiredMemoryMB: memoryGB * 1024,
		Category:         category,
	}
}

func deviceByID(devices []*core.Device, id int) *core.Device {
	for _, d := range devices {
		if d.ID == id {
			return d
		}
	}
	return nil
}
