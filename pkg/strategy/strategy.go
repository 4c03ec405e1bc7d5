package strategy

import (
	"github.com/zvirb/gpu-balancer/pkg/config"
	"github.com/zvirb/gpu-balancer/pkg/core"
)

// Request carries the inputs a policy needs to place one inference request.
type Request struct {
	Model            string
	Complexity       config.Complexity
	RequiredMemoryMB float64
	Category         string // size category of the model; empty if unknown
}

// Policy produces a placement decision from the current candidate set.
// The engine guarantees a non-empty candidate set; policies never fail,
// they substitute documented defaults for missing optional fields.
type Policy interface {
	Name() config.AllocationStrategy
	Select(req *Request, devices []*core.Device) *core.Decision
}

// Policies builds the full policy set, keyed by strategy. The affinity
// policy consults the registry for resident-model categories and the
// affinity map for placement hints.
func Policies(registry core.ModelRegistry, affinity func(model string) (int, bool)) map[config.AllocationStrategy]Policy {
	memory := &MemoryPolicy{}
	return map[config.AllocationStrategy]Policy{
		config.RoundRobin:       &RoundRobinPolicy{},
		config.LeastLoaded:      &LeastLoadedPolicy{},
		config.MemoryBased:      memory,
		config.PerformanceBased: &PerformancePolicy{},
		config.AffinityBased:    &AffinityPolicy{registry: registry, affinity: affinity, fallback: memory},
	}
}
