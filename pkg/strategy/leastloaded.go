package strategy

import (
	"fmt"

	"github.com/zvirb/gpu-balancer/pkg/config"
	"github.com/zvirb/gpu-balancer/pkg/core"
)

// LeastLoadedPolicy combines active requests, compute utilization, and
// memory pressure into a single load score and picks the minimum.
type LeastLoadedPolicy struct{}

var _ Policy = (*LeastLoadedPolicy)(nil)

func (p *LeastLoadedPolicy) Name() config.AllocationStrategy {
	return config.LeastLoaded
}

// Load score weights: active requests dominate, then utilization, then memory.
func (p *LeastLoadedPolicy) Score(d *core.Device) float64 {
	return 0.5*float64(d.ActiveRequests) +
		0.3*(d.UtilizationPct/100) +
		0.2*d.MemoryUtilization()
}

func (p *LeastLoadedPolicy) Select(req *Request, devices []*core.Device) *core.Decision {
	scores := make(map[int]float64, len(devices))
	best := devices[0]
	bestLoad := p.Score(best)
	for _, d := range devices {
		load := p.Score(d)
		scores[d.ID] = load
		if load < bestLoad {
			best, bestLoad = d, load
		}
	}
	return &core.Decision{
		DeviceID:   best.ID,
		Strategy:   config.LeastLoaded,
		Reason:     fmt.Sprintf("device %d has lowest load score (%.3f)", best.ID, bestLoad),
		Scores:     scores,
		Confidence: 0.8,
	}
}
