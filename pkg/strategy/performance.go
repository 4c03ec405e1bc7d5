package strategy

import (
	"fmt"

	"github.com/zvirb/gpu-balancer/pkg/config"
	"github.com/zvirb/gpu-balancer/pkg/core"
)

// PerformancePolicy favors devices with a fast processing-time history,
// penalized by current utilization. Devices with no history get an
// optimistic time score of 1.0.
type PerformancePolicy struct{}

var _ Policy = (*PerformancePolicy)(nil)

func (p *PerformancePolicy) Name() config.AllocationStrategy {
	return config.PerformanceBased
}

func (p *PerformancePolicy) Score(d *core.Device) float64 {
	timeScore := 1.0
	if d.AvgProcessingTime > 0 {
		timeScore = 1 / (1 + d.AvgProcessingTime)
	}
	return timeScore * (1 - 0.5*(d.UtilizationPct/100))
}

func (p *PerformancePolicy) Select(req *Request, devices []*core.Device) *core.Decision {
	scores := make(map[int]float64, len(devices))
	best := devices[0]
	bestScore := p.Score(best)
	for _, d := range devices {
		score := p.Score(d)
		scores[d.ID] = score
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return &core.Decision{
		DeviceID:   best.ID,
		Strategy:   config.PerformanceBased,
		Reason:     fmt.Sprintf("device %d has best performance score (%.3f), avg time %.3fs", best.ID, bestScore, best.AvgProcessingTime),
		Scores:     scores,
		Confidence: 0.85,
	}
}
