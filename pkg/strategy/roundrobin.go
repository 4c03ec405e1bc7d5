package strategy

import (
	"fmt"

	"github.com/zvirb/gpu-balancer/pkg/config"
	"github.com/zvirb/gpu-balancer/pkg/core"
)

// RoundRobinPolicy spreads requests by picking the device with the fewest
// total requests processed so far. Ties go to the first device in id order.
type RoundRobinPolicy struct{}

var _ Policy = (*RoundRobinPolicy)(nil)

func (p *RoundRobinPolicy) Name() config.AllocationStrategy {
	return config.RoundRobin
}

func (p *RoundRobinPolicy) Select(req *Request, devices []*core.Device) *core.Decision {
	scores := make(map[int]float64, len(devices))
	best := devices[0]
	for _, d := range devices {
		scores[d.ID] = float64(d.TotalProcessed)
		if d.TotalProcessed < best.TotalProcessed {
			best = d
		}
	}
	return &core.Decision{
		DeviceID:   best.ID,
		Strategy:   config.RoundRobin,
		Reason:     fmt.Sprintf("device %d has fewest processed requests (%d)", best.ID, best.TotalProcessed),
		Scores:     scores,
		Confidence: 0.7,
	}
}
