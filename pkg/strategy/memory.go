package strategy

import (
	"fmt"
	"math"

	"github.com/zvirb/gpu-balancer/pkg/config"
	"github.com/zvirb/gpu-balancer/pkg/core"
)

// MemoryPolicy places a request on the device whose free-memory ratio is
// closest to a target headroom. The score peaks around 70% utilized devices,
// steering away from both nearly-empty and nearly-full devices to limit
// fragmentation while preserving headroom. When no device has enough free
// memory it falls back to the single largest free amount at reduced
// confidence, signalling a degraded placement.
type MemoryPolicy struct{}

var _ Policy = (*MemoryPolicy)(nil)

// free-memory ratio the score rewards most
const targetFreeRatio = 0.3

func (p *MemoryPolicy) Name() config.AllocationStrategy {
	return config.MemoryBased
}

func (p *MemoryPolicy) Score(d *core.Device) float64 {
	if d.MemoryTotalMB <= 0 {
		return 0
	}
	freeRatio := d.MemoryFreeMB / d.MemoryTotalMB
	return freeRatio * (1 - math.Abs(freeRatio-targetFreeRatio))
}

func (p *MemoryPolicy) Select(req *Request, devices []*core.Device) *core.Decision {
	scores := make(map[int]float64, len(devices))

	var best *core.Device
	bestScore := math.Inf(-1)
	for _, d := range devices {
		if d.MemoryFreeMB < req.RequiredMemoryMB {
			continue
		}
		score := p.Score(d)
		scores[d.ID] = score
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	if best != nil {
		return &core.Decision{
			DeviceID:   best.ID,
			Strategy:   config.MemoryBased,
			Reason:     fmt.Sprintf("device %d has best memory headroom score (%.3f)", best.ID, bestScore),
			Scores:     scores,
			Confidence: 0.9,
		}
	}

	// no device has sufficient free memory; degrade to the largest free amount
	best = devices[0]
	for _, d := range devices {
		scores[d.ID] = d.MemoryFreeMB
		if d.MemoryFreeMB > best.MemoryFreeMB {
			best = d
		}
	}
	return &core.Decision{
		DeviceID:   best.ID,
		Strategy:   config.MemoryBased,
		Reason:     fmt.Sprintf("no device has %.0f MB free; device %d has most free memory (%.0f MB)", req.RequiredMemoryMB, best.ID, best.MemoryFreeMB),
		Scores:     scores,
		Confidence: 0.3,
	}
}
