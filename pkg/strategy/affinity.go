package strategy

import (
	"fmt"
	"math"

	"github.com/zvirb/gpu-balancer/pkg/config"
	"github.com/zvirb/gpu-balancer/pkg/core"
)

// AffinityPolicy rewards devices that already host the requested model
// (avoiding a reload), partially rewards devices hosting models of the same
// size category, and adds a bonus for sufficient free memory. The affinity
// map contributes the last known placement as a hint with the same weight
// as residency. When no device has a non-zero score the policy delegates
// to the memory policy.
type AffinityPolicy struct {
	registry core.ModelRegistry
	affinity func(model string) (int, bool)
	fallback Policy
}

var _ Policy = (*AffinityPolicy)(nil)

// affinity score weights
const (
	exactModelWeight   = 1.0
	sameCategoryWeight = 0.3
	freeMemoryWeight   = 0.5
)

func (p *AffinityPolicy) Name() config.AllocationStrategy {
	return config.AffinityBased
}

func (p *AffinityPolicy) Select(req *Request, devices []*core.Device) *core.Decision {
	hintID, hasHint := -1, false
	if p.affinity != nil {
		hintID, hasHint = p.affinity(req.Model)
	}

	scores := make(map[int]float64, len(devices))
	var best *core.Device
	bestScore := math.Inf(-1)
	for _, d := range devices {
		score := 0.0
		if d.HasModel(req.Model) || (hasHint && hintID == d.ID) {
			score += exactModelWeight
		}
		if req.Category != "" && p.registry != nil {
			for _, name := range d.ModelNames() {
				if name == req.Model {
					continue
				}
				if info := p.registry.Get(name); info != nil && info.Category == req.Category {
					score += sameCategoryWeight
				}
			}
		}
		if score > 0 && d.MemoryFreeMB >= req.RequiredMemoryMB {
			score += freeMemoryWeight
		}
		scores[d.ID] = score
		if score > bestScore {
			best, bestScore = d, score
		}
	}

	if bestScore <= 0 {
		// nothing to gain from affinity
		decision := p.fallback.Select(req, devices)
		decision.Strategy = config.AffinityBased
		decision.Reason = "no affinity found; " + decision.Reason
		return decision
	}
	return &core.Decision{
		DeviceID:   best.ID,
		Strategy:   config.AffinityBased,
		Reason:     fmt.Sprintf("device %d has best affinity score (%.1f) for model %s", best.ID, bestScore, req.Model),
		Scores:     scores,
		Confidence: 0.9,
	}
}
