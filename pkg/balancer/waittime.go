package balancer

import (
	"github.com/llm-inferno/queue-analysis/pkg/queue"

	"github.com/zvirb/gpu-balancer/pkg/config"
	"github.com/zvirb/gpu-balancer/pkg/core"
)

// estimateWaitTime predicts the queueing delay (seconds) a new request
// would see on a device, modeling the device as an M/M/1 queue with
// state-dependent service rate derived from the rolling average processing
// time. An idle device or one with no processing history waits 0.
func estimateWaitTime(d *core.Device) float64 {
	if d == nil || d.ActiveRequests == 0 || d.AvgProcessingTime <= 0 {
		return 0
	}

	mu := float32(1 / d.AvgProcessingTime) // req/sec
	maxQueue := config.MaxQueueDepth
	if d.ActiveRequests >= maxQueue {
		maxQueue = d.ActiveRequests + 1
	}
	servRate := []float32{mu}

	qm := queue.NewMM1ModelStateDependent(maxQueue, servRate)
	// infer arrival pressure from current occupancy
	occupancy := float32(d.ActiveRequests) / float32(d.ActiveRequests+1)
	qm.Solve(occupancy*mu, 1)
	if !qm.IsValid() {
		// pessimistic linear fallback
		return float64(d.ActiveRequests) * d.AvgProcessingTime
	}
	return float64(qm.GetAvgWaitTime())
}
