package core

import (
	"fmt"
	"time"

	"github.com/zvirb/gpu-balancer/pkg/config"
)

// Result of one allocation call; immutable once produced
type Decision struct {
	DeviceID          int                       // selected device
	Strategy          config.AllocationStrategy // strategy that produced the decision
	Reason            string                    // human-readable justification
	Scores            map[int]float64           // per-device scores, for observability
	EstimatedWaitTime float64                   // expected queueing delay on the device (seconds)
	Confidence        float64                   // [0,1]
}

func (d *Decision) String() string {
	return fmt.Sprintf("Decision: device=%d; strategy=%s; confidence=%v; wait=%v; reason=%s",
		d.DeviceID, d.Strategy, d.Confidence, d.EstimatedWaitTime, d.Reason)
}

// Compact record of one allocation decision, kept in bounded history
type Record struct {
	Timestamp  time.Time
	DeviceID   int
	Model      string
	Complexity config.Complexity
	Strategy   config.AllocationStrategy
	Confidence float64
}
