package balancer

import (
	"time"

	"github.com/zvirb/gpu-balancer/pkg/core"
)

// Status is a read-only diagnostic snapshot of the balancer, for
// observability and dashboards.
type Status struct {
	Timestamp      time.Time      `json:"timestamp"`
	ActiveStrategy string         `json:"activeStrategy"`
	Devices        []core.Device  `json:"devices"`
	Affinity       map[string]int `json:"affinity"`
	HistoryLen     int            `json:"historyLen"`
}

// Status returns a deep snapshot of all device states, the active
// strategy, and the affinity map. Two consecutive calls with no
// intervening mutation return identical snapshots.
func (e *Engine) Status() *Status {
	devices := e.system.Devices()
	out := make([]core.Device, len(devices))
	for i, d := range devices {
		out[i] = *d
	}
	return &Status{
		Timestamp:      e.system.Now(),
		ActiveStrategy: e.ActiveStrategy().String(),
		Devices:        out,
		Affinity:       e.system.AffinityMap(),
		HistoryLen:     e.system.HistoryLen(),
	}
}
