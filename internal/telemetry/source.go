package telemetry

import (
	"context"
	"sync"

	"github.com/zvirb/gpu-balancer/pkg/core"
)

// Source queries hardware telemetry for all devices in one batched call.
// Fields unsupported by the hardware are reported as zero.
type Source interface {
	Sample(ctx context.Context) ([]core.DeviceSample, error)
}

// StaticSource serves a fixed set of samples; used in demos and tests
// when no exporter endpoint is available.
type StaticSource struct {
	mu      sync.RWMutex
	samples []core.DeviceSample
}

var _ Source = (*StaticSource)(nil)

func NewStaticSource(samples []core.DeviceSample) *StaticSource {
	return &StaticSource{samples: samples}
}

// Set replaces the served samples.
func (s *StaticSource) Set(samples []core.DeviceSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = samples
}

func (s *StaticSource) Sample(ctx context.Context) ([]core.DeviceSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.DeviceSample, len(s.samples))
	copy(out, s.samples)
	return out, nil
}
