package balancer

import (
	"github.com/zvirb/gpu-balancer/internal/logger"
	"github.com/zvirb/gpu-balancer/internal/metrics"
	"github.com/zvirb/gpu-balancer/pkg/core"
)

// Tracker brackets actual request execution on a device, decoupled from
// the allocation decision itself. The dispatcher calls Allocate immediately
// before invoking the model and Deallocate immediately after.
type Tracker struct {
	system  *core.System
	emitter *metrics.MetricsEmitter
}

func NewTracker(system *core.System, emitter *metrics.MetricsEmitter) *Tracker {
	return &Tracker{system: system, emitter: emitter}
}

// Allocate marks the start of a request on a device.
func (t *Tracker) Allocate(deviceID int, modelName string, requestID string) error {
	if err := t.system.Allocate(deviceID, modelName); err != nil {
		return err
	}
	logger.Log.Debugw("Request allocated", "device", deviceID, "model", modelName, "request", requestID)
	t.emitDevice(deviceID)
	return nil
}

// Deallocate marks the end of a request, folding the observed processing
// time into the device's rolling average.
func (t *Tracker) Deallocate(deviceID int, modelName string, requestID string, processingTimeSec float64) error {
	if err := t.system.Deallocate(deviceID, modelName, processingTimeSec); err != nil {
		return err
	}
	logger.Log.Debugw("Request deallocated", "device", deviceID, "model", modelName, "request", requestID, "seconds", processingTimeSec)
	t.emitDevice(deviceID)
	return nil
}

func (t *Tracker) emitDevice(deviceID int) {
	if t.emitter == nil {
		return
	}
	if d := t.system.Device(deviceID); d != nil {
		t.emitter.EmitDeviceMetrics(d)
	}
}
