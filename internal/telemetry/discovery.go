package telemetry

import (
	"context"

	"github.com/zvirb/gpu-balancer/internal/logger"
	"github.com/zvirb/gpu-balancer/pkg/config"
	"github.com/zvirb/gpu-balancer/pkg/core"
)

// Discoverer enumerates accelerator devices and populates the device
// table with static capacity. Devices start available; the first telemetry
// refresh recomputes availability.
type Discoverer struct {
	source Source
	system *core.System
}

func NewDiscoverer(source Source, system *core.System) *Discoverer {
	return &Discoverer{source: source, system: system}
}

// Discover queries the telemetry source once and registers the devices it
// reports. If the query fails or yields zero devices, exactly one synthetic
// device with conservative capacity is registered instead, so the rest of
// the system always has a placement target. Re-invocation replaces entries
// with the same ids.
func (d *Discoverer) Discover(ctx context.Context) error {
	samples, err := d.source.Sample(ctx)
	if err != nil || len(samples) == 0 {
		if err != nil {
			logger.Log.Warnw("Device discovery failed, registering fallback device", "error", err)
		} else {
			logger.Log.Warnw("Device discovery found no devices, registering fallback device")
		}
		d.system.RegisterDevice(core.NewDevice(0, config.FallbackDeviceName, config.FallbackDeviceMemoryMB))
		return nil
	}
	d.system.SetDevices(samples)
	logger.Log.Infow("Discovered devices", "count", len(samples))
	return nil
}
