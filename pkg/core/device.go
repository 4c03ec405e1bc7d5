package core

import (
	"fmt"
	"sort"
	"time"

	"github.com/zvirb/gpu-balancer/pkg/config"
)

// An accelerator device used for model inference
//   - one physical GPU unit (card)
type Device struct {
	ID   int
	Name string

	// static capacity
	MemoryTotalMB float64

	// live telemetry
	MemoryUsedMB   float64
	MemoryFreeMB   float64
	UtilizationPct float64
	TemperatureC   float64
	PowerDrawW     float64
	LastUpdated    time.Time

	// session bookkeeping
	LoadedModels      map[string]bool
	ActiveRequests    int
	TotalProcessed    int64
	AvgProcessingTime float64 // seconds
	Available         bool
}

// A telemetry reading for one device, as reported by the hardware source.
// Unsupported fields are reported as zero.
type DeviceSample struct {
	ID             int
	Name           string
	MemoryTotalMB  float64
	MemoryUsedMB   float64
	MemoryFreeMB   float64
	UtilizationPct float64
	TemperatureC   float64
	PowerDrawW     float64
}

func NewDevice(id int, name string, memoryTotalMB float64) *Device {
	return &Device{
		ID:            id,
		Name:          name,
		MemoryTotalMB: memoryTotalMB,
		MemoryFreeMB:  memoryTotalMB,
		LoadedModels:  map[string]bool{},
		Available:     true,
	}
}

// NewDeviceFromSample creates a device at discovery time. The device starts
// available; the first telemetry refresh recomputes availability.
func NewDeviceFromSample(s *DeviceSample) *Device {
	d := NewDevice(s.ID, s.Name, s.MemoryTotalMB)
	d.MemoryUsedMB = s.MemoryUsedMB
	d.MemoryFreeMB = s.MemoryFreeMB
	d.UtilizationPct = s.UtilizationPct
	d.TemperatureC = s.TemperatureC
	d.PowerDrawW = s.PowerDrawW
	return d
}

// Refresh applies a telemetry sample and recomputes availability against the
// thresholds. A device is available only if all three thresholds hold.
func (d *Device) Refresh(s *DeviceSample, th *config.ThresholdSpec, now time.Time) {
	if s.MemoryTotalMB > 0 {
		d.MemoryTotalMB = s.MemoryTotalMB
	}
	d.MemoryUsedMB = s.MemoryUsedMB
	d.MemoryFreeMB = s.MemoryFreeMB
	d.UtilizationPct = s.UtilizationPct
	d.TemperatureC = s.TemperatureC
	d.PowerDrawW = s.PowerDrawW
	d.LastUpdated = now

	d.Available = d.MemoryUtilization() < th.MemoryUtilization &&
		d.UtilizationPct < th.UtilizationPercent &&
		d.TemperatureC < th.TemperatureC
}

// MemoryUtilization returns the used/total memory ratio; 0 if capacity is unknown.
func (d *Device) MemoryUtilization() float64 {
	if d.MemoryTotalMB <= 0 {
		return 0
	}
	return d.MemoryUsedMB / d.MemoryTotalMB
}

func (d *Device) HasModel(name string) bool {
	return d.LoadedModels[name]
}

// ModelNames returns the resident model identifiers in sorted order.
func (d *Device) ModelNames() []string {
	names := make([]string, 0, len(d.LoadedModels))
	for name := range d.LoadedModels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the device.
func (d *Device) Clone() *Device {
	c := *d
	c.LoadedModels = make(map[string]bool, len(d.LoadedModels))
	for name := range d.LoadedModels {
		c.LoadedModels[name] = true
	}
	return &c
}

func (d *Device) String() string {
	return fmt.Sprintf("Device: id=%d; name=%s; memTotal=%v; memUsed=%v; memFree=%v; util=%v; temp=%v; power=%v; active=%d; total=%d; avgTime=%v; available=%v; models=%v",
		d.ID, d.Name, d.MemoryTotalMB, d.MemoryUsedMB, d.MemoryFreeMB, d.UtilizationPct,
		d.TemperatureC, d.PowerDrawW, d.ActiveRequests, d.TotalProcessed, d.AvgProcessingTime,
		d.Available, d.ModelNames())
}
