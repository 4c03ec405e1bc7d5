package core

import (
	"testing"
	"time"

	"github.com/zvirb/gpu-balancer/pkg/config"
)

func testThresholds() *config.ThresholdSpec {
	return &config.ThresholdSpec{
		MemoryUtilization:  0.85,
		UtilizationPercent: 90,
		TemperatureC:       85,
	}
}

func TestDevice_Refresh_Availability(t *testing.T) {
	tests := []struct {
		name      string
		sample    DeviceSample
		available bool
	}{
		{
			name:      "all thresholds hold",
			sample:    DeviceSample{MemoryTotalMB: 1000, MemoryUsedMB: 500, MemoryFreeMB: 500, UtilizationPct: 40, TemperatureC: 60},
			available: true,
		},
		{
			name:      "memory ratio at 0.86 trips regardless of other fields",
			sample:    DeviceSample{MemoryTotalMB: 1000, MemoryUsedMB: 860, MemoryFreeMB: 140, UtilizationPct: 10, TemperatureC: 30},
			available: false,
		},
		{
			name:      "memory ratio just below threshold",
			sample:    DeviceSample{MemoryTotalMB: 1000, MemoryUsedMB: 840, MemoryFreeMB: 160, UtilizationPct: 10, TemperatureC: 30},
			available: true,
		},
		{
			name:      "utilization at threshold trips",
			sample:    DeviceSample{MemoryTotalMB: 1000, MemoryUsedMB: 100, MemoryFreeMB: 900, UtilizationPct: 90, TemperatureC: 30},
			available: false,
		},
		{
			name:      "temperature at threshold trips",
			sample:    DeviceSample{MemoryTotalMB: 1000, MemoryUsedMB: 100, MemoryFreeMB: 900, UtilizationPct: 10, TemperatureC: 85},
			available: false,
		},
		{
			name:      "missing telemetry fields are zero, device stays available",
			sample:    DeviceSample{MemoryTotalMB: 1000},
			available: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDevice(0, "gpu-0", 1000)
			now := time.Now()
			d.Refresh(&tt.sample, testThresholds(), now)
			if d.Available != tt.available {
				t.Errorf("Available = %v, want %v", d.Available, tt.available)
			}
			if !d.LastUpdated.Equal(now) {
				t.Errorf("LastUpdated = %v, want %v", d.LastUpdated, now)
			}
		})
	}
}

func TestDevice_Refresh_KeepsCapacityWhenSampleOmitsIt(t *testing.T) {
	d := NewDevice(0, "gpu-0", 1000)
	d.Refresh(&DeviceSample{MemoryUsedMB: 100, MemoryFreeMB: 900}, testThresholds(), time.Now())
	if d.MemoryTotalMB != 1000 {
		t.Errorf("MemoryTotalMB = %v, want 1000", d.MemoryTotalMB)
	}
}

func TestDevice_MemoryUtilization(t *testing.T) {
	d := NewDevice(0, "gpu-0", 1000)
	d.MemoryUsedMB = 250
	if got := d.MemoryUtilization(); got != 0.25 {
		t.Errorf("MemoryUtilization() = %v, want 0.25", got)
	}

	unknown := NewDevice(1, "gpu-1", 0)
	unknown.MemoryUsedMB = 250
	if got := unknown.MemoryUtilization(); got != 0 {
		t.Errorf("MemoryUtilization() with zero capacity = %v, want 0", got)
	}
}

func TestDevice_Clone_IsDeep(t *testing.T) {
	d := NewDevice(0, "gpu-0", 1000)
	d.LoadedModels["m1"] = true

	c := d.Clone()
	c.LoadedModels["m2"] = true
	c.ActiveRequests = 5

	if d.HasModel("m2") {
		t.Error("mutating the clone's model set leaked into the original")
	}
	if d.ActiveRequests != 0 {
		t.Errorf("ActiveRequests = %d, want 0", d.ActiveRequests)
	}
}

func TestDevice_ModelNames_Sorted(t *testing.T) {
	d := NewDevice(0, "gpu-0", 1000)
	d.LoadedModels["zeta"] = true
	d.LoadedModels["alpha"] = true

	names := d.ModelNames()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Errorf("ModelNames() = %v, want [alpha zeta]", names)
	}
}
