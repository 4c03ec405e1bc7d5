package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ReadBalancerSpec loads a balancer configuration from a yaml file and
// fills in defaults for omitted fields.
func ReadBalancerSpec(path string) (*BalancerSpec, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading balancer config %s: %w", path, err)
	}
	data := &BalancerData{}
	if err := yaml.Unmarshal(bytes, data); err != nil {
		return nil, fmt.Errorf("parsing balancer config %s: %w", path, err)
	}
	spec := &data.Spec
	spec.ApplyDefaults()
	return spec, nil
}

// ReadModelData loads model descriptors from a yaml file.
func ReadModelData(path string) (*ModelData, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model data %s: %w", path, err)
	}
	data := &ModelData{}
	if err := yaml.Unmarshal(bytes, data); err != nil {
		return nil, fmt.Errorf("parsing model data %s: %w", path, err)
	}
	return data, nil
}

// DefaultBalancerSpec returns a spec populated entirely from defaults.
func DefaultBalancerSpec() *BalancerSpec {
	spec := &BalancerSpec{}
	spec.ApplyDefaults()
	return spec
}

// ApplyDefaults fills zero-valued fields with package defaults.
func (s *BalancerSpec) ApplyDefaults() {
	if s.Telemetry.IntervalSec <= 0 {
		s.Telemetry.IntervalSec = int(DefaultTelemetryInterval.Seconds())
	}
	if s.Thresholds.MemoryUtilization <= 0 {
		s.Thresholds.MemoryUtilization = DefaultMemoryUtilizationThreshold
	}
	if s.Thresholds.UtilizationPercent <= 0 {
		s.Thresholds.UtilizationPercent = DefaultUtilizationThreshold
	}
	if s.Thresholds.TemperatureC <= 0 {
		s.Thresholds.TemperatureC = DefaultTemperatureThreshold
	}
	if s.Allocation.DefaultStrategy == "" {
		s.Allocation.DefaultStrategy = DefaultAllocationStrategy.String()
	}
	if s.Allocation.DefaultModelMemoryGB <= 0 {
		s.Allocation.DefaultModelMemoryGB = DefaultModelMemoryGB
	}
	if s.Allocation.HistoryLimit <= 0 {
		s.Allocation.HistoryLimit = DefaultHistoryLimit
	}
	if s.Allocation.HistoryTrimTo <= 0 {
		s.Allocation.HistoryTrimTo = DefaultHistoryTrimTo
	}
	if s.Optimizer.IntervalSec <= 0 {
		s.Optimizer.IntervalSec = int(DefaultOptimizerInterval.Seconds())
	}
	if s.Optimizer.MinHistory <= 0 {
		s.Optimizer.MinHistory = DefaultOptimizerMinHistory
	}
	if s.Optimizer.Window <= 0 {
		s.Optimizer.Window = DefaultOptimizerWindow
	}
	if s.Optimizer.SwitchConfidence <= 0 {
		s.Optimizer.SwitchConfidence = DefaultSwitchConfidence
	}
}
