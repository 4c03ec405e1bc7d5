package config

// All data related to the balancer (telemetry, thresholds, allocation, optimizer)
type BalancerData struct {
	Spec BalancerSpec `yaml:"balancer"`
}

// Specifications for the balancer core
type BalancerSpec struct {
	Telemetry  TelemetrySpec  `yaml:"telemetry"`  // device telemetry polling
	Thresholds ThresholdSpec  `yaml:"thresholds"` // device availability thresholds
	Allocation AllocationSpec `yaml:"allocation"` // allocation engine tunables
	Optimizer  OptimizerSpec  `yaml:"optimizer"`  // strategy optimizer tunables
}

// Specifications for device telemetry collection
type TelemetrySpec struct {
	Endpoint    string `yaml:"endpoint"`    // dcgm-exporter base URL; empty selects the static source
	IntervalSec int    `yaml:"intervalSec"` // refresh period (seconds)
}

// Thresholds beyond which a device is marked unavailable.
// A device is available only if all three hold.
type ThresholdSpec struct {
	MemoryUtilization  float64 `yaml:"memoryUtilization"`  // used/total ratio limit
	UtilizationPercent float64 `yaml:"utilizationPercent"` // compute utilization limit (percent)
	TemperatureC       float64 `yaml:"temperatureC"`       // temperature limit (Celsius)
}

// Specifications for the allocation decision engine
type AllocationSpec struct {
	DefaultStrategy      string  `yaml:"defaultStrategy"`      // strategy used when the caller passes none
	DefaultModelMemoryGB float64 `yaml:"defaultModelMemoryGB"` // assumed memory for unknown models (GB)
	AffinityLearning     bool    `yaml:"affinityLearning"`     // record model placements for the affinity strategy
	HistoryLimit         int     `yaml:"historyLimit"`         // max allocation history records before trimming
	HistoryTrimTo        int     `yaml:"historyTrimTo"`        // records kept after a trim
}

// Specifications for the strategy optimizer
type OptimizerSpec struct {
	IntervalSec      int     `yaml:"intervalSec"`      // optimization period (seconds)
	MinHistory       int     `yaml:"minHistory"`       // records required before optimizing
	Window           int     `yaml:"window"`           // most recent records considered
	SwitchConfidence float64 `yaml:"switchConfidence"` // mean confidence required to switch strategy
}

// Data related to servable models
type ModelData struct {
	Models []ModelSpec `yaml:"models"` // model descriptors
}

// Static descriptor of a servable model
type ModelSpec struct {
	Name     string  `yaml:"name"`     // model identifier
	MemoryGB float64 `yaml:"memoryGB"` // estimated memory requirement (GB)
	Category string  `yaml:"category"` // size category (small, medium, large, ...)
}
