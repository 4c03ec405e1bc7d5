package config

import "time"

/**
 * Parameters
 */

// default telemetry refresh period
const DefaultTelemetryInterval = 5 * time.Second

// default strategy optimization period
const DefaultOptimizerInterval = 30 * time.Second

// memory used/total ratio above which a device is unavailable
var DefaultMemoryUtilizationThreshold = 0.85

// compute utilization percent above which a device is unavailable
var DefaultUtilizationThreshold = float64(90)

// temperature (Celsius) above which a device is unavailable
var DefaultTemperatureThreshold = float64(85)

// assumed memory requirement for models absent from the registry (GB)
var DefaultModelMemoryGB = float64(8)

// memory capacity of the synthetic device registered when discovery finds none (MB)
var FallbackDeviceMemoryMB = float64(16384)

// name of the synthetic fallback device
const FallbackDeviceName = "fallback-device"

// smoothing factor for the rolling average processing time
var EMAAlpha = 0.1

// allocation history bounds: append up to limit, then trim to the most recent
var DefaultHistoryLimit = 1000
var DefaultHistoryTrimTo = 500

// minimum history records before the optimizer acts
var DefaultOptimizerMinHistory = 20

// most recent history records the optimizer considers
var DefaultOptimizerWindow = 50

// mean confidence a strategy must exceed to become active
var DefaultSwitchConfidence = 0.8

// maximum queueing depth assumed when estimating wait times
var MaxQueueDepth = 32

// default allocation strategy
var DefaultAllocationStrategy AllocationStrategy = MemoryBased
