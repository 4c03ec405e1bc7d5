package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zvirb/gpu-balancer/pkg/core"
)

var (
	allocationDecisionsTotal *prometheus.CounterVec
	decisionConfidence       *prometheus.GaugeVec
	strategySwitchesTotal    *prometheus.CounterVec
	telemetryErrorsTotal     prometheus.Counter

	deviceUtilization   *prometheus.GaugeVec
	deviceMemoryUsedMB  *prometheus.GaugeVec
	deviceMemoryFreeMB  *prometheus.GaugeVec
	deviceTemperature   *prometheus.GaugeVec
	devicePowerDraw     *prometheus.GaugeVec
	deviceActiveReqs    *prometheus.GaugeVec
	deviceAvailable     *prometheus.GaugeVec
	deviceTotalRequests *prometheus.GaugeVec
)

// InitMetrics registers all custom metrics with the provided registry
func InitMetrics(registry prometheus.Registerer) {
	allocationDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpubalancer_allocation_decisions_total",
			Help: "Total number of allocation decisions",
		},
		[]string{"strategy", "device"},
	)
	decisionConfidence = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gpubalancer_decision_confidence",
			Help: "Confidence of the most recent allocation decision per strategy",
		},
		[]string{"strategy"},
	)
	strategySwitchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpubalancer_strategy_switches_total",
			Help: "Total number of active strategy switches by the optimizer",
		},
		[]string{"from", "to"},
	)
	telemetryErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gpubalancer_telemetry_errors_total",
			Help: "Total number of failed telemetry refresh cycles",
		},
	)
	deviceUtilization = newDeviceGauge("gpubalancer_device_utilization_percent", "Compute utilization per device")
	deviceMemoryUsedMB = newDeviceGauge("gpubalancer_device_memory_used_mb", "Memory used per device (MB)")
	deviceMemoryFreeMB = newDeviceGauge("gpubalancer_device_memory_free_mb", "Memory free per device (MB)")
	deviceTemperature = newDeviceGauge("gpubalancer_device_temperature_celsius", "Temperature per device (Celsius)")
	devicePowerDraw = newDeviceGauge("gpubalancer_device_power_draw_watts", "Power draw per device (Watts)")
	deviceActiveReqs = newDeviceGauge("gpubalancer_device_active_requests", "In-flight requests per device")
	deviceAvailable = newDeviceGauge("gpubalancer_device_available", "Device availability (1 available, 0 unavailable)")
	deviceTotalRequests = newDeviceGauge("gpubalancer_device_requests_total", "Cumulative requests served per device")

	registry.MustRegister(
		allocationDecisionsTotal,
		decisionConfidence,
		strategySwitchesTotal,
		telemetryErrorsTotal,
		deviceUtilization,
		deviceMemoryUsedMB,
		deviceMemoryFreeMB,
		deviceTemperature,
		devicePowerDraw,
		deviceActiveReqs,
		deviceAvailable,
		deviceTotalRequests,
	)
}

func newDeviceGauge(name, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: name, Help: help},
		[]string{"device"},
	)
}

// InitMetricsAndEmitter registers metrics with Prometheus and creates a metrics emitter
func InitMetricsAndEmitter(registry prometheus.Registerer) *MetricsEmitter {
	InitMetrics(registry)
	return NewMetricsEmitter()
}

// MetricsEmitter handles emission of custom metrics
type MetricsEmitter struct{}

func NewMetricsEmitter() *MetricsEmitter {
	return &MetricsEmitter{}
}

// EmitAllocationDecision emits metrics for one allocation decision
func (m *MetricsEmitter) EmitAllocationDecision(d *core.Decision) {
	if d == nil {
		return
	}
	strategy := d.Strategy.String()
	allocationDecisionsTotal.With(prometheus.Labels{
		"strategy": strategy,
		"device":   strconv.Itoa(d.DeviceID),
	}).Inc()
	decisionConfidence.With(prometheus.Labels{"strategy": strategy}).Set(d.Confidence)
}

// EmitDeviceMetrics emits live gauges for one device
func (m *MetricsEmitter) EmitDeviceMetrics(d *core.Device) {
	if d == nil {
		return
	}
	labels := prometheus.Labels{"device": strconv.Itoa(d.ID)}
	deviceUtilization.With(labels).Set(d.UtilizationPct)
	deviceMemoryUsedMB.With(labels).Set(d.MemoryUsedMB)
	deviceMemoryFreeMB.With(labels).Set(d.MemoryFreeMB)
	deviceTemperature.With(labels).Set(d.TemperatureC)
	devicePowerDraw.With(labels).Set(d.PowerDrawW)
	deviceActiveReqs.With(labels).Set(float64(d.ActiveRequests))
	deviceTotalRequests.With(labels).Set(float64(d.TotalProcessed))
	available := float64(0)
	if d.Available {
		available = 1
	}
	deviceAvailable.With(labels).Set(available)
}

// EmitTelemetryError counts one failed telemetry refresh cycle
func (m *MetricsEmitter) EmitTelemetryError() {
	telemetryErrorsTotal.Inc()
}

// EmitStrategySwitch counts one optimizer-driven strategy switch
func (m *MetricsEmitter) EmitStrategySwitch(from, to string) {
	strategySwitchesTotal.With(prometheus.Labels{"from": from, "to": to}).Inc()
}
