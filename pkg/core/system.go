package core

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/zvirb/gpu-balancer/pkg/config"
)

// System owns the mutable shared state of the balancer: the device table,
// the model affinity map, and the bounded allocation history. It is the
// single synchronization point for telemetry refresh, request lifecycle
// bookkeeping, and strategy reads.
type System struct {
	mu    sync.RWMutex
	clock clock.PassiveClock

	devices  map[int]*Device
	affinity map[string]int // model name -> device id of last placement
	history  []Record

	historyLimit  int
	historyTrimTo int
}

func NewSystem(clk clock.PassiveClock, spec *config.AllocationSpec) *System {
	limit := config.DefaultHistoryLimit
	trimTo := config.DefaultHistoryTrimTo
	if spec != nil {
		if spec.HistoryLimit > 0 {
			limit = spec.HistoryLimit
		}
		if spec.HistoryTrimTo > 0 {
			trimTo = spec.HistoryTrimTo
		}
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &System{
		clock:         clk,
		devices:       map[int]*Device{},
		affinity:      map[string]int{},
		historyLimit:  limit,
		historyTrimTo: trimTo,
	}
}

func (s *System) Now() time.Time {
	return s.clock.Now()
}

// SetDevices populates the device table from discovery samples. Re-invocation
// replaces entries with the same ids; session bookkeeping on replaced devices
// is reset.
func (s *System) SetDevices(samples []DeviceSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range samples {
		s.devices[samples[i].ID] = NewDeviceFromSample(&samples[i])
	}
}

// RegisterDevice inserts or replaces a single device.
func (s *System) RegisterDevice(d *Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[d.ID] = d
}

func (s *System) DeviceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices)
}

// Devices returns deep copies of all devices, ordered by id.
func (s *System) Devices() []*Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Device returns a deep copy of one device; nil if unknown.
func (s *System) Device(id int) *Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, exists := s.devices[id]; exists {
		return d.Clone()
	}
	return nil
}

// ApplyTelemetry refreshes live fields for every device with a matching
// sample and recomputes availability. Samples for unknown device ids are
// ignored; devices without a sample keep their stale data.
func (s *System) ApplyTelemetry(samples []DeviceSample, th *config.ThresholdSpec) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range samples {
		if d, exists := s.devices[samples[i].ID]; exists {
			d.Refresh(&samples[i], th, now)
		}
	}
}

// Allocate brackets the start of request execution on a device: increments
// the active and total counters and marks the model resident.
func (s *System) Allocate(deviceID int, modelName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, exists := s.devices[deviceID]
	if !exists {
		return fmt.Errorf("unknown device id %d", deviceID)
	}
	d.ActiveRequests++
	d.TotalProcessed++
	d.LoadedModels[modelName] = true
	return nil
}

// Deallocate brackets the end of request execution: decrements the active
// counter (floored at 0) and folds the processing time into the rolling
// average via an exponential moving average. The model is dropped from the
// resident set only once the device is idle; per-model reference counts are
// not tracked, so overlapping requests for one model may evict it early.
func (s *System) Deallocate(deviceID int, modelName string, processingTimeSec float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, exists := s.devices[deviceID]
	if !exists {
		return fmt.Errorf("unknown device id %d", deviceID)
	}
	if d.ActiveRequests > 0 {
		d.ActiveRequests--
	}
	if processingTimeSec > 0 {
		if d.AvgProcessingTime == 0 {
			d.AvgProcessingTime = processingTimeSec
		} else {
			alpha := config.EMAAlpha
			d.AvgProcessingTime = alpha*processingTimeSec + (1-alpha)*d.AvgProcessingTime
		}
	}
	if d.ActiveRequests == 0 {
		delete(d.LoadedModels, modelName)
	}
	return nil
}

// AppendRecord appends an allocation record, trimming the history to the
// most recent entries when the bound is exceeded.
func (s *System) AppendRecord(rec Record) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.clock.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, rec)
	if len(s.history) > s.historyLimit {
		trimmed := make([]Record, s.historyTrimTo)
		copy(trimmed, s.history[len(s.history)-s.historyTrimTo:])
		s.history = trimmed
	}
}

func (s *System) HistoryLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// RecentHistory returns a copy of the most recent n records (all if n <= 0).
func (s *System) RecentHistory(n int) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if n > 0 && len(s.history) > n {
		start = len(s.history) - n
	}
	out := make([]Record, len(s.history)-start)
	copy(out, s.history[start:])
	return out
}

// Affinity returns the device a model was last placed on.
func (s *System) Affinity(modelName string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, exists := s.affinity[modelName]
	return id, exists
}

func (s *System) SetAffinity(modelName string, deviceID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.affinity[modelName] = deviceID
}

// AffinityMap returns a copy of the model to device affinity map.
func (s *System) AffinityMap() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.affinity))
	for model, id := range s.affinity {
		out[model] = id
	}
	return out
}

func (s *System) String() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "System: numDevices=%d; historyLen=%d \n", s.DeviceCount(), s.HistoryLen())
	for _, d := range s.Devices() {
		fmt.Fprintf(&b, "%v \n", d)
	}
	return b.String()
}
