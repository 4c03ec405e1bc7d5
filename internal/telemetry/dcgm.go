package telemetry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/zvirb/gpu-balancer/pkg/core"
)

const (
	metricFBTotal  = "DCGM_FI_DEV_FB_TOTAL"
	metricFBUsed   = "DCGM_FI_DEV_FB_USED"
	metricFBFree   = "DCGM_FI_DEV_FB_FREE"
	metricGPUUtil  = "DCGM_FI_DEV_GPU_UTIL"
	metricGPUTemp  = "DCGM_FI_DEV_GPU_TEMP"
	metricPowerUse = "DCGM_FI_DEV_POWER_USAGE"

	// DCGM reports missing metrics as huge sentinel values (~1.8e19);
	// anything above this threshold is treated as blank.
	sentinelThreshold = 1e15

	scrapeTimeout = 5 * time.Second
)

// DCGMSource scrapes a dcgm-exporter /metrics endpoint and converts the
// exposition text into device samples. Framebuffer metrics are in MiB.
type DCGMSource struct {
	endpoint string
	client   *http.Client
}

var _ Source = (*DCGMSource)(nil)

// NewDCGMSource creates a source scraping the given base URL
// (e.g. "http://localhost:9400"); "/metrics" is appended.
func NewDCGMSource(endpoint string) *DCGMSource {
	return &DCGMSource{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{},
	}
}

func (s *DCGMSource) Sample(ctx context.Context) ([]core.DeviceSample, error) {
	body, err := s.scrape(ctx)
	if err != nil {
		return nil, err
	}
	return ParseDCGMText(body)
}

func (s *DCGMSource) scrape(ctx context.Context) ([]byte, error) {
	url := s.endpoint + "/metrics"

	ctx, cancel := context.WithTimeout(ctx, scrapeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", url, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scraping %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	return body, nil
}

// ParseDCGMText parses Prometheus exposition text from dcgm-exporter into
// per-device samples, keyed by the "gpu" index label. Sentinel (blank)
// values are dropped, leaving the field at zero.
func ParseDCGMText(data []byte) ([]core.DeviceSample, error) {
	parser := expfmt.TextParser{}
	families, err := parser.TextToMetricFamilies(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing dcgm exposition text: %w", err)
	}

	samples := map[int]*core.DeviceSample{}
	apply := func(metricName string, set func(s *core.DeviceSample, v float64)) {
		family, exists := families[metricName]
		if !exists {
			return
		}
		for _, m := range family.GetMetric() {
			id, deviceName, ok := deviceLabels(m)
			if !ok {
				continue
			}
			v := metricValue(m)
			if v > sentinelThreshold {
				continue
			}
			sample, exists := samples[id]
			if !exists {
				sample = &core.DeviceSample{ID: id, Name: deviceName}
				samples[id] = sample
			}
			if sample.Name == "" {
				sample.Name = deviceName
			}
			set(sample, v)
		}
	}

	apply(metricFBTotal, func(s *core.DeviceSample, v float64) { s.MemoryTotalMB = v })
	apply(metricFBUsed, func(s *core.DeviceSample, v float64) { s.MemoryUsedMB = v })
	apply(metricFBFree, func(s *core.DeviceSample, v float64) { s.MemoryFreeMB = v })
	apply(metricGPUUtil, func(s *core.DeviceSample, v float64) { s.UtilizationPct = v })
	apply(metricGPUTemp, func(s *core.DeviceSample, v float64) { s.TemperatureC = v })
	apply(metricPowerUse, func(s *core.DeviceSample, v float64) { s.PowerDrawW = v })

	out := make([]core.DeviceSample, 0, len(samples))
	for _, sample := range samples {
		if sample.MemoryTotalMB == 0 && (sample.MemoryUsedMB > 0 || sample.MemoryFreeMB > 0) {
			sample.MemoryTotalMB = sample.MemoryUsedMB + sample.MemoryFreeMB
		}
		out = append(out, *sample)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// deviceLabels extracts the device index ("gpu") and name ("modelName")
// labels from one metric.
func deviceLabels(m *dto.Metric) (int, string, bool) {
	index := ""
	name := ""
	for _, label := range m.GetLabel() {
		switch label.GetName() {
		case "gpu":
			index = label.GetValue()
		case "modelName":
			name = label.GetValue()
		}
	}
	if index == "" {
		return 0, "", false
	}
	id, err := strconv.Atoi(index)
	if err != nil {
		return 0, "", false
	}
	return id, name, true
}

func metricValue(m *dto.Metric) float64 {
	switch {
	case m.GetGauge() != nil:
		return m.GetGauge().GetValue()
	case m.GetCounter() != nil:
		return m.GetCounter().GetValue()
	case m.GetUntyped() != nil:
		return m.GetUntyped().GetValue()
	default:
		return 0
	}
}
