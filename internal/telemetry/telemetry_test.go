package telemetry

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/zvirb/gpu-balancer/pkg/config"
	"github.com/zvirb/gpu-balancer/pkg/core"
)

const dcgmExposition = `# HELP DCGM_FI_DEV_GPU_UTIL GPU utilization (in %).
# TYPE DCGM_FI_DEV_GPU_UTIL gauge
DCGM_FI_DEV_GPU_UTIL{gpu="0",UUID="GPU-aaa",modelName="NVIDIA A100-SXM4-40GB"} 37
DCGM_FI_DEV_GPU_UTIL{gpu="1",UUID="GPU-bbb",modelName="NVIDIA A100-SXM4-40GB"} 92
# HELP DCGM_FI_DEV_FB_TOTAL Framebuffer memory total (in MiB).
# TYPE DCGM_FI_DEV_FB_TOTAL gauge
DCGM_FI_DEV_FB_TOTAL{gpu="0",UUID="GPU-aaa",modelName="NVIDIA A100-SXM4-40GB"} 40536
DCGM_FI_DEV_FB_TOTAL{gpu="1",UUID="GPU-bbb",modelName="NVIDIA A100-SXM4-40GB"} 40536
# HELP DCGM_FI_DEV_FB_USED Framebuffer memory used (in MiB).
# TYPE DCGM_FI_DEV_FB_USED gauge
DCGM_FI_DEV_FB_USED{gpu="0",UUID="GPU-aaa",modelName="NVIDIA A100-SXM4-40GB"} 10000
DCGM_FI_DEV_FB_USED{gpu="1",UUID="GPU-bbb",modelName="NVIDIA A100-SXM4-40GB"} 36000
# HELP DCGM_FI_DEV_FB_FREE Framebuffer memory free (in MiB).
# TYPE DCGM_FI_DEV_FB_FREE gauge
DCGM_FI_DEV_FB_FREE{gpu="0",UUID="GPU-aaa",modelName="NVIDIA A100-SXM4-40GB"} 30536
DCGM_FI_DEV_FB_FREE{gpu="1",UUID="GPU-bbb",modelName="NVIDIA A100-SXM4-40GB"} 4536
# HELP DCGM_FI_DEV_GPU_TEMP GPU temperature (in C).
# TYPE DCGM_FI_DEV_GPU_TEMP gauge
DCGM_FI_DEV_GPU_TEMP{gpu="0",UUID="GPU-aaa",modelName="NVIDIA A100-SXM4-40GB"} 54
DCGM_FI_DEV_GPU_TEMP{gpu="1",UUID="GPU-bbb",modelName="NVIDIA A100-SXM4-40GB"} 81
# HELP DCGM_FI_DEV_POWER_USAGE Power draw (in W).
# TYPE DCGM_FI_DEV_POWER_USAGE gauge
DCGM_FI_DEV_POWER_USAGE{gpu="0",UUID="GPU-aaa",modelName="NVIDIA A100-SXM4-40GB"} 163.5
DCGM_FI_DEV_POWER_USAGE{gpu="1",UUID="GPU-bbb",modelName="NVIDIA A100-SXM4-40GB"} 17976931348623157000000000000000
`

var _ = Describe("ParseDCGMText", func() {
	It("parses per-device samples from exposition text", func() {
		samples, err := ParseDCGMText([]byte(dcgmExposition))
		Expect(err).NotTo(HaveOccurred())
		Expect(samples).To(HaveLen(2))

		Expect(samples[0].ID).To(Equal(0))
		Expect(samples[0].Name).To(Equal("NVIDIA A100-SXM4-40GB"))
		Expect(samples[0].MemoryTotalMB).To(Equal(float64(40536)))
		Expect(samples[0].MemoryUsedMB).To(Equal(float64(10000)))
		Expect(samples[0].MemoryFreeMB).To(Equal(float64(30536)))
		Expect(samples[0].UtilizationPct).To(Equal(float64(37)))
		Expect(samples[0].TemperatureC).To(Equal(float64(54)))
		Expect(samples[0].PowerDrawW).To(Equal(163.5))

		Expect(samples[1].ID).To(Equal(1))
		Expect(samples[1].UtilizationPct).To(Equal(float64(92)))
	})

	It("drops sentinel blank values, leaving the field at zero", func() {
		samples, err := ParseDCGMText([]byte(dcgmExposition))
		Expect(err).NotTo(HaveOccurred())
		Expect(samples[1].PowerDrawW).To(BeZero())
	})

	It("derives total memory from used+free when total is absent", func() {
		text := `DCGM_FI_DEV_FB_USED{gpu="0"} 100
DCGM_FI_DEV_FB_FREE{gpu="0"} 900
`
		samples, err := ParseDCGMText([]byte(text))
		Expect(err).NotTo(HaveOccurred())
		Expect(samples).To(HaveLen(1))
		Expect(samples[0].MemoryTotalMB).To(Equal(float64(1000)))
	})

	It("ignores metrics without a gpu index label", func() {
		text := `DCGM_FI_DEV_GPU_UTIL{UUID="GPU-aaa"} 50
`
		samples, err := ParseDCGMText([]byte(text))
		Expect(err).NotTo(HaveOccurred())
		Expect(samples).To(BeEmpty())
	})
})

var _ = Describe("Discoverer", func() {
	var system *core.System

	BeforeEach(func() {
		system = core.NewSystem(clocktesting.NewFakeClock(time.Now()), nil)
	})

	It("registers discovered devices as available", func() {
		source := NewStaticSource([]core.DeviceSample{
			{ID: 0, Name: "gpu-0", MemoryTotalMB: 24576, MemoryFreeMB: 20000},
			{ID: 1, Name: "gpu-1", MemoryTotalMB: 24576, MemoryFreeMB: 24576},
		})
		d := NewDiscoverer(source, system)

		Expect(d.Discover(context.Background())).To(Succeed())
		Expect(system.DeviceCount()).To(Equal(2))
		for _, dev := range system.Devices() {
			Expect(dev.Available).To(BeTrue())
		}
	})

	It("registers exactly one synthetic device when the source errors", func() {
		d := NewDiscoverer(&failingSource{}, system)

		Expect(d.Discover(context.Background())).To(Succeed())
		Expect(system.DeviceCount()).To(Equal(1))

		fallback := system.Device(0)
		Expect(fallback).NotTo(BeNil())
		Expect(fallback.Name).To(Equal(config.FallbackDeviceName))
		Expect(fallback.MemoryTotalMB).To(Equal(config.FallbackDeviceMemoryMB))
		Expect(fallback.Available).To(BeTrue())
	})

	It("registers the fallback when the source reports zero devices", func() {
		d := NewDiscoverer(NewStaticSource(nil), system)

		Expect(d.Discover(context.Background())).To(Succeed())
		Expect(system.DeviceCount()).To(Equal(1))
	})

	It("is idempotent, replacing entries with the same ids", func() {
		source := NewStaticSource([]core.DeviceSample{{ID: 0, Name: "gpu-0", MemoryTotalMB: 24576}})
		d := NewDiscoverer(source, system)

		Expect(d.Discover(context.Background())).To(Succeed())
		Expect(d.Discover(context.Background())).To(Succeed())
		Expect(system.DeviceCount()).To(Equal(1))
	})
})

var _ = Describe("Poller", func() {
	var (
		system *core.System
		spec   *config.BalancerSpec
	)

	BeforeEach(func() {
		system = core.NewSystem(clocktesting.NewFakeClock(time.Now()), nil)
		system.SetDevices([]core.DeviceSample{
			{ID: 0, Name: "gpu-0", MemoryTotalMB: 1000, MemoryFreeMB: 1000},
		})
		spec = config.DefaultBalancerSpec()
	})

	It("applies fresh telemetry and recomputes availability", func() {
		source := NewStaticSource([]core.DeviceSample{
			{ID: 0, MemoryTotalMB: 1000, MemoryUsedMB: 860, MemoryFreeMB: 140, UtilizationPct: 10, TemperatureC: 40},
		})
		p := NewPoller(source, system, spec, nil)

		p.RefreshAll(context.Background())

		d := system.Device(0)
		Expect(d.MemoryUsedMB).To(Equal(float64(860)))
		Expect(d.Available).To(BeFalse(), "memory ratio 0.86 exceeds the 0.85 threshold")
	})

	It("keeps stale data when every retry fails", func() {
		p := NewPoller(&failingSource{}, system, spec, nil)

		p.RefreshAll(context.Background())

		d := system.Device(0)
		Expect(d.MemoryFreeMB).To(Equal(float64(1000)), "stale data persists after a failed cycle")
		Expect(d.Available).To(BeTrue())
	})

	It("retries transient failures within a cycle", func() {
		source := &flakySource{
			failures: 1,
			samples: []core.DeviceSample{
				{ID: 0, MemoryTotalMB: 1000, MemoryUsedMB: 200, MemoryFreeMB: 800, UtilizationPct: 20, TemperatureC: 50},
			},
		}
		p := NewPoller(source, system, spec, nil)

		p.RefreshAll(context.Background())

		Expect(system.Device(0).MemoryUsedMB).To(Equal(float64(200)))
	})

	It("stops when the context is cancelled", func() {
		source := NewStaticSource([]core.DeviceSample{{ID: 0, MemoryTotalMB: 1000, MemoryFreeMB: 1000}})
		p := NewPoller(source, system, spec, nil)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			p.Run(ctx)
		}()

		cancel()
		Eventually(done, time.Second).Should(BeClosed())
	})
})
