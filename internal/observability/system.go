package observability

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

var startTime = time.Now()

// SystemInfo describes the host and this process.
type SystemInfo struct {
	OS            string    `json:"os"`
	Architecture  string    `json:"architecture"`
	Hostname      string    `json:"hostname"`
	Platform      string    `json:"platform"`
	KernelVersion string    `json:"kernel_version"`
	UpTime        uint64    `json:"uptime_seconds"`
	AppStart      time.Time `json:"app_start_time"`
	AppUptime     int64     `json:"app_uptime_seconds"`
	NumCPU        int       `json:"num_cpu"`
	GoVersion     string    `json:"go_version"`
	CPUUsage      float64   `json:"cpu_usage_percent"`
	MemoryTotal   uint64    `json:"memory_total"`
	MemoryUsage   float64   `json:"memory_usage_percent"`
	ProcessMem    float64   `json:"process_memory_mb"`
	ProcessCPU    float64   `json:"process_cpu_percent"`
}

// CollectSystemInfo gathers host and process figures. Parts that cannot be
// read are left zero.
func CollectSystemInfo() SystemInfo {
	info := SystemInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		AppStart:     startTime,
		AppUptime:    int64(time.Since(startTime).Seconds()),
		NumCPU:       runtime.NumCPU(),
		GoVersion:    runtime.Version(),
	}

	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}
	if hostInfo, err := host.Info(); err == nil {
		info.Platform = hostInfo.Platform
		info.KernelVersion = hostInfo.KernelVersion
		info.UpTime = hostInfo.Uptime
	}
	if memInfo, err := mem.VirtualMemory(); err == nil {
		info.MemoryTotal = memInfo.Total
		info.MemoryUsage = memInfo.UsedPercent
	}
	// zero interval compares against the previous call
	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		info.CPUUsage = cpuPercent[0]
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil { //nolint:gosec // G115: pid fits in int32
		if procMem, err := proc.MemoryInfo(); err == nil && procMem != nil {
			info.ProcessMem = float64(procMem.RSS) / 1024 / 1024
		}
		if procCPU, err := proc.CPUPercent(); err == nil {
			info.ProcessCPU = procCPU
		}
	}

	return info
}
