package adminapi

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// sampleCPU reports current process-host CPU usage, sampled over a
// short window the same way the corpus's /stats handler does.
func sampleCPU() CPUStats {
	stats := CPUStats{NumCPU: runtime.NumCPU()}
	if percents, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(percents) > 0 {
		stats.UsedPercent = percents[0]
	}
	return stats
}

// sampleMemory reports current host memory usage.
func sampleMemory() MemoryStats {
	stats := MemoryStats{}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats.TotalMB = float64(vm.Total) / 1024 / 1024
		stats.UsedMB = float64(vm.Used) / 1024 / 1024
		stats.UsedPercent = vm.UsedPercent
	}
	return stats
}
