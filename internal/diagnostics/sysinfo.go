package diagnostics

import (
	"fmt"
	"strings"

	"github.com/jaypipes/ghw"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostSnapshot is a best-effort view of the host at report time.
type HostSnapshot struct {
	CPUModel   string   `json:"cpu_model,omitempty"`
	CPUCores   int      `json:"cpu_cores,omitempty"`
	CPUThreads int      `json:"cpu_threads,omitempty"`
	GPUs       []string `json:"gpus,omitempty"`
	MemTotalMB float64  `json:"mem_total_mb"`
	MemUsedMB  float64  `json:"mem_used_mb"`
	MemPercent float64  `json:"mem_percent"`
	LoadAvg1   float64  `json:"load_avg_1"`
	LoadAvg5   float64  `json:"load_avg_5"`
	LoadAvg15  float64  `json:"load_avg_15"`
}

// CollectHostSnapshot reads hardware, memory and load figures. Fields that
// cannot be read stay zero.
func CollectHostSnapshot() HostSnapshot {
	var snap HostSnapshot

	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		snap.CPUModel = strings.TrimSpace(infos[0].ModelName)
	}
	if cores, err := cpu.Counts(false); err == nil {
		snap.CPUCores = cores
	}
	if threads, err := cpu.Counts(true); err == nil {
		snap.CPUThreads = threads
	}
	snap.GPUs = gpuNames()

	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemTotalMB = float64(vm.Total) / 1024 / 1024
		snap.MemUsedMB = float64(vm.Used) / 1024 / 1024
		snap.MemPercent = vm.UsedPercent
	}

	if avg, err := load.Avg(); err == nil {
		snap.LoadAvg1 = avg.Load1
		snap.LoadAvg5 = avg.Load5
		snap.LoadAvg15 = avg.Load15
	}

	return snap
}

func gpuNames() []string {
	info, err := ghw.GPU()
	if err != nil || info == nil || len(info.GraphicsCards) == 0 {
		return nil
	}

	names := make([]string, 0, len(info.GraphicsCards))
	for _, card := range info.GraphicsCards {
		name := ""
		if d := card.DeviceInfo; d != nil {
			switch {
			case d.Vendor != nil && d.Product != nil:
				name = strings.TrimSpace(d.Vendor.Name + " " + d.Product.Name)
			case d.Product != nil:
				name = strings.TrimSpace(d.Product.Name)
			case d.Vendor != nil:
				name = strings.TrimSpace(d.Vendor.Name)
			}
		}
		if name == "" {
			name = fmt.Sprintf("GPU %d", card.Index)
		}
		names = append(names, name)
	}
	return names
}
