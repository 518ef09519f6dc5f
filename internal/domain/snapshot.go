package domain

import "time"

// Counters is the open metric-name to value bag of one polled sample.
// Values are strings, json.Number, or Go numbers depending on the source.
type Counters map[string]any

// Get returns the raw value for key
func (c Counters) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c[key]
	return v, ok
}

// Clone returns a shallow copy
func (c Counters) Clone() Counters {
	out := make(Counters, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// MetricSnapshot is one timestamped sample for a managed object
type MetricSnapshot struct {
	Timestamp int64    `json:"timestamp"` // ms since epoch
	Counters  Counters `json:"counters"`
}

// Time returns the timestamp as a time.Time
func (s MetricSnapshot) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// Well-known counter keys
const (
	CounterCPUPercent        = "system_cpu_percent"
	CounterMemoryUsedPercent = "system_memory_used_percent"
	CounterDiskUsedPercent   = "system_disk_used_percent"
	CounterLoadAvg1          = "system_load_avg1_min"
	CounterLoadAvg5          = "system_load_avg5_min"
	CounterLoadAvg15         = "system_load_avg15_min"
	CounterSwapUsedPercent   = "system_swap_memory_used_percent"
	CounterSwapFreePercent   = "system_swap_memory_free_percent"
	CounterTCPConnections    = "system_network_tcp_connections"
	CounterUDPConnections    = "system_network_udp_connections"
	CounterSystemName        = "system_name"
	CounterOSName            = "system_os_name"
	CounterOSVersion         = "system_os_version"
	CounterStartedTime       = "started_time"
	CounterCPUCores          = "system_cpu_cores"
	CounterCPUIOPercent      = "system_cpu_io_percent"
	CounterCPUIdlePercent    = "system_cpu_idle_percent"
	CounterCPUKernelPercent  = "system_cpu_kernel_percent"
	CounterCPUInterruptPct   = "system_cpu_interrupt_percent"
	CounterBlockedProcesses  = "system_blocked_processes"
	CounterContextSwitches   = "system_context_switches_per_sec"
	CounterRunningProcesses  = "system_running_processes"
	CounterThreads           = "system_threads"
)
