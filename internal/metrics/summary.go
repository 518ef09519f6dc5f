package metrics

import (
	"encoding/json"
	"fmt"
	"strconv"

	"nmsview/internal/domain"
)

// NotAvailable is shown for summary fields the latest snapshot lacks
const NotAvailable = "N/A"

// SummaryField describes one instantaneous display field
type SummaryField struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Group   string `json:"group"`
	Percent bool   `json:"-"`
}

// SummaryLayout is the display order of summary fields
var SummaryLayout = []SummaryField{
	{Key: domain.CounterSystemName, Label: "Hostname", Group: "system"},
	{Key: domain.CounterOSName, Label: "OS Name", Group: "system"},
	{Key: domain.CounterOSVersion, Label: "OS Version", Group: "system"},
	{Key: domain.CounterStartedTime, Label: "Uptime", Group: "system"},
	{Key: domain.CounterCPUCores, Label: "CPU Cores", Group: "cpu"},
	{Key: domain.CounterCPUPercent, Label: "CPU Usage", Group: "cpu", Percent: true},
	{Key: domain.CounterCPUIOPercent, Label: "CPU I/O Wait", Group: "cpu", Percent: true},
	{Key: domain.CounterCPUIdlePercent, Label: "CPU Idle", Group: "cpu", Percent: true},
	{Key: domain.CounterCPUKernelPercent, Label: "CPU Kernel", Group: "cpu", Percent: true},
	{Key: domain.CounterCPUInterruptPct, Label: "CPU Interrupt", Group: "cpu", Percent: true},
	{Key: domain.CounterBlockedProcesses, Label: "Blocked Processes", Group: "cpu"},
	{Key: domain.CounterContextSwitches, Label: "Context Switches/sec", Group: "cpu"},
	{Key: domain.CounterRunningProcesses, Label: "Running Processes", Group: "process"},
	{Key: domain.CounterThreads, Label: "Threads", Group: "process"},
}

// Summary renders the display fields of latest keyed by counter name.
// A nil snapshot renders every field as N/A.
func Summary(latest *domain.MetricSnapshot) map[string]string {
	out := make(map[string]string, len(SummaryLayout))
	for _, f := range SummaryLayout {
		out[f.Key] = NotAvailable
	}
	if latest == nil {
		return out
	}
	for _, f := range SummaryLayout {
		v, ok := latest.Counters.Get(f.Key)
		if !ok {
			continue
		}
		s, ok := displayString(v)
		if !ok {
			continue
		}
		if f.Percent {
			s += "%"
		}
		out[f.Key] = s
	}
	return out
}

func displayString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, x != ""
	case json.Number:
		return x.String(), x != ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	default:
		return fmt.Sprint(x), true
	}
}
