package domain

// UsagePoint is a single-valued percentage sample
type UsagePoint struct {
	Label string  `json:"name"`
	Usage float64 `json:"usage"`
}

// LoadPoint carries the 1/5/15 minute load averages
type LoadPoint struct {
	Label  string  `json:"name"`
	Load1  float64 `json:"load1"`
	Load5  float64 `json:"load5"`
	Load15 float64 `json:"load15"`
}

// SwapPoint carries swap used/free percentages
type SwapPoint struct {
	Label string  `json:"name"`
	Used  float64 `json:"used"`
	Free  float64 `json:"free"`
}

// NetworkPoint carries connection counts
type NetworkPoint struct {
	Label string `json:"name"`
	TCP   int64  `json:"tcp"`
	UDP   int64  `json:"udp"`
}

// SeriesSet holds the six chart families derived from one history.
// Point i of every family corresponds to snapshot i of that history.
type SeriesSet struct {
	CPUUsage    []UsagePoint   `json:"cpuUsage"`
	MemoryUsage []UsagePoint   `json:"memoryUsage"`
	DiskUsage   []UsagePoint   `json:"diskUsage"`
	LoadAverage []LoadPoint    `json:"loadAverage"`
	SwapMemory  []SwapPoint    `json:"swapMemory"`
	Network     []NetworkPoint `json:"network"`
}

// EmptySeriesSet returns six empty, non-nil series
func EmptySeriesSet() SeriesSet {
	return SeriesSet{
		CPUUsage:    []UsagePoint{},
		MemoryUsage: []UsagePoint{},
		DiskUsage:   []UsagePoint{},
		LoadAverage: []LoadPoint{},
		SwapMemory:  []SwapPoint{},
		Network:     []NetworkPoint{},
	}
}

// Len returns the shared point count
func (s SeriesSet) Len() int {
	return len(s.CPUUsage)
}
