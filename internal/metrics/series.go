package metrics

import (
	"fmt"
	"time"

	"nmsview/internal/domain"
)

// LabelFormat selects how point timestamps are rendered
type LabelFormat string

const (
	// Label12h renders HH:MM:SS with the hour taken mod 12, 0 shown as 12
	Label12h LabelFormat = "12h"
	// Label24h renders a plain 24-hour HH:MM:SS
	Label24h LabelFormat = "24h"
)

// ParseLabelFormat converts a string to LabelFormat, defaulting to 12h
func ParseLabelFormat(s string) LabelFormat {
	if s == string(Label24h) {
		return Label24h
	}
	return Label12h
}

// SeriesOptions controls series derivation
type SeriesOptions struct {
	LabelFormat LabelFormat
	// Location for labels; nil means time.Local
	Location *time.Location
}

// FormatLabel renders a millisecond timestamp as a point label
func FormatLabel(timestampMs int64, opts SeriesOptions) string {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	t := time.UnixMilli(timestampMs).In(loc)

	hour := t.Hour()
	if opts.LabelFormat != Label24h {
		hour %= 12
		if hour == 0 {
			hour = 12
		}
	}
	return fmt.Sprintf("%02d:%02d:%02d", hour, t.Minute(), t.Second())
}

// DeriveSeries projects history onto the six chart families using the
// default 12-hour labels in the local time zone.
func DeriveSeries(history []domain.MetricSnapshot) domain.SeriesSet {
	return DeriveSeriesWith(history, SeriesOptions{LabelFormat: Label12h})
}

// DeriveSeriesWith projects history onto the six chart families. Point i of
// every family comes from history[i]; missing values are 0.
func DeriveSeriesWith(history []domain.MetricSnapshot, opts SeriesOptions) domain.SeriesSet {
	n := len(history)
	set := domain.SeriesSet{
		CPUUsage:    make([]domain.UsagePoint, 0, n),
		MemoryUsage: make([]domain.UsagePoint, 0, n),
		DiskUsage:   make([]domain.UsagePoint, 0, n),
		LoadAverage: make([]domain.LoadPoint, 0, n),
		SwapMemory:  make([]domain.SwapPoint, 0, n),
		Network:     make([]domain.NetworkPoint, 0, n),
	}

	for _, s := range history {
		label := FormatLabel(s.Timestamp, opts)
		c := s.Counters

		set.CPUUsage = append(set.CPUUsage, domain.UsagePoint{
			Label: label,
			Usage: Float(c, domain.CounterCPUPercent),
		})
		set.MemoryUsage = append(set.MemoryUsage, domain.UsagePoint{
			Label: label,
			Usage: Float(c, domain.CounterMemoryUsedPercent),
		})
		set.DiskUsage = append(set.DiskUsage, domain.UsagePoint{
			Label: label,
			Usage: Float(c, domain.CounterDiskUsedPercent),
		})
		set.LoadAverage = append(set.LoadAverage, domain.LoadPoint{
			Label:  label,
			Load1:  Float(c, domain.CounterLoadAvg1),
			Load5:  Float(c, domain.CounterLoadAvg5),
			Load15: Float(c, domain.CounterLoadAvg15),
		})
		set.SwapMemory = append(set.SwapMemory, domain.SwapPoint{
			Label: label,
			Used:  Float(c, domain.CounterSwapUsedPercent),
			Free:  Float(c, domain.CounterSwapFreePercent),
		})
		set.Network = append(set.Network, domain.NetworkPoint{
			Label: label,
			TCP:   Int(c, domain.CounterTCPConnections),
			UDP:   Int(c, domain.CounterUDPConnections),
		})
	}

	return set
}
