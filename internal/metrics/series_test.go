package metrics

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nmsview/internal/domain"
)

var utc12 = SeriesOptions{LabelFormat: Label12h, Location: time.UTC}

func msAt(hour, min, sec int) int64 {
	return time.Date(2024, 3, 1, hour, min, sec, 0, time.UTC).UnixMilli()
}

func TestFormatLabel(t *testing.T) {
	tests := []struct {
		name   string
		ts     int64
		format LabelFormat
		want   string
	}{
		{"midnight maps to 12", msAt(0, 0, 1), Label12h, "12:00:01"},
		{"morning is padded", msAt(9, 5, 7), Label12h, "09:05:07"},
		{"noon stays 12", msAt(12, 30, 0), Label12h, "12:30:00"},
		{"afternoon wraps", msAt(13, 5, 9), Label12h, "01:05:09"},
		{"late evening", msAt(23, 59, 59), Label12h, "11:59:59"},
		{"24h afternoon", msAt(13, 5, 9), Label24h, "13:05:09"},
		{"24h midnight", msAt(0, 0, 1), Label24h, "00:00:01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatLabel(tt.ts, SeriesOptions{LabelFormat: tt.format, Location: time.UTC})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLabelFormat(t *testing.T) {
	assert.Equal(t, Label24h, ParseLabelFormat("24h"))
	assert.Equal(t, Label12h, ParseLabelFormat("12h"))
	assert.Equal(t, Label12h, ParseLabelFormat(""))
	assert.Equal(t, Label12h, ParseLabelFormat("bogus"))
}

func TestDeriveSeries(t *testing.T) {
	t.Run("empty history yields six empty series", func(t *testing.T) {
		for _, history := range [][]domain.MetricSnapshot{nil, {}} {
			set := DeriveSeries(history)
			assert.NotNil(t, set.CPUUsage)
			assert.Empty(t, set.CPUUsage)
			assert.Empty(t, set.MemoryUsage)
			assert.Empty(t, set.DiskUsage)
			assert.Empty(t, set.LoadAverage)
			assert.Empty(t, set.SwapMemory)
			assert.Empty(t, set.Network)

			data, err := json.Marshal(set)
			require.NoError(t, err)
			assert.JSONEq(t, `{"cpuUsage":[],"memoryUsage":[],"diskUsage":[],"loadAverage":[],"swapMemory":[],"network":[]}`, string(data))
		}
	})

	t.Run("cpu scenario with default fill", func(t *testing.T) {
		history := []domain.MetricSnapshot{
			{Timestamp: 1000, Counters: domain.Counters{domain.CounterCPUPercent: "12.5"}},
			{Timestamp: 3000, Counters: domain.Counters{}},
		}

		set := DeriveSeriesWith(history, utc12)

		assert.Equal(t, []domain.UsagePoint{
			{Label: FormatLabel(1000, utc12), Usage: 12.5},
			{Label: FormatLabel(3000, utc12), Usage: 0},
		}, set.CPUUsage)
		assert.Equal(t, "12:00:01", set.CPUUsage[0].Label)
		assert.Equal(t, "12:00:03", set.CPUUsage[1].Label)
	})

	t.Run("every family has one point per snapshot", func(t *testing.T) {
		history := make([]domain.MetricSnapshot, 0, 10)
		for i := 0; i < 10; i++ {
			history = append(history, domain.MetricSnapshot{
				Timestamp: msAt(14, 0, i),
				Counters:  domain.Counters{domain.CounterCPUPercent: "1"},
			})
		}

		set := DeriveSeriesWith(history, utc12)

		assert.Equal(t, 10, set.Len())
		for i := range history {
			label := FormatLabel(history[i].Timestamp, utc12)
			assert.Equal(t, label, set.CPUUsage[i].Label)
			assert.Equal(t, label, set.MemoryUsage[i].Label)
			assert.Equal(t, label, set.DiskUsage[i].Label)
			assert.Equal(t, label, set.LoadAverage[i].Label)
			assert.Equal(t, label, set.SwapMemory[i].Label)
			assert.Equal(t, label, set.Network[i].Label)
		}
	})

	t.Run("extracts every family", func(t *testing.T) {
		history := []domain.MetricSnapshot{{
			Timestamp: msAt(10, 0, 0),
			Counters: domain.Counters{
				domain.CounterCPUPercent:        "40.5",
				domain.CounterMemoryUsedPercent: json.Number("63.2"),
				domain.CounterDiskUsedPercent:   71.0,
				domain.CounterLoadAvg1:          "0.5",
				domain.CounterLoadAvg5:          "0.75",
				domain.CounterLoadAvg15:         "1.25",
				domain.CounterSwapUsedPercent:   "10",
				domain.CounterSwapFreePercent:   "90",
				domain.CounterTCPConnections:    "120",
				domain.CounterUDPConnections:    "8.6",
			},
		}}

		set := DeriveSeriesWith(history, utc12)

		assert.Equal(t, 40.5, set.CPUUsage[0].Usage)
		assert.Equal(t, 63.2, set.MemoryUsage[0].Usage)
		assert.Equal(t, 71.0, set.DiskUsage[0].Usage)
		assert.Equal(t, domain.LoadPoint{Label: "10:00:00", Load1: 0.5, Load5: 0.75, Load15: 1.25}, set.LoadAverage[0])
		assert.Equal(t, domain.SwapPoint{Label: "10:00:00", Used: 10, Free: 90}, set.SwapMemory[0])
		assert.Equal(t, domain.NetworkPoint{Label: "10:00:00", TCP: 120, UDP: 8}, set.Network[0])
	})

	t.Run("unparseable field defaults only itself", func(t *testing.T) {
		history := []domain.MetricSnapshot{{
			Timestamp: 1000,
			Counters: domain.Counters{
				domain.CounterCPUPercent:        "garbage",
				domain.CounterMemoryUsedPercent: "55",
			},
		}}

		set := DeriveSeriesWith(history, utc12)
		assert.Equal(t, 0.0, set.CPUUsage[0].Usage)
		assert.Equal(t, 55.0, set.MemoryUsage[0].Usage)
	})
}
