package tui

import (
	"math"
	"strings"
)

var blocks = []rune("▁▂▃▄▅▆▇█")

// Spark8 renders the most recent width values, each in [0,1], as block
// characters. Shorter inputs render shorter.
func Spark8(vals []float64, width int) string {
	if len(vals) == 0 || width <= 0 {
		return ""
	}
	if len(vals) > width {
		vals = vals[len(vals)-width:]
	}
	var b strings.Builder
	for _, v := range vals {
		level := int(math.Round(clamp01(v) * float64(len(blocks)-1)))
		b.WriteRune(blocks[level])
	}
	return b.String()
}

// Bar renders v in [0,1] as a filled bar of the given width
func Bar(v float64, width int) string {
	if width <= 0 {
		return ""
	}
	v = clamp01(v)
	fill := int(math.Round(v * float64(width)))
	if v > 0 && fill == 0 {
		fill = 1
	}
	return strings.Repeat("█", fill) + strings.Repeat(" ", width-fill)
}

// Scale divides every value by max. A non-positive max uses the largest
// value, so the peak renders as a full block.
func Scale(vals []float64, max float64) []float64 {
	if max <= 0 {
		for _, v := range vals {
			if v > max {
				max = v
			}
		}
	}
	out := make([]float64, len(vals))
	if max <= 0 {
		return out
	}
	for i, v := range vals {
		out[i] = v / max
	}
	return out
}

func clamp01(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
