// Package metrics decodes polled samples, keeps per-object history and
// derives chart series and summary fields from it.
package metrics

import (
	"bytes"
	"encoding/json"
	"fmt"

	"nmsview/internal/domain"
)

// Decode builds a snapshot from a raw counter bag. Keys and values are copied
// verbatim; numeric parsing happens at series derivation.
func Decode(raw map[string]any, timestampMs int64) domain.MetricSnapshot {
	counters := make(domain.Counters, len(raw))
	for k, v := range raw {
		counters[k] = v
	}
	return domain.MetricSnapshot{
		Timestamp: timestampMs,
		Counters:  counters,
	}
}

// record is the collaborator's wire shape for one polled sample
type record struct {
	Counters  map[string]any `json:"counters"`
	Timestamp json.Number    `json:"timestamp"`
}

// DecodeRecord decodes one {"counters": {...}, "timestamp": N} record.
// Numbers inside counters are kept as json.Number.
func DecodeRecord(data []byte) (domain.MetricSnapshot, error) {
	var r record
	if err := unmarshalNumbers(data, &r); err != nil {
		return domain.MetricSnapshot{}, fmt.Errorf("decode metric record: %w", err)
	}
	ts, err := timestampMillis(r.Timestamp)
	if err != nil {
		return domain.MetricSnapshot{}, fmt.Errorf("decode metric record: %w", err)
	}
	return Decode(r.Counters, ts), nil
}

// DecodeRecords decodes a JSON array of records, oldest first
func DecodeRecords(data []byte) ([]domain.MetricSnapshot, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode metric records: %w", err)
	}
	out := make([]domain.MetricSnapshot, 0, len(raw))
	for i, msg := range raw {
		snap, err := DecodeRecord(msg)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, snap)
	}
	return out, nil
}

func unmarshalNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// timestampMillis accepts integral or fractional millisecond timestamps.
// A missing timestamp decodes as 0.
func timestampMillis(n json.Number) (int64, error) {
	if n == "" {
		return 0, nil
	}
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q", n.String())
	}
	return int64(f), nil
}
