// Package reconcile merges discovery and managed-object records into the
// deduplicated dashboard view.
package reconcile

import (
	"github.com/rs/zerolog"

	"nmsview/internal/domain"
)

// AnomalyKind classifies an ip collision detected while merging
type AnomalyKind string

const (
	// AnomalyDuplicateObject means two managed objects share an ip
	AnomalyDuplicateObject AnomalyKind = "duplicate_object"
	// AnomalyDuplicateDiscovery means two completed discoveries share an ip
	AnomalyDuplicateDiscovery AnomalyKind = "duplicate_discovery"
)

// Anomaly records one collision resolved during a merge
type Anomaly struct {
	Kind AnomalyKind
	IP   string
	// Kept and Dropped are the record ids involved (0 when unknown)
	Kept    int64
	Dropped int64
}

// Result is a merged view plus the anomalies resolved while building it
type Result struct {
	Rows      []domain.MergedViewRow
	Anomalies []Anomaly
}

// Reconcile merges discoveries and objects. Only completed discoveries are
// kept, any ip owned by an object suppresses its discovery, and the output
// lists surviving discoveries followed by objects in input order.
func Reconcile(discoveries []domain.DiscoveryRecord, objects []domain.ManagedObject) []domain.MergedViewRow {
	return Merge(discoveries, objects).Rows
}

// Merge is Reconcile that also reports the collisions it resolved.
// Duplicate objects are last-write-wins at the first-seen position;
// duplicate discoveries keep their first occurrence.
func Merge(discoveries []domain.DiscoveryRecord, objects []domain.ManagedObject) Result {
	var res Result

	byIP := make(map[string]int, len(objects))
	uniqueObjects := make([]domain.ManagedObject, 0, len(objects))
	for _, o := range objects {
		if i, ok := byIP[o.IP]; ok {
			res.Anomalies = append(res.Anomalies, Anomaly{
				Kind:    AnomalyDuplicateObject,
				IP:      o.IP,
				Kept:    o.ID,
				Dropped: uniqueObjects[i].ID,
			})
			uniqueObjects[i] = o
			continue
		}
		byIP[o.IP] = len(uniqueObjects)
		uniqueObjects = append(uniqueObjects, o)
	}

	seen := make(map[string]int64)
	rows := make([]domain.MergedViewRow, 0, len(discoveries)+len(uniqueObjects))
	for _, d := range discoveries {
		if !d.IsCompleted() {
			continue
		}
		if _, ok := byIP[d.IP]; ok {
			continue
		}
		if first, ok := seen[d.IP]; ok {
			res.Anomalies = append(res.Anomalies, Anomaly{
				Kind:    AnomalyDuplicateDiscovery,
				IP:      d.IP,
				Kept:    first,
				Dropped: d.ID,
			})
			continue
		}
		seen[d.IP] = d.ID
		rows = append(rows, domain.NewDiscoveryRow(d))
	}

	for _, o := range uniqueObjects {
		rows = append(rows, domain.NewObjectRow(o))
	}

	res.Rows = rows
	return res
}

// Reconciler wraps Merge and logs every resolved anomaly
type Reconciler struct {
	log zerolog.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(log zerolog.Logger) *Reconciler {
	return &Reconciler{log: log}
}

// Reconcile merges the two record sets, logging collisions
func (r *Reconciler) Reconcile(discoveries []domain.DiscoveryRecord, objects []domain.ManagedObject) []domain.MergedViewRow {
	res := Merge(discoveries, objects)
	for _, a := range res.Anomalies {
		r.log.Warn().
			Str("anomaly", string(a.Kind)).
			Str("ip", a.IP).
			Int64("kept_id", a.Kept).
			Int64("dropped_id", a.Dropped).
			Msg("Duplicate ip in merged view")
	}
	return res.Rows
}
