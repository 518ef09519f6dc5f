package domain

import "strconv"

// RowKind tags which record a merged row came from
type RowKind string

const (
	RowKindDiscovery RowKind = "discovery"
	RowKindObject    RowKind = "object"
)

// Action is an operation the dashboard may offer on a row
type Action string

const (
	ActionProvision Action = "provision"
	ActionMonitor   Action = "monitor"
	ActionDelete    Action = "delete"
)

// NotApplicable is shown in place of a poll interval for discovery rows
const NotApplicable = "Not Applicable"

// MergedViewRow is one row of the reconciled dashboard view.
// Exactly one of Discovery or Object is set, matching Kind.
type MergedViewRow struct {
	Kind           RowKind    `json:"kind"`
	IP             string     `json:"ip"`
	PollInterval   string     `json:"poll_interval"`
	DeviceType     DeviceType `json:"device_type,omitempty"`
	CredentialName string     `json:"credential_name,omitempty"`
	Actions        []Action   `json:"actions"`

	Discovery *DiscoveryRecord `json:"discovery,omitempty"`
	Object    *ManagedObject   `json:"object,omitempty"`
}

// NewDiscoveryRow builds the row for a completed discovery
func NewDiscoveryRow(d DiscoveryRecord) MergedViewRow {
	actions := []Action{}
	if d.IsCompleted() {
		actions = append(actions, ActionProvision)
	}
	rec := d
	return MergedViewRow{
		Kind:           RowKindDiscovery,
		IP:             d.IP,
		PollInterval:   NotApplicable,
		DeviceType:     d.DeviceType,
		CredentialName: d.CredentialName,
		Actions:        actions,
		Discovery:      &rec,
	}
}

// NewObjectRow builds the row for a managed object
func NewObjectRow(o ManagedObject) MergedViewRow {
	actions := []Action{ActionMonitor}
	if o.ID != 0 {
		actions = append(actions, ActionDelete)
	}
	obj := o
	return MergedViewRow{
		Kind:           RowKindObject,
		IP:             o.IP,
		PollInterval:   strconv.FormatInt(o.PollIntervalMs, 10),
		DeviceType:     o.DeviceType,
		CredentialName: o.CredentialName,
		Actions:        actions,
		Object:         &obj,
	}
}

// HasAction reports whether a is legal for the row
func (r MergedViewRow) HasAction(a Action) bool {
	for _, x := range r.Actions {
		if x == a {
			return true
		}
	}
	return false
}
