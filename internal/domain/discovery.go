package domain

// DeviceType is the kind of host a discovery or credential targets
type DeviceType string

const (
	DeviceTypeLinux   DeviceType = "linux"
	DeviceTypeWindows DeviceType = "windows"
	DeviceTypeSNMP    DeviceType = "snmp"
)

// ParseDeviceType converts a string to DeviceType, defaulting to linux
func ParseDeviceType(s string) DeviceType {
	switch s {
	case "windows":
		return DeviceTypeWindows
	case "snmp":
		return DeviceTypeSNMP
	default:
		return DeviceTypeLinux
	}
}

// DiscoveryStatus is the state of a discovery run, owned by the collaborator
type DiscoveryStatus string

const (
	DiscoveryStatusPending   DiscoveryStatus = "pending"
	DiscoveryStatusRunning   DiscoveryStatus = "running"
	DiscoveryStatusCompleted DiscoveryStatus = "completed"
	DiscoveryStatusFailed    DiscoveryStatus = "failed"
)

// Valid reports whether s is one of the known statuses
func (s DiscoveryStatus) Valid() bool {
	switch s {
	case DiscoveryStatusPending, DiscoveryStatusRunning, DiscoveryStatusCompleted, DiscoveryStatusFailed:
		return true
	}
	return false
}

// DiscoveryRecord is a probe request against a candidate address
type DiscoveryRecord struct {
	ID             int64           `json:"discovery_id"`
	IP             string          `json:"ip"`
	Port           int             `json:"port"`
	CredentialID   int64           `json:"credential_id"`
	CredentialName string          `json:"credential_name,omitempty"`
	DeviceType     DeviceType      `json:"device_type"`
	Status         DiscoveryStatus `json:"status"`
}

// IsCompleted reports whether the discovery finished successfully
func (d DiscoveryRecord) IsCompleted() bool {
	return d.Status == DiscoveryStatusCompleted
}
