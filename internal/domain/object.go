package domain

import "fmt"

// ProvisioningStatus is the lifecycle state of a managed object
type ProvisioningStatus string

const (
	ProvisioningPending ProvisioningStatus = "pending"
	ProvisioningActive  ProvisioningStatus = "active"
	ProvisioningFailed  ProvisioningStatus = "failed"
)

// ManagedObject is a host promoted from a completed discovery into active polling
type ManagedObject struct {
	ID             int64              `json:"object_id"`
	IP             string             `json:"ip"`
	Username       string             `json:"username,omitempty"`
	Password       string             `json:"-"`
	PluginEngine   string             `json:"plugin_engine,omitempty"`
	PollIntervalMs int64              `json:"poll_interval_ms"`
	Status         ProvisioningStatus `json:"provisioning_status"`
	DeviceType     DeviceType         `json:"device_type,omitempty"`
	CredentialName string             `json:"credential_name,omitempty"`
}

// ProvisionRequest promotes the completed discovery at IP into a managed object
type ProvisionRequest struct {
	IP             string `json:"ip"`
	PollIntervalMs int64  `json:"poll_interval_ms"`
}

// Validate checks the request before it reaches the collaborator
func (r ProvisionRequest) Validate() error {
	if r.IP == "" {
		return ErrMissingIP
	}
	if r.PollIntervalMs <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidPollInterval, r.PollIntervalMs)
	}
	return nil
}
