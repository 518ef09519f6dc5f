package httpapi

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"nmsview/internal/domain"
)

// flexInt accepts a JSON number, a numeric string or null
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = flexInt(i)
		return nil
	}
	fl, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexInt(int64(fl))
	return nil
}

type discoveryDTO struct {
	DiscoveryID    flexInt `json:"discovery_id"`
	IP             string  `json:"ip"`
	Port           flexInt `json:"port"`
	CredentialID   flexInt `json:"credential_id"`
	CredentialName string  `json:"credential_name"`
	SystemType     string  `json:"system_type"`
	Status         string  `json:"discovery_status"`
}

func (d discoveryDTO) toDomain() domain.DiscoveryRecord {
	return domain.DiscoveryRecord{
		ID:             int64(d.DiscoveryID),
		IP:             d.IP,
		Port:           int(d.Port),
		CredentialID:   int64(d.CredentialID),
		CredentialName: d.CredentialName,
		DeviceType:     domain.ParseDeviceType(d.SystemType),
		Status:         domain.DiscoveryStatus(strings.ToLower(d.Status)),
	}
}

type objectDTO struct {
	ObjectID       flexInt `json:"object_id"`
	IP             string  `json:"ip"`
	Username       string  `json:"username"`
	Password       string  `json:"password"`
	PluginEngine   string  `json:"plugin_engine"`
	PollInterval   flexInt `json:"pollinterval"`
	Status         string  `json:"provisioning_status"`
	SystemType     string  `json:"system_type"`
	CredentialName string  `json:"credential_name"`
}

func (o objectDTO) toDomain() domain.ManagedObject {
	status := domain.ProvisioningStatus(strings.ToLower(o.Status))
	if status == "" {
		status = domain.ProvisioningActive
	}
	return domain.ManagedObject{
		ID:             int64(o.ObjectID),
		IP:             o.IP,
		Username:       o.Username,
		Password:       o.Password,
		PluginEngine:   o.PluginEngine,
		PollIntervalMs: int64(o.PollInterval),
		Status:         status,
		DeviceType:     domain.ParseDeviceType(o.SystemType),
		CredentialName: o.CredentialName,
	}
}

// credentialDTO carries its secret as a JSON document inside a string
type credentialDTO struct {
	CredentialID   flexInt         `json:"credential_id"`
	CredentialName string          `json:"credential_name"`
	CredentialData json.RawMessage `json:"credential_data"`
	SystemType     string          `json:"system_type"`
}

type credentialData struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c credentialDTO) toDomain() domain.Credential {
	cred := domain.Credential{
		ID:         int64(c.CredentialID),
		Name:       c.CredentialName,
		DeviceType: domain.ParseDeviceType(c.SystemType),
	}

	raw := c.CredentialData
	var nested string
	if json.Unmarshal(raw, &nested) == nil {
		raw = json.RawMessage(nested)
	}
	var data credentialData
	if json.Unmarshal(raw, &data) == nil {
		cred.Username = data.Username
		cred.Password = data.Password
	}
	return cred
}

type provisionDTO struct {
	IP           string `json:"ip"`
	PollInterval int64  `json:"pollinterval"`
}

type runDiscoveryDTO struct {
	DiscoveryID int64 `json:"discovery_id"`
}
