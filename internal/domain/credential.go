package domain

import "strconv"

// Credential is a named username/password pair used for discovery and polling
type Credential struct {
	ID         int64      `json:"credential_id" yaml:"id"`
	Name       string     `json:"credential_name" yaml:"name"`
	DeviceType DeviceType `json:"system_type" yaml:"system_type"`
	Username   string     `json:"username,omitempty" yaml:"username"`
	Password   string     `json:"-" yaml:"password"`
}

// Label returns the display name, falling back to the id
func (c Credential) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return "credential-" + strconv.FormatInt(c.ID, 10)
}
