package sqlite

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"

	"nmsview/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullToInt64 safely converts sql.NullInt64 to int64
func nullToInt64(ni sql.NullInt64) int64 {
	if ni.Valid {
		return ni.Int64
	}
	return 0
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// idToNull maps a zero id to NULL
func idToNull(id int64) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}

// ============================================================================
// JSON Marshaling Helpers
// ============================================================================

// marshalCounters encodes a counter bag, storing {} for nil
func marshalCounters(c domain.Counters) (string, error) {
	if c == nil {
		return "{}", nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unmarshalCounters decodes a counter bag keeping numbers as json.Number
func unmarshalCounters(data string) (domain.Counters, error) {
	out := domain.Counters{}
	if data == "" {
		return out, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// ============================================================================
// Schema Evolution Guide
// ============================================================================
//
// To add a column to a table:
// 1. Add field to the row struct (below)
// 2. Update scanArgs() - APPEND to end to match column order
// 3. Update the columns constant - APPEND to end
// 4. Update toDomain() to map the new field
// 5. Add the column to the CREATE TABLE in sqlite.go migrate()
// 6. Update relevant tests
//
// CRITICAL: Column order must match between the columns constant,
// scanArgs() and all SELECT queries using it.

// ============================================================================
// Credential Row Scanner
// ============================================================================

// credentialRow holds all columns from a credential query for scanning
type credentialRow struct {
	ID         int64
	Name       string
	SystemType sql.NullString
	Username   sql.NullString
	Password   sql.NullString
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match credentialColumns order exactly:
// id, name, system_type, username, password
func (r *credentialRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,         // 1
		&r.Name,       // 2
		&r.SystemType, // 3
		&r.Username,   // 4
		&r.Password,   // 5
	}
}

// toDomain converts the scanned row to a domain.Credential.
// The password is still sealed; the repository opens it.
func (r *credentialRow) toDomain() domain.Credential {
	return domain.Credential{
		ID:         r.ID,
		Name:       r.Name,
		DeviceType: domain.ParseDeviceType(nullToString(r.SystemType)),
		Username:   nullToString(r.Username),
		Password:   nullToString(r.Password),
	}
}

// credentialColumns returns the SELECT column list for credential queries
const credentialColumns = `id, name, system_type, username, password`

// ============================================================================
// Discovery Row Scanner
// ============================================================================

// discoveryRow holds the columns of a discovery joined with its credential
type discoveryRow struct {
	ID             int64
	IP             string
	Port           sql.NullInt64
	CredentialID   sql.NullInt64
	Status         string
	CredentialName sql.NullString
	SystemType     sql.NullString
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match discoveryColumns order exactly:
// d.id, d.ip, d.port, d.credential_id, d.status, c.name, c.system_type
func (r *discoveryRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,             // 1
		&r.IP,             // 2
		&r.Port,           // 3
		&r.CredentialID,   // 4
		&r.Status,         // 5
		&r.CredentialName, // 6
		&r.SystemType,     // 7
	}
}

// toDomain converts the scanned row to a domain.DiscoveryRecord
func (r *discoveryRow) toDomain() (domain.DiscoveryRecord, error) {
	status := domain.DiscoveryStatus(r.Status)
	if !status.Valid() {
		return domain.DiscoveryRecord{}, fmt.Errorf("discovery %d has unknown status %q", r.ID, r.Status)
	}
	return domain.DiscoveryRecord{
		ID:             r.ID,
		IP:             r.IP,
		Port:           int(nullToInt64(r.Port)),
		CredentialID:   nullToInt64(r.CredentialID),
		CredentialName: nullToString(r.CredentialName),
		DeviceType:     domain.ParseDeviceType(nullToString(r.SystemType)),
		Status:         status,
	}, nil
}

// discoveryColumns returns the SELECT column list for discovery queries.
// Queries must alias discoveries as d and LEFT JOIN credentials as c.
const discoveryColumns = `d.id, d.ip, d.port, d.credential_id, d.status, c.name, c.system_type`

// ============================================================================
// Object Row Scanner
// ============================================================================

// objectRow holds all columns from an object query for scanning
type objectRow struct {
	ID             int64
	IP             string
	Username       sql.NullString
	Password       sql.NullString
	PluginEngine   sql.NullString
	PollIntervalMs int64
	Status         string
	SystemType     sql.NullString
	CredentialName sql.NullString
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match objectColumns order exactly:
// id, ip, username, password, plugin_engine, poll_interval_ms, status,
// system_type, credential_name
func (r *objectRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,             // 1
		&r.IP,             // 2
		&r.Username,       // 3
		&r.Password,       // 4
		&r.PluginEngine,   // 5
		&r.PollIntervalMs, // 6
		&r.Status,         // 7
		&r.SystemType,     // 8
		&r.CredentialName, // 9
	}
}

// toDomain converts the scanned row to a domain.ManagedObject.
// The password is still sealed; the repository opens it.
func (r *objectRow) toDomain() domain.ManagedObject {
	return domain.ManagedObject{
		ID:             r.ID,
		IP:             r.IP,
		Username:       nullToString(r.Username),
		Password:       nullToString(r.Password),
		PluginEngine:   nullToString(r.PluginEngine),
		PollIntervalMs: r.PollIntervalMs,
		Status:         domain.ProvisioningStatus(r.Status),
		DeviceType:     domain.ParseDeviceType(nullToString(r.SystemType)),
		CredentialName: nullToString(r.CredentialName),
	}
}

// objectColumns returns the SELECT column list for object queries
const objectColumns = `id, ip, username, password, plugin_engine, poll_interval_ms, status,
	system_type, credential_name`
