package sqlite

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"nmsview/internal/domain"
	"nmsview/internal/repository"
	"nmsview/internal/secret"
)

const saltKey = "secret_salt"

var _ repository.Repository = (*Repository)(nil)

// Repository implements repository.Repository using SQLite
type Repository struct {
	db     *sql.DB
	sealer *secret.Sealer
	log    zerolog.Logger
}

// Option configures a Repository
type Option func(*options)

type options struct {
	secretKey string
	log       zerolog.Logger
}

// WithSecretKey seals stored passwords with a key derived from passphrase
func WithSecretKey(passphrase string) Option {
	return func(o *options) {
		o.secretKey = passphrase
	}
}

// WithLogger sets the repository logger
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// New creates a new SQLite repository
func New(dbPath string, opts ...Option) (*Repository, error) {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	repo := &Repository{db: db, log: o.log}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if o.secretKey != "" {
		if err := repo.initSealer(o.secretKey); err != nil {
			db.Close()
			return nil, err
		}
	} else {
		repo.log.Warn().Msg("No secret key configured, passwords are stored unsealed")
	}

	return repo, nil
}

func dsn(path string) string {
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path == ":memory:" {
		return ":memory:?" + pragmas
	}
	return "file:" + path + "?" + pragmas + "&_pragma=journal_mode(WAL)"
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS credentials (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		system_type TEXT NOT NULL DEFAULT 'linux',
		username TEXT,
		password TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS discoveries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ip TEXT NOT NULL,
		port INTEGER,
		credential_id INTEGER,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (credential_id) REFERENCES credentials(id) ON DELETE SET NULL
	);

	CREATE TABLE IF NOT EXISTS objects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ip TEXT NOT NULL UNIQUE,
		username TEXT,
		password TEXT,
		plugin_engine TEXT,
		poll_interval_ms INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		system_type TEXT,
		credential_name TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		object_id INTEGER NOT NULL,
		timestamp INTEGER NOT NULL,
		counters JSON NOT NULL,
		PRIMARY KEY (object_id, timestamp),
		FOREIGN KEY (object_id) REFERENCES objects(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_discoveries_ip ON discoveries(ip);
	CREATE INDEX IF NOT EXISTS idx_discoveries_status ON discoveries(status);
	`

	_, err := r.db.Exec(schema)
	return err
}

// initSealer loads or creates the per-database salt and derives the key
func (r *Repository) initSealer(passphrase string) error {
	var encoded string
	err := r.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, saltKey).Scan(&encoded)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		salt, err := secret.NewSalt()
		if err != nil {
			return err
		}
		encoded = base64.StdEncoding.EncodeToString(salt)
		if _, err := r.db.Exec(`INSERT INTO metadata (key, value) VALUES (?, ?)`, saltKey, encoded); err != nil {
			return fmt.Errorf("failed to store secret salt: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to load secret salt: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("corrupt secret salt: %w", err)
	}
	sealer, err := secret.NewSealer(passphrase, salt)
	if err != nil {
		return fmt.Errorf("failed to derive secret key: %w", err)
	}
	r.sealer = sealer
	return nil
}

func (r *Repository) seal(plain string) (string, error) {
	if r.sealer == nil {
		return plain, nil
	}
	return r.sealer.Seal(plain)
}

func (r *Repository) open(stored string) (string, error) {
	if !secret.IsSealed(stored) {
		return stored, nil
	}
	if r.sealer == nil {
		return "", errors.New("password is sealed but no secret key is configured")
	}
	return r.sealer.Open(stored)
}

// ============================================================================
// Credentials
// ============================================================================

// ListCredentials returns every credential ordered by id
func (r *Repository) ListCredentials(ctx context.Context) ([]domain.Credential, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+credentialColumns+` FROM credentials ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	defer rows.Close()

	creds := []domain.Credential{}
	for rows.Next() {
		var row credentialRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		cred := row.toDomain()
		if cred.Password, err = r.open(cred.Password); err != nil {
			return nil, fmt.Errorf("credential %d: %w", cred.ID, err)
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credentials: %w", err)
	}
	return creds, nil
}

// UpsertCredential inserts or updates a credential by name. The assigned id
// is written back to cred.
func (r *Repository) UpsertCredential(ctx context.Context, cred *domain.Credential) error {
	if strings.TrimSpace(cred.Name) == "" {
		return errors.New("credential name required")
	}
	password, err := r.seal(cred.Password)
	if err != nil {
		return fmt.Errorf("failed to seal credential password: %w", err)
	}

	deviceType := cred.DeviceType
	if deviceType == "" {
		deviceType = domain.DeviceTypeLinux
	}

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO credentials (name, system_type, username, password, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			system_type = excluded.system_type,
			username = excluded.username,
			password = excluded.password,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`, cred.Name, string(deviceType), stringToNull(cred.Username), stringToNull(password)).Scan(&cred.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}
	return nil
}

// DeleteCredential removes a credential; discoveries keep running without one
func (r *Repository) DeleteCredential(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, "credentials", "credential", id)
}

// ============================================================================
// Discoveries
// ============================================================================

// ListDiscoveries returns every discovery ordered by id
func (r *Repository) ListDiscoveries(ctx context.Context) ([]domain.DiscoveryRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+discoveryColumns+`
		FROM discoveries d
		LEFT JOIN credentials c ON c.id = d.credential_id
		ORDER BY d.id
	`)
	if err != nil {
		return nil, domain.NewTransportError("list discoveries", err)
	}
	defer rows.Close()

	discoveries := []domain.DiscoveryRecord{}
	for rows.Next() {
		var row discoveryRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, domain.NewTransportError("list discoveries", err)
		}
		d, err := row.toDomain()
		if err != nil {
			r.log.Warn().Err(err).Msg("Skipping discovery row")
			continue
		}
		discoveries = append(discoveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewTransportError("list discoveries", err)
	}
	return discoveries, nil
}

// UpsertDiscovery inserts a discovery (ID 0) or updates an existing one
func (r *Repository) UpsertDiscovery(ctx context.Context, d *domain.DiscoveryRecord) error {
	if strings.TrimSpace(d.IP) == "" {
		return errors.New("discovery ip required")
	}
	status := d.Status
	if status == "" {
		status = domain.DiscoveryStatusPending
	}
	if !status.Valid() {
		return fmt.Errorf("invalid discovery status %q", status)
	}

	if d.ID == 0 {
		err := r.db.QueryRowContext(ctx, `
			INSERT INTO discoveries (ip, port, credential_id, status)
			VALUES (?, ?, ?, ?)
			RETURNING id
		`, d.IP, d.Port, idToNull(d.CredentialID), string(status)).Scan(&d.ID)
		if err != nil {
			return fmt.Errorf("failed to insert discovery: %w", err)
		}
		d.Status = status
		return nil
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO discoveries (id, ip, port, credential_id, status, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			ip = excluded.ip,
			port = excluded.port,
			credential_id = excluded.credential_id,
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP
	`, d.ID, d.IP, d.Port, idToNull(d.CredentialID), string(status))
	if err != nil {
		return fmt.Errorf("failed to upsert discovery: %w", err)
	}
	d.Status = status
	return nil
}

// SetDiscoveryStatus updates the status of one discovery
func (r *Repository) SetDiscoveryStatus(ctx context.Context, id int64, status domain.DiscoveryStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid discovery status %q", status)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE discoveries SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update discovery status: %w", err)
	}
	return requireAffected(res, "discovery", id)
}

// RunDiscovery marks a discovery completed. The local store performs no
// network probing; it stands in for a collaborator that already has.
func (r *Repository) RunDiscovery(ctx context.Context, discoveryID int64) error {
	if err := r.SetDiscoveryStatus(ctx, discoveryID, domain.DiscoveryStatusCompleted); err != nil {
		return err
	}
	r.log.Info().Int64("discovery_id", discoveryID).Msg("Discovery marked completed")
	return nil
}

// DeleteDiscovery removes a discovery
func (r *Repository) DeleteDiscovery(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, "discoveries", "discovery", id)
}

// ============================================================================
// Managed Objects
// ============================================================================

// ListManagedObjects returns every managed object ordered by id
func (r *Repository) ListManagedObjects(ctx context.Context) ([]domain.ManagedObject, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+objectColumns+` FROM objects ORDER BY id`)
	if err != nil {
		return nil, domain.NewTransportError("list objects", err)
	}
	defer rows.Close()

	objects := []domain.ManagedObject{}
	for rows.Next() {
		var row objectRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, domain.NewTransportError("list objects", err)
		}
		obj := row.toDomain()
		if obj.Password, err = r.open(obj.Password); err != nil {
			return nil, fmt.Errorf("object %d: %w", obj.ID, err)
		}
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewTransportError("list objects", err)
	}
	return objects, nil
}

// GetObject retrieves a managed object by id
func (r *Repository) GetObject(ctx context.Context, id int64) (*domain.ManagedObject, error) {
	var row objectRow
	err := r.db.QueryRowContext(ctx, `SELECT `+objectColumns+` FROM objects WHERE id = ?`, id).Scan(row.scanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("object %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query object: %w", err)
	}
	obj := row.toDomain()
	if obj.Password, err = r.open(obj.Password); err != nil {
		return nil, fmt.Errorf("object %d: %w", id, err)
	}
	return &obj, nil
}

// UpsertObject inserts or updates a managed object keyed by ip
func (r *Repository) UpsertObject(ctx context.Context, obj *domain.ManagedObject) error {
	if strings.TrimSpace(obj.IP) == "" {
		return errors.New("object ip required")
	}
	if obj.PollIntervalMs <= 0 {
		return fmt.Errorf("object %s: %w", obj.IP, domain.ErrInvalidPollInterval)
	}
	password, err := r.seal(obj.Password)
	if err != nil {
		return fmt.Errorf("failed to seal object password: %w", err)
	}
	status := obj.Status
	if status == "" {
		status = domain.ProvisioningActive
	}

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO objects (ip, username, password, plugin_engine, poll_interval_ms, status,
			system_type, credential_name, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(ip) DO UPDATE SET
			username = excluded.username,
			password = excluded.password,
			plugin_engine = excluded.plugin_engine,
			poll_interval_ms = excluded.poll_interval_ms,
			status = excluded.status,
			system_type = excluded.system_type,
			credential_name = excluded.credential_name,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`, obj.IP, stringToNull(obj.Username), stringToNull(password), stringToNull(obj.PluginEngine),
		obj.PollIntervalMs, string(status), stringToNull(string(obj.DeviceType)),
		stringToNull(obj.CredentialName)).Scan(&obj.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert object: %w", err)
	}
	obj.Status = status
	return nil
}

// Provision promotes the completed discovery at req.IP into a managed
// object, copying the discovery's credential.
func (r *Repository) Provision(ctx context.Context, req domain.ProvisionRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	var username, password, credName, systemType sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT c.username, c.password, c.name, c.system_type
		FROM discoveries d
		LEFT JOIN credentials c ON c.id = d.credential_id
		WHERE d.ip = ? AND d.status = ?
		ORDER BY d.id
		LIMIT 1
	`, req.IP, string(domain.DiscoveryStatusCompleted)).Scan(&username, &password, &credName, &systemType)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("no completed discovery for %s: %w", req.IP, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to look up discovery: %w", err)
	}

	plain, err := r.open(nullToString(password))
	if err != nil {
		return fmt.Errorf("credential for %s: %w", req.IP, err)
	}

	obj := &domain.ManagedObject{
		IP:             req.IP,
		Username:       nullToString(username),
		Password:       plain,
		PluginEngine:   pluginEngine(domain.ParseDeviceType(nullToString(systemType))),
		PollIntervalMs: req.PollIntervalMs,
		Status:         domain.ProvisioningActive,
		DeviceType:     domain.ParseDeviceType(nullToString(systemType)),
		CredentialName: nullToString(credName),
	}
	if err := r.UpsertObject(ctx, obj); err != nil {
		return err
	}

	r.log.Info().Int64("object_id", obj.ID).Str("ip", obj.IP).Msg("Provisioned object")
	return nil
}

// pluginEngine names the polling plugin for a device type
func pluginEngine(t domain.DeviceType) string {
	switch t {
	case domain.DeviceTypeWindows:
		return "winrm"
	case domain.DeviceTypeSNMP:
		return "snmp"
	default:
		return "ssh"
	}
}

// DeleteObject removes a managed object and its snapshots
func (r *Repository) DeleteObject(ctx context.Context, objectID int64) error {
	return r.deleteByID(ctx, "objects", "object", objectID)
}

// ============================================================================
// Metric Snapshots
// ============================================================================

// AppendSnapshot stores one sample. A repeated timestamp replaces the sample.
func (r *Repository) AppendSnapshot(ctx context.Context, objectID int64, snap domain.MetricSnapshot) error {
	counters, err := marshalCounters(snap.Counters)
	if err != nil {
		return fmt.Errorf("failed to marshal counters: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO snapshots (object_id, timestamp, counters) VALUES (?, ?, ?)
		ON CONFLICT(object_id, timestamp) DO UPDATE SET counters = excluded.counters
	`, objectID, snap.Timestamp, counters)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// ListMetricSnapshots returns every stored sample for an object, oldest first
func (r *Repository) ListMetricSnapshots(ctx context.Context, objectID int64) ([]domain.MetricSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT timestamp, counters FROM snapshots WHERE object_id = ? ORDER BY timestamp
	`, objectID)
	if err != nil {
		return nil, domain.NewTransportError("list snapshots", err)
	}
	defer rows.Close()

	snaps := []domain.MetricSnapshot{}
	for rows.Next() {
		var (
			ts       int64
			counters string
		)
		if err := rows.Scan(&ts, &counters); err != nil {
			return nil, domain.NewTransportError("list snapshots", err)
		}
		c, err := unmarshalCounters(counters)
		if err != nil {
			r.log.Warn().Err(err).Int64("object_id", objectID).Int64("timestamp", ts).Msg("Skipping corrupt snapshot")
			continue
		}
		snaps = append(snaps, domain.MetricSnapshot{Timestamp: ts, Counters: c})
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewTransportError("list snapshots", err)
	}
	return snaps, nil
}

// GetMetricSnapshot returns the newest stored sample for an object
func (r *Repository) GetMetricSnapshot(ctx context.Context, objectID int64) (domain.MetricSnapshot, error) {
	var (
		ts       int64
		counters string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT timestamp, counters FROM snapshots WHERE object_id = ?
		ORDER BY timestamp DESC LIMIT 1
	`, objectID).Scan(&ts, &counters)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MetricSnapshot{}, fmt.Errorf("snapshots for object %d: %w", objectID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.MetricSnapshot{}, domain.NewTransportError("get snapshot", err)
	}
	c, err := unmarshalCounters(counters)
	if err != nil {
		return domain.MetricSnapshot{}, fmt.Errorf("failed to unmarshal counters: %w", err)
	}
	return domain.MetricSnapshot{Timestamp: ts, Counters: c}, nil
}

// PruneSnapshots keeps only the newest keep samples for an object and
// returns the number removed
func (r *Repository) PruneSnapshots(ctx context.Context, objectID int64, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM snapshots
		WHERE object_id = ? AND timestamp NOT IN (
			SELECT timestamp FROM snapshots WHERE object_id = ?
			ORDER BY timestamp DESC LIMIT ?
		)
	`, objectID, objectID, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ============================================================================
// Shared
// ============================================================================

func (r *Repository) deleteByID(ctx context.Context, table, kind string, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return requireAffected(res, kind, id)
}

func requireAffected(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, domain.ErrNotFound)
	}
	return nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}
