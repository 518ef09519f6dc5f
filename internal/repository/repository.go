package repository

import (
	"context"

	"nmsview/internal/domain"
)

// Repository is the local collaborator store. It serves the same read and
// write contracts as the remote API plus the upserts used for seeding.
type Repository interface {
	domain.Source
	domain.HistorySource
	domain.ObjectWriter
	domain.DiscoveryRunner
	domain.CredentialSource

	// Credentials
	UpsertCredential(ctx context.Context, cred *domain.Credential) error
	DeleteCredential(ctx context.Context, id int64) error

	// Discoveries
	UpsertDiscovery(ctx context.Context, d *domain.DiscoveryRecord) error
	SetDiscoveryStatus(ctx context.Context, id int64, status domain.DiscoveryStatus) error
	DeleteDiscovery(ctx context.Context, id int64) error

	// Managed objects
	UpsertObject(ctx context.Context, obj *domain.ManagedObject) error
	GetObject(ctx context.Context, id int64) (*domain.ManagedObject, error)

	// Metric snapshots
	AppendSnapshot(ctx context.Context, objectID int64, snap domain.MetricSnapshot) error
	PruneSnapshots(ctx context.Context, objectID int64, keep int) (int64, error)

	// Close releases resources
	Close() error
}
