package domain

import "context"

// Source is the read side of the storage/API collaborator
type Source interface {
	ListDiscoveries(ctx context.Context) ([]DiscoveryRecord, error)
	ListManagedObjects(ctx context.Context) ([]ManagedObject, error)
	GetMetricSnapshot(ctx context.Context, objectID int64) (MetricSnapshot, error)
}

// HistorySource is implemented by collaborators that can return every
// retained snapshot for an object, oldest first
type HistorySource interface {
	ListMetricSnapshots(ctx context.Context, objectID int64) ([]MetricSnapshot, error)
}

// ObjectWriter is the provisioning side of the collaborator
type ObjectWriter interface {
	Provision(ctx context.Context, req ProvisionRequest) error
	DeleteObject(ctx context.Context, objectID int64) error
}

// DiscoveryRunner asks the collaborator to execute a discovery
type DiscoveryRunner interface {
	RunDiscovery(ctx context.Context, discoveryID int64) error
}

// CredentialSource lists the collaborator's stored credentials
type CredentialSource interface {
	ListCredentials(ctx context.Context) ([]Credential, error)
}
