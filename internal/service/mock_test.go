package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"nmsview/internal/domain"
)

// MockSource is a mock implementation of the collaborator contracts
type MockSource struct {
	mock.Mock
}

func (m *MockSource) ListDiscoveries(ctx context.Context) ([]domain.DiscoveryRecord, error) {
	args := m.Called(ctx)
	d, _ := args.Get(0).([]domain.DiscoveryRecord)
	return d, args.Error(1)
}

func (m *MockSource) ListManagedObjects(ctx context.Context) ([]domain.ManagedObject, error) {
	args := m.Called(ctx)
	o, _ := args.Get(0).([]domain.ManagedObject)
	return o, args.Error(1)
}

func (m *MockSource) GetMetricSnapshot(ctx context.Context, objectID int64) (domain.MetricSnapshot, error) {
	args := m.Called(ctx, objectID)
	s, _ := args.Get(0).(domain.MetricSnapshot)
	return s, args.Error(1)
}

func (m *MockSource) ListMetricSnapshots(ctx context.Context, objectID int64) ([]domain.MetricSnapshot, error) {
	args := m.Called(ctx, objectID)
	s, _ := args.Get(0).([]domain.MetricSnapshot)
	return s, args.Error(1)
}

func (m *MockSource) Provision(ctx context.Context, req domain.ProvisionRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockSource) DeleteObject(ctx context.Context, objectID int64) error {
	return m.Called(ctx, objectID).Error(0)
}

func (m *MockSource) RunDiscovery(ctx context.Context, discoveryID int64) error {
	return m.Called(ctx, discoveryID).Error(0)
}

func (m *MockSource) ListCredentials(ctx context.Context) ([]domain.Credential, error) {
	args := m.Called(ctx)
	c, _ := args.Get(0).([]domain.Credential)
	return c, args.Error(1)
}

// readOnlySource only implements domain.Source
type readOnlySource struct {
	m *MockSource
}

func (r readOnlySource) ListDiscoveries(ctx context.Context) ([]domain.DiscoveryRecord, error) {
	return r.m.ListDiscoveries(ctx)
}

func (r readOnlySource) ListManagedObjects(ctx context.Context) ([]domain.ManagedObject, error) {
	return r.m.ListManagedObjects(ctx)
}

func (r readOnlySource) GetMetricSnapshot(ctx context.Context, objectID int64) (domain.MetricSnapshot, error) {
	return r.m.GetMetricSnapshot(ctx, objectID)
}
