// Package service implements the polling logic of the nmsview application.
//
// This package coordinates the collaborator source, the reconciliation engine
// and the metrics pipeline, and publishes the results for the HTTP handlers
// and terminal dashboard.
//
// # Services
//
// DashboardService periodically fetches discoveries and managed objects,
// reconciles them into the merged view and forwards provisioning, delete and
// discovery-run requests to the source when it supports them.
//
// MonitorService runs one poller per monitored object. Each poller appends
// new snapshots to a bounded window and republishes the six chart series and
// the summary fields after every change.
//
// # Event System
//
// Both services publish events via EventBus for real-time updates to connected
// clients via Server-Sent Events (SSE). Event types include merged view and
// series updates, fetch failures, and monitor session changes.
//
// # Design Principles
//
// - A failed fetch never clears previously published data
// - Published values are copies; readers never share a window with its poller
// - Event-driven for real-time updates
package service
