// Package domain defines the core types of the nmsview monitoring engine.
//
// This package contains the records supplied by the storage/API collaborator
// and the derived values the engine produces from them.
//
// # Records
//
// DiscoveryRecord is a probe request against a candidate address. Its status
// is owned by the collaborator; the engine only reads it.
//
// ManagedObject is a host promoted from a completed discovery into active
// polling, with a poll interval and provisioning status.
//
// Credential is a named username/password pair referenced by discoveries.
//
// # Derived Values
//
// MergedViewRow is one row of the reconciled dashboard view: a tagged union
// over a discovery and an object, carrying display fields and legal actions.
//
// MetricSnapshot is one timestamped bag of counters. Counters is left open so
// new metric families pass through untouched.
//
// SeriesSet holds the six chart families derived from a snapshot history.
//
// # Collaborator Contracts
//
// Source, HistorySource, ObjectWriter and DiscoveryRunner describe what the
// engine needs from the storage/API collaborator. TransportError marks any
// failed fetch so pollers can keep serving the last good result.
package domain
