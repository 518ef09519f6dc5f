// Package repository defines the local collaborator store for nmsview.
//
// The Repository interface combines the read and write contracts the engine
// consumes (domain.Source, domain.ObjectWriter and friends) with the upserts
// the seed loader uses. The sqlite subpackage implements it.
//
// # SQLite Implementation
//
// The sqlite implementation keeps credentials, discoveries, managed objects
// and metric snapshots in a single database file with WAL mode enabled.
// Stored passwords are sealed with a key derived from the configured
// secret; the per-database salt lives in the metadata table.
//
// # Schema Migration
//
// The schema is created on startup with CREATE TABLE IF NOT EXISTS, so
// opening an existing database never drops data.
package repository
