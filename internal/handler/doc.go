// Package handler implements HTTP request handlers for the nmsview API.
//
// This package provides the HTTP layer over the dashboard and monitor
// services: the merged view, provisioning requests, monitor sessions and
// their chart series.
//
// # API Design
//
// Routes use Go 1.22 method patterns registered by Handler.Register:
// - GET for retrieval
// - POST for actions and session creation
// - DELETE for removal
//
// Errors are returned as JSON with appropriate HTTP status codes. Domain
// errors map to statuses with errors.Is: validation failures are 400,
// unknown or unmonitored objects 404, operations the configured source lacks
// 501, and collaborator transport failures 502.
//
// # Response Format
//
// Success responses return JSON data with appropriate status codes (200, 201, 202, 204).
// Error responses return JSON with {error, details} structure.
//
// # Server-Sent Events
//
// The /events endpoint streams service events, so clients can redraw the
// merged view and open charts without polling the API.
package handler
