// Package services holds the replica's application layer: the replication
// pass that mirrors the remote catalog into the local store, and the read
// side used by the HTTP and CLI adapters.
//
// Service-level error values live here so adapters can translate them into
// status codes or exit codes consistently. Search validation failures are
// not wrapped; they surface as *search.ValidationError.
package services

import "errors"

var (
	// ErrRecordNotFound indicates that no record with the requested id has
	// been replicated.
	ErrRecordNotFound = errors.New("record not found")

	// ErrInternal replaces unexpected storage or query failures on the read
	// path. The underlying error is logged, never returned to callers.
	ErrInternal = errors.New("internal error")

	// ErrSyncFailed wraps the cause of a replication pass that was started
	// but could not complete.
	ErrSyncFailed = errors.New("sync failed")
)
