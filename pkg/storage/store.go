// Package storage implements the Metadata Repository and the Batch Sink's
// relational persistence surface described in the acquisition worker's
// specification, against a database/sql backend.
package storage

import (
	"context"
	"errors"

	"github.com/cuemby/acquisitiond/pkg/types"
)

// Sentinel errors surfaced by Store implementations. Callers type-switch
// on these with errors.Is rather than inspecting driver-specific text.
var (
	// ErrNotFound is returned by single-entity lookups that find nothing.
	ErrNotFound = errors.New("storage: not found")

	// ErrStorageUnavailable wraps any error that should be treated as a
	// transient outage: the Batch Sink reacts to it by spooling and
	// backing off, never by dropping data.
	ErrStorageUnavailable = errors.New("storage: unavailable")
)

// Store is the Metadata Repository's read contract plus the Batch Sink's
// write contract. A single interface keeps both concerns behind one
// database/sql connection so a production deployment can swap drivers
// without touching callers.
type Store interface {
	// ListActiveMachines returns every machine with IsActive=true, each
	// carrying its active tags, as a point-in-time snapshot.
	ListActiveMachines(ctx context.Context) ([]*types.Machine, error)

	// GetMachine returns one machine and its active tags by id.
	GetMachine(ctx context.Context, id int32) (*types.Machine, error)

	// GetTagByNodeID resolves the tag owning a namespace-qualified NodeId.
	GetTagByNodeID(ctx context.Context, nodeID string) (*types.Tag, error)

	// ListActiveTagsByMachine returns the active tags of one machine.
	ListActiveTagsByMachine(ctx context.Context, machineID int32) ([]*types.Tag, error)

	// Reload signals that subsequent reads should observe fresh data.
	// For a database/sql-backed store every read is already live; callers
	// that cache Store output (the Tag Cache) call Reload to pair their
	// own invalidation with the repository's contract.
	Reload(ctx context.Context) error

	// InsertBatch persists a batch of samples. Implementations may prefer
	// a bulk entry point and fall back to per-row inserts internally if
	// one is unavailable; that fallback is not surfaced to the caller.
	// Transient connectivity failures are wrapped in ErrStorageUnavailable.
	InsertBatch(ctx context.Context, samples []types.Sample) error

	// Ping performs a lightweight liveness probe equivalent to SELECT 1.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
