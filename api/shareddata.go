// Package api defines public API contracts for plugin-shmdata.
package api

import (
	"context"

	"github.com/srediag/plugin-shmdata/pkg/shm"
)

// SharedData is the handle-scoped accessor surface over shared data maps.
//
// Create is the only operation that reports failure. The others accept
// handles that were never created or are already closed and return nil,
// false or 0; Close and Log never fail.
type SharedData interface {
	Create(ctx context.Context, processID, identity int, h shm.Handle) error
	Close(h shm.Handle)
	Get(h shm.Handle) *shm.DataMap
	IsOpen(h shm.Handle) bool
	Log(h shm.Handle, message string)
	TotalSize(h shm.Handle) int
	ReservedSize(h shm.Handle) int
}

var _ SharedData = (*shm.Table)(nil)
