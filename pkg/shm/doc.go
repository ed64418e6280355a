// Package shm publishes a fixed-layout data map through named shared memory.
//
// A region holds a 136-byte header (a rolling write cursor, a clear counter
// and 32 identifier slots) followed by a data buffer sized at creation. Any
// number of processes may map the same region; this package provides no
// locking over the mapped fields, so writers and readers coordinate
// externally.
//
// Regions are created with Create (or With, for scoped use) and addressed
// either directly or through a Table keyed by opaque handles. Instrumentation
// goes through the OpenTelemetry meter and tracer in Config.
//
// Example usage:
//
//	t := shm.NewTable(shm.Config{ReservedSize: 64 << 10})
//	if err := t.Create(ctx, os.Getpid(), 1, h); err != nil {
//	  return err
//	}
//	defer t.Close(h)
//	m := t.Get(h)
//	_ = m.SetPID(0, int32(os.Getpid()))
//	t.Log(h, "published")
//
// Platform-specific helpers are in internal/shm.
package shm
