package shm

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// Handle is an opaque token naming one open region in a Table.
type Handle uint64

func (h Handle) String() string { return strconv.FormatUint(uint64(h), 10) }

// Table maps opaque handles to open regions. Every accessor tolerates handles
// that were never created or are already closed and returns nil, false or 0.
type Table struct {
	cfg     Config
	mu      sync.Mutex // serializes Create and Close
	regions cmap.ConcurrentMap[Handle, *Region]
}

// NewTable returns an empty Table. cfg is the template for every region the
// table creates; its Name, ProcessID and Identity are ignored.
func NewTable(cfg Config) *Table {
	cfg.Name, cfg.ProcessID, cfg.Identity = "", 0, 0
	return &Table{
		cfg:     cfg,
		regions: cmap.NewStringer[Handle, *Region](),
	}
}

// Create maps the region for (processID, identity) and binds it to h.
// Calling Create again with the same pair and handle is a no-op; a handle
// bound to a different pair yields ErrHandleInUse.
func (t *Table) Create(ctx context.Context, processID, identity int, h Handle) error {
	name := RegionName(processID, identity)

	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.regions.Get(h); ok {
		if r.Name() == name {
			return nil
		}
		return fmt.Errorf("handle %s holds %s: %w", h, r.Name(), ErrHandleInUse)
	}

	cfg := t.cfg
	cfg.ProcessID, cfg.Identity = processID, identity
	r, err := Create(ctx, cfg)
	if err != nil {
		return err
	}
	t.regions.Set(h, r)
	return nil
}

// Close releases the region bound to h. Unknown handles are ignored.
func (t *Table) Close(h Handle) {
	t.mu.Lock()
	r, ok := t.regions.Pop(h)
	t.mu.Unlock()
	if !ok {
		return
	}
	if err := r.Close(); err != nil {
		internalLogger.warnf("close handle %s: %v", h, err)
	}
}

// CloseAll releases every region in the table.
func (t *Table) CloseAll() {
	for _, h := range t.Handles() {
		t.Close(h)
	}
}

// Region returns the region bound to h, or nil.
func (t *Table) Region(h Handle) *Region {
	r, _ := t.regions.Get(h)
	return r
}

// Get returns the live view bound to h, or nil.
func (t *Table) Get(h Handle) *DataMap { return t.Region(h).Map() }

// IsOpen reports whether h has a live mapping.
func (t *Table) IsOpen(h Handle) bool { return t.Region(h).IsOpen() }

// TotalSize returns the mapped size for h, or 0.
func (t *Table) TotalSize(h Handle) int { return t.Region(h).TotalSize() }

// ReservedSize returns the data buffer size for h, or 0.
func (t *Table) ReservedSize(h Handle) int { return t.Region(h).ReservedSize() }

// Log writes message through the sink of h. Unknown handles log nothing.
func (t *Table) Log(h Handle, message string) { t.Region(h).Log(message) }

// Len returns the number of open handles.
func (t *Table) Len() int { return t.regions.Count() }

// Handles returns the open handles in ascending order.
func (t *Table) Handles() []Handle {
	hs := t.regions.Keys()
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	return hs
}

// HandleStats pairs a handle with its region snapshot.
type HandleStats struct {
	Handle Handle
	Stats
}

// Stats returns a snapshot of every open region, ordered by handle.
func (t *Table) Stats() []HandleStats {
	out := make([]HandleStats, 0, t.regions.Count())
	for item := range t.regions.IterBuffered() {
		if s, ok := item.Val.Stats(); ok {
			out = append(out, HandleStats{Handle: item.Key, Stats: s})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}
