package shm

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	internalshm "github.com/srediag/plugin-shmdata/internal/shm"
)

type instruments struct {
	open    metric.Int64UpDownCounter
	logs    metric.Int64Counter
	dropped metric.Int64Counter
}

func newInstruments(m metric.Meter) *instruments {
	// The noop meter never fails; an SDK meter only fails on invalid names.
	open, _ := m.Int64UpDownCounter("shm.regions.open",
		metric.WithDescription("Shared memory regions currently mapped"))
	logs, _ := m.Int64Counter("shm.log.messages",
		metric.WithDescription("Messages delivered through Region.Log"))
	dropped, _ := m.Int64Counter("shm.log.dropped",
		metric.WithDescription("Messages a sink failed to accept"))
	return &instruments{open: open, logs: logs, dropped: dropped}
}

// Region is an open mapping of a named shared data map. It owns the mapping
// until Close; all methods are safe on a nil or closed Region and report the
// not-open sentinel.
//
// Region guards its own bookkeeping only. The mapped memory is shared with
// other holders and processes without any synchronization.
type Region struct {
	mu      sync.RWMutex
	name    string
	region  *internalshm.MappedRegion
	view    *DataMap
	created bool
	sink    Sink
	inst    *instruments
	attrs   metric.MeasurementOption
}

// Create creates or opens the shared data map described by cfg and maps it.
func Create(ctx context.Context, cfg Config) (*Region, error) {
	cfg = cfg.withDefaults()
	name := cfg.regionName()
	ctx, span := cfg.Tracer.Start(ctx, "shm.Create", trace.WithAttributes(
		attribute.String("shm.name", name),
		attribute.Int("shm.reserved_size", cfg.ReservedSize),
		attribute.Bool("shm.attach", cfg.Attach),
	))
	defer span.End()

	r, err := create(ctx, cfg, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		internalLogger.warnf("create shared memory %s failed: %v", name, err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("shm.created", r.created), attribute.Int("shm.size", r.TotalSize()))
	return r, nil
}

func create(ctx context.Context, cfg Config, name string) (*Region, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	mr, err := internalshm.MapRegion(ctx, internalshm.MapOptions{
		Name:   name,
		Size:   cfg.mapSize(),
		Create: !cfg.Attach,
	})
	if err != nil {
		return nil, fmt.Errorf("map shared memory %s: %w", name, err)
	}
	view := newDataMap(mr.Addr)
	if view == nil {
		size := mr.Size()
		_, _ = internalshm.ReleaseRegion(ctx, mr)
		return nil, fmt.Errorf("%s has %d bytes, header needs %d: %w", name, size, HeaderSize, ErrInvalidSize)
	}

	r := &Region{
		name:    name,
		region:  mr,
		view:    view,
		created: mr.Created,
		sink:    cfg.Sink,
		inst:    newInstruments(cfg.Meter),
		attrs:   metric.WithAttributes(attribute.String("shm.name", name)),
	}
	n := holders.acquire(name)
	r.inst.open.Add(ctx, 1, r.attrs)
	internalLogger.infof("shared memory %s mapped, size:%d created:%v holders:%d", name, mr.Size(), mr.Created, n)
	return r, nil
}

// With maps the region described by cfg, calls fn with its view and releases
// the mapping on return, whether fn fails or not.
func With(ctx context.Context, cfg Config, fn func(*DataMap) error) (err error) {
	r, err := Create(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(r.Map())
}

// Close releases the mapping. When no other mapping of the OS object remains
// in any process, the object is removed as well, whichever holder created it.
// Closing a closed Region does nothing.
func (r *Region) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.region == nil {
		return nil
	}
	removed, err := internalshm.ReleaseRegion(context.Background(), r.region)
	r.region, r.view = nil, nil
	r.inst.open.Add(context.Background(), -1, r.attrs)

	n := holders.release(r.name)
	if removed {
		internalLogger.infof("shared memory %s removed", r.name)
	} else {
		internalLogger.debugf("shared memory %s unmapped, local holders:%d", r.name, n)
	}
	if err != nil {
		return fmt.Errorf("close shared memory %s: %w", r.name, err)
	}
	return nil
}

// Name returns the shared memory object name.
func (r *Region) Name() string {
	if r == nil {
		return ""
	}
	return r.name
}

// Created reports whether this Region created the OS object.
func (r *Region) Created() bool {
	if r == nil {
		return false
	}
	return r.created
}

// IsOpen reports whether the mapping is live.
func (r *Region) IsOpen() bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.region != nil
}

// Map returns the live view of the region, or nil when closed.
func (r *Region) Map() *DataMap {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view
}

// TotalSize returns the mapped size in bytes, header included, or 0 when closed.
func (r *Region) TotalSize() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.region.Size()
}

// ReservedSize returns the size of the data buffer in bytes, or 0 when closed.
func (r *Region) ReservedSize() int {
	if n := r.TotalSize(); n >= HeaderSize {
		return n - HeaderSize
	}
	return 0
}

// Log writes message to the region's sink. Logging is best-effort: sink
// failures are counted and dropped, and a closed Region logs nothing.
func (r *Region) Log(message string) {
	if r == nil {
		return
	}
	r.mu.RLock()
	open, sink := r.region != nil, r.sink
	r.mu.RUnlock()
	if !open {
		return
	}
	ctx := context.Background()
	if err := sink.Write(r.name, message); err != nil {
		r.inst.dropped.Add(ctx, 1, r.attrs)
		internalLogger.debugf("log to %s dropped: %v", r.name, err)
		return
	}
	r.inst.logs.Add(ctx, 1, r.attrs)
}

// Stats is a point-in-time summary of a region.
type Stats struct {
	Name         string
	TotalSize    int
	ReservedSize int
	Created      bool
	// Holders counts the open Regions of this process mapping the object.
	Holders        int
	CurrentPointer int32
	ClearCount     int32
}

// Stats returns a snapshot of the region and false when it is closed.
func (r *Region) Stats() (Stats, bool) {
	if r == nil {
		return Stats{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.region == nil {
		return Stats{}, false
	}
	h := r.view.Header()
	return Stats{
		Name:           r.name,
		TotalSize:      r.region.Size(),
		ReservedSize:   r.region.Size() - HeaderSize,
		Created:        r.created,
		Holders:        holders.count(r.name),
		CurrentPointer: h.CurrentPointer,
		ClearCount:     h.ClearCount,
	}, true
}
