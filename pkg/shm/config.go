package shm

import (
	"fmt"
	"math"
	"os"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	// DefaultReservedSize is the data buffer size used when Config.ReservedSize is zero.
	DefaultReservedSize = 1 << 20
	// MaxReservedSize keeps every offset into the region representable as an int32 cursor.
	MaxReservedSize = math.MaxInt32 - HeaderSize

	instrumentationName = "github.com/srediag/plugin-shmdata/pkg/shm"
)

// Config holds region creation parameters.
type Config struct {
	// Name overrides the region name derived from ProcessID and Identity.
	Name      string
	ProcessID int
	Identity  int
	// ReservedSize is the size of the trailing data buffer in bytes.
	// Zero selects DefaultReservedSize, or the existing size when Attach is set.
	ReservedSize int
	// Attach maps an existing region and never creates one.
	Attach bool
	// Sink receives Region.Log messages. Defaults to a writer sink on stderr.
	Sink   Sink
	Meter  metric.Meter
	Tracer trace.Tracer
}

// RegionName derives the shared memory name for a process/identity pair.
func RegionName(processID, identity int) string {
	return fmt.Sprintf("plugin-shm-%d-%d", processID, identity)
}

func (c Config) regionName() string {
	if c.Name != "" {
		return c.Name
	}
	return RegionName(c.ProcessID, c.Identity)
}

func (c Config) withDefaults() Config {
	if c.ReservedSize == 0 && !c.Attach {
		c.ReservedSize = DefaultReservedSize
	}
	if c.Sink == nil {
		c.Sink = NewWriterSink(os.Stderr)
	}
	if c.Meter == nil {
		c.Meter = metricnoop.NewMeterProvider().Meter(instrumentationName)
	}
	if c.Tracer == nil {
		c.Tracer = tracenoop.NewTracerProvider().Tracer(instrumentationName)
	}
	return c
}

func (c Config) validate() error {
	if c.ReservedSize < 0 || c.ReservedSize > MaxReservedSize {
		return fmt.Errorf("reserved size %d: %w", c.ReservedSize, ErrInvalidSize)
	}
	if c.ReservedSize == 0 && !c.Attach {
		return fmt.Errorf("reserved size must be at least 1: %w", ErrInvalidSize)
	}
	return nil
}

// mapSize is the full region length to request, zero when adopting an existing region.
func (c Config) mapSize() int {
	if c.ReservedSize == 0 {
		return 0
	}
	return HeaderSize + c.ReservedSize
}
