package adapter

import (
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/srediag/plugin-shmdata/pkg/shm"
)

// AsyncSink hands messages to next on a bounded worker pool so that Log never
// waits on a slow sink. When every worker is busy the message is dropped and
// Write returns ants.ErrPoolOverload.
type AsyncSink struct {
	next shm.Sink
	pool *ants.Pool
}

var _ shm.Sink = (*AsyncSink)(nil)

// NewAsyncSink returns a sink delivering to next with up to workers concurrent writes.
func NewAsyncSink(next shm.Sink, workers int) (*AsyncSink, error) {
	pool, err := ants.NewPool(workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	return &AsyncSink{next: next, pool: pool}, nil
}

// Write implements shm.Sink.
func (s *AsyncSink) Write(source, message string) error {
	return s.pool.Submit(func() {
		_ = s.next.Write(source, message)
	})
}

// Close stops accepting messages and waits up to timeout for pending writes.
func (s *AsyncSink) Close(timeout time.Duration) error {
	return s.pool.ReleaseTimeout(timeout)
}
