package shm

import (
	"sync/atomic"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// holderCount tracks the open Regions of this process that map one OS object.
// Whether the object outlives a Close is decided by the platform layer, which
// sees holders in every process; this count only feeds logs and Stats.
type holderCount struct {
	n atomic.Int32
}

type registry struct {
	m cmap.ConcurrentMap[string, *holderCount]
}

var holders = newRegistry()

func newRegistry() *registry {
	return &registry{m: cmap.New[*holderCount]()}
}

func (r *registry) acquire(name string) int {
	fresh := &holderCount{}
	fresh.n.Store(1)
	e := r.m.Upsert(name, fresh, func(exist bool, cur, nv *holderCount) *holderCount {
		if !exist {
			return nv
		}
		cur.n.Add(1)
		return cur
	})
	return int(e.n.Load())
}

// release drops one holder and returns how many remain in this process.
func (r *registry) release(name string) int {
	left := 0
	r.m.RemoveCb(name, func(_ string, e *holderCount, exists bool) bool {
		if !exists {
			return false
		}
		left = int(e.n.Add(-1))
		return left <= 0
	})
	return left
}

func (r *registry) count(name string) int {
	e, ok := r.m.Get(name)
	if !ok {
		return 0
	}
	return int(e.n.Load())
}
