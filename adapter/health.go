package adapter

import (
	"fmt"

	"github.com/heptiolabs/healthcheck"

	"github.com/srediag/plugin-shmdata/api"
	"github.com/srediag/plugin-shmdata/pkg/shm"
)

// maxGoroutines bounds the liveness goroutine check.
const maxGoroutines = 10000

// RegionCheck fails while h has no live mapping.
func RegionCheck(sd api.SharedData, h shm.Handle) healthcheck.Check {
	return func() error {
		if !sd.IsOpen(h) {
			return fmt.Errorf("handle %s: %w", h, shm.ErrClosed)
		}
		return nil
	}
}

// NewHealthHandler returns an http handler serving /live and /ready, where
// readiness requires every handle in handles to be mapped.
func NewHealthHandler(sd api.SharedData, handles ...shm.Handle) healthcheck.Handler {
	h := healthcheck.NewHandler()
	h.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutines))
	for _, hd := range handles {
		h.AddReadinessCheck("shm-handle-"+hd.String(), RegionCheck(sd, hd))
	}
	return h
}
