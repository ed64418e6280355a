package shm

import (
	"os"
	"sync/atomic"
	"testing"

	internalshm "github.com/srediag/plugin-shmdata/internal/shm"
)

var identitySeq int32

// testPair returns a process/identity pair that no other test uses and
// removes the backing object when the test ends.
func testPair(t *testing.T) (int, int) {
	t.Helper()
	pid, identity := os.Getpid(), int(atomic.AddInt32(&identitySeq, 1))
	t.Cleanup(func() { _ = internalshm.RemoveRegion(RegionName(pid, identity)) })
	return pid, identity
}

func testConfig(t *testing.T, reserved int) Config {
	pid, identity := testPair(t)
	return Config{ProcessID: pid, Identity: identity, ReservedSize: reserved, Sink: Discard}
}
