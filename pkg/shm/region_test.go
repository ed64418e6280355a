package shm

import (
	"context"
	"errors"
	"os"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalshm "github.com/srediag/plugin-shmdata/internal/shm"
)

func TestRegion_CreateAndClose(t *testing.T) {
	ctx := context.Background()
	r, err := Create(ctx, testConfig(t, 256))
	require.NoError(t, err)

	assert.True(t, r.IsOpen())
	assert.True(t, r.Created())
	assert.Equal(t, HeaderSize+256, r.TotalSize())
	assert.Equal(t, 256, r.ReservedSize())
	assert.Equal(t, r.TotalSize()-HeaderSize, r.ReservedSize())

	m := r.Map()
	require.NotNil(t, m)
	assert.Equal(t, Header{}, m.Header(), "new regions start zeroed")

	require.NoError(t, r.Close())
	assert.False(t, r.IsOpen())
	assert.Nil(t, r.Map())
	assert.Zero(t, r.TotalSize())
	assert.Zero(t, r.ReservedSize())
	assert.NoError(t, r.Close())
}

func TestRegion_NilIsClosed(t *testing.T) {
	var r *Region
	assert.False(t, r.IsOpen())
	assert.Nil(t, r.Map())
	assert.Zero(t, r.TotalSize())
	assert.Zero(t, r.ReservedSize())
	assert.Empty(t, r.Name())
	assert.NoError(t, r.Close())
	r.Log("ignored")
	_, ok := r.Stats()
	assert.False(t, ok)
}

func TestRegion_SharedBetweenMappings(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, 64)

	writer, err := Create(ctx, cfg)
	require.NoError(t, err)
	defer writer.Close()
	reader, err := Create(ctx, cfg)
	require.NoError(t, err)
	defer reader.Close()

	assert.True(t, writer.Created())
	assert.False(t, reader.Created())

	require.NoError(t, writer.Map().SetPID(3, 777))
	writer.Map().SetCurrentPointer(40)
	writer.Map().Data()[63] = 9

	got, err := reader.Map().PID(3)
	require.NoError(t, err)
	assert.Equal(t, int32(777), got)
	assert.Equal(t, int32(40), reader.Map().CurrentPointer())
	assert.Equal(t, byte(9), reader.Map().Data()[63])
}

func TestRegion_LastHolderRemovesObject(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("named mappings have no filesystem entry")
	}
	ctx := context.Background()
	cfg := testConfig(t, 64)
	path := internalshm.Path(cfg.regionName())

	owner, err := Create(ctx, cfg)
	require.NoError(t, err)
	peer, err := Create(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, holders.count(cfg.regionName()))

	require.NoError(t, owner.Close())
	_, err = os.Stat(path)
	assert.NoError(t, err, "object must survive while a holder remains")

	require.NoError(t, peer.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "the last holder removes the object even when it did not create it")
	assert.Zero(t, holders.count(cfg.regionName()))
}

func TestRegion_CreatorCloseKeepsObjectMappedElsewhere(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, 64)

	owner, err := Create(ctx, cfg)
	require.NoError(t, err)
	require.True(t, owner.Created())

	// a raw mapping plays the part of another process
	other, err := internalshm.MapRegion(ctx, internalshm.MapOptions{Name: cfg.regionName(), Size: cfg.mapSize()})
	require.NoError(t, err)
	defer internalshm.UnmapRegion(ctx, other)

	require.NoError(t, owner.Close())
	if runtime.GOOS != "windows" {
		_, err = os.Stat(internalshm.Path(cfg.regionName()))
		require.NoError(t, err, "object must survive while another process maps it")
	}

	again, err := Create(ctx, cfg)
	require.NoError(t, err)
	defer again.Close()
	assert.False(t, again.Created())

	newDataMap(other.Addr).SetClearCount(42)
	assert.Equal(t, int32(42), again.Map().ClearCount())
}

func TestRegion_SizeMismatch(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("mapping sizes are page granular")
	}
	ctx := context.Background()
	cfg := testConfig(t, 64)
	r, err := Create(ctx, cfg)
	require.NoError(t, err)
	defer r.Close()

	cfg.ReservedSize = 128
	_, err = Create(ctx, cfg)
	assert.ErrorIs(t, err, internalshm.ErrSizeMismatch)
}

func TestRegion_Attach(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, 512)

	_, err := Create(ctx, Config{Name: cfg.regionName(), Attach: true, Sink: Discard})
	assert.Error(t, err, "attach must not create")

	owner, err := Create(ctx, cfg)
	require.NoError(t, err)
	defer owner.Close()

	peer, err := Create(ctx, Config{Name: cfg.regionName(), Attach: true, Sink: Discard})
	require.NoError(t, err)
	defer peer.Close()
	assert.False(t, peer.Created())
	assert.GreaterOrEqual(t, peer.ReservedSize(), 512)
}

func TestRegion_InvalidSize(t *testing.T) {
	ctx := context.Background()
	for _, size := range []int{-1, MaxReservedSize + 1} {
		_, err := Create(ctx, testConfig(t, size))
		assert.ErrorIs(t, err, ErrInvalidSize, size)
	}
}

func TestRegion_DefaultSize(t *testing.T) {
	r, err := Create(context.Background(), testConfig(t, 0))
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, DefaultReservedSize, r.ReservedSize())
}

func TestRegion_Log(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink(8)
	cfg := testConfig(t, 16)
	cfg.Sink = sink

	r, err := Create(ctx, cfg)
	require.NoError(t, err)
	r.Log("test")
	require.NoError(t, r.Close())
	r.Log("after close")

	msgs := sink.Drain()
	require.Len(t, msgs, 1)
	assert.Equal(t, "test", msgs[0].Text)
	assert.Equal(t, cfg.regionName(), msgs[0].Source)
}

func TestRegion_LogFailureIsSwallowed(t *testing.T) {
	cfg := testConfig(t, 16)
	cfg.Sink = SinkFunc(func(string, string) error { return errors.New("sink down") })
	r, err := Create(context.Background(), cfg)
	require.NoError(t, err)
	defer r.Close()
	assert.NotPanics(t, func() { r.Log("test") })
}

func TestRegion_Stats(t *testing.T) {
	r, err := Create(context.Background(), testConfig(t, 32))
	require.NoError(t, err)
	defer r.Close()
	r.Map().SetClearCount(4)
	r.Map().SetCurrentPointer(8)

	s, ok := r.Stats()
	require.True(t, ok)
	assert.Equal(t, Stats{
		Name:           r.Name(),
		TotalSize:      HeaderSize + 32,
		ReservedSize:   32,
		Created:        true,
		Holders:        1,
		CurrentPointer: 8,
		ClearCount:     4,
	}, s)
}

func TestWith_ReleasesOnError(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, 16)
	boom := errors.New("boom")

	err := With(ctx, cfg, func(m *DataMap) error {
		m.SetClearCount(1)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, holders.count(cfg.regionName()))

	assert.NoError(t, With(ctx, cfg, func(m *DataMap) error {
		assert.Equal(t, int32(0), m.ClearCount(), "region was recreated after removal")
		return nil
	}))
}

func TestCreate_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Create(ctx, testConfig(t, 16))
	assert.ErrorIs(t, err, context.Canceled)
}
