package shm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegionName(t *testing.T) {
	assert.Equal(t, "plugin-shm-1234-7", RegionName(1234, 7))
	assert.Equal(t, "custom", Config{Name: "custom", ProcessID: 1}.regionName())
	assert.Equal(t, RegionName(3, 4), Config{ProcessID: 3, Identity: 4}.regionName())
}

func TestConfigDefaults(t *testing.T) {
	c := Config{}.withDefaults()
	assert.Equal(t, DefaultReservedSize, c.ReservedSize)
	assert.NotNil(t, c.Sink)
	assert.NotNil(t, c.Meter)
	assert.NotNil(t, c.Tracer)
	assert.Equal(t, HeaderSize+DefaultReservedSize, c.mapSize())

	attach := Config{Attach: true}.withDefaults()
	assert.Zero(t, attach.ReservedSize)
	assert.Zero(t, attach.mapSize())
	assert.NoError(t, attach.validate())
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{ReservedSize: 1}.validate())
	assert.NoError(t, Config{ReservedSize: MaxReservedSize}.validate())
	assert.ErrorIs(t, Config{}.validate(), ErrInvalidSize)
	assert.ErrorIs(t, Config{ReservedSize: -1}.validate(), ErrInvalidSize)
	assert.ErrorIs(t, Config{ReservedSize: MaxReservedSize + 1}.validate(), ErrInvalidSize)
}
