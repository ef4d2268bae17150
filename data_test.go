package dvbsi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSIPID(t *testing.T) {
	assert.True(t, isSIPID(PIDPAT))
	assert.True(t, isSIPID(PIDNIT))
	assert.True(t, isSIPID(PIDSDT))
	assert.True(t, isSIPID(PIDEIT))
	assert.True(t, isSIPID(PIDTOT))
	assert.False(t, isSIPID(PIDCAT))
	assert.False(t, isSIPID(0x100))
	assert.False(t, isSIPID(PIDNull))
}

func TestIsPSIPayload(t *testing.T) {
	pm := newProgramMap()
	assert.True(t, isPSIPayload(PIDPAT, pm))
	assert.False(t, isPSIPayload(2100, pm))
	pm.set(2100, 268)
	assert.True(t, isPSIPayload(2100, pm))
}

func TestParseData(t *testing.T) {
	pm := newProgramMap()
	section := psiSectionBytes(0x00, 1, patBody([][2]uint16{{268, 2100}}))
	p := poolPacket(PIDPAT, 0, true, append([]byte{0x00}, section...))

	ds, err := parseData([]*Packet{p}, nil, pm)
	assert.NoError(t, err)
	assert.Len(t, ds, 1)
	assert.Equal(t, p, ds[0].FirstPacket)
	assert.Equal(t, uint16(PIDPAT), ds[0].PID)
	assert.NotNil(t, ds[0].PAT)

	// CAT payloads are private and ignored
	ds, err = parseData([]*Packet{poolPacket(PIDCAT, 0, true, []byte{0x00})}, nil, pm)
	assert.NoError(t, err)
	assert.Len(t, ds, 0)

	// Elementary stream payloads are out of scope
	ds, err = parseData([]*Packet{poolPacket(0x100, 0, true, []byte{0x00, 0x00, 0x01, 0xe0})}, nil, pm)
	assert.NoError(t, err)
	assert.Len(t, ds, 0)
}

func TestParseDataCustomParser(t *testing.T) {
	pm := newProgramMap()
	section := psiSectionBytes(0x00, 1, patBody([][2]uint16{{268, 2100}}))
	p := poolPacket(PIDPAT, 0, true, append([]byte{0x00}, section...))
	custom := &Data{PID: 0x42}

	// The custom parser runs first and may skip the default process
	ds, err := parseData([]*Packet{p}, func(ps []*Packet) ([]*Data, bool, error) {
		return []*Data{custom}, true, nil
	}, pm)
	assert.NoError(t, err)
	assert.Equal(t, []*Data{custom}, ds)

	// Without skip the default process still runs
	ds, err = parseData([]*Packet{p}, func(ps []*Packet) ([]*Data, bool, error) {
		return nil, false, nil
	}, pm)
	assert.NoError(t, err)
	assert.Len(t, ds, 1)
	assert.NotNil(t, ds[0].PAT)
}
