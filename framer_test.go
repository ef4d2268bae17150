package dvbsi

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

// rawPacket builds a 188 byte frame with a stuffing payload
func rawPacket(pid uint16, cc uint8, pusi bool) []byte {
	b := make([]byte, 0, MpegTsPacketSize)
	b1 := uint8(pid >> 8)
	if pusi {
		b1 |= 0x40
	}
	b = append(b, syncByte, b1, uint8(pid), 0x10|cc)
	return append(b, bytes.Repeat([]byte{0xab}, 184)...)
}

func TestFindSync(t *testing.T) {
	// Garbage then packets
	b := append(bytes.Repeat([]byte{0x00}, 100), rawPacket(0x100, 0, true)...)
	b = append(b, rawPacket(0x100, 1, false)...)
	o, err := FindSync(b, 0)
	assert.NoError(t, err)
	assert.Equal(t, 100, o)

	// A lone 0x47 inside the garbage isn't a sync point
	b[50] = syncByte
	o, err = FindSync(b, 0)
	assert.NoError(t, err)
	assert.Equal(t, 100, o)

	// No sync at all
	_, err = FindSync(bytes.Repeat([]byte{0x00}, 400), 0)
	assert.ErrorIs(t, err, ErrNotSynchronized)
}

func TestParsePackets(t *testing.T) {
	// 100 bytes of garbage followed by 5 valid packets
	b := bytes.Repeat([]byte{0x00}, 100)
	for cc := uint8(0); cc < 5; cc++ {
		b = append(b, rawPacket(0x100, cc, cc == 0)...)
	}
	ps, err := ParsePackets(b, -1)
	assert.NoError(t, err)
	assert.Len(t, ps, 5)
	assert.Equal(t, uint16(0x100), ps[0].Header.PID)
	assert.True(t, ps[0].Header.PayloadUnitStartIndicator)

	// 187 bytes of garbage: the framer still recovers
	b = append(bytes.Repeat([]byte{0x00}, 187), rawPacket(0x42, 0, true)...)
	b = append(b, rawPacket(0x42, 1, false)...)
	ps, err = ParsePackets(b, -1)
	assert.NoError(t, err)
	assert.Len(t, ps, 2)

	// No sync: nothing decoded
	ps, err = ParsePackets(bytes.Repeat([]byte{0x00}, 400), -1)
	assert.ErrorIs(t, err, ErrNotSynchronized)
	assert.Len(t, ps, 0)
}

func TestParsePacketsResync(t *testing.T) {
	var b []byte
	for cc := uint8(0); cc < 5; cc++ {
		b = append(b, rawPacket(0x100, cc, cc == 0)...)
	}

	// Corrupt the third frame's sync byte: the frame is lost, the framer resynchronizes
	b[2*MpegTsPacketSize] = 0x00
	ps, err := ParsePackets(b, -1)
	assert.NoError(t, err)
	assert.Len(t, ps, 4)
	assert.Equal(t, uint8(0), ps[0].Header.ContinuityCounter)
	assert.Equal(t, uint8(3), ps[2].Header.ContinuityCounter)
}

func TestParsePacketsPIDFilter(t *testing.T) {
	var b []byte
	b = append(b, rawPacket(0x100, 0, true)...)
	b = append(b, rawPacket(0x200, 0, true)...)
	b = append(b, rawPacket(0x100, 1, false)...)
	ps, err := ParsePackets(b, 0x200)
	assert.NoError(t, err)
	assert.Len(t, ps, 1)
	assert.Equal(t, uint16(0x200), ps[0].Header.PID)
}
