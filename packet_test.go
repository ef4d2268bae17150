package dvbsi

import (
	"bytes"
	"testing"

	"github.com/asticode/go-astikit"
	"github.com/stretchr/testify/assert"
)

var packetHeader = &PacketHeader{
	ContinuityCounter:          7,
	HasPayload:                 true,
	PayloadUnitStartIndicator:  true,
	PID:                        0x12,
	TransportScramblingControl: ScramblingControlNotScrambled,
}

func packetHeaderBytes(h PacketHeader) []byte {
	buf := &bytes.Buffer{}
	w := astikit.NewBitsWriter(astikit.BitsWriterOptions{Writer: buf})
	writePacketHeader(w, h)
	return buf.Bytes()
}

func TestParsePacketHeader(t *testing.T) {
	h, err := parsePacketHeader(astikit.NewBytesIterator([]byte{0x40, 0x12, 0x17}))
	assert.NoError(t, err)
	assert.Equal(t, packetHeader, h)
}

func TestWritePacketHeader(t *testing.T) {
	// Bit exact against hand built bytes
	assert.Equal(t, []byte{0x40, 0x12, 0x17}, packetHeaderBytes(*packetHeader))

	// Round trips for a spread of header values
	for _, h := range []PacketHeader{
		{ContinuityCounter: 15, HasAdaptationField: true, PID: 0x1fff, TransportErrorIndicator: true},
		{HasPayload: true, PID: 0, TransportPriority: true, TransportScramblingControl: ScramblingControlScrambledWithOddKey},
		{ContinuityCounter: 1, HasAdaptationField: true, HasPayload: true, PayloadUnitStartIndicator: true, PID: 0x10},
	} {
		p, err := parsePacketHeader(astikit.NewBytesIterator(packetHeaderBytes(h)))
		assert.NoError(t, err)
		assert.Equal(t, &h, p)
	}
}

func TestParsePacket(t *testing.T) {
	// Packet not starting with a sync
	_, err := parsePacket(astikit.NewBytesIterator([]byte{0x00, 0x01}))
	assert.EqualError(t, err, ErrPacketMustStartWithASyncByte.Error())

	// Payload only packet
	b := append([]byte{syncByte}, packetHeaderBytes(*packetHeader)...)
	payload := bytes.Repeat([]byte{0xab}, 184)
	b = append(b, payload...)
	p, err := parsePacket(astikit.NewBytesIterator(b))
	assert.NoError(t, err)
	assert.Equal(t, &Packet{Header: packetHeader, Payload: payload}, p)
}

func TestParsePacketAdaptationOnly(t *testing.T) {
	// An adaptation only packet carries no payload even though stuffing follows
	h := PacketHeader{ContinuityCounter: 3, HasAdaptationField: true, PID: 0x100}
	b := append([]byte{syncByte}, packetHeaderBytes(h)...)
	b = append(b, 183)                                    // Adaptation field length
	b = append(b, 0x00)                                   // Flags
	b = append(b, bytes.Repeat([]byte{0xff}, 182)...)     // Stuffing
	p, err := parsePacket(astikit.NewBytesIterator(b))
	assert.NoError(t, err)
	assert.Nil(t, p.Payload)
	assert.Equal(t, 183, p.AdaptationField.Length)
	assert.Equal(t, uint8(AdaptationFieldControlAdaptationOnly), p.Header.AdaptationFieldControl())
}

func TestParsePacketBoth(t *testing.T) {
	// Adaptation field followed by payload: the payload starts after the declared length
	h := PacketHeader{ContinuityCounter: 3, HasAdaptationField: true, HasPayload: true, PayloadUnitStartIndicator: true, PID: 0x11}
	b := append([]byte{syncByte}, packetHeaderBytes(h)...)
	b = append(b, 7)    // Adaptation field length
	b = append(b, 0x10) // Flags: PCR present
	b = append(b, 0x00, 0x00, 0x00, 0x00, 0x7e, 0x00) // PCR
	payload := bytes.Repeat([]byte{0xcd}, 176)
	b = append(b, payload...)
	p, err := parsePacket(astikit.NewBytesIterator(b))
	assert.NoError(t, err)
	assert.Equal(t, payload, p.Payload)
	assert.True(t, p.AdaptationField.HasPCR)
	assert.Equal(t, uint8(AdaptationFieldControlBoth), p.Header.AdaptationFieldControl())
}

func TestWritePacketRoundTrip(t *testing.T) {
	ep := &Packet{
		AdaptationField: &PacketAdaptationField{
			HasPCR:                true,
			Length:                7,
			PCR:                   newClockReference(0x123456789, 0x1ff),
			RandomAccessIndicator: true,
		},
		Header: &PacketHeader{
			ContinuityCounter:         9,
			HasAdaptationField:        true,
			HasPayload:                true,
			PayloadUnitStartIndicator: true,
			PID:                       0x12,
		},
		Payload: bytes.Repeat([]byte{0x42}, 176),
	}

	buf := &bytes.Buffer{}
	w := astikit.NewBitsWriter(astikit.BitsWriterOptions{Writer: buf})
	n, err := writePacket(w, ep, MpegTsPacketSize)
	assert.NoError(t, err)
	assert.Equal(t, MpegTsPacketSize, n)
	assert.Equal(t, MpegTsPacketSize, buf.Len())

	p, err := parsePacket(astikit.NewBytesIterator(buf.Bytes()))
	assert.NoError(t, err)
	assert.Equal(t, ep, p)
}

func TestPayloadOffset(t *testing.T) {
	assert.Equal(t, 3, payloadOffset(0, &PacketHeader{}, nil))
	assert.Equal(t, 7, payloadOffset(1, &PacketHeader{HasAdaptationField: true}, &PacketAdaptationField{Length: 2}))
}

func TestClockReference(t *testing.T) {
	cr := newClockReference(90000, 0)
	assert.Equal(t, int64(1e9), cr.Duration().Nanoseconds())
	assert.Equal(t, int64(1), cr.Time().Unix())
}
