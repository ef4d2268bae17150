package dvbsi

import (
	"time"

	"github.com/asticode/go-astikit"
	"github.com/pkg/errors"
)

// MpegTsPacketSize is the size of a transport stream packet
const MpegTsPacketSize = 188

// Scrambling Controls
const (
	ScramblingControlNotScrambled         = 0
	ScramblingControlReservedForFutureUse = 1
	ScramblingControlScrambledWithEvenKey = 2
	ScramblingControlScrambledWithOddKey  = 3
)

// Adaptation field controls
const (
	AdaptationFieldControlReserved       = 0
	AdaptationFieldControlPayloadOnly    = 1
	AdaptationFieldControlAdaptationOnly = 2
	AdaptationFieldControlBoth           = 3
)

// Packet represents a packet
// https://en.wikipedia.org/wiki/MPEG_transport_stream
type Packet struct {
	AdaptationField *PacketAdaptationField
	Header          *PacketHeader
	Payload         []byte // This is only the payload content
}

// PacketHeader represents a packet header
type PacketHeader struct {
	ContinuityCounter          uint8 // Sequence number of payload packets (0x00 to 0x0F) within each stream (except PID 8191)
	HasAdaptationField         bool
	HasPayload                 bool
	PayloadUnitStartIndicator  bool   // Set when a PES, PSI, or DVB-MIP packet begins immediately following the header.
	PID                        uint16 // Packet Identifier, describing the payload data.
	TransportErrorIndicator    bool   // Set when a demodulator can't correct errors from FEC data; indicating the packet is corrupt.
	TransportPriority          bool   // Set when the current packet has a higher priority than other packets with the same PID.
	TransportScramblingControl uint8
}

// AdaptationFieldControl returns the 2 bit adaptation field control encoded in the header
func (h *PacketHeader) AdaptationFieldControl() uint8 {
	var c uint8
	if h.HasAdaptationField {
		c |= 0x2
	}
	if h.HasPayload {
		c |= 0x1
	}
	return c
}

// PacketAdaptationField represents a packet adaptation field
type PacketAdaptationField struct {
	AdaptationExtensionField          *PacketAdaptationExtensionField
	DiscontinuityIndicator            bool // Set if current TS packet is in a discontinuity state with respect to either the continuity counter or the program clock reference
	ElementaryStreamPriorityIndicator bool // Set when this stream should be considered "high priority"
	HasAdaptationExtensionField       bool
	HasOPCR                           bool
	HasPCR                            bool
	HasTransportPrivateData           bool
	HasSplicingCountdown              bool
	Length                            int
	OPCR                              *ClockReference // Original Program clock reference. Helps when one TS is copied into another
	PCR                               *ClockReference // Program clock reference
	RandomAccessIndicator             bool            // Set when the stream may be decoded without errors from this point
	SpliceCountdown                   int             // Indicates how many TS packets from this one a splicing point occurs (Two's complement signed; may be negative)
	TransportPrivateDataLength        int
	TransportPrivateData              []byte
}

// PacketAdaptationExtensionField represents a packet adaptation extension field
type PacketAdaptationExtensionField struct {
	DTSNextAccessUnit      *ClockReference // The PES DTS of the splice point. Split up as 3 bits, 1 marker bit (0x1), 15 bits, 1 marker bit, 15 bits, and 1 marker bit, for 33 data bits total.
	HasLegalTimeWindow     bool
	HasPiecewiseRate       bool
	HasSeamlessSplice      bool
	LegalTimeWindowIsValid bool
	LegalTimeWindowOffset  uint16 // Extra information for rebroadcasters to determine the state of buffers when packets may be missing.
	Length                 int
	PiecewiseRate          uint32 // The rate of the stream, measured in 188-byte packets, to define the end-time of the LTW.
	SpliceType             uint8  // Indicates the parameters of the H.262 splice.
}

// ClockReference represents a clock reference based on a 90 kHz clock with a 27 MHz extension
type ClockReference struct {
	Base      int64 // 90 kHz units
	Extension int64 // 27 MHz units
}

// newClockReference creates a new clock reference
func newClockReference(base, extension int64) *ClockReference {
	return &ClockReference{
		Base:      base,
		Extension: extension,
	}
}

// Duration converts the clock reference into a duration
func (p ClockReference) Duration() time.Duration {
	return time.Duration(p.Base*1e9/90000) + time.Duration(p.Extension*1e9/27000000)
}

// Time converts the clock reference into a time
func (p ClockReference) Time() time.Time {
	return time.Unix(0, p.Duration().Nanoseconds())
}

// parsePacket parses a packet
func parsePacket(i BytesIterator) (p *Packet, err error) {
	// Get next byte
	var b byte
	if b, err = i.NextByte(); err != nil {
		err = errors.Wrap(err, "dvbsi: getting next byte failed")
		return
	}

	// Packet must start with a sync byte
	if b != syncByte {
		err = ErrPacketMustStartWithASyncByte
		return
	}

	// Create packet
	p = &Packet{}

	// In case packet size is bigger than 188 bytes, we don't care for the first bytes
	i.Seek(i.Len() - MpegTsPacketSize + 1)
	offsetStart := i.Offset()

	// Parse header
	if p.Header, err = parsePacketHeader(i); err != nil {
		err = errors.Wrap(err, "dvbsi: parsing packet header failed")
		return
	}

	// Parse adaptation field
	if p.Header.HasAdaptationField {
		if p.AdaptationField, err = parsePacketAdaptationField(i); err != nil {
			err = errors.Wrap(err, "dvbsi: parsing packet adaptation field failed")
			return
		}
	}

	// Build payload
	// A packet whose adaptation field control announces no payload stays payload-less even
	// if stuffing follows the adaptation field
	if p.Header.HasPayload {
		i.Seek(payloadOffset(offsetStart, p.Header, p.AdaptationField))
		p.Payload = i.Dump()
	}
	return
}

// payloadOffset returns the payload offset
func payloadOffset(offsetStart int, h *PacketHeader, a *PacketAdaptationField) (offset int) {
	offset = offsetStart + 3
	if h.HasAdaptationField {
		offset += 1 + a.Length
	}
	return
}

// parsePacketHeader parses the packet header
func parsePacketHeader(i BytesIterator) (h *PacketHeader, err error) {
	// Get next bytes
	var bs []byte
	if bs, err = i.NextBytesNoCopy(3); err != nil {
		err = errors.Wrap(err, "dvbsi: fetching next bytes failed")
		return
	}

	// Create header
	h = &PacketHeader{
		ContinuityCounter:          uint8(bs[2] & 0xf),
		HasAdaptationField:         bs[2]&0x20 > 0,
		HasPayload:                 bs[2]&0x10 > 0,
		PayloadUnitStartIndicator:  bs[0]&0x40 > 0,
		PID:                        uint16(bs[0]&0x1f)<<8 | uint16(bs[1]),
		TransportErrorIndicator:    bs[0]&0x80 > 0,
		TransportPriority:          bs[0]&0x20 > 0,
		TransportScramblingControl: uint8(bs[2]) >> 6 & 0x3,
	}
	return
}

// parsePacketAdaptationField parses the packet adaptation field
func parsePacketAdaptationField(i BytesIterator) (a *PacketAdaptationField, err error) {
	// Create adaptation field
	a = &PacketAdaptationField{}

	// Get next byte
	var b byte
	if b, err = i.NextByte(); err != nil {
		err = errors.Wrap(err, "dvbsi: fetching next byte failed")
		return
	}

	// Length
	a.Length = int(b)

	// Valid length
	if a.Length > 0 {
		// Get next byte
		if b, err = i.NextByte(); err != nil {
			err = errors.Wrap(err, "dvbsi: fetching next byte failed")
			return
		}

		// Flags
		a.DiscontinuityIndicator = b&0x80 > 0
		a.RandomAccessIndicator = b&0x40 > 0
		a.ElementaryStreamPriorityIndicator = b&0x20 > 0
		a.HasPCR = b&0x10 > 0
		a.HasOPCR = b&0x08 > 0
		a.HasSplicingCountdown = b&0x04 > 0
		a.HasTransportPrivateData = b&0x02 > 0
		a.HasAdaptationExtensionField = b&0x01 > 0

		// PCR
		if a.HasPCR {
			if a.PCR, err = parsePCR(i); err != nil {
				err = errors.Wrap(err, "dvbsi: parsing PCR failed")
				return
			}
		}

		// OPCR
		if a.HasOPCR {
			if a.OPCR, err = parsePCR(i); err != nil {
				err = errors.Wrap(err, "dvbsi: parsing OPCR failed")
				return
			}
		}

		// Splicing countdown
		if a.HasSplicingCountdown {
			if b, err = i.NextByte(); err != nil {
				err = errors.Wrap(err, "dvbsi: fetching next byte failed")
				return
			}
			a.SpliceCountdown = int(int8(b))
		}

		// Transport private data
		if a.HasTransportPrivateData {
			// Length
			if b, err = i.NextByte(); err != nil {
				err = errors.Wrap(err, "dvbsi: fetching next byte failed")
				return
			}
			a.TransportPrivateDataLength = int(b)

			// Data
			if a.TransportPrivateDataLength > 0 {
				if a.TransportPrivateData, err = i.NextBytes(a.TransportPrivateDataLength); err != nil {
					err = errors.Wrap(err, "dvbsi: fetching next bytes failed")
					return
				}
			}
		}

		// Adaptation extension
		if a.HasAdaptationExtensionField {
			// Create extension field
			a.AdaptationExtensionField = &PacketAdaptationExtensionField{}

			// Get next byte
			if b, err = i.NextByte(); err != nil {
				err = errors.Wrap(err, "dvbsi: fetching next byte failed")
				return
			}

			// Length
			a.AdaptationExtensionField.Length = int(b)
			if a.AdaptationExtensionField.Length > 0 {
				// Get next byte
				if b, err = i.NextByte(); err != nil {
					err = errors.Wrap(err, "dvbsi: fetching next byte failed")
					return
				}

				// Basic
				a.AdaptationExtensionField.HasLegalTimeWindow = b&0x80 > 0
				a.AdaptationExtensionField.HasPiecewiseRate = b&0x40 > 0
				a.AdaptationExtensionField.HasSeamlessSplice = b&0x20 > 0

				// Legal time window
				if a.AdaptationExtensionField.HasLegalTimeWindow {
					var bs []byte
					if bs, err = i.NextBytesNoCopy(2); err != nil {
						err = errors.Wrap(err, "dvbsi: fetching next bytes failed")
						return
					}
					a.AdaptationExtensionField.LegalTimeWindowIsValid = bs[0]&0x80 > 0
					a.AdaptationExtensionField.LegalTimeWindowOffset = uint16(bs[0]&0x7f)<<8 | uint16(bs[1])
				}

				// Piecewise rate
				if a.AdaptationExtensionField.HasPiecewiseRate {
					var bs []byte
					if bs, err = i.NextBytesNoCopy(3); err != nil {
						err = errors.Wrap(err, "dvbsi: fetching next bytes failed")
						return
					}
					a.AdaptationExtensionField.PiecewiseRate = uint32(bs[0]&0x3f)<<16 | uint32(bs[1])<<8 | uint32(bs[2])
				}

				// Seamless splice
				if a.AdaptationExtensionField.HasSeamlessSplice {
					// Get next byte
					if b, err = i.NextByte(); err != nil {
						err = errors.Wrap(err, "dvbsi: fetching next byte failed")
						return
					}

					// Splice type
					a.AdaptationExtensionField.SpliceType = uint8(b&0xf0) >> 4

					// We need to rewind since the current byte is used by the DTS next access unit as well
					i.Skip(-1)

					// DTS Next access unit
					if a.AdaptationExtensionField.DTSNextAccessUnit, err = parsePTSOrDTS(i); err != nil {
						err = errors.Wrap(err, "dvbsi: parsing DTS failed")
						return
					}
				}
			}
		}
	}
	return
}

// parsePCR parses a Program Clock Reference
// Program clock reference, stored as 33 bits base, 6 bits reserved, 9 bits extension.
func parsePCR(i BytesIterator) (cr *ClockReference, err error) {
	var bs []byte
	if bs, err = i.NextBytesNoCopy(6); err != nil {
		err = errors.Wrap(err, "dvbsi: fetching next bytes failed")
		return
	}
	pcr := uint64(bs[0])<<40 | uint64(bs[1])<<32 | uint64(bs[2])<<24 | uint64(bs[3])<<16 | uint64(bs[4])<<8 | uint64(bs[5])
	cr = newClockReference(int64(pcr>>15), int64(pcr&0x1ff))
	return
}

// parsePTSOrDTS parses a PTS or a DTS
// Stored as 4 bits prefix, 3 bits, 1 marker bit, 15 bits, 1 marker bit, 15 bits and 1 marker bit
// for 33 data bits total.
func parsePTSOrDTS(i BytesIterator) (cr *ClockReference, err error) {
	var bs []byte
	if bs, err = i.NextBytesNoCopy(5); err != nil {
		err = errors.Wrap(err, "dvbsi: fetching next bytes failed")
		return
	}
	cr = newClockReference(int64(uint64(bs[0])>>1&0x7<<30|uint64(bs[1])<<22|uint64(bs[2])>>1<<15|uint64(bs[3])<<7|uint64(bs[4])>>1), 0)
	return
}

// writePacketHeader writes the 3 header bytes following the sync byte
func writePacketHeader(w *astikit.BitsWriter, h PacketHeader) (int, error) {
	b := astikit.NewBitsWriterBatch(w)

	b.Write(h.TransportErrorIndicator)
	b.Write(h.PayloadUnitStartIndicator)
	b.Write(h.TransportPriority)
	b.WriteN(h.PID, 13)
	b.WriteN(h.TransportScramblingControl, 2)
	b.Write(h.HasAdaptationField)
	b.Write(h.HasPayload)
	b.WriteN(h.ContinuityCounter, 4)

	return 3, b.Err()
}

// writePacket writes a whole packet, stuffing the payload up to the target packet size
func writePacket(w *astikit.BitsWriter, p *Packet, targetPacketSize int) (written int, err error) {
	b := astikit.NewBitsWriterBatch(w)

	b.Write(uint8(syncByte))
	written++

	var n int
	if n, err = writePacketHeader(w, *p.Header); err != nil {
		err = errors.Wrap(err, "dvbsi: writing packet header failed")
		return
	}
	written += n

	if p.Header.HasAdaptationField {
		b.Write(uint8(p.AdaptationField.Length))
		written++
		if n, err = writePacketAdaptationFieldBody(w, p.AdaptationField); err != nil {
			err = errors.Wrap(err, "dvbsi: writing packet adaptation field failed")
			return
		}
		written += n
	}

	if p.Header.HasPayload {
		b.Write(p.Payload)
		written += len(p.Payload)
	}

	for written < targetPacketSize {
		b.Write(uint8(0xff))
		written++
	}

	if err = b.Err(); err != nil {
		err = errors.Wrap(err, "dvbsi: writing packet failed")
	}
	return
}

// writePacketAdaptationFieldBody writes the adaptation field bytes following the length byte
// Only the fields that parsePacketAdaptationField reads back are written; the remainder of the
// declared length is stuffed
func writePacketAdaptationFieldBody(w *astikit.BitsWriter, a *PacketAdaptationField) (written int, err error) {
	if a.Length == 0 {
		return
	}

	b := astikit.NewBitsWriterBatch(w)

	b.Write(a.DiscontinuityIndicator)
	b.Write(a.RandomAccessIndicator)
	b.Write(a.ElementaryStreamPriorityIndicator)
	b.Write(a.HasPCR)
	b.Write(a.HasOPCR)
	b.Write(a.HasSplicingCountdown)
	b.Write(a.HasTransportPrivateData)
	b.Write(a.HasAdaptationExtensionField)
	written++

	if a.HasPCR {
		writePCR(&b, a.PCR)
		written += 6
	}
	if a.HasOPCR {
		writePCR(&b, a.OPCR)
		written += 6
	}
	if a.HasSplicingCountdown {
		b.Write(uint8(a.SpliceCountdown))
		written++
	}
	if a.HasTransportPrivateData {
		b.Write(uint8(a.TransportPrivateDataLength))
		written++
		b.Write(a.TransportPrivateData)
		written += len(a.TransportPrivateData)
	}

	for written < a.Length {
		b.Write(uint8(0xff))
		written++
	}

	err = b.Err()
	return
}

func writePCR(b *astikit.BitsWriterBatch, cr *ClockReference) {
	b.WriteN(uint64(cr.Base), 33)
	b.WriteN(uint8(0x3f), 6)
	b.WriteN(uint64(cr.Extension), 9)
}
