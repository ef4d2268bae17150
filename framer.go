package dvbsi

// FindSync scans b starting at start for a sync byte whose position one packet further also
// holds a sync byte. The two point check defeats false positives from 0x47 bytes occurring
// inside payloads. It returns ErrNotSynchronized when no such pair exists before the last
// full packet.
func FindSync(b []byte, start int) (int, error) {
	if start < 0 {
		start = 0
	}
	for o := start; o+MpegTsPacketSize < len(b); o++ {
		if b[o] == syncByte && b[o+MpegTsPacketSize] == syncByte {
			return o, nil
		}
	}
	return 0, ErrNotSynchronized
}

// ParsePackets frames a raw capture buffer into packets. It synchronizes via FindSync,
// consumes consecutive 188 byte frames and resynchronizes when a frame doesn't start with a
// sync byte. When pidFilter is >= 0, only packets of that PID are retained. It returns
// whatever was successfully decoded together with ErrNotSynchronized when no sync pair was
// found at all.
func ParsePackets(b []byte, pidFilter int) (ps []*Packet, err error) {
	var o int
	if o, err = FindSync(b, 0); err != nil {
		return
	}

	i := NewNoAllocBytesIterator(nil)
	for o+MpegTsPacketSize <= len(b) {
		if b[o] != syncByte {
			// Loss of sync, scan for the next packet boundary
			if o, err = FindSync(b, o+1); err != nil {
				err = nil
				return
			}
		}

		i.Reset(b[o : o+MpegTsPacketSize])
		var p *Packet
		var errPacket error
		if p, errPacket = parsePacket(i); errPacket != nil {
			// Corrupt frame, skip it and resync on the next one
			o += MpegTsPacketSize
			continue
		}
		o += MpegTsPacketSize

		if pidFilter >= 0 && int(p.Header.PID) != pidFilter {
			continue
		}
		ps = append(ps, p)
	}
	return
}
