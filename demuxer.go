package dvbsi

import (
	"context"
	"io"

	"github.com/asticode/go-astikit"
	"github.com/pkg/errors"
)

// Sync byte
const syncByte = '\x47'

// Errors
var (
	ErrNoMorePackets                = errors.New("dvbsi: no more packets")
	ErrNotSynchronized              = errors.New("dvbsi: no sync byte pair found")
	ErrPacketMustStartWithASyncByte = errors.New("dvbsi: packet must start with a sync byte")
)

// Demuxer represents a demuxer
// https://en.wikipedia.org/wiki/MPEG_transport_stream
// https://www.etsi.org/deliver/etsi_en/300400_300499/300468/01.13.01_40/en_300468v011301o.pdf
type Demuxer struct {
	ctx              context.Context
	dataBuffer       []*Data
	optPacketSize    int
	optPacketsParser PacketsParser
	optPIDFilter     int
	packetBuffer     *packetBuffer
	packetPool       *packetPool
	programMap       programMap
	r                io.Reader
}

// PacketsParser represents an object capable of parsing a set of packets containing a unique
// payload spanning over those packets
// Use the skip returned argument to indicate whether the default process should still be
// executed on the set of packets
type PacketsParser func(ps []*Packet) (ds []*Data, skip bool, err error)

// NewDemuxer creates a new demuxer based on a reader
func NewDemuxer(ctx context.Context, r io.Reader, opts ...func(*Demuxer)) (d *Demuxer) {
	// Init
	d = &Demuxer{
		ctx:          ctx,
		optPIDFilter: -1,
		programMap:   newProgramMap(),
		r:            r,
	}
	d.packetPool = newPacketPool(&d.programMap)

	// Apply options
	for _, opt := range opts {
		opt(d)
	}
	return
}

// DemuxerOptPacketSize returns the option to set the packet size
func DemuxerOptPacketSize(packetSize int) func(*Demuxer) {
	return func(d *Demuxer) {
		d.optPacketSize = packetSize
	}
}

// DemuxerOptPacketsParser returns the option to set a custom packets parser
func DemuxerOptPacketsParser(p PacketsParser) func(*Demuxer) {
	return func(d *Demuxer) {
		d.optPacketsParser = p
	}
}

// DemuxerOptPIDFilter returns the option to only process packets of the provided PID.
// A negative value disables the filter.
func DemuxerOptPIDFilter(pid int) func(*Demuxer) {
	return func(d *Demuxer) {
		d.optPIDFilter = pid
	}
}

// DemuxerOptLogger returns the option to set the package logger
func DemuxerOptLogger(l astikit.StdLogger) func(*Demuxer) {
	return func(d *Demuxer) {
		SetLogger(l)
	}
}

// NextPacket retrieves the next packet
func (dmx *Demuxer) NextPacket() (p *Packet, err error) {
	// Check ctx error
	if err = dmx.ctx.Err(); err != nil {
		return
	}

	// Create packet buffer if not exists
	if dmx.packetBuffer == nil {
		if dmx.packetBuffer, err = newPacketBuffer(dmx.r, dmx.optPacketSize); err != nil {
			err = errors.Wrap(err, "dvbsi: creating packet buffer failed")
			return
		}
	}

	// Fetch next packet from buffer
	if p, err = dmx.packetBuffer.next(); err != nil {
		if err != ErrNoMorePackets {
			err = errors.Wrap(err, "dvbsi: fetching next packet from buffer failed")
		}
		return
	}
	return
}

// NextData retrieves the next data
func (dmx *Demuxer) NextData() (d *Data, err error) {
	// Check data buffer
	if len(dmx.dataBuffer) > 0 {
		d = dmx.dataBuffer[0]
		dmx.dataBuffer = dmx.dataBuffer[1:]
		return
	}

	// Loop through packets
	var p *Packet
	var ps []*Packet
	var ds []*Data
	for {
		// Get next packet
		if p, err = dmx.NextPacket(); err != nil {
			// If no more packets, we still need to dump the pool
			if ps = dmx.packetPool.dump(); err != ErrNoMorePackets || len(ps) == 0 {
				if err == ErrNoMorePackets {
					return
				}
				err = errors.Wrap(err, "dvbsi: fetching next packet failed")
				return
			}
		} else {
			// Filter on PID
			if dmx.optPIDFilter >= 0 && int(p.Header.PID) != dmx.optPIDFilter {
				continue
			}

			// Add packet to the pool
			if ps = dmx.packetPool.add(p); len(ps) == 0 {
				continue
			}
		}

		// Parse data
		if ds, err = parseData(ps, dmx.optPacketsParser, dmx.programMap); err != nil {
			err = errors.Wrap(err, "dvbsi: building new data failed")
			return
		}

		// Check whether there is data to be processed
		if len(ds) > 0 {
			// Process data
			d = ds[0]
			dmx.dataBuffer = append(dmx.dataBuffer, ds[1:]...)

			// Update program map
			for _, v := range ds {
				if v.PAT != nil {
					announced := make(map[uint16]bool)
					for _, pgm := range v.PAT.Programs {
						// Program number 0 is reserved to NIT
						if pgm.ProgramNumber > 0 {
							dmx.programMap.set(pgm.ProgramMapID, pgm.ProgramNumber)
							announced[pgm.ProgramMapID] = true
						}
					}

					// Drop PMT PIDs the new PAT no longer announces
					for _, pid := range dmx.programMap.pids() {
						if !announced[pid] {
							dmx.programMap.unset(pid)
						}
					}
				}
			}
			return
		}
	}
}

// Rewind rewinds the demuxer reader
func (dmx *Demuxer) Rewind() (n int64, err error) {
	dmx.dataBuffer = []*Data{}
	dmx.packetBuffer = nil
	dmx.packetPool = newPacketPool(&dmx.programMap)
	if n, err = rewind(dmx.r); err != nil {
		err = errors.Wrap(err, "dvbsi: rewinding reader failed")
		return
	}
	return
}
