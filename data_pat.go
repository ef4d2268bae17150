package dvbsi

import (
	"fmt"

	"github.com/asticode/go-astikit"
)

// PATData represents a PAT data
// https://en.wikipedia.org/wiki/Program-specific_information
type PATData struct {
	Programs          []*PATProgram
	TransportStreamID uint16
}

// PATProgram represents a PAT program
type PATProgram struct {
	ProgramMapID  uint16 // The packet identifier that contains the associated PMT
	ProgramNumber uint16 // Relates to the Table ID extension in the associated PMT. A value of 0 is reserved for a NIT packet identifier.
}

// NITPID returns the network PID announced through the reserved program number 0
func (d *PATData) NITPID() (pid uint16, ok bool) {
	for _, p := range d.Programs {
		if p.ProgramNumber == 0 {
			return p.ProgramMapID, true
		}
	}
	return
}

// PMTPID returns the PMT PID associated with a program number
func (d *PATData) PMTPID(programNumber uint16) (pid uint16, ok bool) {
	for _, p := range d.Programs {
		if p.ProgramNumber == programNumber && p.ProgramNumber > 0 {
			return p.ProgramMapID, true
		}
	}
	return
}

// parsePATSection parses a PAT section
func parsePATSection(i *astikit.BytesIterator, offsetSectionsEnd int, tableIDExtension uint16) (d *PATData, err error) {
	// Init
	d = &PATData{TransportStreamID: tableIDExtension}

	// Loop until end of section data is reached
	for i.Offset() < offsetSectionsEnd {
		var bs []byte
		if bs, err = i.NextBytesNoCopy(4); err != nil {
			err = fmt.Errorf("dvbsi: fetching next bytes failed: %w", err)
			return
		}
		d.Programs = append(d.Programs, &PATProgram{
			ProgramMapID:  uint16(bs[2]&0x1f)<<8 | uint16(bs[3]),
			ProgramNumber: uint16(bs[0])<<8 | uint16(bs[1]),
		})
	}
	return
}
