package dvbsi

import (
	"fmt"

	"github.com/asticode/go-astikit"
)

// Stream types
const (
	StreamTypeMPEG1Audio                 = 3   // ISO/IEC 11172-3
	StreamTypeMPEG2HalvedSampleRateAudio = 4   // ISO/IEC 13818-3
	StreamTypeMPEG2PacketizedData        = 6   // ITU-T Rec. H.222 and ISO/IEC 13818-1 i.e., DVB subtitles/VBI and AC-3
	StreamTypeLowerBitrateVideo          = 27  // ITU-T Rec. H.264 and ISO/IEC 14496-10
	StreamTypeHEVCVideo                  = 36  // ITU-T Rec. H.265 and ISO/IEC 23008-2
)

// PMTData represents a PMT data
// https://en.wikipedia.org/wiki/Program-specific_information
type PMTData struct {
	ElementaryStreams  []*PMTElementaryStream
	PCRPID             uint16        // The packet identifier that contains the program clock reference. If this is unused then it is set to 0x1FFF (all bits on).
	ProgramDescriptors []*Descriptor // Program descriptors
	ProgramNumber      uint16
}

// PMTElementaryStream represents a PMT elementary stream
type PMTElementaryStream struct {
	ElementaryPID               uint16        // The packet identifier that contains the stream type data.
	ElementaryStreamDescriptors []*Descriptor // Elementary stream descriptors
	StreamType                  uint8         // This defines the structure of the data contained within the elementary packet identifier.
}

// parsePMTSection parses a PMT section
func parsePMTSection(i *astikit.BytesIterator, offsetSectionsEnd int, tableIDExtension uint16) (d *PMTData, err error) {
	// Init
	d = &PMTData{ProgramNumber: tableIDExtension}

	// PCR PID
	var bs []byte
	if bs, err = i.NextBytesNoCopy(2); err != nil {
		err = fmt.Errorf("dvbsi: fetching next bytes failed: %w", err)
		return
	}
	d.PCRPID = uint16(bs[0]&0x1f)<<8 | uint16(bs[1])

	// Program descriptors
	if d.ProgramDescriptors, err = parseDescriptors(i); err != nil {
		err = fmt.Errorf("dvbsi: parsing program descriptors failed: %w", err)
		return
	}

	// Loop until end of section data is reached
	for i.Offset() < offsetSectionsEnd {
		// Stream type + elementary PID
		var e = &PMTElementaryStream{}
		if bs, err = i.NextBytesNoCopy(3); err != nil {
			err = fmt.Errorf("dvbsi: fetching next bytes failed: %w", err)
			return
		}
		e.StreamType = uint8(bs[0])
		e.ElementaryPID = uint16(bs[1]&0x1f)<<8 | uint16(bs[2])

		// Elementary descriptors
		if e.ElementaryStreamDescriptors, err = parseDescriptors(i); err != nil {
			err = fmt.Errorf("dvbsi: parsing elementary stream descriptors failed: %w", err)
			return
		}

		// Add elementary stream
		d.ElementaryStreams = append(d.ElementaryStreams, e)
	}
	return
}
