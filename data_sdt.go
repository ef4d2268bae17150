package dvbsi

import (
	"fmt"

	"github.com/asticode/go-astikit"
)

// Running statuses
// Page: 24 | Chapter: 5.2.3 | Link: https://www.dvb.org/resources/public/standards/a38_dvb-si_specification.pdf
const (
	RunningStatusUndefined           = 0
	RunningStatusNotRunning          = 1
	RunningStatusStartsInAFewSeconds = 2
	RunningStatusPausing             = 3
	RunningStatusRunning             = 4
	RunningStatusServiceOffAir       = 5
)

// SDTData represents an SDT data
// Page: 33 | Chapter: 5.2.3 | Link: https://www.dvb.org/resources/public/standards/a38_dvb-si_specification.pdf
type SDTData struct {
	OriginalNetworkID uint16
	Services          []*SDTDataService
	TransportStreamID uint16
}

// SDTDataService represents an SDT data service
type SDTDataService struct {
	Descriptors []*Descriptor

	// When true indicates that EIT present/following
	// information for the service is present in the current TS.
	HasEITPresentFollowing bool

	// When true indicates that EIT schedule information
	// for the service is present in the current TS.
	HasEITSchedule bool

	// When true indicates that access to one or
	// more streams may be controlled by a CA system.
	HasFreeCSAMode bool
	RunningStatus  uint8
	ServiceID      uint16
}

// Service returns the service descriptor when the service carries one
func (s *SDTDataService) Service() *DescriptorService {
	for _, dsc := range s.Descriptors {
		if dsc.Service != nil {
			return dsc.Service
		}
	}
	return nil
}

// parseSDTSection parses an SDT section
func parseSDTSection(i *astikit.BytesIterator, offsetSectionsEnd int, tableIDExtension uint16) (d *SDTData, err error) {
	// Init
	d = &SDTData{TransportStreamID: tableIDExtension}

	// Original network ID + reserved byte
	var bs []byte
	if bs, err = i.NextBytesNoCopy(3); err != nil {
		err = fmt.Errorf("dvbsi: fetching next bytes failed: %w", err)
		return
	}
	d.OriginalNetworkID = uint16(bs[0])<<8 | uint16(bs[1])

	// Loop until end of section data is reached
	for i.Offset() < offsetSectionsEnd {
		s := &SDTDataService{}

		// Service ID + flags
		if bs, err = i.NextBytesNoCopy(3); err != nil {
			err = fmt.Errorf("dvbsi: fetching next bytes failed: %w", err)
			return
		}
		s.ServiceID = uint16(bs[0])<<8 | uint16(bs[1])
		s.HasEITSchedule = bs[2]&0x2 > 0
		s.HasEITPresentFollowing = bs[2]&0x1 > 0

		// The running status and free CA mode share the first descriptor loop length byte,
		// peek it without consuming the 12 bit length
		if bs, err = i.NextBytesNoCopy(1); err != nil {
			err = fmt.Errorf("dvbsi: fetching next byte failed: %w", err)
			return
		}
		s.RunningStatus = uint8(bs[0]) >> 5
		s.HasFreeCSAMode = bs[0]&0x10 > 0
		i.Skip(-1)

		// Descriptors
		if s.Descriptors, err = parseDescriptors(i); err != nil {
			err = fmt.Errorf("dvbsi: parsing descriptors failed: %w", err)
			return
		}

		d.Services = append(d.Services, s)
	}
	return
}
