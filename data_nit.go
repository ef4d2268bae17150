package dvbsi

import (
	"fmt"

	"github.com/asticode/go-astikit"
)

// NITData represents a NIT data
// Page: 29 | Chapter: 5.2.1 | Link: https://www.dvb.org/resources/public/standards/a38_dvb-si_specification.pdf
type NITData struct {
	NetworkDescriptors []*Descriptor
	NetworkID          uint16
	TransportStreams   []*NITDataTransportStream
}

// NITDataTransportStream represents a NIT data transport stream
type NITDataTransportStream struct {
	OriginalNetworkID    uint16
	TransportDescriptors []*Descriptor
	TransportStreamID    uint16
}

// Name returns the network name carried in the network descriptors
func (d *NITData) Name() string {
	for _, dsc := range d.NetworkDescriptors {
		if dsc.NetworkName != nil {
			return dsc.NetworkName.Name
		}
	}
	return ""
}

// Services aggregates the service list descriptors of all transport streams into a map
// from service id to service type
func (d *NITData) Services() map[uint16]ServiceType {
	m := make(map[uint16]ServiceType)
	for _, ts := range d.TransportStreams {
		for _, dsc := range ts.TransportDescriptors {
			if dsc.ServiceList == nil {
				continue
			}
			for _, itm := range dsc.ServiceList.Items {
				m[itm.ServiceID] = itm.Type
			}
		}
	}
	return m
}

// parseNITSection parses a NIT section
func parseNITSection(i *astikit.BytesIterator, offsetSectionsEnd int, tableIDExtension uint16) (d *NITData, err error) {
	// Init
	d = &NITData{NetworkID: tableIDExtension}

	// Network descriptors
	if d.NetworkDescriptors, err = parseDescriptors(i); err != nil {
		err = fmt.Errorf("dvbsi: parsing network descriptors failed: %w", err)
		return
	}

	// Transport stream loop length
	var bs []byte
	if bs, err = i.NextBytesNoCopy(2); err != nil {
		err = fmt.Errorf("dvbsi: fetching next bytes failed: %w", err)
		return
	}
	transportStreamLoopEnd := i.Offset() + int(uint16(bs[0]&0xf)<<8|uint16(bs[1]))

	// Transport stream loop
	for i.Offset() < transportStreamLoopEnd && i.Offset() < offsetSectionsEnd {
		var ts = &NITDataTransportStream{}

		// Transport stream ID + original network ID
		if bs, err = i.NextBytesNoCopy(4); err != nil {
			err = fmt.Errorf("dvbsi: fetching next bytes failed: %w", err)
			return
		}
		ts.TransportStreamID = uint16(bs[0])<<8 | uint16(bs[1])
		ts.OriginalNetworkID = uint16(bs[2])<<8 | uint16(bs[3])

		// Transport descriptors
		if ts.TransportDescriptors, err = parseDescriptors(i); err != nil {
			err = fmt.Errorf("dvbsi: parsing transport descriptors failed: %w", err)
			return
		}

		// Append transport stream
		d.TransportStreams = append(d.TransportStreams, ts)
	}
	return
}
