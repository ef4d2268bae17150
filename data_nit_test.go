package dvbsi

import (
	"bytes"
	"testing"

	"github.com/asticode/go-astikit"
	"github.com/stretchr/testify/assert"
)

var nit = &NITData{
	NetworkDescriptors: descriptors,
	NetworkID:          1,
	TransportStreams: []*NITDataTransportStream{{
		OriginalNetworkID:    3,
		TransportDescriptors: descriptors,
		TransportStreamID:    2,
	}},
}

func nitBytes() []byte {
	buf := &bytes.Buffer{}
	w := astikit.NewBitsWriter(astikit.BitsWriterOptions{Writer: buf})
	w.Write("0000")         // Reserved for future use
	descriptorsBytes(w)     // Network descriptors
	w.Write("0000")         // Reserved for future use
	w.Write("000000001001") // Transport stream loop length
	w.Write(uint16(2))      // Transport stream #1 id
	w.Write(uint16(3))      // Transport stream #1 original network id
	w.Write("0000")         // Transport stream #1 reserved for future use
	descriptorsBytes(w)     // Transport stream #1 descriptors
	return buf.Bytes()
}

func TestParseNITSection(t *testing.T) {
	var b = nitBytes()
	d, err := parseNITSection(astikit.NewBytesIterator(b), len(b), uint16(1))
	assert.NoError(t, err)
	assert.Equal(t, nit, d)
}

func TestNITAccessors(t *testing.T) {
	d := &NITData{
		NetworkDescriptors: []*Descriptor{{
			NetworkName: &DescriptorNetworkName{Name: "CT, MUX 21"},
			Tag:         DescriptorTagNetworkName,
		}},
		TransportStreams: []*NITDataTransportStream{{
			TransportDescriptors: []*Descriptor{{
				ServiceList: &DescriptorServiceList{Items: []*DescriptorServiceListItem{
					{ServiceID: 268, Type: ServiceTypeHEVCDigitalTelevisionService},
					{ServiceID: 16651, Type: ServiceTypeDigitalRadioSoundService},
				}},
				Tag: DescriptorTagServiceList,
			}},
		}},
	}

	assert.Equal(t, "CT, MUX 21", d.Name())
	assert.Equal(t, map[uint16]ServiceType{
		268:   ServiceTypeHEVCDigitalTelevisionService,
		16651: ServiceTypeDigitalRadioSoundService,
	}, d.Services())
}
