package dvbsi

import (
	"bytes"
	"testing"
	"time"

	"github.com/asticode/go-astikit"
	"github.com/stretchr/testify/assert"
)

var eit = &EITData{
	Events: []*EITDataEvent{{
		Descriptors:    descriptors,
		Duration:       dvbDuration,
		EventID:        6,
		HasFreeCSAMode: true,
		RunningStatus:  7,
		StartTime:      dvbTime,
	}},
	LastTableID:              5,
	OriginalNetworkID:        3,
	SegmentLastSectionNumber: 4,
	ServiceID:                1,
	TransportStreamID:        2,
}

func eitBytes() []byte {
	buf := &bytes.Buffer{}
	w := astikit.NewBitsWriter(astikit.BitsWriterOptions{Writer: buf})
	w.Write(uint16(2))        // Transport stream ID
	w.Write(uint16(3))        // Original network ID
	w.Write(uint8(4))         // Segment last section number
	w.Write(uint8(5))         // Last table id
	w.Write(uint16(6))        // Event #1 id
	w.Write(dvbTimeBytes)     // Event #1 start time
	w.Write(dvbDurationBytes) // Event #1 duration
	w.Write("111")            // Event #1 running status
	w.Write("1")              // Event #1 free CA mode
	descriptorsBytes(w)       // Event #1 descriptors
	return buf.Bytes()
}

func TestParseEITSection(t *testing.T) {
	var b = eitBytes()
	d, err := parseEITSection(astikit.NewBytesIterator(b), len(b), uint16(1))
	assert.NoError(t, err)
	assert.Equal(t, eit, d)
}

func eitEventWithDescriptors(ds ...*Descriptor) *EITDataEvent {
	return &EITDataEvent{
		Descriptors: ds,
		Duration:    dvbDuration,
		EventID:     6,
		StartTime:   dvbTime,
	}
}

func TestEITDataEventAccessors(t *testing.T) {
	e := eitEventWithDescriptors(
		&Descriptor{Tag: DescriptorTagShortEvent, ShortEvent: &DescriptorShortEvent{EventName: "Zprávy", Language: "ces", Text: "sub"}},
		&Descriptor{Tag: DescriptorTagExtendedEvent, ExtendedEvent: &DescriptorExtendedEvent{Number: 1, Text: " part two"}},
		&Descriptor{Tag: DescriptorTagExtendedEvent, ExtendedEvent: &DescriptorExtendedEvent{Number: 0, Text: "part one"}},
		&Descriptor{Tag: DescriptorTagContent, Content: &DescriptorContent{Items: []*DescriptorContentItem{{ContentNibbleLevel1: 2}}}},
	)

	assert.Equal(t, "Zprávy", e.ShortEvent().EventName)

	// Extended texts concatenate in ascending descriptor number order regardless of
	// arrival order
	assert.Equal(t, "part one part two", e.ExtendedText())

	assert.Len(t, e.ContentItems(), 1)
}

func TestEITDataItems(t *testing.T) {
	d := &EITData{
		Events: []*EITDataEvent{
			eitEventWithDescriptors(
				&Descriptor{Tag: DescriptorTagShortEvent, ShortEvent: &DescriptorShortEvent{EventName: "Zprávy", Language: "ces", Text: "sub"}},
			),
			// No short event descriptor: left out
			eitEventWithDescriptors(
				&Descriptor{Tag: DescriptorTagContent, Content: &DescriptorContent{}},
			),
			// Empty language code becomes "und"
			eitEventWithDescriptors(
				&Descriptor{Tag: DescriptorTagShortEvent, ShortEvent: &DescriptorShortEvent{EventName: "Film"}},
			),
		},
		ServiceID: 268,
	}

	items := d.Items()
	assert.Len(t, items, 2)
	assert.Equal(t, &EITEventItem{
		Duration:   dvbDuration,
		EventID:    6,
		FinishTime: dvbTime.Add(dvbDuration),
		Language:   "ces",
		ServiceID:  268,
		StartTime:  dvbTime,
		Subtitle:   "sub",
		Title:      "Zprávy",
	}, items[0])
	assert.Equal(t, "und", items[1].Language)
	assert.Equal(t, "Film", items[1].Title)
}

func TestEITEventFinishTime(t *testing.T) {
	items := (&EITData{Events: []*EITDataEvent{eitEventWithDescriptors(
		&Descriptor{Tag: DescriptorTagShortEvent, ShortEvent: &DescriptorShortEvent{EventName: "x", Language: "ces"}},
	)}}).Items()
	assert.Equal(t, time.Date(1993, 10, 13, 14, 30, 30, 0, time.UTC), items[0].FinishTime)
}
