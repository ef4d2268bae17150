package dvbsi

import (
	"fmt"
	"strings"
	"time"

	"github.com/asticode/go-astikit"
	"golang.org/x/exp/slices"
)

// EITData represents an EIT data
// Page: 36 | Chapter: 5.2.4 | Link: https://www.dvb.org/resources/public/standards/a38_dvb-si_specification.pdf
type EITData struct {
	Events                   []*EITDataEvent
	LastTableID              uint8
	OriginalNetworkID        uint16
	SegmentLastSectionNumber uint8
	ServiceID                uint16
	TransportStreamID        uint16
}

// EITDataEvent represents an EIT data event
type EITDataEvent struct {
	Descriptors []*Descriptor
	Duration    time.Duration
	EventID     uint16

	// When true indicates that access to one or
	// more streams may be controlled by a CA system.
	HasFreeCSAMode bool
	RunningStatus  uint8
	StartTime      time.Time
}

// EITEventItem is the assembled guide entry of a single event. It is only built for
// events that carry a short event descriptor.
type EITEventItem struct {
	ContentItems []*DescriptorContentItem
	Duration     time.Duration
	EventID      uint16
	FinishTime   time.Time
	Language     string
	ServiceID    uint16
	StartTime    time.Time
	Subtitle     string
	Text         string
	Title        string
}

// ShortEvent returns the event's short event descriptor, or nil
func (e *EITDataEvent) ShortEvent() *DescriptorShortEvent {
	for _, d := range e.Descriptors {
		if d.ShortEvent != nil {
			return d.ShortEvent
		}
	}
	return nil
}

// ExtendedText concatenates the texts of the event's extended event descriptors in
// ascending descriptor number order
func (e *EITDataEvent) ExtendedText() string {
	texts := make(map[uint8]string)
	for _, d := range e.Descriptors {
		if d.ExtendedEvent != nil {
			texts[d.ExtendedEvent.Number] = d.ExtendedEvent.Text
		}
	}
	numbers := make([]uint8, 0, len(texts))
	for n := range texts {
		numbers = append(numbers, n)
	}
	slices.Sort(numbers)
	var sb strings.Builder
	for _, n := range numbers {
		sb.WriteString(texts[n])
	}
	return sb.String()
}

// ContentItems returns the genre nibbles of the event's content descriptor
func (e *EITDataEvent) ContentItems() []*DescriptorContentItem {
	for _, d := range e.Descriptors {
		if d.Content != nil {
			return d.Content.Items
		}
	}
	return nil
}

// Items assembles the guide entries of the table. Events without a short event descriptor
// are left out. An empty language code becomes "und".
func (d *EITData) Items() (items []*EITEventItem) {
	for _, e := range d.Events {
		se := e.ShortEvent()
		if se == nil {
			continue
		}
		language := strings.TrimRight(se.Language, "\x00 ")
		if language == "" {
			language = "und"
		}
		items = append(items, &EITEventItem{
			ContentItems: e.ContentItems(),
			Duration:     e.Duration,
			EventID:      e.EventID,
			FinishTime:   e.StartTime.Add(e.Duration),
			Language:     language,
			ServiceID:    d.ServiceID,
			StartTime:    e.StartTime,
			Subtitle:     se.Text,
			Text:         e.ExtendedText(),
			Title:        se.EventName,
		})
	}
	return
}

// parseEITSection parses an EIT section
func parseEITSection(i *astikit.BytesIterator, offsetSectionsEnd int, tableIDExtension uint16) (d *EITData, err error) {
	// Init
	d = &EITData{ServiceID: tableIDExtension}

	// Transport stream ID, original network ID, segment last section number, last table id
	var bs []byte
	if bs, err = i.NextBytesNoCopy(6); err != nil {
		err = fmt.Errorf("dvbsi: fetching next bytes failed: %w", err)
		return
	}
	d.TransportStreamID = uint16(bs[0])<<8 | uint16(bs[1])
	d.OriginalNetworkID = uint16(bs[2])<<8 | uint16(bs[3])
	d.SegmentLastSectionNumber = uint8(bs[4])
	d.LastTableID = uint8(bs[5])

	// Loop until end of section data is reached
	for i.Offset() < offsetSectionsEnd {
		e := &EITDataEvent{}

		// Event ID
		if bs, err = i.NextBytesNoCopy(2); err != nil {
			err = fmt.Errorf("dvbsi: fetching next bytes failed: %w", err)
			return
		}
		e.EventID = uint16(bs[0])<<8 | uint16(bs[1])

		// Start time
		if e.StartTime, err = parseDVBTime(i); err != nil {
			err = fmt.Errorf("dvbsi: parsing DVB time failed: %w", err)
			return
		}

		// Duration
		if e.Duration, err = parseDVBDurationSeconds(i); err != nil {
			err = fmt.Errorf("dvbsi: parsing DVB duration seconds failed: %w", err)
			return
		}

		// The running status and free CA mode share the first descriptor loop length byte,
		// peek it without consuming the 12 bit length
		if bs, err = i.NextBytesNoCopy(1); err != nil {
			err = fmt.Errorf("dvbsi: fetching next byte failed: %w", err)
			return
		}
		e.RunningStatus = uint8(bs[0]) >> 5
		e.HasFreeCSAMode = bs[0]&0x10 > 0
		i.Skip(-1)

		// Descriptors
		if e.Descriptors, err = parseDescriptors(i); err != nil {
			err = fmt.Errorf("dvbsi: parsing descriptors failed: %w", err)
			return
		}

		d.Events = append(d.Events, e)
	}
	return
}
