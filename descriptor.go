package dvbsi

import (
	"fmt"
	"time"

	"github.com/asticode/go-astikit"
)

// Audio types
// Page: 683 | https://books.google.fr/books?id=6dgWB3-rChYC&printsec=frontcover&hl=fr
const (
	AudioTypeCleanEffects             = 0x1
	AudioTypeHearingImpaired          = 0x2
	AudioTypeVisualImpairedCommentary = 0x3
)

// Descriptor tags
// Page: 42 | Chapter: 6.1 | Link: https://www.dvb.org/resources/public/standards/a38_dvb-si_specification.pdf
const (
	DescriptorTagAC3                        = 0x6a
	DescriptorTagComponent                  = 0x50
	DescriptorTagContent                    = 0x54
	DescriptorTagExtendedEvent              = 0x4e
	DescriptorTagISO639LanguageAndAudioType = 0xa
	DescriptorTagLocalTimeOffset            = 0x58
	DescriptorTagNetworkName                = 0x40
	DescriptorTagParentalRating             = 0x55
	DescriptorTagPDC                        = 0x69
	DescriptorTagService                    = 0x48
	DescriptorTagServiceList                = 0x41
	DescriptorTagShortEvent                 = 0x4d
	DescriptorTagStreamIdentifier           = 0x52
	DescriptorTagSubtitling                 = 0x59
	DescriptorTagTeletext                   = 0x56
)

// ServiceType describes the kind of service announced in NIT service lists and SDT service
// descriptors
// Page: 97 | Chapter: 6.2.33 | Link: https://www.dvb.org/resources/public/standards/a38_dvb-si_specification.pdf
type ServiceType uint8

// Service types
const (
	ServiceTypeDigitalTelevisionService     ServiceType = 0x01
	ServiceTypeDigitalRadioSoundService     ServiceType = 0x02
	ServiceTypeMPEG2HDTelevisionService     ServiceType = 0x11
	ServiceTypeAdvancedCodecSDTelevision    ServiceType = 0x16
	ServiceTypeAdvancedCodecHDTelevision    ServiceType = 0x19
	ServiceTypeHEVCDigitalTelevisionService ServiceType = 0x1f
)

// String implements fmt.Stringer
func (t ServiceType) String() string {
	switch t {
	case ServiceTypeDigitalTelevisionService:
		return "Digital television service"
	case ServiceTypeDigitalRadioSoundService:
		return "Digital radio sound service"
	case ServiceTypeMPEG2HDTelevisionService:
		return "MPEG-2 HD digital television service"
	case ServiceTypeAdvancedCodecSDTelevision:
		return "Advanced codec SD digital television service"
	case ServiceTypeAdvancedCodecHDTelevision:
		return "Advanced codec HD digital television service"
	case ServiceTypeHEVCDigitalTelevisionService:
		return "HEVC digital television service"
	default:
		return fmt.Sprintf("Service type 0x%x", uint8(t))
	}
}

// Teletext types
// Page: 106 | Chapter: 6.2.43 | Link: https://www.dvb.org/resources/public/standards/a38_dvb-si_specification.pdf
const (
	TeletextTypeAdditionalInformationPage                    = 0x3
	TeletextTypeInitialTeletextPage                          = 0x1
	TeletextTypeProgramSchedulePage                          = 0x4
	TeletextTypeTeletextSubtitlePage                         = 0x2
	TeletextTypeTeletextSubtitlePageForHearingImpairedPeople = 0x5
)

// Descriptor represents a descriptor
type Descriptor struct {
	AC3                        *DescriptorAC3
	Content                    *DescriptorContent
	ExtendedEvent              *DescriptorExtendedEvent
	ISO639LanguageAndAudioType *DescriptorISO639LanguageAndAudioType
	Length                     uint8
	LocalTimeOffset            *DescriptorLocalTimeOffset
	NetworkName                *DescriptorNetworkName
	Service                    *DescriptorService
	ServiceList                *DescriptorServiceList
	ShortEvent                 *DescriptorShortEvent
	StreamIdentifier           *DescriptorStreamIdentifier
	Subtitling                 *DescriptorSubtitling
	Tag                        uint8 // the tag defines the structure of the contained data following the descriptor length.
	Teletext                   *DescriptorTeletext
}

// DescriptorAC3 represents an AC3 descriptor
// Page: 165 | https://www.dvb.org/resources/public/standards/a38_dvb-si_specification.pdf
type DescriptorAC3 struct {
	AdditionalInfo   []byte
	ASVC             uint8
	BSID             uint8
	ComponentType    uint8
	HasASVC          bool
	HasBSID          bool
	HasComponentType bool
	HasMainID        bool
	MainID           uint8
}

func newDescriptorAC3(i []byte) (d *DescriptorAC3) {
	var offset int
	d = &DescriptorAC3{}
	d.HasComponentType = uint8(i[offset]&0x80) > 0
	d.HasBSID = uint8(i[offset]&0x40) > 0
	d.HasMainID = uint8(i[offset]&0x20) > 0
	d.HasASVC = uint8(i[offset]&0x10) > 0
	offset += 1
	if d.HasComponentType && offset < len(i) {
		d.ComponentType = uint8(i[offset])
		offset += 1
	}
	if d.HasBSID && offset < len(i) {
		d.BSID = uint8(i[offset])
		offset += 1
	}
	if d.HasMainID && offset < len(i) {
		d.MainID = uint8(i[offset])
		offset += 1
	}
	if d.HasASVC && offset < len(i) {
		d.ASVC = uint8(i[offset])
		offset += 1
	}
	for offset < len(i) {
		d.AdditionalInfo = append(d.AdditionalInfo, i[offset])
		offset += 1
	}
	return
}

// DescriptorContent represents a content descriptor
// Page: 58 | https://www.dvb.org/resources/public/standards/a38_dvb-si_specification.pdf
type DescriptorContent struct {
	Items []*DescriptorContentItem
}

// DescriptorContentItem represents a content item descriptor
// Check page 59 of https://www.dvb.org/resources/public/standards/a38_dvb-si_specification.pdf for content nibble
// levels associations
type DescriptorContentItem struct {
	ContentNibbleLevel1 uint8
	ContentNibbleLevel2 uint8
	UserByte            uint8
}

func newDescriptorContent(i []byte) (d *DescriptorContent) {
	// Init
	d = &DescriptorContent{}
	var offset int

	// Add items
	for offset+1 < len(i) {
		d.Items = append(d.Items, &DescriptorContentItem{
			ContentNibbleLevel1: uint8(i[offset] >> 4),
			ContentNibbleLevel2: uint8(i[offset] & 0xf),
			UserByte:            uint8(i[offset+1]),
		})
		offset += 2
	}
	return
}

// DescriptorExtendedEvent represents an extended event descriptor
// Page: 62 | Chapter: 6.2.15 | Link: https://www.dvb.org/resources/public/standards/a38_dvb-si_specification.pdf
type DescriptorExtendedEvent struct {
	Items                []*DescriptorExtendedEventItem
	Language             string
	LastDescriptorNumber uint8
	Number               uint8
	Text                 string
}

// DescriptorExtendedEventItem represents an extended event item descriptor
type DescriptorExtendedEventItem struct {
	Content     string
	Description string
}

func newDescriptorExtendedEvent(i []byte) (d *DescriptorExtendedEvent) {
	// Init
	d = &DescriptorExtendedEvent{}
	var offset int
	if len(i) < 5 {
		return
	}

	// Number
	d.Number = uint8(i[offset] >> 4)

	// Last descriptor number
	d.LastDescriptorNumber = uint8(i[offset] & 0xf)
	offset += 1

	// ISO 639 language code
	d.Language = string(i[offset : offset+3])
	offset += 3

	// Items length
	var itemsLength = int(i[offset])
	offset += 1

	// Items
	var offsetEnd = offset + itemsLength
	for offset < offsetEnd && offset < len(i) {
		d.Items = append(d.Items, newDescriptorExtendedEventItem(i, &offset))
	}

	// Text length
	if offset >= len(i) {
		return
	}
	var textLength = int(i[offset])
	offset += 1

	// Text
	d.Text = decodeDVBText(textField(i, offset, textLength))
	return
}

func newDescriptorExtendedEventItem(i []byte, offset *int) (d *DescriptorExtendedEventItem) {
	// Init
	d = &DescriptorExtendedEventItem{}

	// Description length
	var descriptionLength = int(i[*offset])
	*offset += 1

	// Description
	d.Description = decodeDVBText(textField(i, *offset, descriptionLength))
	*offset += descriptionLength

	// Content length
	if *offset >= len(i) {
		return
	}
	var contentLength = int(i[*offset])
	*offset += 1

	// Content
	d.Content = decodeDVBText(textField(i, *offset, contentLength))
	*offset += contentLength
	return
}

// DescriptorISO639LanguageAndAudioType represents an ISO639 language descriptor
type DescriptorISO639LanguageAndAudioType struct {
	Language string
	Type     uint8
}

func newDescriptorISO639LanguageAndAudioType(i []byte) *DescriptorISO639LanguageAndAudioType {
	if len(i) < 4 {
		return &DescriptorISO639LanguageAndAudioType{}
	}
	return &DescriptorISO639LanguageAndAudioType{
		Language: string(i[0:3]),
		Type:     uint8(i[3]),
	}
}

// DescriptorLocalTimeOffset represents a local time offset descriptor
// Page: 84 | Link: https://www.dvb.org/resources/public/standards/a38_dvb-si_specification.pdf
type DescriptorLocalTimeOffset struct {
	Items []*DescriptorLocalTimeOffsetItem
}

// DescriptorLocalTimeOffsetItem represents a local time offset item descriptor
type DescriptorLocalTimeOffsetItem struct {
	CountryCode             string
	CountryRegionID         uint8
	LocalTimeOffset         time.Duration
	LocalTimeOffsetPolarity bool
	NextTimeOffset          time.Duration
	TimeOfChange            time.Time
}

func newDescriptorLocalTimeOffset(b []byte) (d *DescriptorLocalTimeOffset) {
	// Init
	d = &DescriptorLocalTimeOffset{}
	i := astikit.NewBytesIterator(b)

	// Add items
	for i.HasBytesLeft() {
		// Init
		var itm = &DescriptorLocalTimeOffsetItem{}

		// Country code
		cc, err := i.NextBytesNoCopy(3)
		if err != nil {
			return
		}
		itm.CountryCode = string(cc)

		// Country region ID + polarity
		bt, err := i.NextByte()
		if err != nil {
			return
		}
		itm.CountryRegionID = uint8(bt >> 2)
		itm.LocalTimeOffsetPolarity = bt&0x1 > 0

		// Local time offset
		if itm.LocalTimeOffset, err = parseDVBDurationMinutes(i); err != nil {
			return
		}

		// Time of change
		if itm.TimeOfChange, err = parseDVBTime(i); err != nil {
			return
		}

		// Next time offset
		if itm.NextTimeOffset, err = parseDVBDurationMinutes(i); err != nil {
			return
		}
		d.Items = append(d.Items, itm)
	}
	return
}

// DescriptorNetworkName represents a network name descriptor
// Page: 93 | Chapter: 6.2.27 | Link: https://www.dvb.org/resources/public/standards/a38_dvb-si_specification.pdf
type DescriptorNetworkName struct {
	Name string
}

func newDescriptorNetworkName(i []byte) *DescriptorNetworkName {
	return &DescriptorNetworkName{Name: decodeDVBText(i)}
}

// DescriptorService represents a service descriptor
// Page: 96 | Chapter: 6.2.33 | Link: https://www.dvb.org/resources/public/standards/a38_dvb-si_specification.pdf
type DescriptorService struct {
	Name     string
	Provider string
	Type     ServiceType
}

func newDescriptorService(i []byte) (d *DescriptorService) {
	var offset int
	d = &DescriptorService{Type: ServiceType(i[offset])}
	offset += 1
	if offset >= len(i) {
		return
	}
	var providerLength = int(i[offset])
	offset += 1
	d.Provider = decodeDVBText(textField(i, offset, providerLength))
	offset += providerLength
	if offset >= len(i) {
		return
	}
	var nameLength = int(i[offset])
	offset += 1
	d.Name = decodeDVBText(textField(i, offset, nameLength))
	return
}

// DescriptorServiceList represents a service list descriptor
// Page: 98 | Chapter: 6.2.35 | Link: https://www.dvb.org/resources/public/standards/a38_dvb-si_specification.pdf
type DescriptorServiceList struct {
	Items []*DescriptorServiceListItem
}

// DescriptorServiceListItem represents a service list item
type DescriptorServiceListItem struct {
	ServiceID uint16
	Type      ServiceType
}

func newDescriptorServiceList(i []byte) (d *DescriptorServiceList) {
	d = &DescriptorServiceList{}
	var offset int
	for offset+2 < len(i) {
		d.Items = append(d.Items, &DescriptorServiceListItem{
			ServiceID: uint16(i[offset])<<8 | uint16(i[offset+1]),
			Type:      ServiceType(i[offset+2]),
		})
		offset += 3
	}
	return
}

// DescriptorShortEvent represents a short event descriptor
// Page: 99 | Chapter: 6.2.37 | Link: https://www.dvb.org/resources/public/standards/a38_dvb-si_specification.pdf
type DescriptorShortEvent struct {
	EventName string
	Language  string
	Text      string
}

func newDescriptorShortEvent(i []byte) (d *DescriptorShortEvent) {
	var offset int
	d = &DescriptorShortEvent{}
	if len(i) < 4 {
		return
	}
	d.Language = string(i[:3])
	offset += 3
	var length = int(i[offset])
	offset += 1
	d.EventName = decodeDVBText(textField(i, offset, length))
	offset += length
	if offset >= len(i) {
		return
	}
	length = int(i[offset])
	offset += 1
	d.Text = decodeDVBText(textField(i, offset, length))
	return
}

// DescriptorStreamIdentifier represents a stream identifier descriptor
// Page: 102 | Chapter: 6.2.39 | Link: https://www.dvb.org/resources/public/standards/a38_dvb-si_specification.pdf
type DescriptorStreamIdentifier struct{ ComponentTag uint8 }

func newDescriptorStreamIdentifier(i []byte) *DescriptorStreamIdentifier {
	return &DescriptorStreamIdentifier{ComponentTag: uint8(i[0])}
}

// DescriptorSubtitling represents a subtitling descriptor
// Page: 103 | Chapter: 6.2.41 | Link: https://www.dvb.org/resources/public/standards/a38_dvb-si_specification.pdf
type DescriptorSubtitling struct {
	Items []*DescriptorSubtitlingItem
}

// DescriptorSubtitlingItem represents subtitling descriptor item
type DescriptorSubtitlingItem struct {
	AncillaryPageID   uint16
	CompositionPageID uint16
	Language          string
	Type              uint8
}

func newDescriptorSubtitling(i []byte) (d *DescriptorSubtitling) {
	d = &DescriptorSubtitling{}
	var offset int
	for offset+8 <= len(i) {
		itm := &DescriptorSubtitlingItem{}
		itm.Language = string(i[offset : offset+3])
		offset += 3
		itm.Type = uint8(i[offset])
		offset += 1
		itm.CompositionPageID = uint16(i[offset])<<8 | uint16(i[offset+1])
		offset += 2
		itm.AncillaryPageID = uint16(i[offset])<<8 | uint16(i[offset+1])
		offset += 2
		d.Items = append(d.Items, itm)
	}
	return
}

// DescriptorTeletext represents a teletext descriptor
// Page: 105 | Chapter: 6.2.43 | Link: https://www.dvb.org/resources/public/standards/a38_dvb-si_specification.pdf
type DescriptorTeletext struct {
	Items []*DescriptorTeletextItem
}

// DescriptorTeletextItem represents a teletext descriptor item
type DescriptorTeletextItem struct {
	Language string
	Magazine uint8
	Page     uint8
	Type     uint8
}

func newDescriptorTeletext(i []byte) (d *DescriptorTeletext) {
	var offset int
	d = &DescriptorTeletext{}
	for offset+4 < len(i) {
		itm := &DescriptorTeletextItem{}
		itm.Language = string(i[offset : offset+3])
		offset += 3
		itm.Type = uint8(i[offset]) >> 3
		itm.Magazine = uint8(i[offset] & 0x7)
		offset += 1
		itm.Page = uint8(i[offset])>>4*10 + uint8(i[offset]&0xf)
		offset += 1
		d.Items = append(d.Items, itm)
	}
	return
}

// textField slices a length prefixed field, clipping a length that overruns the
// descriptor body
func textField(i []byte, offset, length int) []byte {
	if offset >= len(i) {
		return nil
	}
	if offset+length > len(i) {
		length = len(i) - offset
	}
	return i[offset : offset+length]
}

// parseDescriptors parses a 12 bit length prefixed descriptor loop
func parseDescriptors(i *astikit.BytesIterator) (o []*Descriptor, err error) {
	// Get length
	var bs []byte
	if bs, err = i.NextBytesNoCopy(2); err != nil {
		err = fmt.Errorf("dvbsi: fetching next bytes failed: %w", err)
		return
	}
	length := int(uint16(bs[0]&0xf)<<8 | uint16(bs[1]))

	// Loop
	if length > 0 {
		offsetEnd := i.Offset() + length
		for i.Offset() < offsetEnd {
			// Init
			if bs, err = i.NextBytesNoCopy(2); err != nil {
				err = fmt.Errorf("dvbsi: fetching next bytes failed: %w", err)
				return
			}
			var d = &Descriptor{
				Length: uint8(bs[1]),
				Tag:    uint8(bs[0]),
			}

			// A declared length extending beyond the enclosing loop is clipped to the loop
			// boundary and reported, parsing continues
			bodyLength := int(d.Length)
			if i.Offset()+bodyLength > offsetEnd {
				logger.Warnf("dvbsi: descriptor tag 0x%x length %d overflows its loop, clipping to %d", d.Tag, d.Length, offsetEnd-i.Offset())
				bodyLength = offsetEnd - i.Offset()
			}

			// Parse data
			if bodyLength > 0 {
				// Switch on tag
				var b []byte
				if b, err = i.NextBytes(bodyLength); err != nil {
					err = fmt.Errorf("dvbsi: fetching next bytes failed: %w", err)
					return
				}
				switch d.Tag {
				case DescriptorTagAC3:
					d.AC3 = newDescriptorAC3(b)
				case DescriptorTagContent:
					d.Content = newDescriptorContent(b)
				case DescriptorTagExtendedEvent:
					d.ExtendedEvent = newDescriptorExtendedEvent(b)
				case DescriptorTagISO639LanguageAndAudioType:
					d.ISO639LanguageAndAudioType = newDescriptorISO639LanguageAndAudioType(b)
				case DescriptorTagLocalTimeOffset:
					d.LocalTimeOffset = newDescriptorLocalTimeOffset(b)
				case DescriptorTagNetworkName:
					d.NetworkName = newDescriptorNetworkName(b)
				case DescriptorTagService:
					d.Service = newDescriptorService(b)
				case DescriptorTagServiceList:
					d.ServiceList = newDescriptorServiceList(b)
				case DescriptorTagShortEvent:
					d.ShortEvent = newDescriptorShortEvent(b)
				case DescriptorTagStreamIdentifier:
					d.StreamIdentifier = newDescriptorStreamIdentifier(b)
				case DescriptorTagSubtitling:
					d.Subtitling = newDescriptorSubtitling(b)
				case DescriptorTagTeletext:
					d.Teletext = newDescriptorTeletext(b)
				case DescriptorTagComponent, DescriptorTagParentalRating, DescriptorTagPDC:
					// Recognized but not decoded
				default:
					logger.Debugf("dvbsi: unlisted descriptor tag 0x%x", d.Tag)
				}
			}
			o = append(o, d)
		}
	}
	return
}
