package dvbsi

import (
	"fmt"

	"github.com/asticode/go-astikit"
	"github.com/pkg/errors"
)

// MaxSectionLength is the maximum value the 12 bit section length field may carry
const MaxSectionLength = 4093

// Section level errors
var (
	ErrSectionTooLong    = errors.New("dvbsi: section length is larger than 4093")
	ErrTruncatedSection  = errors.New("dvbsi: fewer bytes remaining than declared section length")
	ErrUnexpectedTableID = errors.New("dvbsi: table id doesn't match the PID's expected table family")
)

// PSI table types
const (
	PSITableTypeBAT     = "BAT"
	PSITableTypeDIT     = "DIT"
	PSITableTypeEIT     = "EIT"
	PSITableTypeNIT     = "NIT"
	PSITableTypeNull    = "Null"
	PSITableTypePAT     = "PAT"
	PSITableTypePMT     = "PMT"
	PSITableTypeRST     = "RST"
	PSITableTypeSDT     = "SDT"
	PSITableTypeSIT     = "SIT"
	PSITableTypeST      = "ST"
	PSITableTypeTDT     = "TDT"
	PSITableTypeTOT     = "TOT"
	PSITableTypeUnknown = "Unknown"
)

type PSITableTypeId uint16

const (
	PSITableTypeIdPAT  PSITableTypeId = 0x00
	PSITableTypeIdPMT  PSITableTypeId = 0x02
	PSITableTypeIdBAT  PSITableTypeId = 0x4a
	PSITableTypeIdDIT  PSITableTypeId = 0x7e
	PSITableTypeIdRST  PSITableTypeId = 0x71
	PSITableTypeIdSIT  PSITableTypeId = 0x7f
	PSITableTypeIdST   PSITableTypeId = 0x72
	PSITableTypeIdTDT  PSITableTypeId = 0x70
	PSITableTypeIdTOT  PSITableTypeId = 0x73
	PSITableTypeIdNull PSITableTypeId = 0xff

	PSITableTypeIdEITStart    PSITableTypeId = 0x4e
	PSITableTypeIdEITEnd      PSITableTypeId = 0x6f
	PSITableTypeIdSDTVariant1 PSITableTypeId = 0x42
	PSITableTypeIdSDTVariant2 PSITableTypeId = 0x46
	PSITableTypeIdNITVariant1 PSITableTypeId = 0x40
	PSITableTypeIdNITVariant2 PSITableTypeId = 0x41
)

// PSIData represents a PSI data
// https://en.wikipedia.org/wiki/Program-specific_information
type PSIData struct {
	PointerField int // Present at the start of the TS packet payload signaled by the payload_unit_start_indicator bit in the TS header. Used to set packet alignment bytes or content before the start of tabled payload data.
	Sections     []*PSISection
}

// PSISection represents a PSI section
type PSISection struct {
	CRC32    uint32 // A checksum of the entire table excluding the pointer field, pointer filler bytes and the trailing CRC32.
	CRCValid bool   // Whether the CRC32 computed over the section matched the stored one. A failing section is still surfaced, flagged invalid.
	Header   *PSISectionHeader
	Syntax   *PSISectionSyntax
}

// PSISectionHeader represents a PSI section header
type PSISectionHeader struct {
	PrivateBit             bool           // The PAT, PMT, and CAT all set this to 0. Other tables set this to 1.
	SectionLength          uint16         // The number of bytes that follow for the syntax section (with CRC value) and/or table data.
	SectionSyntaxIndicator bool           // A flag that indicates if the syntax section follows the section length. The PAT, PMT, and CAT all set this to 1.
	TableID                PSITableTypeId // Table Identifier, that defines the structure of the syntax section and other contained data.
	TableType              string
}

// PSISectionSyntax represents a PSI section syntax
type PSISectionSyntax struct {
	Data   *PSISectionSyntaxData
	Header *PSISectionSyntaxHeader
}

// PSISectionSyntaxHeader represents a PSI section syntax header
type PSISectionSyntaxHeader struct {
	CurrentNextIndicator bool   // Indicates if data is current in effect or is for future use. If the bit is flagged on, then the data is to be used at the present moment.
	LastSectionNumber    uint8  // This indicates which table is the last table in the sequence of tables.
	SectionNumber        uint8  // This is an index indicating which table this is in a related sequence of tables. The first table starts from 0.
	TableIDExtension     uint16 // Transport stream id for PAT and SDT, network id for NIT, service id for EIT, program number for PMT.
	VersionNumber        uint8  // Syntax version number. Incremented when data is changed and wrapped around on overflow for values greater than 31.
}

// PSISectionSyntaxData represents a PSI section syntax data
type PSISectionSyntaxData struct {
	EIT *EITData
	NIT *NITData
	PAT *PATData
	PMT *PMTData
	SDT *SDTData
	TOT *TOTData
}

// parsePSIData parses a PSI data. pid is used to reject sections whose table id doesn't
// belong on that PID.
func parsePSIData(b []byte, pid uint16) (d *PSIData, err error) {
	// Init data
	d = &PSIData{}
	i := astikit.NewBytesIterator(b)

	// Get next byte
	var bt byte
	if bt, err = i.NextByte(); err != nil {
		err = fmt.Errorf("dvbsi: fetching next byte failed: %w", err)
		return
	}

	// Pointer field
	d.PointerField = int(bt)

	// Pointer filler bytes
	i.Skip(d.PointerField)

	// Parse sections
	var s *PSISection
	var stop bool
	for i.HasBytesLeft() && !stop {
		if s, stop, err = parsePSISection(i, pid); err != nil {
			err = fmt.Errorf("dvbsi: parsing PSI section failed: %w", err)
			return
		}
		if s != nil {
			d.Sections = append(d.Sections, s)
		}
	}
	return
}

// parsePSISection parses a PSI section
func parsePSISection(i *astikit.BytesIterator, pid uint16) (s *PSISection, stop bool, err error) {
	// Init section
	s = &PSISection{}

	// Parse header
	var offsetStart, offsetSectionsEnd, offsetEnd int
	if s.Header, offsetStart, _, offsetSectionsEnd, offsetEnd, err = parsePSISectionHeader(i); err != nil {
		err = fmt.Errorf("dvbsi: parsing PSI section header failed: %w", err)
		return
	}

	// Check whether we need to stop the parsing
	if shouldStopPSIParsing(s.Header.TableID) {
		s = nil
		stop = true
		return
	}

	// Table id must belong on this PID
	if !validTableIDForPID(pid, s.Header.TableID) {
		err = fmt.Errorf("dvbsi: table id 0x%x on PID 0x%x: %w", uint16(s.Header.TableID), pid, ErrUnexpectedTableID)
		return
	}

	// Check whether there's a syntax section
	if s.Header.SectionLength > 0 {
		// Parse syntax
		if s.Syntax, err = parsePSISectionSyntax(i, s.Header, offsetSectionsEnd); err != nil {
			err = fmt.Errorf("dvbsi: parsing PSI section syntax failed: %w", err)
			return
		}

		// Process CRC32
		if s.Header.TableID.hasCRC32() {
			// Seek to the end of the sections
			i.Seek(offsetSectionsEnd)

			// Parse CRC32
			if s.CRC32, err = parseCRC32(i); err != nil {
				err = fmt.Errorf("dvbsi: parsing CRC32 failed: %w", err)
				return
			}

			// Get CRC32 data
			i.Seek(offsetStart)
			var crc32Data []byte
			if crc32Data, err = i.NextBytesNoCopy(offsetSectionsEnd - offsetStart); err != nil {
				err = fmt.Errorf("dvbsi: fetching next bytes failed: %w", err)
				return
			}

			// Compute CRC32
			crc32 := computeCRC32(crc32Data)

			// Check CRC32
			// A mismatch flags the section instead of failing it so callers may still
			// inspect the decoded values
			s.CRCValid = crc32 == s.CRC32
			if !s.CRCValid {
				logger.Warnf("dvbsi: table CRC32 %x != computed CRC32 %x", s.CRC32, crc32)
			}
		}
	}

	// Seek to the end of the section
	i.Seek(offsetEnd)
	return
}

// parseCRC32 parses a CRC32
func parseCRC32(i *astikit.BytesIterator) (c uint32, err error) {
	var bs []byte
	if bs, err = i.NextBytesNoCopy(4); err != nil {
		err = fmt.Errorf("dvbsi: fetching next bytes failed: %w", err)
		return
	}
	c = uint32(bs[0])<<24 | uint32(bs[1])<<16 | uint32(bs[2])<<8 | uint32(bs[3])
	return
}

// shouldStopPSIParsing checks whether the PSI parsing should be stopped
func shouldStopPSIParsing(tableID PSITableTypeId) bool {
	return tableID == PSITableTypeIdNull ||
		tableID.isUnknown()
}

// validTableIDForPID checks whether a table id belongs on a well known SI PID
// PAT=0x00, NIT=0x40/0x41, SDT=0x42/0x46 (and BAT which shares the PID), EIT=0x4e..0x6f,
// TDT/TOT/ST on 0x14. PIDs outside the well known set are not restricted.
func validTableIDForPID(pid uint16, t PSITableTypeId) bool {
	switch pid {
	case PIDPAT:
		return t == PSITableTypeIdPAT
	case PIDNIT:
		return t == PSITableTypeIdNITVariant1 || t == PSITableTypeIdNITVariant2
	case PIDSDT:
		return t == PSITableTypeIdSDTVariant1 || t == PSITableTypeIdSDTVariant2 || t == PSITableTypeIdBAT
	case PIDEIT:
		return t >= PSITableTypeIdEITStart && t <= PSITableTypeIdEITEnd
	case PIDTOT:
		return t == PSITableTypeIdTDT || t == PSITableTypeIdTOT || t == PSITableTypeIdST
	}
	return true
}

// parsePSISectionHeader parses a PSI section header
func parsePSISectionHeader(i *astikit.BytesIterator) (h *PSISectionHeader, offsetStart, offsetSectionsStart, offsetSectionsEnd, offsetEnd int, err error) {
	// Init
	h = &PSISectionHeader{}
	offsetStart = i.Offset()

	// Get next byte
	var b byte
	if b, err = i.NextByte(); err != nil {
		err = fmt.Errorf("dvbsi: fetching next byte failed: %w", err)
		return
	}

	// Table ID
	h.TableID = PSITableTypeId(b)

	// Table type
	h.TableType = h.TableID.String()

	// Check whether we need to stop the parsing
	if shouldStopPSIParsing(h.TableID) {
		return
	}

	// Get next bytes
	var bs []byte
	if bs, err = i.NextBytesNoCopy(2); err != nil {
		err = fmt.Errorf("dvbsi: fetching next bytes failed: %w", err)
		return
	}

	// Section syntax indicator
	h.SectionSyntaxIndicator = bs[0]&0x80 > 0

	// Private bit
	h.PrivateBit = bs[0]&0x40 > 0

	// Section length
	h.SectionLength = uint16(bs[0]&0xf)<<8 | uint16(bs[1])

	// The declared length must fit the field's bound and the remaining bytes
	if h.SectionLength > MaxSectionLength {
		err = fmt.Errorf("dvbsi: section length %d: %w", h.SectionLength, ErrSectionTooLong)
		return
	}
	if int(h.SectionLength) > i.Len()-i.Offset() {
		err = fmt.Errorf("dvbsi: %d bytes remaining, section length is %d: %w", i.Len()-i.Offset(), h.SectionLength, ErrTruncatedSection)
		return
	}

	// Offsets
	offsetSectionsStart = i.Offset()
	offsetEnd = offsetSectionsStart + int(h.SectionLength)
	offsetSectionsEnd = offsetEnd
	if h.TableID.hasCRC32() {
		offsetSectionsEnd -= 4
	}
	return
}

// String returns the psi table type based on the table id
// Page: 28 | https://www.dvb.org/resources/public/standards/a38_dvb-si_specification.pdf
func (t PSITableTypeId) String() string {
	switch {
	case t == PSITableTypeIdBAT:
		return PSITableTypeBAT
	case t >= PSITableTypeIdEITStart && t <= PSITableTypeIdEITEnd:
		return PSITableTypeEIT
	case t == PSITableTypeIdDIT:
		return PSITableTypeDIT
	case t == PSITableTypeIdNITVariant1, t == PSITableTypeIdNITVariant2:
		return PSITableTypeNIT
	case t == PSITableTypeIdNull:
		return PSITableTypeNull
	case t == PSITableTypeIdPAT:
		return PSITableTypePAT
	case t == PSITableTypeIdPMT:
		return PSITableTypePMT
	case t == PSITableTypeIdRST:
		return PSITableTypeRST
	case t == PSITableTypeIdSDTVariant1, t == PSITableTypeIdSDTVariant2:
		return PSITableTypeSDT
	case t == PSITableTypeIdSIT:
		return PSITableTypeSIT
	case t == PSITableTypeIdST:
		return PSITableTypeST
	case t == PSITableTypeIdTDT:
		return PSITableTypeTDT
	case t == PSITableTypeIdTOT:
		return PSITableTypeTOT
	default:
		return PSITableTypeUnknown
	}
}

// hasPSISyntaxHeader checks whether the section has a syntax header
func (t PSITableTypeId) hasPSISyntaxHeader() bool {
	return t == PSITableTypeIdPAT ||
		t == PSITableTypeIdPMT ||
		t == PSITableTypeIdNITVariant1 || t == PSITableTypeIdNITVariant2 ||
		t == PSITableTypeIdSDTVariant1 || t == PSITableTypeIdSDTVariant2 ||
		(t >= PSITableTypeIdEITStart && t <= PSITableTypeIdEITEnd)
}

// hasCRC32 checks whether the table has a CRC32
func (t PSITableTypeId) hasCRC32() bool {
	return t == PSITableTypeIdPAT ||
		t == PSITableTypeIdPMT ||
		t == PSITableTypeIdTOT ||
		t == PSITableTypeIdNITVariant1 || t == PSITableTypeIdNITVariant2 ||
		t == PSITableTypeIdSDTVariant1 || t == PSITableTypeIdSDTVariant2 ||
		(t >= PSITableTypeIdEITStart && t <= PSITableTypeIdEITEnd)
}

func (t PSITableTypeId) isUnknown() bool {
	switch t {
	case PSITableTypeIdBAT,
		PSITableTypeIdDIT,
		PSITableTypeIdNITVariant1, PSITableTypeIdNITVariant2,
		PSITableTypeIdNull,
		PSITableTypeIdPAT,
		PSITableTypeIdPMT,
		PSITableTypeIdRST,
		PSITableTypeIdSDTVariant1, PSITableTypeIdSDTVariant2,
		PSITableTypeIdSIT,
		PSITableTypeIdST,
		PSITableTypeIdTDT,
		PSITableTypeIdTOT:
		return false
	}
	if t >= PSITableTypeIdEITStart && t <= PSITableTypeIdEITEnd {
		return false
	}
	return true
}

// parsePSISectionSyntax parses a PSI section syntax
func parsePSISectionSyntax(i *astikit.BytesIterator, h *PSISectionHeader, offsetSectionsEnd int) (s *PSISectionSyntax, err error) {
	// Init
	s = &PSISectionSyntax{}

	// Header
	if h.TableID.hasPSISyntaxHeader() {
		if s.Header, err = parsePSISectionSyntaxHeader(i); err != nil {
			err = fmt.Errorf("dvbsi: parsing PSI section syntax header failed: %w", err)
			return
		}
	}

	// Parse data
	if s.Data, err = parsePSISectionSyntaxData(i, h, s.Header, offsetSectionsEnd); err != nil {
		err = fmt.Errorf("dvbsi: parsing PSI section syntax data failed: %w", err)
		return
	}
	return
}

// parsePSISectionSyntaxHeader parses a PSI section syntax header
func parsePSISectionSyntaxHeader(i *astikit.BytesIterator) (h *PSISectionSyntaxHeader, err error) {
	// Init
	h = &PSISectionSyntaxHeader{}

	// Get next 2 bytes
	var bs []byte
	if bs, err = i.NextBytesNoCopy(2); err != nil {
		err = fmt.Errorf("dvbsi: fetching next bytes failed: %w", err)
		return
	}

	// Table ID extension
	h.TableIDExtension = uint16(bs[0])<<8 | uint16(bs[1])

	// Get next byte
	var b byte
	if b, err = i.NextByte(); err != nil {
		err = fmt.Errorf("dvbsi: fetching next byte failed: %w", err)
		return
	}

	// Version number
	h.VersionNumber = uint8(b&0x3f) >> 1

	// Current/Next indicator
	h.CurrentNextIndicator = b&0x1 > 0

	// Get next byte
	if b, err = i.NextByte(); err != nil {
		err = fmt.Errorf("dvbsi: fetching next byte failed: %w", err)
		return
	}

	// Section number
	h.SectionNumber = uint8(b)

	// Get next byte
	if b, err = i.NextByte(); err != nil {
		err = fmt.Errorf("dvbsi: fetching next byte failed: %w", err)
		return
	}

	// Last section number
	h.LastSectionNumber = uint8(b)
	return
}

// parsePSISectionSyntaxData parses a PSI section data
func parsePSISectionSyntaxData(i *astikit.BytesIterator, h *PSISectionHeader, sh *PSISectionSyntaxHeader, offsetSectionsEnd int) (d *PSISectionSyntaxData, err error) {
	// Init
	d = &PSISectionSyntaxData{}

	// Switch on table type
	switch h.TableID {
	case PSITableTypeIdNITVariant1, PSITableTypeIdNITVariant2:
		if d.NIT, err = parseNITSection(i, offsetSectionsEnd, sh.TableIDExtension); err != nil {
			err = fmt.Errorf("dvbsi: parsing NIT section failed: %w", err)
			return
		}
	case PSITableTypeIdPAT:
		if d.PAT, err = parsePATSection(i, offsetSectionsEnd, sh.TableIDExtension); err != nil {
			err = fmt.Errorf("dvbsi: parsing PAT section failed: %w", err)
			return
		}
	case PSITableTypeIdPMT:
		if d.PMT, err = parsePMTSection(i, offsetSectionsEnd, sh.TableIDExtension); err != nil {
			err = fmt.Errorf("dvbsi: parsing PMT section failed: %w", err)
			return
		}
	case PSITableTypeIdSDTVariant1, PSITableTypeIdSDTVariant2:
		if d.SDT, err = parseSDTSection(i, offsetSectionsEnd, sh.TableIDExtension); err != nil {
			err = fmt.Errorf("dvbsi: parsing SDT section failed: %w", err)
			return
		}
	case PSITableTypeIdTOT:
		if d.TOT, err = parseTOTSection(i); err != nil {
			err = fmt.Errorf("dvbsi: parsing TOT section failed: %w", err)
			return
		}
	}

	if h.TableID >= PSITableTypeIdEITStart && h.TableID <= PSITableTypeIdEITEnd {
		if d.EIT, err = parseEITSection(i, offsetSectionsEnd, sh.TableIDExtension); err != nil {
			err = fmt.Errorf("dvbsi: parsing EIT section failed: %w", err)
			return
		}
	}

	return
}

// toData parses the PSI tables and returns a set of Data
func (d *PSIData) toData(firstPacket *Packet, pid uint16) (ds []*Data) {
	// Loop through sections
	for _, s := range d.Sections {
		// A zero length section carries no syntax
		if s.Syntax == nil || s.Syntax.Data == nil {
			continue
		}

		// Switch on table type
		switch s.Header.TableID {
		case PSITableTypeIdNITVariant1, PSITableTypeIdNITVariant2:
			ds = append(ds, &Data{FirstPacket: firstPacket, NIT: s.Syntax.Data.NIT, PID: pid})
		case PSITableTypeIdPAT:
			ds = append(ds, &Data{FirstPacket: firstPacket, PAT: s.Syntax.Data.PAT, PID: pid})
		case PSITableTypeIdPMT:
			ds = append(ds, &Data{FirstPacket: firstPacket, PID: pid, PMT: s.Syntax.Data.PMT})
		case PSITableTypeIdSDTVariant1, PSITableTypeIdSDTVariant2:
			ds = append(ds, &Data{FirstPacket: firstPacket, PID: pid, SDT: s.Syntax.Data.SDT})
		case PSITableTypeIdTOT:
			ds = append(ds, &Data{FirstPacket: firstPacket, PID: pid, TOT: s.Syntax.Data.TOT})
		}
		if s.Header.TableID >= PSITableTypeIdEITStart && s.Header.TableID <= PSITableTypeIdEITEnd {
			ds = append(ds, &Data{EIT: s.Syntax.Data.EIT, FirstPacket: firstPacket, PID: pid})
		}
	}
	return
}

// isPSIComplete checks whether the accumulated packets hold all the bytes the declared
// section lengths announce
func isPSIComplete(ps []*Packet) bool {
	// Reconstruct payload
	var l int
	for _, p := range ps {
		l += len(p.Payload)
	}
	payload := make([]byte, 0, l)
	for _, p := range ps {
		payload = append(payload, p.Payload...)
	}

	if len(payload) == 0 {
		return false
	}

	// Pointer field
	o := 1 + int(payload[0])

	// Walk sections
	for o < len(payload) {
		// Stuffing ends the payload
		if PSITableTypeId(payload[o]) == PSITableTypeIdNull {
			return true
		}

		// Need the 3 header bytes to know the section length
		if o+3 > len(payload) {
			return false
		}
		sectionLength := int(uint16(payload[o+1]&0xf)<<8 | uint16(payload[o+2]))
		o += 3 + sectionLength
	}
	return o <= len(payload)
}
