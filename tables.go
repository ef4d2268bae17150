package dvbsi

import (
	"github.com/pkg/errors"
)

// Errors of the convenience table extractors
var (
	ErrNoSuchSection = errors.New("dvbsi: no complete section found for this PID")
	ErrNoSuchTable   = errors.New("dvbsi: the PID's sections don't carry the requested table")
)

// PacketsForPID returns the packets making up the first payload unit of a PID.
// Packets before the first payload unit start are discarded, the scan stops at the second
// payload unit start.
func PacketsForPID(ps []*Packet, pid uint16) (o []*Packet) {
	var started bool
	for _, p := range ps {
		if p.Header.PID != pid || !p.Header.HasPayload {
			continue
		}
		if p.Header.PayloadUnitStartIndicator {
			if started {
				return
			}
			started = true
		}
		if started {
			o = append(o, p)
		}
	}
	return
}

// PayloadsByPID concatenates the payloads of a PID into one byte sequence per payload
// unit, keyed by unit index in arrival order. Packets before the first payload unit start
// are discarded.
func PayloadsByPID(ps []*Packet, pid uint16) map[int][]byte {
	m := make(map[int][]byte)
	idx := -1
	for _, p := range ps {
		if p.Header.PID != pid || !p.Header.HasPayload {
			continue
		}
		if p.Header.PayloadUnitStartIndicator {
			idx++
		}
		if idx < 0 {
			continue
		}
		m[idx] = append(m[idx], p.Payload...)
	}
	return m
}

// extractPSIData reassembles the first payload unit of a PID and parses it as PSI
func extractPSIData(ps []*Packet, pid uint16) (d *PSIData, err error) {
	sps := PacketsForPID(ps, pid)
	if len(sps) == 0 {
		err = ErrNoSuchSection
		return
	}
	var payload []byte
	for _, p := range sps {
		payload = append(payload, p.Payload...)
	}
	if d, err = parsePSIData(payload, pid); err != nil {
		err = errors.Wrap(err, "dvbsi: parsing PSI data failed")
		return
	}
	return
}

// ExtractPAT decodes the PAT carried on PID 0x0000
func ExtractPAT(ps []*Packet) (*PATData, error) {
	d, err := extractPSIData(ps, PIDPAT)
	if err != nil {
		return nil, err
	}
	for _, s := range d.Sections {
		if s.Syntax != nil && s.Syntax.Data.PAT != nil {
			return s.Syntax.Data.PAT, nil
		}
	}
	return nil, ErrNoSuchTable
}

// ExtractNIT decodes the NIT carried on PID 0x0010
func ExtractNIT(ps []*Packet) (*NITData, error) {
	d, err := extractPSIData(ps, PIDNIT)
	if err != nil {
		return nil, err
	}
	for _, s := range d.Sections {
		if s.Syntax != nil && s.Syntax.Data.NIT != nil {
			return s.Syntax.Data.NIT, nil
		}
	}
	return nil, ErrNoSuchTable
}

// ExtractSDT decodes the SDT carried on PID 0x0011
func ExtractSDT(ps []*Packet) (*SDTData, error) {
	d, err := extractPSIData(ps, PIDSDT)
	if err != nil {
		return nil, err
	}
	for _, s := range d.Sections {
		if s.Syntax != nil && s.Syntax.Data.SDT != nil {
			return s.Syntax.Data.SDT, nil
		}
	}
	return nil, ErrNoSuchTable
}

// ExtractEIT decodes the first EIT section carried on PID 0x0012
func ExtractEIT(ps []*Packet) (*EITData, error) {
	d, err := extractPSIData(ps, PIDEIT)
	if err != nil {
		return nil, err
	}
	for _, s := range d.Sections {
		if s.Syntax != nil && s.Syntax.Data.EIT != nil {
			return s.Syntax.Data.EIT, nil
		}
	}
	return nil, ErrNoSuchTable
}

// ServicesToPMTMap joins the SDT's service descriptors against the PAT's program
// associations on the program number. The join is SDT driven, an SDT entry without a
// matching PAT entry is omitted.
func ServicesToPMTMap(sdt *SDTData, pat *PATData) map[*DescriptorService]uint16 {
	m := make(map[*DescriptorService]uint16)
	if sdt == nil || pat == nil {
		return m
	}
	for _, s := range sdt.Services {
		sd := s.Service()
		if sd == nil {
			continue
		}
		if pid, ok := pat.PMTPID(s.ServiceID); ok {
			m[sd] = pid
		}
	}
	return m
}
