package dvbsi

import (
	"github.com/pkg/errors"
)

// Well known PIDs
const (
	PIDPAT  = 0x0    // Program Association Table (PAT) contains a directory listing of all Program Map Tables.
	PIDCAT  = 0x1    // Conditional Access Table (CAT) contains a directory listing of all ITU-T Rec. H.222 entitlement management message streams used by Program Map Tables.
	PIDTSDT = 0x2    // Transport Stream Description Table (TSDT) contains descriptors related to the overall transport stream
	PIDNIT  = 0x10   // Network Information Table (NIT) describes the network and its service list
	PIDSDT  = 0x11   // Service Description Table (SDT) names the services of the multiplex
	PIDEIT  = 0x12   // Event Information Table (EIT) carries the program guide
	PIDTOT  = 0x14   // Time Offset Table (TOT) carries the current UTC time and local time offsets
	PIDNull = 0x1fff // Null Packet (used for fixed bandwidth padding)
)

// Data represents a data
type Data struct {
	EIT         *EITData
	FirstPacket *Packet
	NIT         *NITData
	PAT         *PATData
	PID         uint16
	PMT         *PMTData
	SDT         *SDTData
	TOT         *TOTData
}

// parseData parses a payload spanning over multiple packets and returns a set of data
func parseData(ps []*Packet, prs PacketsParser, pm programMap) (ds []*Data, err error) {
	// Use custom parser first
	if prs != nil {
		var skip bool
		if ds, skip, err = prs(ps); err != nil {
			err = errors.Wrap(err, "dvbsi: custom packets parsing failed")
			return
		} else if skip {
			return
		}
	}

	// Reconstruct payload
	var l int
	for _, p := range ps {
		l += len(p.Payload)
	}
	var payload = make([]byte, l)
	var c int
	for _, p := range ps {
		c += copy(payload[c:], p.Payload)
	}

	// Parse PID
	var pid = ps[0].Header.PID

	// Parse payload
	if pid == PIDCAT {
		// Information in a CAT payload is private and dependent on the CA system
	} else if isPSIPayload(pid, pm) {
		var psiData *PSIData
		if psiData, err = parsePSIData(payload, pid); err != nil {
			err = errors.Wrap(err, "dvbsi: parsing PSI data failed")
			return
		}
		ds = psiData.toData(ps[0], pid)
	}
	// Elementary stream payloads (PES) are out of scope and left untouched
	return
}

// isSIPID checks whether the PID carries MPEG PSI or DVB SI sections by assignment
func isSIPID(pid uint16) bool {
	return pid == PIDPAT || // PAT
		((pid >= 0x10 && pid <= 0x14) || (pid >= 0x1e && pid <= 0x1f)) // DVB
}

// isPSIPayload checks whether the payload is a PSI one
func isPSIPayload(pid uint16, pm programMap) bool {
	return isSIPID(pid) ||
		pm.existsUnlocked(pid) // PMT
}
