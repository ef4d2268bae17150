package dvbsi

import (
	"time"

	"github.com/asticode/go-astikit"
	"github.com/pkg/errors"
)

// parseDVBTime parses a DVB time
// This field is coded as 16 bits giving the 16 LSBs of MJD followed by 24 bits coded as
// 6 digits in 4-bit Binary Coded Decimal (BCD). If the start time is undefined (e.g. for
// an event in a NVOD reference service) all bits of the field are set to "1".
//
// Page: 160 | Annex C | Link: https://www.dvb.org/resources/public/standards/a38_dvb-si_specification.pdf
func parseDVBTime(i BytesIterator) (t time.Time, err error) {
	// Date
	var bs []byte
	if bs, err = i.NextBytesNoCopy(2); err != nil {
		err = errors.Wrap(err, "dvbsi: fetching next bytes failed")
		return
	}
	mjd := uint16(bs[0])<<8 | uint16(bs[1])
	yt := int((float64(mjd) - 15078.2) / 365.25)
	mt := int((float64(mjd) - 14956.1 - float64(int(float64(yt)*365.25))) / 30.6001)
	d := int(mjd) - 14956 - int(float64(yt)*365.25) - int(float64(mt)*30.6001)
	var k int
	if mt == 14 || mt == 15 {
		k = 1
	}
	t = time.Date(1900+yt+k, time.Month(mt-1-k*12), d, 0, 0, 0, 0, time.UTC)

	// Time
	var s time.Duration
	if s, err = parseDVBDurationSeconds(i); err != nil {
		err = errors.Wrap(err, "dvbsi: parsing DVB duration seconds failed")
		return
	}
	t = t.Add(s)
	return
}

// parseDVBDurationMinutes parses a minutes duration
// 16 bit field containing the duration in hours, minutes. format: 4 digits, 4-bit BCD
func parseDVBDurationMinutes(i BytesIterator) (d time.Duration, err error) {
	var bs []byte
	if bs, err = i.NextBytesNoCopy(2); err != nil {
		err = errors.Wrap(err, "dvbsi: fetching next bytes failed")
		return
	}
	d = parseDVBDurationByte(bs[0])*time.Hour + parseDVBDurationByte(bs[1])*time.Minute
	return
}

// parseDVBDurationSeconds parses a seconds duration
// 24 bit field containing the duration in hours, minutes, seconds. format: 6 digits, 4-bit BCD
func parseDVBDurationSeconds(i BytesIterator) (d time.Duration, err error) {
	var bs []byte
	if bs, err = i.NextBytesNoCopy(3); err != nil {
		err = errors.Wrap(err, "dvbsi: fetching next bytes failed")
		return
	}
	d = parseDVBDurationByte(bs[0])*time.Hour + parseDVBDurationByte(bs[1])*time.Minute + parseDVBDurationByte(bs[2])*time.Second
	return
}

// parseDVBDurationByte parses a duration byte
func parseDVBDurationByte(i byte) time.Duration {
	return time.Duration(i>>4*10 + i&0xf)
}

// writeDVBTime writes a DVB time
func writeDVBTime(w *astikit.BitsWriter, t time.Time) (int, error) {
	b := astikit.NewBitsWriterBatch(w)

	t = t.UTC()
	year := t.Year() - 1900
	month := int(t.Month())
	day := t.Day()

	l := 0
	if month <= 2 {
		l = 1
	}

	mjd := 14956 + day + int(float64(year-l)*365.25) + int(float64(month+1+l*12)*30.6001)
	b.Write(uint16(mjd))

	if err := b.Err(); err != nil {
		return 0, err
	}

	hour, minute, second := t.Clock()
	d := time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute + time.Duration(second)*time.Second
	n, err := writeDVBDurationSeconds(w, d)
	if err != nil {
		return 2, err
	}
	return n + 2, nil
}

// writeDVBDurationMinutes writes a 4 digit BCD duration
func writeDVBDurationMinutes(w *astikit.BitsWriter, d time.Duration) (int, error) {
	b := astikit.NewBitsWriterBatch(w)

	hours := uint8(d.Hours())
	minutes := uint8(int(d.Minutes()) % 60)

	b.Write(dvbDurationByteRepresentation(hours))
	b.Write(dvbDurationByteRepresentation(minutes))

	return 2, b.Err()
}

// writeDVBDurationSeconds writes a 6 digit BCD duration
func writeDVBDurationSeconds(w *astikit.BitsWriter, d time.Duration) (int, error) {
	b := astikit.NewBitsWriterBatch(w)

	hours := uint8(d.Hours())
	minutes := uint8(int(d.Minutes()) % 60)
	seconds := uint8(int(d.Seconds()) % 60)

	b.Write(dvbDurationByteRepresentation(hours))
	b.Write(dvbDurationByteRepresentation(minutes))
	b.Write(dvbDurationByteRepresentation(seconds))

	return 3, b.Err()
}

func dvbDurationByteRepresentation(n uint8) uint8 {
	return (n/10)<<4 | n%10
}
