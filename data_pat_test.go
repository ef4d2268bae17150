package dvbsi

import (
	"bytes"
	"testing"

	"github.com/asticode/go-astikit"
	"github.com/stretchr/testify/assert"
)

var pat = &PATData{
	Programs: []*PATProgram{
		{ProgramMapID: 3, ProgramNumber: 2},
		{ProgramMapID: 5, ProgramNumber: 4},
	},
	TransportStreamID: 1,
}

func patBytes() []byte {
	buf := &bytes.Buffer{}
	w := astikit.NewBitsWriter(astikit.BitsWriterOptions{Writer: buf})
	w.Write(uint16(2))       // Program #1 number
	w.Write("111")           // Program #1 reserved bits
	w.Write("0000000000011") // Program #1 map ID
	w.Write(uint16(4))       // Program #2 number
	w.Write("111")           // Program #2 reserved bits
	w.Write("0000000000101") // Program #2 map ID
	return buf.Bytes()
}

func TestParsePATSection(t *testing.T) {
	var b = patBytes()
	d, err := parsePATSection(astikit.NewBytesIterator(b), len(b), uint16(1))
	assert.NoError(t, err)
	assert.Equal(t, pat, d)
}

func TestPATPIDLookups(t *testing.T) {
	d := &PATData{Programs: []*PATProgram{
		{ProgramMapID: 16, ProgramNumber: 0},
		{ProgramMapID: 2100, ProgramNumber: 268},
	}}

	pid, ok := d.NITPID()
	assert.True(t, ok)
	assert.Equal(t, uint16(16), pid)

	pid, ok = d.PMTPID(268)
	assert.True(t, ok)
	assert.Equal(t, uint16(2100), pid)

	// Program number 0 is the NIT, not a PMT
	_, ok = d.PMTPID(0)
	assert.False(t, ok)

	_, ok = d.PMTPID(999)
	assert.False(t, ok)
}

func BenchmarkParsePATSection(b *testing.B) {
	b.ReportAllocs()
	bs := patBytes()

	for i := 0; i < b.N; i++ {
		parsePATSection(astikit.NewBytesIterator(bs), len(bs), uint16(1))
	}
}
