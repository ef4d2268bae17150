package dvbsi

import (
	"bytes"
	"testing"

	"github.com/asticode/go-astikit"
	"github.com/stretchr/testify/assert"
)

var tot = &TOTData{
	Descriptors: descriptors,
	UTCTime:     dvbTime,
}

func totBytes() []byte {
	buf := &bytes.Buffer{}
	w := astikit.NewBitsWriter(astikit.BitsWriterOptions{Writer: buf})
	w.Write(dvbTimeBytes) // UTC time
	w.Write("0000")       // Reserved for future use
	descriptorsBytes(w)   // Descriptors
	return buf.Bytes()
}

func TestParseTOTSection(t *testing.T) {
	d, err := parseTOTSection(astikit.NewBytesIterator(totBytes()))
	assert.NoError(t, err)
	assert.Equal(t, tot, d)
}

func TestTOTLocalTimeOffsets(t *testing.T) {
	itm := &DescriptorLocalTimeOffsetItem{CountryCode: "CZE"}
	d := &TOTData{Descriptors: []*Descriptor{{
		LocalTimeOffset: &DescriptorLocalTimeOffset{Items: []*DescriptorLocalTimeOffsetItem{itm}},
		Tag:             DescriptorTagLocalTimeOffset,
	}}}
	assert.Equal(t, []*DescriptorLocalTimeOffsetItem{itm}, d.LocalTimeOffsets())
	assert.Nil(t, (&TOTData{}).LocalTimeOffsets())
}
