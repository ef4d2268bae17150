package dvbsi

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func fixtureMux() []byte {
	var b []byte
	b = append(b, patFixtureStream()...)
	b = append(b, nitFixtureStream()...)
	b = append(b, sdtFixtureStream()...)
	b = append(b, eitFixtureStream()...)
	return b
}

func TestDemuxerNextPacket(t *testing.T) {
	dmx := NewDemuxer(context.Background(), bytes.NewReader(patFixtureStream()))
	p, err := dmx.NextPacket()
	assert.NoError(t, err)
	assert.Equal(t, uint16(PIDPAT), p.Header.PID)
	assert.True(t, p.Header.PayloadUnitStartIndicator)
}

func TestDemuxerNextData(t *testing.T) {
	dmx := NewDemuxer(context.Background(), bytes.NewReader(fixtureMux()))

	var pat *PATData
	var nit *NITData
	var sdt *SDTData
	var eit *EITData
	for {
		d, err := dmx.NextData()
		if err != nil {
			assert.ErrorIs(t, err, ErrNoMorePackets)
			break
		}
		switch {
		case d.PAT != nil:
			pat = d.PAT
		case d.NIT != nil:
			nit = d.NIT
		case d.SDT != nil:
			sdt = d.SDT
		case d.EIT != nil:
			eit = d.EIT
		}
	}

	assert.NotNil(t, pat)
	assert.Len(t, pat.Programs, 20)
	assert.NotNil(t, nit)
	assert.Equal(t, "CT, MUX 21", nit.Name())
	assert.NotNil(t, sdt)
	assert.Len(t, sdt.Services, 19)
	assert.NotNil(t, eit)
	assert.Len(t, eit.Items(), 1)
}

func TestDemuxerPIDFilter(t *testing.T) {
	dmx := NewDemuxer(context.Background(), bytes.NewReader(fixtureMux()), DemuxerOptPIDFilter(PIDSDT))

	var count int
	for {
		d, err := dmx.NextData()
		if err != nil {
			break
		}
		assert.Equal(t, uint16(PIDSDT), d.PID)
		assert.NotNil(t, d.SDT)
		count++
	}
	assert.Equal(t, 1, count)
}

func TestDemuxerRewind(t *testing.T) {
	dmx := NewDemuxer(context.Background(), bytes.NewReader(patFixtureStream()))

	d, err := dmx.NextData()
	assert.NoError(t, err)
	assert.NotNil(t, d.PAT)

	n, err := dmx.Rewind()
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)

	d, err = dmx.NextData()
	assert.NoError(t, err)
	assert.NotNil(t, d.PAT)
}

func TestDemuxerContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	dmx := NewDemuxer(ctx, bytes.NewReader(fixtureMux()))
	cancel()
	_, err := dmx.NextPacket()
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDemuxerProgramMapUpdate(t *testing.T) {
	dmx := NewDemuxer(context.Background(), bytes.NewReader(fixtureMux()))
	_, err := dmx.NextData()
	assert.NoError(t, err)

	// Once the PAT is seen, PMT PIDs are known
	assert.True(t, dmx.programMap.exists(2100))
	assert.True(t, dmx.programMap.exists(7100))
	assert.False(t, dmx.programMap.exists(16))
}

func TestDemuxerProgramMapPrune(t *testing.T) {
	// A second PAT that no longer announces a program drops its PMT PID
	b := packetize(PIDPAT, psiSectionBytes(0x00, 539, patBody([][2]uint16{{268, 2100}, {270, 2200}})))
	b = append(b, packetize(PIDPAT, psiSectionBytes(0x00, 539, patBody([][2]uint16{{268, 2100}})))...)
	dmx := NewDemuxer(context.Background(), bytes.NewReader(b))

	_, err := dmx.NextData()
	assert.NoError(t, err)
	assert.True(t, dmx.programMap.exists(2200))

	_, err = dmx.NextData()
	assert.NoError(t, err)
	assert.True(t, dmx.programMap.exists(2100))
	assert.False(t, dmx.programMap.exists(2200))
}

func TestDemuxerPacketsParser(t *testing.T) {
	var seen int
	dmx := NewDemuxer(context.Background(), bytes.NewReader(patFixtureStream()),
		DemuxerOptPacketsParser(func(ps []*Packet) ([]*Data, bool, error) {
			seen += len(ps)
			return []*Data{{PID: ps[0].Header.PID}}, true, nil
		}),
	)

	d, err := dmx.NextData()
	assert.NoError(t, err)
	assert.Equal(t, uint16(PIDPAT), d.PID)
	assert.Nil(t, d.PAT)
	assert.Equal(t, 1, seen)
}
