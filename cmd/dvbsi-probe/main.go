package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/asticode/go-astikit"
	"github.com/pkg/profile"

	"github.com/mstefl/go-dvbsi"
)

// Flags
var (
	ctx, cancel     = context.WithCancel(context.Background())
	cpuProfiling    = flag.Bool("cp", false, "if yes, cpu profiling is enabled")
	format          = flag.String("f", "", "the output format (json|text)")
	inputPath       = flag.String("i", "", "the input path")
	memoryProfiling = flag.Bool("mp", false, "if yes, memory profiling is enabled")
	pidFilter       = flag.Int("p", -1, "when >= 0, only packets of this PID are processed")
)

func main() {
	// Init
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s <packets|data|guide>:\n", os.Args[0])
		flag.PrintDefaults()
	}
	cmd := astikit.FlagCmd()
	flag.Parse()

	// Handle signals
	handleSignals()

	// Start profiling
	if *cpuProfiling {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	} else if *memoryProfiling {
		defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
	}

	// Build the reader
	var r io.Reader
	var err error
	if r, err = buildReader(ctx); err != nil {
		log.Fatal(fmt.Errorf("dvbsi-probe: parsing input failed: %w", err))
	}

	// Make sure the reader is closed properly
	if c, ok := r.(io.Closer); ok {
		defer c.Close()
	}

	// Create the demuxer
	dmx := dvbsi.NewDemuxer(ctx, r,
		dvbsi.DemuxerOptLogger(log.Default()),
		dvbsi.DemuxerOptPIDFilter(*pidFilter),
	)

	// Switch on command
	switch cmd {
	case "packets":
		err = packets(dmx)
	case "data":
		err = data(dmx)
	default:
		err = guide(dmx)
	}
	if err != nil && !errors.Is(err, dvbsi.ErrNoMorePackets) && !errors.Is(err, context.Canceled) {
		log.Fatal(fmt.Errorf("dvbsi-probe: %s failed: %w", cmd, err))
	}
}

func handleSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch)
	go func() {
		for s := range ch {
			if s != syscall.SIGURG {
				log.Printf("Received signal %s\n", s)
			}
			switch s {
			case syscall.SIGABRT, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM:
				cancel()
			}
		}
	}()
}

func buildReader(ctx context.Context) (r io.Reader, err error) {
	// Stdin
	if len(*inputPath) == 0 {
		return os.Stdin, nil
	}

	// UDP multicast capture
	if strings.HasPrefix(*inputPath, "udp://") {
		var u *url.URL
		if u, err = url.Parse(*inputPath); err != nil {
			err = fmt.Errorf("parsing url %s failed: %w", *inputPath, err)
			return
		}
		var addr *net.UDPAddr
		if addr, err = net.ResolveUDPAddr("udp", u.Host); err != nil {
			err = fmt.Errorf("resolving udp addr %s failed: %w", u.Host, err)
			return
		}
		var c *net.UDPConn
		if c, err = net.ListenMulticastUDP("udp", nil, addr); err != nil {
			err = fmt.Errorf("listening on multicast udp addr %s failed: %w", u.Host, err)
			return
		}
		c.SetReadBuffer(4096)
		return c, nil
	}

	// File
	if r, err = os.Open(*inputPath); err != nil {
		err = fmt.Errorf("opening %s failed: %w", *inputPath, err)
		return
	}
	return
}

func packets(dmx *dvbsi.Demuxer) (err error) {
	var p *dvbsi.Packet
	for {
		if p, err = dmx.NextPacket(); err != nil {
			return
		}
		log.Printf("PKT: %d\n", p.Header.PID)
		log.Printf("  Continuity Counter: %v\n", p.Header.ContinuityCounter)
		log.Printf("  Payload Unit Start Indicator: %v\n", p.Header.PayloadUnitStartIndicator)
		log.Printf("  Has Payload: %v\n", p.Header.HasPayload)
		log.Printf("  Has Adaptation Field: %v\n", p.Header.HasAdaptationField)
		log.Printf("  Transport Error Indicator: %v\n", p.Header.TransportErrorIndicator)
		log.Printf("  Transport Priority: %v\n", p.Header.TransportPriority)
		log.Printf("  Transport Scrambling Control: %v\n", p.Header.TransportScramblingControl)
	}
}

func data(dmx *dvbsi.Demuxer) (err error) {
	var d *dvbsi.Data
	for {
		if d, err = dmx.NextData(); err != nil {
			return
		}
		switch {
		case d.PAT != nil:
			log.Printf("PAT: %+v\n", *d.PAT)
		case d.PMT != nil:
			log.Printf("PMT: %+v\n", *d.PMT)
		case d.NIT != nil:
			log.Printf("NIT: %+v\n", *d.NIT)
		case d.SDT != nil:
			log.Printf("SDT: %+v\n", *d.SDT)
		case d.TOT != nil:
			log.Printf("TOT: %+v\n", *d.TOT)
		case d.EIT != nil:
			for _, itm := range d.EIT.Items() {
				log.Printf("EIT event %d [%s]: %s (%s - %s)\n", itm.EventID, itm.Language, itm.Title, itm.StartTime, itm.FinishTime)
			}
		}
	}
}

// Service sums up what the SI tables know about a service
type Service struct {
	Name     string            `json:"name,omitempty"`
	PMTPID   uint16            `json:"pmt_pid,omitempty"`
	Provider string            `json:"provider,omitempty"`
	Events   []*dvbsi.EITEventItem `json:"events,omitempty"`
	ID       uint16            `json:"id"`
	Type     string            `json:"type,omitempty"`
}

func guide(dmx *dvbsi.Demuxer) (err error) {
	var pat *dvbsi.PATData
	var sdt *dvbsi.SDTData
	events := make(map[uint16][]*dvbsi.EITEventItem)

	var d *dvbsi.Data
	for {
		if d, err = dmx.NextData(); err != nil {
			if errors.Is(err, dvbsi.ErrNoMorePackets) {
				err = nil
				break
			}
			return
		}
		switch {
		case d.PAT != nil:
			pat = d.PAT
		case d.SDT != nil:
			sdt = d.SDT
		case d.EIT != nil:
			for _, itm := range d.EIT.Items() {
				events[itm.ServiceID] = append(events[itm.ServiceID], itm)
			}
		}
	}

	// Assemble services
	var svs []*Service
	pmts := dvbsi.ServicesToPMTMap(sdt, pat)
	if sdt != nil {
		for _, s := range sdt.Services {
			sv := &Service{Events: events[s.ServiceID], ID: s.ServiceID}
			if sd := s.Service(); sd != nil {
				sv.Name = sd.Name
				sv.Provider = sd.Provider
				sv.Type = sd.Type.String()
				sv.PMTPID = pmts[sd]
			}
			svs = append(svs, sv)
		}
	}

	// Print
	switch *format {
	case "json":
		e := json.NewEncoder(os.Stdout)
		e.SetIndent("", "  ")
		if err = e.Encode(svs); err != nil {
			err = fmt.Errorf("json encoding to stdout failed: %w", err)
			return
		}
	default:
		fmt.Println("Services are:")
		for _, sv := range svs {
			fmt.Printf("* [%d] %s (%s) - %s - PMT PID %d - %d events\n", sv.ID, sv.Name, sv.Provider, sv.Type, sv.PMTPID, len(sv.Events))
		}
	}
	return
}
