//go:build pcap
// +build pcap

// Command pcap-replay feeds captured EGM controller traffic through the
// bridge's processing pipeline. Useful for reproducing field sessions
// offline: every UDP payload on the EGM port is handled exactly as if it
// had arrived live, and the resulting replies are decoded and summarised.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/banshee-data/motion.bridge/internal/egm"
	"github.com/banshee-data/motion.bridge/internal/egm/recorder"
	"github.com/banshee-data/motion.bridge/internal/egm/wire"
)

var (
	pcapFile = flag.String("pcap", "", "PCAP file to replay (required)")
	udpPort  = flag.Int("port", 6510, "EGM UDP port to filter on")
	axes     = flag.Int("axes", 6, "Robot axis count (0, 6 or 7)")
	csvOut   = flag.String("csv", "", "Optional CSV telemetry output path")
	verbose  = flag.Bool("v", false, "Log per-datagram details")
)

func main() {
	flag.Parse()
	if *pcapFile == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := egm.DefaultConfiguration()
	cfg.Axes = egm.RobotAxes(*axes)

	var opts []egm.Option
	var sink *recorder.CSVSink
	if *csvOut != "" {
		var err error
		sink, err = recorder.NewCSVSink(*csvOut)
		if err != nil {
			log.Fatalf("Failed to open CSV output: %v", err)
		}
		defer sink.Close()
		cfg.UseLogging = true
		opts = append(opts, egm.WithRecorder(recorder.NewSync(sink)))
	}

	iface, err := egm.NewBaseInterface(cfg, opts...)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	handle, err := pcap.OpenOffline(*pcapFile)
	if err != nil {
		log.Fatalf("Failed to open PCAP file: %v", err)
	}
	defer handle.Close()

	var stats struct {
		packets, datagrams, replies, held int
		sessions                          int
		lastSeq                           uint32
	}

	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	for packet := range packetSource.Packets() {
		stats.packets++

		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp := udpLayer.(*layers.UDP)
		if int(udp.DstPort) != *udpPort || len(udp.Payload) == 0 {
			continue
		}
		stats.datagrams++

		reply := iface.HandleDatagram(udp.Payload)
		if len(reply) == 0 {
			stats.held++
			continue
		}

		sensor, err := wire.DecodeSensor(reply)
		if err != nil || sensor.Header == nil {
			log.Printf("Reply decode failed at datagram %d: %v", stats.datagrams, err)
			continue
		}
		if sensor.Header.SeqNo == stats.lastSeq {
			stats.held++
		} else {
			stats.replies++
			if sensor.Header.SeqNo < stats.lastSeq || stats.replies == 1 {
				stats.sessions++
			}
		}
		stats.lastSeq = sensor.Header.SeqNo

		if *verbose {
			status := iface.GetStatus()
			log.Printf("datagram %d: feedback seq %d, reply seq %d, states_ok=%v",
				stats.datagrams, status.Header.SeqNo, sensor.Header.SeqNo,
				status.Status.StatesOK())
		}
	}

	fmt.Printf("Packets:          %d\n", stats.packets)
	fmt.Printf("EGM datagrams:    %d\n", stats.datagrams)
	fmt.Printf("Replies produced: %d\n", stats.replies)
	fmt.Printf("Resends/holds:    %d\n", stats.held)
	fmt.Printf("Sessions:         %d\n", stats.sessions)
}
