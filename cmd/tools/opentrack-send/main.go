// Command opentrack-send emits synthetic head-orientation datagrams, either to
// a live sensor link over UDP or into a pcap file for replay tests.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/headtrack/internal/sensorlink"
)

var (
	addr     = flag.String("addr", "127.0.0.1:5252", "Destination host:port")
	rate     = flag.Float64("rate", 120, "Datagrams per second")
	duration = flag.Duration("duration", 10*time.Second, "How long to send (0 runs until interrupted)")
	period   = flag.Duration("period", 4*time.Second, "Period of the synthetic head motion")
	yawAmp   = flag.Float64("yaw", 30, "Yaw amplitude in degrees")
	pitchAmp = flag.Float64("pitch", 15, "Pitch amplitude in degrees")
	rollAmp  = flag.Float64("roll", 5, "Roll amplitude in degrees")
	burst    = flag.Int("burst", 1, "Datagrams per send tick (exercises coalescing)")
	pcapOut  = flag.String("pcap", "", "Write datagrams to this pcap file instead of sending")
)

// pose returns the synthetic orientation at elapsed time t: a slow Lissajous
// figure so every axis changes continuously.
func pose(t time.Duration) (yaw, pitch, roll float64) {
	phase := 2 * math.Pi * t.Seconds() / period.Seconds()
	return *yawAmp * math.Sin(phase),
		*pitchAmp * math.Sin(2*phase),
		*rollAmp * math.Cos(phase)
}

func main() {
	flag.Parse()
	if *rate <= 0 || *burst < 1 || *period <= 0 {
		log.Fatal("rate, burst and period must be positive")
	}

	if *pcapOut != "" {
		if *duration <= 0 {
			log.Fatal("-duration is required with -pcap")
		}
		n, err := writePcap(*pcapOut)
		if err != nil {
			log.Fatalf("failed to write pcap: %v", err)
		}
		log.Printf("✓ Wrote %d datagrams to %s", n, *pcapOut)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	n, err := send(ctx, *addr)
	if err != nil {
		log.Fatalf("send failed: %v", err)
	}
	log.Printf("sent %d datagrams to %s", n, *addr)
}

func send(ctx context.Context, dst string) (int, error) {
	raddr, err := net.ResolveUDPAddr("udp", dst)
	if err != nil {
		return 0, fmt.Errorf("resolve %s: %w", dst, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return 0, fmt.Errorf("dial %s: %w", dst, err)
	}
	defer conn.Close()

	ticker := time.NewTicker(time.Duration(float64(time.Second) / *rate))
	defer ticker.Stop()

	start := time.Now()
	sent := 0
	for {
		select {
		case <-ctx.Done():
			return sent, nil
		case <-ticker.C:
		}
		yaw, pitch, roll := pose(time.Since(start))
		pkt := sensorlink.EncodePacket(0, 0, 0, yaw, pitch, roll)
		for i := 0; i < *burst; i++ {
			if _, err := conn.Write(pkt); err != nil {
				return sent, fmt.Errorf("write: %w", err)
			}
			sent++
		}
		if sent%int(*rate*float64(*burst)) < *burst {
			log.Printf("yaw=%6.1f pitch=%6.1f roll=%6.1f", yaw, pitch, roll)
		}
	}
}

func writePcap(path string) (int, error) {
	_, portStr, err := net.SplitHostPort(*addr)
	if err != nil {
		return 0, err
	}
	port, err := net.LookupPort("udp", portStr)
	if err != nil {
		return 0, err
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		return 0, err
	}

	step := time.Duration(float64(time.Second) / *rate)
	base := time.Now()
	n := 0
	for t := time.Duration(0); t < *duration; t += step {
		yaw, pitch, roll := pose(t)
		for i := 0; i < *burst; i++ {
			frame, err := udpFrame(port, sensorlink.EncodePacket(0, 0, 0, yaw, pitch, roll))
			if err != nil {
				return n, err
			}
			ci := gopacket.CaptureInfo{Timestamp: base.Add(t), CaptureLength: len(frame), Length: len(frame)}
			if err := w.WritePacket(ci, frame); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

func udpFrame(dstPort int, payload []byte) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(127, 0, 0, 1),
		DstIP:    net.IPv4(127, 0, 0, 1),
	}
	udp := &layers.UDP{SrcPort: 4242, DstPort: layers.UDPPort(dstPort)}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
