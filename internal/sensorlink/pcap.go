package sensorlink

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

type capturedDatagram struct {
	offset  time.Duration
	payload []byte
}

// PcapSocket replays sensor datagrams from a capture file through the
// UDPSocket interface.
//
// Replay time is taken from the read deadlines the link sets on every poll:
// the first deadline marks the start of the capture, and a datagram becomes
// readable once the deadline has moved past its capture offset. Driving the
// link from a mock clock therefore replays the capture at any speed while
// preserving its burst structure.
type PcapSocket struct {
	datagrams []capturedDatagram
	next      int
	port      int

	epoch    time.Time
	deadline time.Time
	started  bool
	closed   bool
}

// OpenPcap loads a pcap file and keeps the UDP payloads sent to port. Port 0
// keeps every UDP payload.
func OpenPcap(path string, port int) (*PcapSocket, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PCAP file %s: %w", path, err)
	}
	defer f.Close()
	return ReadPcap(f, port)
}

// ReadPcap is OpenPcap for an already open reader.
func ReadPcap(r io.Reader, port int) (*PcapSocket, error) {
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read PCAP header: %w", err)
	}

	s := &PcapSocket{port: port}
	var first time.Time
	for {
		data, ci, err := reader.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read PCAP packet %d: %w", len(s.datagrams), err)
		}

		packet := gopacket.NewPacket(data, reader.LinkType(), gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		if port != 0 && int(udp.DstPort) != port {
			continue
		}

		if first.IsZero() {
			first = ci.Timestamp
		}
		s.datagrams = append(s.datagrams, capturedDatagram{
			offset:  ci.Timestamp.Sub(first),
			payload: append([]byte(nil), udp.Payload...),
		})
	}
	return s, nil
}

// Len returns the number of datagrams in the capture.
func (s *PcapSocket) Len() int {
	return len(s.datagrams)
}

// Exhausted reports whether every datagram has been read.
func (s *PcapSocket) Exhausted() bool {
	return s.next >= len(s.datagrams)
}

// Duration returns the capture offset of the last datagram.
func (s *PcapSocket) Duration() time.Duration {
	if len(s.datagrams) == 0 {
		return 0
	}
	return s.datagrams[len(s.datagrams)-1].offset
}

// ReadFromUDP returns the next datagram whose capture offset has been reached.
func (s *PcapSocket) ReadFromUDP(b []byte) (int, *net.UDPAddr, error) {
	if s.closed {
		return 0, nil, net.ErrClosed
	}
	if !s.started || s.Exhausted() {
		return 0, nil, newTimeoutError()
	}
	d := s.datagrams[s.next]
	if d.offset > s.deadline.Sub(s.epoch) {
		return 0, nil, newTimeoutError()
	}
	s.next++
	return copy(b, d.payload), &net.UDPAddr{Port: s.port}, nil
}

// SetReadBuffer is accepted and ignored.
func (s *PcapSocket) SetReadBuffer(int) error { return nil }

// SetReadDeadline advances replay time.
func (s *PcapSocket) SetReadDeadline(t time.Time) error {
	if !s.started {
		s.epoch = t
		s.started = true
	}
	s.deadline = t
	return nil
}

// Close marks the socket closed.
func (s *PcapSocket) Close() error {
	s.closed = true
	return nil
}

// LocalAddr reports the filtered port.
func (s *PcapSocket) LocalAddr() net.Addr {
	return &net.UDPAddr{Port: s.port}
}

// PcapSocketFactory hands a PcapSocket to the link in place of a real socket.
type PcapSocketFactory struct {
	Socket *PcapSocket
}

// ListenUDP returns the replay socket.
func (f PcapSocketFactory) ListenUDP(string, *net.UDPAddr) (UDPSocket, error) {
	if f.Socket == nil {
		return nil, errors.New("no PCAP socket configured")
	}
	return f.Socket, nil
}
