// Package sensorlink ingests the head-orientation feed: fixed-size UDP
// datagrams pushed by an external tracker at its own rate.
//
// The link is polled from the host's frame loop. Each poll drains whatever is
// queued on the socket, keeps only the freshest orientation, and never blocks
// longer than the configured receive window. Runtime socket errors are
// swallowed; the feed simply reads as stale until decodable datagrams arrive
// again.
package sensorlink

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/banshee-data/headtrack/internal/monitoring"
	"github.com/banshee-data/headtrack/internal/timeutil"
)

// ErrBind is returned by Initialize when the socket cannot be bound.
var ErrBind = errors.New("sensor link bind failed")

// Link defaults.
const (
	DefaultAddress        = ":5252"
	DefaultReceiveTimeout = time.Millisecond
	DefaultStaleTimeout   = 2 * time.Second
	DefaultMaxDrain       = 256
	DefaultRcvBuf         = 64 * 1024
)

// LinkConfig contains configuration options for the sensor link.
type LinkConfig struct {
	// Address is the local listen address, "host:port". Port 0 picks an
	// ephemeral port.
	Address string
	// RcvBuf is the OS receive buffer size requested at bind time.
	RcvBuf int
	// ReceiveTimeout bounds how long one poll may wait on the socket.
	ReceiveTimeout time.Duration
	// StaleTimeout is how long a decoded sample stays valid.
	StaleTimeout time.Duration
	// MaxDrain is how many datagrams one poll reads before it counts as an
	// overrun. The poll still drains to the deadline so the newest wins.
	MaxDrain int
	// Factory creates the socket; defaults to real UDP sockets.
	Factory UDPSocketFactory
	// Clock supplies wall-clock time; defaults to RealClock.
	Clock timeutil.Clock
}

// Stats are cumulative link counters.
type Stats struct {
	Received   uint64    `json:"received"`
	Short      uint64    `json:"short"`
	Coalesced  uint64    `json:"coalesced"`
	Decoded    uint64    `json:"decoded"`
	ReadErrors uint64    `json:"read_errors"`
	Overruns   uint64    `json:"overruns"`
	Polls      uint64    `json:"polls"`
	LastDecode time.Time `json:"last_decode"`
}

// Link is the non-blocking sensor feed. It is owned by the frame loop and is
// not safe for concurrent use.
type Link struct {
	cfg   LinkConfig
	sock  UDPSocket
	clock *timeutil.FrameClock

	readBuf []byte
	lastBuf []byte

	polled    bool
	pollFrame uint64

	latest     RawSample
	hasSample  bool
	lastDecode time.Time

	stats  Stats
	closed bool
}

// NewLink creates a link with defaults applied. Call Initialize to bind.
func NewLink(cfg LinkConfig) *Link {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.RcvBuf <= 0 {
		cfg.RcvBuf = DefaultRcvBuf
	}
	if cfg.ReceiveTimeout <= 0 {
		cfg.ReceiveTimeout = DefaultReceiveTimeout
	}
	if cfg.StaleTimeout <= 0 {
		cfg.StaleTimeout = DefaultStaleTimeout
	}
	if cfg.MaxDrain <= 0 {
		cfg.MaxDrain = DefaultMaxDrain
	}
	if cfg.Factory == nil {
		cfg.Factory = RealUDPSocketFactory{}
	}
	return &Link{
		cfg:     cfg,
		clock:   timeutil.NewFrameClock(cfg.Clock),
		readBuf: make([]byte, 2048),
		lastBuf: make([]byte, PacketSize),
	}
}

// Initialize binds the socket. Failure is reported to the caller and wraps
// ErrBind; the host decides whether to run without tracking.
func (l *Link) Initialize() error {
	if l.Available() {
		return nil
	}

	addr, err := net.ResolveUDPAddr("udp", l.cfg.Address)
	if err != nil {
		return fmt.Errorf("%w: resolve %q: %w", ErrBind, l.cfg.Address, err)
	}

	sock, err := l.cfg.Factory.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("%w: listen on %s: %w", ErrBind, addr, err)
	}

	if err := sock.SetReadBuffer(l.cfg.RcvBuf); err != nil {
		monitoring.Logf("Warning: Failed to set UDP receive buffer size to %d: %v", l.cfg.RcvBuf, err)
	}

	l.sock = sock
	l.closed = false
	monitoring.Logf("sensor link listening on %s", sock.LocalAddr())
	return nil
}

// Available reports whether the socket is bound and not shut down.
func (l *Link) Available() bool {
	return l.sock != nil && !l.closed
}

// LocalAddr returns the bound address, or nil before Initialize.
func (l *Link) LocalAddr() net.Addr {
	if l.sock == nil {
		return nil
	}
	return l.sock.LocalAddr()
}

// PollOnce drains the socket for frame. A second call with the same frame is a
// no-op, so every consumer in a frame sees the same sample.
func (l *Link) PollOnce(frame uint64) {
	if l.polled && l.pollFrame == frame {
		return
	}
	l.polled = true
	l.pollFrame = frame

	now := l.clock.Now(frame)
	if !l.Available() {
		return
	}
	l.stats.Polls++
	l.drain(now)
}

// drain reads every queued datagram and decodes the last complete one. Only a
// timeout or read error ends it; the read deadline bounds how long that takes.
func (l *Link) drain(now time.Time) {
	if err := l.sock.SetReadDeadline(now.Add(l.cfg.ReceiveTimeout)); err != nil {
		l.stats.ReadErrors++
		monitoring.Debugf("sensor link: set deadline: %v", err)
		return
	}

	have := false
	for reads := 0; ; reads++ {
		n, _, err := l.sock.ReadFromUDP(l.readBuf)
		if err != nil {
			if !isTimeout(err) {
				l.stats.ReadErrors++
				monitoring.Debugf("sensor link: read: %v", err)
			}
			break
		}
		if reads == l.cfg.MaxDrain {
			l.stats.Overruns++
			monitoring.Debugf("sensor link: more than %d datagrams queued in one poll", l.cfg.MaxDrain)
		}
		l.stats.Received++
		if n < PacketSize {
			l.stats.Short++
			continue
		}
		if have {
			l.stats.Coalesced++
		}
		copy(l.lastBuf, l.readBuf[:PacketSize])
		have = true
	}

	if !have {
		return
	}
	sample, err := DecodePacket(l.lastBuf)
	if err != nil {
		return
	}
	l.latest = sample
	l.hasSample = true
	l.lastDecode = now
	l.stats.Decoded++
	l.stats.LastDecode = now
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// PeekLatest returns the most recent sample without touching the socket.
// Valid is false when nothing has been decoded within the stale timeout of the
// last polled frame.
func (l *Link) PeekLatest() RawSample {
	s := l.latest
	s.Valid = l.hasSample && l.clock.Last().Sub(l.lastDecode) < l.cfg.StaleTimeout
	return s
}

// IsStale reports whether no sample has been decoded within the stale timeout
// as of now.
func (l *Link) IsStale(now time.Time) bool {
	return !l.hasSample || now.Sub(l.lastDecode) >= l.cfg.StaleTimeout
}

// Stats returns a copy of the link counters.
func (l *Link) Stats() Stats {
	return l.stats
}

// Shutdown closes the socket. It is safe to call more than once.
func (l *Link) Shutdown() {
	if l.sock == nil || l.closed {
		return
	}
	l.closed = true
	if err := l.sock.Close(); err != nil {
		monitoring.Logf("sensor link close: %v", err)
	}
}
