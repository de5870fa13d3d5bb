package sensorlink

import (
	"encoding/binary"
	"errors"
	"math"
)

// PacketSize is the length of one sensor datagram: six little-endian float64
// values (x, y, z, yaw, pitch, roll).
const PacketSize = 48

// Byte offsets of the orientation fields. Bytes 0-23 carry position, which the
// tracker does not use.
const (
	yawOffset   = 24
	pitchOffset = 32
	rollOffset  = 40
)

// ErrShortPacket is returned for datagrams shorter than PacketSize. The link
// skips them silently.
var ErrShortPacket = errors.New("sensor datagram shorter than 48 bytes")

// RawSample is one decoded orientation reading in degrees. Valid is false once
// the feed has gone stale.
type RawSample struct {
	Yaw   float64
	Pitch float64
	Roll  float64
	Valid bool
}

// DecodePacket extracts yaw, pitch and roll from a sensor datagram. Bytes past
// PacketSize are ignored. The returned sample is marked valid.
func DecodePacket(buf []byte) (RawSample, error) {
	if len(buf) < PacketSize {
		return RawSample{}, ErrShortPacket
	}
	return RawSample{
		Yaw:   readFloat64(buf[yawOffset:]),
		Pitch: readFloat64(buf[pitchOffset:]),
		Roll:  readFloat64(buf[rollOffset:]),
		Valid: true,
	}, nil
}

// EncodePacket builds a sensor datagram. It is the inverse of DecodePacket and
// is used by the synthetic sender and by tests.
func EncodePacket(x, y, z, yaw, pitch, roll float64) []byte {
	buf := make([]byte, PacketSize)
	for i, v := range []float64{x, y, z, yaw, pitch, roll} {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func readFloat64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}
