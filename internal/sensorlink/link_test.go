package sensorlink

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/banshee-data/headtrack/internal/timeutil"
)

func newTestLink(t *testing.T, packets ...[]byte) (*Link, *MockUDPSocket, *timeutil.MockClock) {
	t.Helper()
	sock := NewMockUDPSocket(packets...)
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	link := NewLink(LinkConfig{
		Address: "127.0.0.1:5252",
		Factory: NewMockUDPSocketFactory(sock),
		Clock:   clock,
	})
	if err := link.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return link, sock, clock
}

func sample(yaw, pitch, roll float64) []byte {
	return EncodePacket(0, 0, 0, yaw, pitch, roll)
}

func TestNewLink_Defaults(t *testing.T) {
	link := NewLink(LinkConfig{})
	if link.cfg.Address != DefaultAddress {
		t.Errorf("Address = %q, want %q", link.cfg.Address, DefaultAddress)
	}
	if link.cfg.ReceiveTimeout != DefaultReceiveTimeout {
		t.Errorf("ReceiveTimeout = %v, want %v", link.cfg.ReceiveTimeout, DefaultReceiveTimeout)
	}
	if link.cfg.StaleTimeout != 2*time.Second {
		t.Errorf("StaleTimeout = %v, want 2s", link.cfg.StaleTimeout)
	}
	if link.cfg.MaxDrain != DefaultMaxDrain {
		t.Errorf("MaxDrain = %d, want %d", link.cfg.MaxDrain, DefaultMaxDrain)
	}
	if link.Available() {
		t.Error("link should not be available before Initialize")
	}
	if link.LocalAddr() != nil {
		t.Error("LocalAddr should be nil before Initialize")
	}
}

func TestInitialize_BindFailure(t *testing.T) {
	factory := NewMockUDPSocketFactory(nil)
	factory.Error = errors.New("address already in use")
	link := NewLink(LinkConfig{Address: ":5252", Factory: factory})

	err := link.Initialize()
	if !errors.Is(err, ErrBind) {
		t.Fatalf("err = %v, want ErrBind", err)
	}
	if link.Available() {
		t.Error("link available after bind failure")
	}

	// polling an unbound link is harmless
	link.PollOnce(1)
	if link.PeekLatest().Valid {
		t.Error("unbound link reported a valid sample")
	}
}

func TestInitialize_BadAddress(t *testing.T) {
	link := NewLink(LinkConfig{Address: "not-an-address", Factory: NewMockUDPSocketFactory(NewMockUDPSocket())})
	if err := link.Initialize(); !errors.Is(err, ErrBind) {
		t.Fatalf("err = %v, want ErrBind", err)
	}
}

func TestInitialize_SetsReadBuffer(t *testing.T) {
	_, sock, _ := newTestLink(t)
	if sock.ReadBufferSize != DefaultRcvBuf {
		t.Errorf("ReadBufferSize = %d, want %d", sock.ReadBufferSize, DefaultRcvBuf)
	}
}

func TestInitialize_ReadBufferErrorIsNotFatal(t *testing.T) {
	sock := NewMockUDPSocket()
	sock.SetReadBufferError = errors.New("not permitted")
	link := NewLink(LinkConfig{Factory: NewMockUDPSocketFactory(sock)})
	if err := link.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !link.Available() {
		t.Error("link should be available")
	}
}

func TestPollOnce_IdempotentWithinFrame(t *testing.T) {
	link, sock, _ := newTestLink(t, sample(10, 0, 0))

	link.PollOnce(1)
	first := link.PeekLatest()
	if !first.Valid || first.Yaw != 10 {
		t.Fatalf("PeekLatest = %+v, want yaw 10 valid", first)
	}

	sock.Push(sample(20, 0, 0))
	link.PollOnce(1)
	for i := 0; i < 5; i++ {
		if got := link.PeekLatest(); got != first {
			t.Errorf("peek %d within frame = %+v, want %+v", i, got, first)
		}
	}
	if sock.DeadlineCalls != 1 {
		t.Errorf("socket touched %d times in one frame, want 1", sock.DeadlineCalls)
	}

	link.PollOnce(2)
	if got := link.PeekLatest(); got.Yaw != 20 {
		t.Errorf("next frame yaw = %v, want 20", got.Yaw)
	}
}

func TestPollOnce_BurstCoalescing(t *testing.T) {
	burst := [][]byte{sample(1, 1, 1), sample(2, 2, 2), sample(3, 3, 3), sample(4.5, -2, 7)}
	link, sock, _ := newTestLink(t, burst...)

	link.PollOnce(1)

	want, _ := DecodePacket(burst[len(burst)-1])
	if got := link.PeekLatest(); got != want {
		t.Errorf("coalesced sample = %+v, want %+v", got, want)
	}
	if len(sock.Packets) != 0 {
		t.Errorf("%d datagrams left queued, want all drained", len(sock.Packets))
	}
	st := link.Stats()
	if st.Received != 4 || st.Coalesced != 3 || st.Decoded != 1 {
		t.Errorf("stats = %+v, want received 4, coalesced 3, decoded 1", st)
	}
}

func TestPollOnce_ShortDatagramDoesNotMutateSample(t *testing.T) {
	link, sock, _ := newTestLink(t, sample(12.5, -3.25, 0))
	link.PollOnce(1)
	before := link.PeekLatest()

	sock.Push(make([]byte, 40))
	link.PollOnce(2)

	if got := link.PeekLatest(); got != before {
		t.Errorf("sample after short datagram = %+v, want %+v", got, before)
	}
	if st := link.Stats(); st.Short != 1 || st.Decoded != 1 {
		t.Errorf("stats = %+v, want short 1, decoded 1", st)
	}
}

func TestPollOnce_TrailingShortDatagramKeepsLastCompleteOne(t *testing.T) {
	link, _, _ := newTestLink(t, sample(5, 6, 7), make([]byte, 12))
	link.PollOnce(1)
	if got := link.PeekLatest(); got.Yaw != 5 || !got.Valid {
		t.Errorf("sample = %+v, want yaw 5 valid", got)
	}
}

func TestPollOnce_OverrunStillTakesNewest(t *testing.T) {
	sock := NewMockUDPSocket()
	for i := 0; i < 300; i++ {
		sock.Push(sample(float64(i), 0, 0))
	}
	link := NewLink(LinkConfig{Factory: NewMockUDPSocketFactory(sock), Clock: timeutil.NewMockClock(time.Unix(0, 0))})
	if err := link.Initialize(); err != nil {
		t.Fatal(err)
	}

	link.PollOnce(1)
	if got := link.PeekLatest().Yaw; got != 299 {
		t.Errorf("yaw = %v, want 299", got)
	}
	if len(sock.Packets) != 0 {
		t.Errorf("%d datagrams left queued, want all drained", len(sock.Packets))
	}
	st := link.Stats()
	if st.Received != 300 || st.Coalesced != 299 || st.Overruns != 1 {
		t.Errorf("stats = %+v, want received 300, coalesced 299, overruns 1", st)
	}

	// nothing left for the next frame to pick up
	link.PollOnce(2)
	if got := link.PeekLatest().Yaw; got != 299 {
		t.Errorf("next frame yaw = %v, want 299", got)
	}
	if st := link.Stats(); st.Decoded != 1 {
		t.Errorf("decoded = %d, want 1", st.Decoded)
	}
}

func TestPollOnce_NoOverrunBelowMaxDrain(t *testing.T) {
	sock := NewMockUDPSocket()
	for i := 0; i < 4; i++ {
		sock.Push(sample(float64(i), 0, 0))
	}
	link := NewLink(LinkConfig{Factory: NewMockUDPSocketFactory(sock), MaxDrain: 4, Clock: timeutil.NewMockClock(time.Unix(0, 0))})
	if err := link.Initialize(); err != nil {
		t.Fatal(err)
	}

	link.PollOnce(1)
	// four datagrams plus the read that times out
	if sock.Reads != 5 {
		t.Errorf("reads = %d, want 5", sock.Reads)
	}
	if st := link.Stats(); st.Overruns != 0 {
		t.Errorf("overruns = %d, want 0", st.Overruns)
	}
	if got := link.PeekLatest().Yaw; got != 3 {
		t.Errorf("yaw = %v, want 3", got)
	}
}

func TestStaleness(t *testing.T) {
	link, _, clock := newTestLink(t, sample(1, 2, 3))

	link.PollOnce(1)
	if !link.PeekLatest().Valid {
		t.Fatal("fresh sample should be valid")
	}
	if link.IsStale(clock.Now()) {
		t.Error("fresh sample reported stale")
	}

	clock.Advance(1999 * time.Millisecond)
	link.PollOnce(2)
	if !link.PeekLatest().Valid {
		t.Error("sample should still be valid just inside the window")
	}

	clock.Advance(time.Millisecond)
	link.PollOnce(3)
	got := link.PeekLatest()
	if got.Valid {
		t.Error("sample should be stale after 2s")
	}
	if got.Yaw != 1 || got.Pitch != 2 || got.Roll != 3 {
		t.Errorf("stale sample should keep its angles, got %+v", got)
	}
	if !link.IsStale(clock.Now()) {
		t.Error("IsStale = false after timeout")
	}
}

func TestStaleness_Reconnect(t *testing.T) {
	link, sock, clock := newTestLink(t, sample(1, 0, 0))
	link.PollOnce(1)
	clock.Advance(5 * time.Second)
	link.PollOnce(2)
	if link.PeekLatest().Valid {
		t.Fatal("expected stale")
	}

	sock.Push(sample(9, 0, 0))
	clock.Advance(16 * time.Millisecond)
	link.PollOnce(3)
	if got := link.PeekLatest(); !got.Valid || got.Yaw != 9 {
		t.Errorf("after reconnect = %+v, want yaw 9 valid", got)
	}
}

func TestPollOnce_ClockReadOncePerFrame(t *testing.T) {
	link, _, clock := newTestLink(t, sample(1, 0, 0))
	link.PollOnce(7)
	link.PollOnce(7)
	link.PeekLatest()
	link.PeekLatest()
	if clock.Reads() != 1 {
		t.Errorf("clock reads = %d, want 1", clock.Reads())
	}
}

func TestPollOnce_ReadErrorsAreSwallowed(t *testing.T) {
	link, sock, _ := newTestLink(t)
	sock.ReadError = &net.OpError{Op: "read", Net: "udp", Err: errors.New("connection reset by peer")}

	link.PollOnce(1)
	if link.PeekLatest().Valid {
		t.Error("no sample expected")
	}
	if st := link.Stats(); st.ReadErrors != 1 {
		t.Errorf("ReadErrors = %d, want 1", st.ReadErrors)
	}

	// next frame retries without any reconnection step
	sock.Push(sample(3, 0, 0))
	link.PollOnce(2)
	if got := link.PeekLatest(); !got.Valid || got.Yaw != 3 {
		t.Errorf("after error = %+v, want yaw 3 valid", got)
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	link, sock, _ := newTestLink(t)
	link.Shutdown()
	link.Shutdown()
	if !sock.Closed {
		t.Error("socket not closed")
	}
	if link.Available() {
		t.Error("link available after shutdown")
	}
	link.PollOnce(1)
	if sock.Reads != 0 {
		t.Errorf("reads after shutdown = %d, want 0", sock.Reads)
	}
}

func TestLink_LoopbackUDP(t *testing.T) {
	link := NewLink(LinkConfig{Address: "127.0.0.1:0", ReceiveTimeout: 5 * time.Millisecond})
	if err := link.Initialize(); err != nil {
		t.Skipf("cannot bind loopback UDP: %v", err)
	}
	defer link.Shutdown()

	conn, err := net.DialUDP("udp", nil, link.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	for _, yaw := range []float64{1, 2, 3} {
		if _, err := conn.Write(sample(yaw, 0, 0)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	var got RawSample
	for frame := uint64(1); frame < 200 && got.Yaw != 3; frame++ {
		link.PollOnce(frame)
		got = link.PeekLatest()
		time.Sleep(2 * time.Millisecond)
	}
	if !got.Valid || got.Yaw != 3 {
		t.Errorf("loopback sample = %+v, want yaw 3 valid", got)
	}
}
