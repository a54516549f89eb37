package commdriver

import (
	"errors"
	"os"
	"testing"
	"time"
)

func newTestStream(t *testing.T, opts ...StreamOption) (*Stream, *SimPort) {
	t.Helper()
	sim := NewSimPort()
	s := NewStream(sim, opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s, sim
}

func TestReadUntilDelimiterKeepsRemainder(t *testing.T) {
	s, sim := newTestStream(t)
	sim.Feed([]byte("hello\nworld\n"))

	buf := make([]byte, 16)
	opts := ReadOptions{Mode: ReadUntilDelimiter}

	res, err := s.Read(time.Second, buf, opts)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if got := string(buf[:res.N]); got != "hello" || !res.FoundTerminator || res.Consumed != 6 {
		t.Fatalf("first read = %q found=%v consumed=%d", got, res.FoundTerminator, res.Consumed)
	}

	res, err = s.Read(time.Second, buf, opts)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if got := string(buf[:res.N]); got != "world" {
		t.Fatalf("second read = %q, want world", got)
	}
}

func TestReadUntilDelimiterCustomByte(t *testing.T) {
	s, sim := newTestStream(t)
	sim.Feed([]byte("a;b"))

	buf := make([]byte, 8)
	res, err := s.Read(time.Second, buf, ReadOptions{Mode: ReadUntilDelimiter, Delimiter: ';'})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf[:res.N]) != "a" {
		t.Fatalf("got %q, want a", buf[:res.N])
	}
}

func TestReadUntilDelimiterOverflow(t *testing.T) {
	s, sim := newTestStream(t)
	sim.Feed([]byte("abcdefgh\n"))

	buf := make([]byte, 4)
	res, err := s.Read(time.Second, buf, ReadOptions{Mode: ReadUntilDelimiter})
	if !errors.Is(err, ErrBufferOverflow) {
		t.Fatalf("error = %v, want ErrBufferOverflow", err)
	}
	if res.N != len(buf) || string(buf) != "abcd" {
		t.Fatalf("N=%d buf=%q", res.N, buf)
	}
	if StatusOf(err) != StatusBufferOverflow {
		t.Fatalf("status = %s", StatusOf(err))
	}
}

func TestReadUntilDelimiterFillsBufferExactly(t *testing.T) {
	s, sim := newTestStream(t)
	sim.Feed([]byte("abcd\n"))

	buf := make([]byte, 4)
	res, err := s.Read(time.Second, buf, ReadOptions{Mode: ReadUntilDelimiter})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if res.N != 4 || !res.FoundTerminator {
		t.Fatalf("N=%d found=%v", res.N, res.FoundTerminator)
	}
}

func TestReadTimeoutWithoutData(t *testing.T) {
	s, _ := newTestStream(t)

	start := time.Now()
	_, err := s.Read(500*time.Millisecond, make([]byte, 10), ReadOptions{Mode: ReadExact})
	elapsed := time.Since(start)

	if !errors.Is(err, ErrReadTimeout) {
		t.Fatalf("error = %v, want ErrReadTimeout", err)
	}
	if elapsed < 500*time.Millisecond || elapsed > 1500*time.Millisecond {
		t.Fatalf("elapsed = %s, want about 500ms", elapsed)
	}
}

func TestZeroTimeoutExpiryIsPortAccess(t *testing.T) {
	s, _ := newTestStream(t, WithDefaultTimeout(50*time.Millisecond))

	_, err := s.Read(0, make([]byte, 4), ReadOptions{Mode: ReadUntilDelimiter})
	if !errors.Is(err, ErrPortAccess) {
		t.Fatalf("error = %v, want ErrPortAccess", err)
	}
	if errors.Is(err, ErrReadTimeout) {
		t.Fatalf("zero timeout must not report ErrReadTimeout")
	}
}

func TestReadExactStopsAfterIdleGap(t *testing.T) {
	s, sim := newTestStream(t, WithIdleGap(50*time.Millisecond))
	sim.Feed([]byte("1234567"))

	buf := make([]byte, 10)
	start := time.Now()
	res, err := s.Read(2*time.Second, buf, ReadOptions{Mode: ReadExact})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if res.N != 7 || string(buf[:res.N]) != "1234567" {
		t.Fatalf("got %d bytes %q", res.N, buf[:res.N])
	}
	if time.Since(start) > time.Second {
		t.Fatalf("idle gap did not end the read early")
	}
}

func TestReadExactAcrossFeeds(t *testing.T) {
	s, sim := newTestStream(t)
	sim.Feed([]byte("abc"))
	go func() {
		time.Sleep(20 * time.Millisecond)
		sim.Feed([]byte("defg"))
	}()

	buf := make([]byte, 7)
	res, err := s.Read(time.Second, buf, ReadOptions{Mode: ReadExact})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf[:res.N]) != "abcdefg" {
		t.Fatalf("got %q", buf[:res.N])
	}
}

func TestReadUntilTokenWithBuffer(t *testing.T) {
	s, sim := newTestStream(t)
	sim.Feed([]byte("noise READY tail"))

	buf := make([]byte, 8)
	res, err := s.Read(time.Second, buf, ReadOptions{
		Mode:      ReadUntilToken,
		Token:     []byte("READY"),
		UseBuffer: true,
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !res.FoundTerminator || res.Consumed != 11 {
		t.Fatalf("found=%v consumed=%d", res.FoundTerminator, res.Consumed)
	}
	if got := string(buf[:res.N]); got != "se READY" {
		t.Fatalf("buffer = %q, want %q", got, "se READY")
	}
	if sim.Pending() != len(" tail") {
		t.Fatalf("pending = %d, want the bytes after the token", sim.Pending())
	}
}

func TestReadUntilTokenWithoutBuffer(t *testing.T) {
	s, sim := newTestStream(t)
	sim.Feed([]byte("ABABDABACDABABCABAB!"))

	res, err := s.Read(time.Second, make([]byte, 4), ReadOptions{
		Mode:  ReadUntilToken,
		Token: []byte("ABABCABAB"),
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if res.N != 0 || res.Consumed != 19 {
		t.Fatalf("N=%d consumed=%d, want 0/19", res.N, res.Consumed)
	}
}

func TestReadUntilTokenTimesOut(t *testing.T) {
	s, sim := newTestStream(t)
	sim.Feed([]byte("READ"))

	_, err := s.Read(100*time.Millisecond, make([]byte, 8), ReadOptions{
		Mode:  ReadUntilToken,
		Token: []byte("READY"),
	})
	if !errors.Is(err, ErrReadTimeout) {
		t.Fatalf("error = %v, want ErrReadTimeout", err)
	}
}

func TestReadRejectsBadParameters(t *testing.T) {
	s, _ := newTestStream(t)

	tests := []struct {
		name string
		buf  []byte
		opts ReadOptions
	}{
		{"empty buffer", nil, ReadOptions{Mode: ReadExact}},
		{"empty token", make([]byte, 4), ReadOptions{Mode: ReadUntilToken}},
		{"unknown mode", make([]byte, 4), ReadOptions{Mode: ReadMode(42)}},
	}
	for _, tt := range tests {
		if _, err := s.Read(time.Second, tt.buf, tt.opts); !errors.Is(err, ErrInvalidParam) {
			t.Errorf("%s: error = %v, want ErrInvalidParam", tt.name, err)
		}
	}
}

func TestReadPortErrors(t *testing.T) {
	s, sim := newTestStream(t)

	sim.ReadErr = errors.New("line noise")
	if _, err := s.Read(time.Second, make([]byte, 4), ReadOptions{Mode: ReadExact}); !errors.Is(err, ErrReadError) {
		t.Fatalf("error = %v, want ErrReadError", err)
	}
}

func TestWrite(t *testing.T) {
	s, sim := newTestStream(t)
	sim.OnWrite = Respond([]byte("OK\n"))

	n, err := s.Write(time.Second, []byte("AT\r"))
	if err != nil || n != 3 {
		t.Fatalf("Write = %d, %v", n, err)
	}
	writes := sim.Writes()
	if len(writes) != 1 || string(writes[0]) != "AT\r" {
		t.Fatalf("writes = %q", writes)
	}

	buf := make([]byte, 8)
	res, err := s.Read(time.Second, buf, ReadOptions{Mode: ReadUntilDelimiter})
	if err != nil || string(buf[:res.N]) != "OK" {
		t.Fatalf("response = %q, %v", buf[:res.N], err)
	}
}

func TestWriteErrors(t *testing.T) {
	tests := []struct {
		portErr error
		want    error
	}{
		{os.ErrDeadlineExceeded, ErrWriteTimeout},
		{errors.New("unplugged"), ErrWriteError},
	}
	for _, tt := range tests {
		s, sim := newTestStream(t)
		sim.WriteErr = tt.portErr
		if _, err := s.Write(time.Second, []byte("x")); !errors.Is(err, tt.want) {
			t.Errorf("port error %v: got %v, want %v", tt.portErr, err, tt.want)
		}
	}
}

func TestFlushDropsPendingInput(t *testing.T) {
	s, sim := newTestStream(t)
	sim.Feed([]byte("one\ntwo\n"))

	buf := make([]byte, 8)
	if _, err := s.Read(time.Second, buf, ReadOptions{Mode: ReadUntilDelimiter}); err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if sim.Resets() != 1 {
		t.Fatalf("resets = %d", sim.Resets())
	}
	if _, err := s.Read(50*time.Millisecond, buf, ReadOptions{Mode: ReadUntilDelimiter}); !errors.Is(err, ErrReadTimeout) {
		t.Fatalf("read after flush: %v, want ErrReadTimeout", err)
	}
}

func TestClosedStream(t *testing.T) {
	s, _ := newTestStream(t)
	if !s.IsOpen() {
		t.Fatalf("new stream not open")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if s.IsOpen() {
		t.Fatalf("closed stream reports open")
	}
	if _, err := s.Read(time.Second, make([]byte, 1), ReadOptions{}); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("read error = %v", err)
	}
	if _, err := s.Write(time.Second, []byte("x")); StatusOf(err) != StatusPortAccess {
		t.Fatalf("write status = %s", StatusOf(err))
	}
}
