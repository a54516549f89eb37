package commdriver

import (
	"fmt"
	"os"
	"sync"
	"time"
)

var errSimClosed = fmt.Errorf("commdriver: simulator: %w", os.ErrClosed)

// WriteHook lets the simulator answer a write. The returned bytes are queued
// for reading.
type WriteHook func(data []byte) []byte

// SimPort is an in-memory Port for tests and dry runs. Nothing arrives unless
// it is fed directly or produced by OnWrite.
type SimPort struct {
	// OnWrite, when set, is called for every write.
	OnWrite WriteHook
	// ReadErr and WriteErr, when set, are returned by the next Read or Write.
	ReadErr  error
	WriteErr error

	mu          sync.Mutex
	rx          []byte
	writes      [][]byte
	readTimeout time.Duration
	resets      int
	closed      bool
	notify      chan struct{}
}

// NewSimPort returns an open simulator with an empty receive queue.
func NewSimPort() *SimPort {
	return &SimPort{notify: make(chan struct{}, 1)}
}

// Echo returns a hook that reflects every write back to the reader.
func Echo() WriteHook {
	return func(data []byte) []byte {
		return append([]byte(nil), data...)
	}
}

// Respond returns a hook that answers every write with resp.
func Respond(resp []byte) WriteHook {
	resp = append([]byte(nil), resp...)
	return func([]byte) []byte {
		return resp
	}
}

// Feed queues data for reading.
func (s *SimPort) Feed(data []byte) {
	s.mu.Lock()
	s.rx = append(s.rx, data...)
	s.mu.Unlock()
	s.wake()
}

// Writes returns a copy of every write seen so far.
func (s *SimPort) Writes() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.writes))
	for i, w := range s.writes {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// Pending reports how many queued bytes have not been read.
func (s *SimPort) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rx)
}

// Resets reports how many times ResetInputBuffer was called.
func (s *SimPort) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

func (s *SimPort) SetReadTimeout(t time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readTimeout = t
	return nil
}

func (s *SimPort) ResetInputBuffer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rx = nil
	s.resets++
	return nil
}

// Read returns queued bytes, waiting up to the read timeout for some to
// arrive. A negative timeout waits forever.
func (s *SimPort) Read(p []byte) (int, error) {
	s.mu.Lock()
	timeout := s.readTimeout
	s.mu.Unlock()

	var expire <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expire = timer.C
	}

	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return 0, errSimClosed
		}
		if err := s.ReadErr; err != nil {
			s.ReadErr = nil
			s.mu.Unlock()
			return 0, err
		}
		if len(s.rx) > 0 {
			n := copy(p, s.rx)
			s.rx = s.rx[n:]
			s.mu.Unlock()
			return n, nil
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-expire:
			return 0, nil
		}
	}
}

func (s *SimPort) Write(p []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, errSimClosed
	}
	if err := s.WriteErr; err != nil {
		s.WriteErr = nil
		s.mu.Unlock()
		return 0, err
	}
	s.writes = append(s.writes, append([]byte(nil), p...))
	hook := s.OnWrite
	s.mu.Unlock()

	if hook != nil {
		if resp := hook(p); len(resp) > 0 {
			s.Feed(resp)
		}
	}
	return len(p), nil
}

func (s *SimPort) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wake()
	return nil
}

func (s *SimPort) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
