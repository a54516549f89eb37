package commdriver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/OpenTraceLab/OpenTraceComm/pkg/kmp"
	"github.com/rs/zerolog"
)

const (
	// DefaultTimeout applies when a caller passes a zero timeout.
	DefaultTimeout = 5 * time.Second
	// DefaultIdleGap ends an exact read once data stopped arriving.
	DefaultIdleGap = 100 * time.Millisecond

	delimiterChunkSize = 64
)

// Stream implements Driver on top of a raw Port. It owns the port.
type Stream struct {
	port           Port
	defaultTimeout time.Duration
	idleGap        time.Duration
	log            zerolog.Logger

	mu      sync.Mutex
	pending []byte // read from the port but not yet handed out
	closed  bool
}

// StreamOption customises a Stream.
type StreamOption func(*Stream)

// WithDefaultTimeout sets the timeout used when callers pass zero.
func WithDefaultTimeout(d time.Duration) StreamOption {
	return func(s *Stream) {
		if d > 0 {
			s.defaultTimeout = d
		}
	}
}

// WithIdleGap sets the quiet period that ends an exact read early.
func WithIdleGap(d time.Duration) StreamOption {
	return func(s *Stream) {
		if d > 0 {
			s.idleGap = d
		}
	}
}

// WithLogger attaches a logger; byte traffic is logged at trace level.
func WithLogger(l zerolog.Logger) StreamOption {
	return func(s *Stream) {
		s.log = l
	}
}

// NewStream wraps port.
func NewStream(port Port, opts ...StreamOption) *Stream {
	s := &Stream{
		port:           port,
		defaultTimeout: DefaultTimeout,
		idleGap:        DefaultIdleGap,
		log:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsOpen reports whether the stream still owns an open port.
func (s *Stream) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port != nil && !s.closed
}

// Close closes the underlying port. Closing twice is a no-op.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.port == nil {
		return nil
	}
	s.closed = true
	s.pending = nil
	return s.port.Close()
}

// Flush drops unread input, including anything buffered by the port.
func (s *Stream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.port == nil {
		return ErrNotOpen
	}
	s.pending = nil
	if r, ok := s.port.(inputResetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			return fmt.Errorf("%w: %v", ErrFlushFailed, err)
		}
	}
	return nil
}

// Read fills buf according to opts.
func (s *Stream) Read(timeout time.Duration, buf []byte, opts ReadOptions) (ReadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.port == nil {
		return ReadResult{}, ErrNotOpen
	}
	if len(buf) == 0 {
		return ReadResult{}, fmt.Errorf("%w: empty read buffer", ErrInvalidParam)
	}
	if timeout < 0 {
		return ReadResult{}, fmt.Errorf("%w: negative timeout %s", ErrInvalidParam, timeout)
	}

	effective := timeout
	if effective == 0 {
		effective = s.defaultTimeout
	}
	deadline := time.Now().Add(effective)

	var (
		res ReadResult
		err error
	)
	switch opts.Mode {
	case ReadExact:
		res, err = s.readExact(buf, deadline)
	case ReadUntilDelimiter:
		delim := opts.Delimiter
		if delim == 0 {
			delim = '\n'
		}
		res, err = s.readUntilDelimiter(buf, delim, deadline)
	case ReadUntilToken:
		res, err = s.readUntilToken(buf, opts.Token, opts.UseBuffer, deadline)
	default:
		return ReadResult{}, fmt.Errorf("%w: read mode %d", ErrInvalidParam, opts.Mode)
	}

	if errors.Is(err, errExpired) {
		err = expiredError(timeout, effective)
	}

	s.log.Trace().
		Str("mode", opts.Mode.String()).
		Int("n", res.N).
		Bool("terminator", res.FoundTerminator).
		Hex("data", buf[:res.N]).
		Err(err).
		Msg("read")

	return res, err
}

// Write sends all of data.
func (s *Stream) Write(timeout time.Duration, data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.port == nil {
		return 0, ErrNotOpen
	}
	if len(data) == 0 {
		return 0, nil
	}
	if timeout < 0 {
		return 0, fmt.Errorf("%w: negative timeout %s", ErrInvalidParam, timeout)
	}

	if wt, ok := s.port.(writeTimeouter); ok {
		effective := timeout
		if effective == 0 {
			effective = s.defaultTimeout
		}
		if err := wt.SetWriteTimeout(effective); err != nil {
			return 0, fmt.Errorf("%w: set write timeout: %v", ErrPortAccess, err)
		}
	}

	n, err := s.port.Write(data)
	s.log.Trace().Int("n", n).Hex("data", data[:n]).Err(err).Msg("write")
	if err != nil {
		if isTimeout(err) {
			return n, fmt.Errorf("%w: wrote %d of %d bytes", ErrWriteTimeout, n, len(data))
		}
		return n, fmt.Errorf("%w: %v", ErrWriteError, err)
	}
	if n < len(data) {
		return n, fmt.Errorf("%w: short write %d of %d bytes", ErrWriteError, n, len(data))
	}
	return n, nil
}

// errExpired marks a deadline hit inside the read loops; Read turns it into
// the caller-visible timeout error.
var errExpired = errors.New("deadline expired")

func expiredError(requested, effective time.Duration) error {
	if requested == 0 {
		return fmt.Errorf("%w: no data within default timeout %s", ErrPortAccess, effective)
	}
	return fmt.Errorf("%w: no data within %s", ErrReadTimeout, effective)
}

func (s *Stream) readExact(buf []byte, deadline time.Time) (ReadResult, error) {
	n := 0
	for n < len(buf) {
		until := deadline
		if n > 0 {
			if idle := time.Now().Add(s.idleGap); idle.Before(until) {
				until = idle
			}
		}

		k, err := s.readChunk(buf[n:], until)
		if err != nil {
			return ReadResult{N: n, Consumed: n}, err
		}
		if k == 0 {
			if n > 0 {
				break
			}
			return ReadResult{}, errExpired
		}
		n += k
	}
	return ReadResult{N: n, Consumed: n}, nil
}

func (s *Stream) readUntilDelimiter(buf []byte, delim byte, deadline time.Time) (ReadResult, error) {
	var chunk [delimiterChunkSize]byte
	n, consumed := 0, 0

	for {
		// one byte beyond the free space lets a delimiter that arrives just
		// as the buffer fills still be recognised
		want := len(buf) - n + 1
		if want > len(chunk) {
			want = len(chunk)
		}

		k, err := s.readChunk(chunk[:want], deadline)
		if err != nil {
			return ReadResult{N: n, Consumed: consumed}, err
		}
		if k == 0 {
			return ReadResult{N: n, Consumed: consumed}, errExpired
		}

		data := chunk[:k]
		if i := bytes.IndexByte(data, delim); i >= 0 && i <= len(buf)-n {
			n += copy(buf[n:], data[:i])
			s.unread(data[i+1:])
			return ReadResult{N: n, Consumed: consumed + i + 1, FoundTerminator: true}, nil
		}

		stored := copy(buf[n:], data)
		n += stored
		consumed += stored
		if stored < len(data) {
			s.unread(data[stored:])
			return ReadResult{N: n, Consumed: consumed}, fmt.Errorf("%w: no delimiter within %d bytes", ErrBufferOverflow, len(buf))
		}
	}
}

func (s *Stream) readUntilToken(buf, token []byte, useBuffer bool, deadline time.Time) (ReadResult, error) {
	m, err := kmp.NewMatcher(token)
	if err != nil {
		return ReadResult{}, fmt.Errorf("%w: %v", ErrInvalidParam, err)
	}

	var ring *kmp.Ring
	if useBuffer {
		ring = kmp.NewRing(len(buf))
	}
	result := func(found bool) ReadResult {
		res := ReadResult{FoundTerminator: found}
		if ring != nil {
			res.N = copy(buf, ring.Bytes())
			res.Consumed = ring.Total()
		}
		return res
	}

	var one [1]byte
	consumed := 0
	for {
		k, err := s.readChunk(one[:], deadline)
		if err != nil {
			res := result(false)
			res.Consumed = consumed
			return res, err
		}
		if k == 0 {
			res := result(false)
			res.Consumed = consumed
			return res, errExpired
		}

		consumed++
		if ring != nil {
			_ = ring.WriteByte(one[0])
		}
		if m.Feed(one[0]) {
			res := result(true)
			res.Consumed = consumed
			return res, nil
		}
	}
}

// readChunk returns at least one byte, or 0, nil once until has passed.
func (s *Stream) readChunk(p []byte, until time.Time) (int, error) {
	if len(s.pending) > 0 {
		n := copy(p, s.pending)
		s.pending = s.pending[n:]
		return n, nil
	}

	for {
		remaining := time.Until(until)
		if remaining <= 0 {
			return 0, nil
		}
		if err := s.port.SetReadTimeout(remaining); err != nil {
			return 0, fmt.Errorf("%w: set read timeout: %v", ErrPortAccess, err)
		}

		n, err := s.port.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return 0, fmt.Errorf("%w: %v", ErrPortAccess, err)
			}
			if isTimeout(err) {
				continue
			}
			return 0, fmt.Errorf("%w: %v", ErrReadError, err)
		}
	}
}

func (s *Stream) unread(data []byte) {
	if len(data) == 0 {
		return
	}
	rest := make([]byte, 0, len(data)+len(s.pending))
	rest = append(rest, data...)
	s.pending = append(rest, s.pending...)
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded)
}
