// Package commdriver provides timed byte-stream drivers: the read-mode engine
// shared by every transport, plus serial, USB bulk and simulated ports.
package commdriver

import "time"

// ReadMode selects how a Read decides it is done.
type ReadMode uint8

const (
	// ReadExact fills the buffer, or stops early once the line goes quiet
	// after at least one byte arrived.
	ReadExact ReadMode = iota
	// ReadUntilDelimiter stops at a single delimiter byte.
	ReadUntilDelimiter
	// ReadUntilToken stops once a byte sequence has been seen in the stream.
	ReadUntilToken
)

func (m ReadMode) String() string {
	switch m {
	case ReadExact:
		return "exact"
	case ReadUntilDelimiter:
		return "until-delimiter"
	case ReadUntilToken:
		return "until-token"
	default:
		return "unknown"
	}
}

// ReadOptions configures a Read.
type ReadOptions struct {
	Mode      ReadMode
	Delimiter byte   // ReadUntilDelimiter; zero value means '\n'
	Token     []byte // ReadUntilToken
	// UseBuffer keeps the bytes scanned during a token search in the caller
	// buffer (the most recent len(buf) of them, ending with the token).
	UseBuffer bool
}

// ReadResult describes a completed or interrupted Read.
type ReadResult struct {
	N               int  // bytes stored in the caller buffer
	Consumed        int  // bytes taken from the stream
	FoundTerminator bool // delimiter or token seen
}

// Driver is a timed byte-stream endpoint. A timeout of zero selects the
// driver default; expiry of the default is then a port access failure rather
// than ErrReadTimeout.
type Driver interface {
	IsOpen() bool
	Read(timeout time.Duration, buf []byte, opts ReadOptions) (ReadResult, error)
	Write(timeout time.Duration, data []byte) (int, error)
	Close() error
}

// Port is the raw transport under a Stream. Read blocks for at most the
// duration given to SetReadTimeout and returns 0, nil when it elapses, as
// go.bug.st/serial ports do.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	Close() error
}

// writeTimeouter is implemented by ports that can bound a write.
type writeTimeouter interface {
	SetWriteTimeout(t time.Duration) error
}

// inputResetter is implemented by ports that can discard buffered input.
type inputResetter interface {
	ResetInputBuffer() error
}
