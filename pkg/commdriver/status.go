package commdriver

import (
	"errors"
)

// Status is the coarse outcome of a driver operation, kept for reports and
// logs. Go callers branch on the sentinel errors below with errors.Is.
type Status int

const (
	StatusSuccess        Status = 0
	StatusInvalidParam   Status = -1
	StatusPortAccess     Status = -2
	StatusReadError      Status = -3
	StatusWriteError     Status = -4
	StatusReadTimeout    Status = -5
	StatusWriteTimeout   Status = -6
	StatusOutOfMemory    Status = -7
	StatusBufferOverflow Status = -8
	StatusFlushFailed    Status = -9
	StatusNotSet         Status = -10
)

var statusNames = map[Status]string{
	StatusSuccess:        "SUCCESS",
	StatusInvalidParam:   "INVALID_PARAM",
	StatusPortAccess:     "PORT_ACCESS",
	StatusReadError:      "READ_ERROR",
	StatusWriteError:     "WRITE_ERROR",
	StatusReadTimeout:    "READ_TIMEOUT",
	StatusWriteTimeout:   "WRITE_TIMEOUT",
	StatusOutOfMemory:    "OUT_OF_MEMORY",
	StatusBufferOverflow: "BUFFER_OVERFLOW",
	StatusFlushFailed:    "FLUSH_FAILED",
	StatusNotSet:         "RETVAL_NOT_SET",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "UNKNOWN_ERROR"
}

var (
	ErrInvalidParam   = errors.New("commdriver: invalid parameter")
	ErrPortAccess     = errors.New("commdriver: port access error")
	ErrReadError      = errors.New("commdriver: read error")
	ErrWriteError     = errors.New("commdriver: write error")
	ErrReadTimeout    = errors.New("commdriver: read timeout")
	ErrWriteTimeout   = errors.New("commdriver: write timeout")
	ErrOutOfMemory    = errors.New("commdriver: out of memory")
	ErrBufferOverflow = errors.New("commdriver: buffer overflow")
	ErrFlushFailed    = errors.New("commdriver: flush failed")

	// ErrNotOpen reports an operation on a closed or never opened port. It
	// maps to StatusPortAccess.
	ErrNotOpen = errors.New("commdriver: port not open")
)

var statusErrors = []struct {
	err    error
	status Status
}{
	{ErrInvalidParam, StatusInvalidParam},
	{ErrNotOpen, StatusPortAccess},
	{ErrPortAccess, StatusPortAccess},
	{ErrReadTimeout, StatusReadTimeout},
	{ErrWriteTimeout, StatusWriteTimeout},
	{ErrReadError, StatusReadError},
	{ErrWriteError, StatusWriteError},
	{ErrOutOfMemory, StatusOutOfMemory},
	{ErrBufferOverflow, StatusBufferOverflow},
	{ErrFlushFailed, StatusFlushFailed},
}

// StatusOf classifies err. A nil error is StatusSuccess; an error that wraps
// none of the package sentinels is StatusNotSet.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	for _, se := range statusErrors {
		if errors.Is(err, se.err) {
			return se.status
		}
	}
	return StatusNotSet
}
