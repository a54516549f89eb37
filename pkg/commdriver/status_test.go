package commdriver

import (
	"errors"
	"fmt"
	"testing"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want Status
	}{
		{nil, StatusSuccess},
		{ErrInvalidParam, StatusInvalidParam},
		{fmt.Errorf("%w: no device", ErrPortAccess), StatusPortAccess},
		{ErrNotOpen, StatusPortAccess},
		{fmt.Errorf("wrapped: %w", ErrReadTimeout), StatusReadTimeout},
		{ErrWriteTimeout, StatusWriteTimeout},
		{ErrReadError, StatusReadError},
		{ErrWriteError, StatusWriteError},
		{ErrOutOfMemory, StatusOutOfMemory},
		{ErrBufferOverflow, StatusBufferOverflow},
		{ErrFlushFailed, StatusFlushFailed},
		{errors.New("something else"), StatusNotSet},
	}

	for _, tt := range tests {
		if got := StatusOf(tt.err); got != tt.want {
			t.Errorf("StatusOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestStatusString(t *testing.T) {
	if StatusReadTimeout.String() != "READ_TIMEOUT" {
		t.Fatalf("String = %q", StatusReadTimeout.String())
	}
	if int(StatusNotSet) != -10 {
		t.Fatalf("StatusNotSet = %d", StatusNotSet)
	}
	if Status(-99).String() != "UNKNOWN_ERROR" {
		t.Fatalf("unknown status = %q", Status(-99).String())
	}
}
