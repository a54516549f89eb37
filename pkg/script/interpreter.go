package script

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/OpenTraceLab/OpenTraceComm/pkg/commdriver"
	"github.com/rs/zerolog"
)

const (
	DefaultMaxRecvSize = 1024
	DefaultChunkSize   = 1024
	DefaultTimeout     = 5 * time.Second
)

// Interpreter executes validated commands against a driver. It is not safe
// for concurrent use; give each script its own interpreter and driver.
type Interpreter struct {
	drv       commdriver.Driver
	timeout   time.Duration
	maxRecv   int
	chunkSize int
	delimiter byte
	log       zerolog.Logger

	last []byte
}

// InterpreterOption customises an Interpreter.
type InterpreterOption func(*Interpreter)

// WithTimeout sets the per-operation timeout. Zero defers to the driver
// default, whose expiry the driver reports as a port access failure.
func WithTimeout(d time.Duration) InterpreterOption {
	return func(i *Interpreter) {
		if d >= 0 {
			i.timeout = d
		}
	}
}

// WithMaxRecvSize bounds regex, token, line and size receives.
func WithMaxRecvSize(n int) InterpreterOption {
	return func(i *Interpreter) {
		if n > 0 {
			i.maxRecv = n
		}
	}
}

// WithChunkSize sets the default file transfer chunk.
func WithChunkSize(n int) InterpreterOption {
	return func(i *Interpreter) {
		if n > 0 {
			i.chunkSize = n
		}
	}
}

// WithLineDelimiter sets the byte that ends L"..." fields.
func WithLineDelimiter(b byte) InterpreterOption {
	return func(i *Interpreter) {
		i.delimiter = b
	}
}

// WithLogger sets the interpreter logger.
func WithLogger(l zerolog.Logger) InterpreterOption {
	return func(i *Interpreter) {
		i.log = l
	}
}

// NewInterpreter returns an interpreter bound to drv.
func NewInterpreter(drv commdriver.Driver, opts ...InterpreterOption) *Interpreter {
	i := &Interpreter{
		drv:       drv,
		timeout:   DefaultTimeout,
		maxRecv:   DefaultMaxRecvSize,
		chunkSize: DefaultChunkSize,
		delimiter: '\n',
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// LastReceived returns a copy of the bytes taken by the most recent receive.
func (i *Interpreter) LastReceived() []byte {
	return append([]byte(nil), i.last...)
}

// Execute runs cmd. Send failures skip the receive half and vice versa.
func (i *Interpreter) Execute(cmd Command) error {
	if i.drv == nil || !i.drv.IsOpen() {
		return fmt.Errorf("line %d: %w", cmd.Line, commdriver.ErrNotOpen)
	}
	i.last = nil

	i.log.Debug().
		Int("line", cmd.Line).
		Str("dir", cmd.Direction.String()).
		Str("first", cmd.Values[0]).
		Str("second", cmd.Values[1]).
		Stringer("first_type", cmd.Types[0]).
		Stringer("second_type", cmd.Types[1]).
		Msg("execute")

	switch cmd.Direction {
	case SendRecv:
		if err := i.step(cmd, 0, "send"); err != nil {
			return err
		}
		if cmd.Types[1] != TokenEmpty {
			return i.step(cmd, 1, "receive")
		}
	case RecvSend:
		if err := i.step(cmd, 0, "receive"); err != nil {
			return err
		}
		if cmd.Types[1] != TokenEmpty {
			return i.step(cmd, 1, "send")
		}
	default:
		return &SemanticError{Line: cmd.Line, Input: cmd.String(), Command: cmd, Reason: "invalid direction"}
	}
	return nil
}

func (i *Interpreter) step(cmd Command, field int, op string) error {
	value, typ := cmd.Values[field], cmd.Types[field]

	var err error
	if op == "send" {
		err = i.send(value, typ)
	} else {
		err = i.receive(value, typ)
	}
	if err == nil {
		return nil
	}

	i.log.Error().
		Int("line", cmd.Line).
		Str("op", op).
		Int("field", field+1).
		Stringer("type", typ).
		Str("expected", value).
		Str("received", Hexlify(i.last)).
		Str("status", commdriver.StatusOf(err).String()).
		Err(err).
		Msg("command failed")
	return &StepError{Line: cmd.Line, Op: op, Field: field, Type: typ, Err: err}
}

func (i *Interpreter) send(value string, typ TokenType) error {
	switch typ {
	case TokenEmpty:
		return nil
	case TokenFilename:
		return i.sendFile(value)
	}

	data, err := i.encode(value, typ)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	n, err := i.drv.Write(i.timeout, data)
	if err != nil {
		return err
	}
	i.log.Trace().Int("n", n).Msg("sent")
	return nil
}

func (i *Interpreter) receive(value string, typ TokenType) error {
	switch typ {
	case TokenEmpty:
		return nil
	case TokenRegex:
		return i.receiveRegex(value)
	case TokenToken:
		return i.receiveToken(value)
	case TokenSize:
		return i.receiveSize(value)
	case TokenLine:
		return i.receiveLine(value)
	case TokenFilename:
		return i.receiveFile(value)
	case TokenHexStream, TokenStringDelimited, TokenStringDelimitedEmpty, TokenStringRaw:
		return i.receiveCompare(value, typ)
	default:
		return fmt.Errorf("%w: cannot receive %s", commdriver.ErrInvalidParam, typ)
	}
}

func (i *Interpreter) encode(value string, typ TokenType) ([]byte, error) {
	switch typ {
	case TokenHexStream:
		data, err := Unhexlify(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", commdriver.ErrInvalidParam, err)
		}
		return data, nil
	case TokenLine:
		return append([]byte(value), i.delimiter), nil
	case TokenToken, TokenStringRaw, TokenStringDelimited, TokenStringDelimitedEmpty:
		return []byte(value), nil
	default:
		return nil, fmt.Errorf("%w: cannot send %s", commdriver.ErrInvalidParam, typ)
	}
}

func (i *Interpreter) read(size int, opts commdriver.ReadOptions) error {
	buf := make([]byte, size)
	res, err := i.drv.Read(i.timeout, buf, opts)
	i.last = buf[:res.N]
	return err
}

func (i *Interpreter) receiveRegex(pattern string) error {
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return fmt.Errorf("%w: %v", commdriver.ErrInvalidParam, err)
	}
	if err := i.read(i.maxRecv, commdriver.ReadOptions{Mode: commdriver.ReadExact}); err != nil {
		return err
	}
	if !re.Match(i.last) {
		return fmt.Errorf("%w: %q does not match %q", ErrMismatch, i.last, pattern)
	}
	return nil
}

func (i *Interpreter) receiveToken(token string) error {
	buf := make([]byte, i.maxRecv)
	res, err := i.drv.Read(i.timeout, buf, commdriver.ReadOptions{
		Mode:      commdriver.ReadUntilToken,
		Token:     []byte(token),
		UseBuffer: true,
	})
	i.last = buf[:res.N]
	if err != nil {
		return err
	}
	if !res.FoundTerminator {
		return fmt.Errorf("%w: token %q not found", ErrMismatch, token)
	}
	return nil
}

func (i *Interpreter) receiveSize(value string) error {
	size, err := strconv.Atoi(value)
	if err != nil || size <= 0 || size > i.maxRecv {
		return fmt.Errorf("%w: size %q outside 1..%d", commdriver.ErrInvalidParam, value, i.maxRecv)
	}
	if err := i.read(size, commdriver.ReadOptions{Mode: commdriver.ReadExact}); err != nil {
		return err
	}
	if len(i.last) != size {
		return fmt.Errorf("%w: received %d of %d bytes", ErrMismatch, len(i.last), size)
	}
	return nil
}

func (i *Interpreter) receiveLine(expected string) error {
	err := i.read(i.maxRecv, commdriver.ReadOptions{
		Mode:      commdriver.ReadUntilDelimiter,
		Delimiter: i.delimiter,
	})
	if err != nil {
		return err
	}
	if expected == "" {
		return nil
	}
	want := strings.TrimSuffix(expected, string(i.delimiter))
	if string(i.last) != want {
		return fmt.Errorf("%w: line %q, want %q", ErrMismatch, i.last, want)
	}
	return nil
}

func (i *Interpreter) receiveCompare(value string, typ TokenType) error {
	expected, err := i.encode(value, typ)
	if err != nil {
		return err
	}
	if len(expected) == 0 {
		return nil
	}
	if err := i.read(len(expected), commdriver.ReadOptions{Mode: commdriver.ReadExact}); err != nil {
		return err
	}
	if !bytes.Equal(i.last, expected) {
		return fmt.Errorf("%w: received %q, want %q", ErrMismatch, i.last, expected)
	}
	return nil
}

// fileArgs splits path[,a[,b]] into the path and its numeric options.
func fileArgs(arg string, max int) (string, []int, error) {
	parts := strings.Split(arg, ",")
	path := strings.TrimSpace(parts[0])
	if path == "" || len(parts) > max+1 {
		return "", nil, fmt.Errorf("%w: file argument %q", commdriver.ErrInvalidParam, arg)
	}
	nums := make([]int, 0, len(parts)-1)
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if p == "" {
			nums = append(nums, 0)
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return "", nil, fmt.Errorf("%w: file argument %q: bad number %q", commdriver.ErrInvalidParam, arg, p)
		}
		nums = append(nums, n)
	}
	return path, nums, nil
}

// sendFile streams path[,chunk] to the driver. A failed chunk aborts the
// transfer; earlier chunks stay sent.
func (i *Interpreter) sendFile(arg string) error {
	path, nums, err := fileArgs(arg, 1)
	if err != nil {
		return err
	}
	chunk := i.chunkSize
	if len(nums) > 0 && nums[0] > 0 {
		chunk = nums[0]
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", commdriver.ErrInvalidParam, err)
	}
	defer f.Close()

	buf := make([]byte, chunk)
	total := 0
	for {
		n, rerr := io.ReadFull(f, buf)
		if n > 0 {
			if _, err := i.drv.Write(i.timeout, buf[:n]); err != nil {
				return fmt.Errorf("%s at offset %d: %w", path, total, err)
			}
			total += n
		}
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			break
		}
		if rerr != nil {
			return fmt.Errorf("read %s: %w", path, rerr)
		}
	}

	i.log.Debug().Str("file", path).Int("bytes", total).Int("chunk", chunk).Msg("file sent")
	return nil
}

// receiveFile stores incoming bytes in path[,expected[,chunk]]. Without an
// expected size the transfer ends when the line stays quiet for a timeout.
func (i *Interpreter) receiveFile(arg string) error {
	path, nums, err := fileArgs(arg, 2)
	if err != nil {
		return err
	}
	expected, chunk := 0, i.chunkSize
	if len(nums) > 0 {
		expected = nums[0]
	}
	if len(nums) > 1 && nums[1] > 0 {
		chunk = nums[1]
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", commdriver.ErrInvalidParam, err)
	}
	defer f.Close()

	buf := make([]byte, chunk)
	total := 0
	for {
		want := chunk
		if expected > 0 && total+want > expected {
			want = expected - total
		}
		if want == 0 {
			break
		}

		res, err := i.drv.Read(i.timeout, buf[:want], commdriver.ReadOptions{Mode: commdriver.ReadExact})
		if err != nil {
			if expected == 0 && total > 0 && errors.Is(err, commdriver.ErrReadTimeout) {
				break
			}
			return fmt.Errorf("%s after %d bytes: %w", path, total, err)
		}
		if res.N == 0 {
			break
		}
		if _, err := f.Write(buf[:res.N]); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		total += res.N
		if expected > 0 && total >= expected {
			break
		}
	}

	i.log.Debug().Str("file", path).Int("bytes", total).Msg("file received")
	return f.Close()
}
