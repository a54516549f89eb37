package script

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OpenTraceLab/OpenTraceComm/pkg/commdriver"
	"github.com/rs/zerolog"
)

// StepResult describes one executed command.
type StepResult struct {
	Command  Command
	Err      error
	Received []byte
	Elapsed  time.Duration
}

// Status returns a short outcome label: SUCCESS, MISMATCH or a driver status.
func (s StepResult) Status() string {
	switch {
	case s.Err == nil:
		return commdriver.StatusSuccess.String()
	case errors.Is(s.Err, ErrMismatch):
		return "MISMATCH"
	default:
		return commdriver.StatusOf(s.Err).String()
	}
}

// StepHook observes every executed command, including the failing one.
type StepHook func(StepResult)

// Runner validates whole scripts and executes them in order.
type Runner struct {
	parser *Parser
	interp *Interpreter
	delay  time.Duration
	hook   StepHook
	log    zerolog.Logger
}

// RunnerOption customises a Runner.
type RunnerOption func(*Runner)

// WithDelay pauses between consecutive commands.
func WithDelay(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.delay = d
		}
	}
}

// WithStepHook installs a per-command observer.
func WithStepHook(h StepHook) RunnerOption {
	return func(r *Runner) {
		r.hook = h
	}
}

// WithRunnerLogger sets the runner logger.
func WithRunnerLogger(l zerolog.Logger) RunnerOption {
	return func(r *Runner) {
		r.log = l
	}
}

// NewRunner returns a runner executing through interp.
func NewRunner(interp *Interpreter, opts ...RunnerOption) (*Runner, error) {
	p, err := NewParser()
	if err != nil {
		return nil, err
	}
	r := &Runner{parser: p, interp: interp, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Validate parses every line. Nothing is returned unless all lines are
// valid; the error joins one entry per rejected line.
func (r *Runner) Validate(lines []Line) ([]Command, error) {
	cmds := make([]Command, 0, len(lines))
	var errs []error
	for _, l := range lines {
		cmd, err := r.parser.ParseLine(l.Text, l.No)
		if err != nil {
			r.log.Error().Int("line", l.No).Str("text", l.Text).Err(err).Msg("invalid line")
			errs = append(errs, err)
			continue
		}
		cmds = append(cmds, cmd)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cmds, nil
}

// Execute runs cmds in order and stops at the first failure. Cancellation is
// checked between commands.
func (r *Runner) Execute(ctx context.Context, cmds []Command) error {
	for idx, cmd := range cmds {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("stopped before line %d: %w", cmd.Line, err)
		}
		if idx > 0 && r.delay > 0 {
			t := time.NewTimer(r.delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return fmt.Errorf("stopped before line %d: %w", cmd.Line, ctx.Err())
			case <-t.C:
			}
		}

		start := time.Now()
		err := r.interp.Execute(cmd)
		res := StepResult{
			Command:  cmd,
			Err:      err,
			Received: r.interp.LastReceived(),
			Elapsed:  time.Since(start),
		}
		if r.hook != nil {
			r.hook(res)
		}
		if err != nil {
			return err
		}
		r.log.Info().Int("line", cmd.Line).Str("cmd", cmd.String()).Dur("elapsed", res.Elapsed).Msg("ok")
	}
	return nil
}

// Run validates lines, then executes them.
func (r *Runner) Run(ctx context.Context, lines []Line) error {
	cmds, err := r.Validate(lines)
	if err != nil {
		return err
	}
	return r.Execute(ctx, cmds)
}
