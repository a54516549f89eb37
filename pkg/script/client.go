package script

import (
	"context"
	"time"

	"github.com/OpenTraceLab/OpenTraceComm/pkg/commdriver"
	"github.com/OpenTraceLab/OpenTraceComm/pkg/report"
	"github.com/rs/zerolog"
)

// ClientConfig tunes a Client.
type ClientConfig struct {
	DriverName   string
	Timeout      time.Duration
	MaxRecvSize  int
	ChunkSize    int
	CommandDelay time.Duration
}

// Client runs script files over one driver and reports the outcome.
type Client struct {
	drv      commdriver.Driver
	cfg      ClientConfig
	recorder report.Recorder
	log      zerolog.Logger
}

// NewClient binds a driver. recorder may be nil.
func NewClient(drv commdriver.Driver, cfg ClientConfig, recorder report.Recorder, log zerolog.Logger) *Client {
	return &Client{drv: drv, cfg: cfg, recorder: recorder, log: log}
}

func (c *Client) runner(hook StepHook) (*Runner, error) {
	interp := NewInterpreter(c.drv,
		WithTimeout(c.cfg.Timeout),
		WithMaxRecvSize(c.cfg.MaxRecvSize),
		WithChunkSize(c.cfg.ChunkSize),
		WithLogger(c.log),
	)
	return NewRunner(interp,
		WithDelay(c.cfg.CommandDelay),
		WithStepHook(hook),
		WithRunnerLogger(c.log),
	)
}

// ValidateFile reads and validates path without touching the driver.
func (c *Client) ValidateFile(path string) ([]Command, error) {
	lines, err := ReadScriptFile(path)
	if err != nil {
		return nil, err
	}
	r, err := c.runner(nil)
	if err != nil {
		return nil, err
	}
	return r.Validate(lines)
}

// RunFile validates and executes path. The returned run is complete even when
// the script fails; the error is the first failure.
func (c *Client) RunFile(ctx context.Context, path string) (*report.Run, error) {
	run := report.NewRun(path, c.cfg.DriverName)
	log := c.log.With().Str("run", run.ID).Str("script", path).Logger()

	err := c.runFile(ctx, path, run)
	run.Finish(err)

	if err != nil {
		log.Error().Err(err).Dur("elapsed", run.Duration).Msg("script failed")
	} else {
		log.Info().Int("steps", len(run.Steps)).Dur("elapsed", run.Duration).Msg("script passed")
	}

	if c.recorder != nil {
		if rerr := c.recorder.Record(ctx, run); rerr != nil {
			log.Warn().Err(rerr).Msg("failed to record run")
		}
	}
	return run, err
}

func (c *Client) runFile(ctx context.Context, path string, run *report.Run) error {
	lines, err := ReadScriptFile(path)
	if err != nil {
		return err
	}
	r, err := c.runner(func(res StepResult) {
		st := report.Step{
			Line:     res.Command.Line,
			Command:  res.Command.String(),
			Passed:   res.Err == nil,
			Status:   res.Status(),
			Received: Hexlify(res.Received),
			Elapsed:  res.Elapsed,
		}
		if res.Err != nil {
			st.Error = res.Err.Error()
		}
		run.Steps = append(run.Steps, st)
	})
	if err != nil {
		return err
	}
	return r.Run(ctx, lines)
}
