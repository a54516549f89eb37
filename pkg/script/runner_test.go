package script

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/OpenTraceLab/OpenTraceComm/pkg/commdriver"
	"github.com/OpenTraceLab/OpenTraceComm/pkg/report"
	"github.com/rs/zerolog"
)

func newTestRunner(t *testing.T, drv commdriver.Driver, opts ...RunnerOption) *Runner {
	t.Helper()
	r, err := NewRunner(NewInterpreter(drv, WithTimeout(300*time.Millisecond)), opts...)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r
}

func scriptLines(t *testing.T, src string) []Line {
	t.Helper()
	lines, err := ReadScript(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ReadScript: %v", err)
	}
	return lines
}

func TestRunnerValidationIsABarrier(t *testing.T) {
	drv, sim := newSimDriver(t)
	r := newTestRunner(t, drv)

	err := r.Run(context.Background(), scriptLines(t, `> "one"
> H"ABC"
> "three"
< S"x"
`))
	if !errors.Is(err, ErrSemantic) {
		t.Fatalf("error = %v, want ErrSemantic", err)
	}
	if len(sim.Writes()) != 0 {
		t.Fatalf("commands ran before validation finished: %q", writesAsStrings(sim))
	}

	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) || len(joined.Unwrap()) != 2 {
		t.Fatalf("want one error per bad line, got %v", err)
	}
	for _, want := range []string{"line 2", "line 4"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestRunnerStopsAtFirstFailure(t *testing.T) {
	drv, sim := newSimDriver(t)
	sim.OnWrite = commdriver.Respond([]byte("OK"))

	var steps []StepResult
	r := newTestRunner(t, drv, WithStepHook(func(res StepResult) { steps = append(steps, res) }))

	err := r.Run(context.Background(), scriptLines(t, `> "a" | "OK"
> "b" | "NO"
> "c" | "OK"
`))
	if !errors.Is(err, ErrMismatch) {
		t.Fatalf("error = %v, want ErrMismatch", err)
	}
	if len(steps) != 2 {
		t.Fatalf("hook saw %d steps, want 2", len(steps))
	}
	if steps[0].Status() != "SUCCESS" || steps[1].Status() != "MISMATCH" {
		t.Fatalf("statuses = %s, %s", steps[0].Status(), steps[1].Status())
	}
	if string(steps[1].Received) != "OK" || steps[1].Command.Line != 2 {
		t.Fatalf("failing step = %+v", steps[1])
	}
	if got := writesAsStrings(sim); len(got) != 2 {
		t.Fatalf("writes = %q", got)
	}
}

func TestRunnerCancellation(t *testing.T) {
	drv, sim := newSimDriver(t)
	r := newTestRunner(t, drv)

	cmds, err := r.Validate(scriptLines(t, "> \"a\"\n> \"b\"\n"))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Execute(ctx, cmds); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if len(sim.Writes()) != 0 {
		t.Fatal("command ran after cancellation")
	}
}

func TestRunnerDelay(t *testing.T) {
	drv, sim := newSimDriver(t)
	r := newTestRunner(t, drv, WithDelay(50*time.Millisecond))

	start := time.Now()
	if err := r.Run(context.Background(), scriptLines(t, "> \"a\"\n> \"b\"\n> \"c\"\n")); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Fatalf("elapsed = %s, want at least two delays", elapsed)
	}
	if len(sim.Writes()) != 3 {
		t.Fatalf("writes = %q", writesAsStrings(sim))
	}
}

func TestRunnerDelayInterruptedByCancel(t *testing.T) {
	drv, _ := newSimDriver(t)
	r := newTestRunner(t, drv, WithDelay(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := r.Run(ctx, scriptLines(t, "> \"a\"\n> \"b\"\n"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want context.DeadlineExceeded", err)
	}
}

type memRecorder struct {
	runs []*report.Run
}

func (m *memRecorder) Record(_ context.Context, run *report.Run) error {
	m.runs = append(m.runs, run)
	return nil
}

func TestClientRunFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, src string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}
	pass := write("pass.cs", "# ping\n> \"PING\" | \"PONG\"\n")
	fail := write("fail.cs", "> \"PING\" | \"PONG\"\n< S\"10\"\n")

	drv, sim := newSimDriver(t, commdriver.WithIdleGap(20*time.Millisecond))
	sim.OnWrite = commdriver.Respond([]byte("PONG"))

	rec := &memRecorder{}
	client := NewClient(drv, ClientConfig{DriverName: "sim", Timeout: 200 * time.Millisecond}, rec, zerolog.Nop())

	run, err := client.RunFile(context.Background(), pass)
	if err != nil {
		t.Fatalf("RunFile(pass): %v", err)
	}
	if !run.Passed || len(run.Steps) != 1 || run.Steps[0].Received != "504F4E47" || run.Steps[0].Line != 2 {
		t.Fatalf("run = %+v", run)
	}

	run, err = client.RunFile(context.Background(), fail)
	if !errors.Is(err, commdriver.ErrReadTimeout) {
		t.Fatalf("RunFile(fail) error = %v, want ErrReadTimeout", err)
	}
	if run.Passed || run.Failed() != 1 || run.Steps[1].Status != "READ_TIMEOUT" {
		t.Fatalf("run = %+v", run)
	}
	if len(rec.runs) != 2 || rec.runs[0].Driver != "sim" {
		t.Fatalf("recorded %d runs", len(rec.runs))
	}
}

func TestClientValidateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.cs")
	if err := os.WriteFile(path, []byte("> \"ok\"\n< \"\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	drv, _ := newSimDriver(t)
	client := NewClient(drv, ClientConfig{}, nil, zerolog.Nop())
	if _, err := client.ValidateFile(path); !errors.Is(err, ErrSemantic) {
		t.Fatalf("error = %v, want ErrSemantic", err)
	}
}
