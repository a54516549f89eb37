package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/OpenTraceLab/OpenTraceComm/pkg/script"
	"github.com/spf13/cobra"
)

var (
	runTimeout time.Duration
	runDelay   time.Duration
	runSQLite  string
	runMQTT    string
)

var runCmd = &cobra.Command{
	Use:   "run SCRIPT",
	Short: "Validate and execute a script",
	Long: `Validate every line of SCRIPT, then execute the commands in order against
the selected driver. Execution stops at the first failing command.

Results are stored in the SQLite history and published over MQTT when those
sinks are configured.`,
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

func init() {
	addDriverFlags(runCmd)
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "per-operation timeout (overrides config)")
	runCmd.Flags().DurationVar(&runDelay, "delay", 0, "pause between commands (overrides config)")
	runCmd.Flags().StringVar(&runSQLite, "sqlite", "", "record runs in this SQLite database")
	runCmd.Flags().StringVar(&runMQTT, "mqtt", "", "publish results to this broker, e.g. tcp://localhost:1883")
	rootCmd.AddCommand(runCmd)
}

func runScript(cmd *cobra.Command, args []string) error {
	applyDriverFlags(cmd, &cfg.Driver)
	if cmd.Flags().Changed("timeout") {
		cfg.Script.Timeout = runTimeout.String()
	}
	if cmd.Flags().Changed("delay") {
		cfg.Script.CommandDelay = runDelay.String()
	}
	if cmd.Flags().Changed("sqlite") {
		cfg.Report.SQLite = runSQLite
	}
	if cmd.Flags().Changed("mqtt") {
		cfg.Report.MQTT.Broker = runMQTT
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	drv, err := openDriver(cfg)
	if err != nil {
		return fmt.Errorf("open %s driver: %w", cfg.Driver.Kind, err)
	}
	defer drv.Close()

	recorder, closeRecorders, err := openRecorders(cfg.Report)
	if err != nil {
		return fmt.Errorf("open result sinks: %w", err)
	}
	defer func() {
		if err := closeRecorders(); err != nil {
			log.Warn().Err(err).Msg("failed to close result sinks")
		}
	}()

	client := script.NewClient(drv, script.ClientConfig{
		DriverName:   driverLabel(cfg.Driver),
		Timeout:      cfg.Script.TimeoutDuration(),
		MaxRecvSize:  cfg.Script.MaxRecvSize,
		ChunkSize:    cfg.Script.ChunkSize,
		CommandDelay: cfg.Script.CommandDelayDuration(),
	}, recorder, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	run, err := client.RunFile(ctx, args[0])
	out := cmd.OutOrStdout()
	for _, st := range run.Steps {
		mark := "ok  "
		if !st.Passed {
			mark = "FAIL"
		}
		fmt.Fprintf(out, "%s %4d  %-40s %s\n", mark, st.Line, st.Command, st.Status)
	}
	if err != nil {
		fmt.Fprintf(out, "FAILED after %s (run %s)\n", run.Duration.Round(time.Millisecond), run.ID)
		return err
	}
	fmt.Fprintf(out, "PASSED %d command(s) in %s (run %s)\n", len(run.Steps), run.Duration.Round(time.Millisecond), run.ID)
	return nil
}
