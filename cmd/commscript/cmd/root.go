package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/OpenTraceLab/OpenTraceComm/internal/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg *config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "commscript",
	Short: "Token-oriented communication script runner",
	Long: `Run send/receive scripts against serial, USB or simulated devices.

Each script line is a command such as:
  > "AT" | T"OK"            # send AT, wait for the token OK
  < R"^READY [0-9]+$"       # receive and match a regex
  > F"fw.bin,512" | L"DONE" # stream a file in 512 byte chunks

Examples:
  commscript validate boot.cs                     # Check a script without a device
  commscript run --driver serial --port /dev/ttyUSB0 boot.cs
  commscript interfaces                           # List usable ports
  commscript history                              # Show recorded runs`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "config file")
}

func setup(cmd *cobra.Command, args []string) error {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()

	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	log.Debug().Str("config", configPath).Str("driver", cfg.Driver.Kind).Msg("configuration loaded")
	return nil
}
