package cmd

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceComm/pkg/script"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate SCRIPT",
	Short: "Check a script without touching a device",
	Long: `Read SCRIPT, expand its macros and check every command against the grammar
and the send/receive rules. All invalid lines are reported, not only the first.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	client := script.NewClient(nil, script.ClientConfig{}, nil, log)
	cmds, err := client.ValidateFile(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, c := range cmds {
		fmt.Fprintf(out, "%4d  %-6s %s\n", c.Line, c.Direction.Symbol(), c)
	}
	fmt.Fprintf(out, "%s: %d command(s) valid\n", args[0], len(cmds))
	return nil
}
