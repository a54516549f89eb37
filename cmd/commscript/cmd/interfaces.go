package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/OpenTraceLab/OpenTraceComm/pkg/commdriver"
	"github.com/spf13/cobra"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List available communication interfaces",
	Long: `Scan the host for serial ports and known USB-UART bridges (CH347, CH34x, FTDI)
and print a summary. Use this to pick the --port or --vid/--pid for run.`,
	RunE: runInterfaces,
}

func init() {
	rootCmd.AddCommand(interfacesCmd)
}

func runInterfaces(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	infos, err := commdriver.DiscoverInterfaces(ctx, log)
	if err != nil {
		return fmt.Errorf("discover interfaces: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Detected interfaces:")
	for _, iface := range infos {
		if iface.VendorID != 0 {
			fmt.Fprintf(out, "  - %s [%s] (VID:PID %04X:%04X)\n", iface.Label(), iface.Kind, iface.VendorID, iface.ProductID)
			continue
		}
		fmt.Fprintf(out, "  - %s [%s]\n", iface.Label(), iface.Kind)
	}
	return nil
}
