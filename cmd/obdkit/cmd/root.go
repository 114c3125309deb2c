package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vwdiag/obdkit/internal/kline"
	"github.com/vwdiag/obdkit/internal/obdlog"
	"github.com/vwdiag/obdkit/internal/xerrors"
)

const (
	flagECU      = "ecu"
	flagVerbose  = "v"
	flagPort     = "port"
	flagGPIOChip = "gpio-chip"
	flagGPIOLine = "gpio-line"
	flagTimeout  = "timeout"
	flagLogDir   = "log-dir"
)

var rootCmd = &cobra.Command{
	Use:           "obdkit",
	Short:         "Diagnostic client for VAG K-line and OBD-II/CAN interfaces",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String(flagECU, "0x01", "target ECU address (hex, e.g. 0x01)")
	pf.BoolP(flagVerbose, "v", false, "verbose logging")
	pf.String(flagPort, "/dev/ttyS1", "K-line serial device")
	pf.String(flagGPIOChip, "/dev/gpiochip0", "K-line TX/RX GPIO chip")
	pf.Uint32(flagGPIOLine, 15, "K-line TX/RX GPIO line offset")
	pf.Duration(flagTimeout, 5*time.Second, "operation timeout")
	pf.String(flagLogDir, "", "directory to also write date-rotated session logs to")
}

// Execute runs the command tree and returns the process exit code, mapping
// any returned xerrors.Error to its documented exit code.
func Execute(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, "obdkit:", err)
	if xe, ok := err.(*xerrors.Error); ok {
		return xe.ExitCode()
	}
	return 3
}

func ecuAddress(cmd *cobra.Command) (byte, error) {
	s, err := cmd.Flags().GetString(flagECU)
	if err != nil {
		return 0, err
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, xerrors.Unsupported(fmt.Sprintf("invalid --ecu value %q", s))
	}
	return byte(v), nil
}

func klineConfig(cmd *cobra.Command) (kline.Config, error) {
	port, err := cmd.Flags().GetString(flagPort)
	if err != nil {
		return kline.Config{}, err
	}
	chip, err := cmd.Flags().GetString(flagGPIOChip)
	if err != nil {
		return kline.Config{}, err
	}
	line, err := cmd.Flags().GetUint32(flagGPIOLine)
	if err != nil {
		return kline.Config{}, err
	}
	verbose, _ := cmd.Flags().GetBool(flagVerbose)
	obdlog.SetVerbose(verbose)
	if dir, _ := cmd.Flags().GetString(flagLogDir); dir != "" {
		obdlog.SetLogDir(dir)
	}
	return kline.Config{SerialPath: port, GPIOChip: chip, TXOffset: line, RXOffset: line}, nil
}

func operationTimeout(cmd *cobra.Command) time.Duration {
	d, err := cmd.Flags().GetDuration(flagTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}
