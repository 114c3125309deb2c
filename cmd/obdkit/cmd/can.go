package cmd

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vwdiag/obdkit/internal/device"
	"github.com/vwdiag/obdkit/internal/obdlog"
	"github.com/vwdiag/obdkit/isotp"
	"github.com/vwdiag/obdkit/obd"
)

const (
	flagCANInterface = "interface"
	flagCANBitRate   = "bit-rate"
	flagLogOutput    = "output"

	obdFunctionalRequestID = 0x7df
	obdECUResponseID       = 0x7e8
)

// canCmd's bit rate flag is informational only: OpenCAN never configures the
// interface, since bit rate and bringing the link up are an operator/OS-level
// responsibility.
var canCmd = &cobra.Command{
	Use:   "can",
	Short: "OBD-II over ISO-TP/CAN",
}

func init() {
	canCmd.PersistentFlags().String(flagCANInterface, "can0", "CAN interface name")
	canCmd.PersistentFlags().Int(flagCANBitRate, 500000, "CAN bit rate, informational only")
	rootCmd.AddCommand(canCmd)

	canReadDTCsCmd := &cobra.Command{
		Use:   "read-dtcs",
		Short: "print stored DTCs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeFn, err := openOBDClient(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			records, err := client.ReadDTCs(false)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("no stored DTCs")
			}
			for _, r := range records {
				color.Yellow(r.String())
			}
			return nil
		},
	}

	canClearDTCsCmd := &cobra.Command{
		Use:   "clear-dtcs",
		Short: "clear stored DTCs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeFn, err := openOBDClient(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			if err := client.ClearDTCs(); err != nil {
				return err
			}
			color.Green("DTCs cleared")
			return nil
		},
	}

	canReadDataCmd := &cobra.Command{
		Use:   "read-data <pid>",
		Short: "read one live-data PID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			client, closeFn, err := openOBDClient(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			formatted, err := client.ReadDataFormatted(pid, false)
			if err != nil {
				return err
			}
			fmt.Println(formatted)
			return nil
		},
	}

	canLogDataCmd := &cobra.Command{
		Use:   "log-data <pid...>",
		Short: "sample live-data PIDs to a CSV file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString(flagLogOutput)
			if err != nil || out == "" {
				return fmt.Errorf("--output is required")
			}
			pids := make([]byte, 0, len(args))
			for _, a := range args {
				pid, err := parsePID(a)
				if err != nil {
					return err
				}
				pids = append(pids, pid)
			}

			client, closeFn, err := openOBDClient(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			w := csv.NewWriter(f)
			defer w.Flush()

			header := make([]string, 0, len(pids)+1)
			header = append(header, "timestamp_ms")
			for _, pid := range pids {
				header = append(header, fmt.Sprintf("pid_0x%02x", pid))
			}
			if err := w.Write(header); err != nil {
				return err
			}

			start := time.Now()
			row := make([]string, 0, len(pids)+1)
			row = append(row, strconv.FormatInt(time.Since(start).Milliseconds(), 10))
			for _, pid := range pids {
				formatted, err := client.ReadDataFormatted(pid, false)
				if err != nil {
					return err
				}
				row = append(row, formatted)
			}
			return w.Write(row)
		},
	}
	canLogDataCmd.Flags().String(flagLogOutput, "", "CSV output file")

	canCmd.AddCommand(canReadDTCsCmd, canClearDTCsCmd, canReadDataCmd, canLogDataCmd)
}

func parsePID(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid PID %q: %w", s, err)
	}
	return byte(v), nil
}

// openOBDClient opens the configured CAN interface and binds an OBD-II
// client to the functional request/ECU response id pair.
func openOBDClient(cmd *cobra.Command) (*obd.Client, func(), error) {
	iface, err := cmd.Flags().GetString(flagCANInterface)
	if err != nil {
		return nil, nil, err
	}
	verbose, _ := cmd.Flags().GetBool(flagVerbose)
	obdlog.SetVerbose(verbose)
	if dir, _ := cmd.Flags().GetString(flagLogDir); dir != "" {
		obdlog.SetLogDir(dir)
	}
	can, err := device.OpenCAN(iface)
	if err != nil {
		return nil, nil, err
	}
	tr := isotp.NewTransport(canBus{can}, obdFunctionalRequestID, obdECUResponseID, operationTimeout(cmd))
	return obd.NewClient(tr), func() { can.Close() }, nil
}
