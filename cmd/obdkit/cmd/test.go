package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vwdiag/obdkit/internal/device"
	"github.com/vwdiag/obdkit/internal/kline"
	"github.com/vwdiag/obdkit/simulator"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "bench and simulator utilities",
}

func init() {
	rootCmd.AddCommand(testCmd)

	testCmd.AddCommand(
		&cobra.Command{
			Use:   "loopback",
			Short: "write a byte to the K-line and confirm its echo",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := klineConfig(cmd)
				if err != nil {
					return err
				}
				serial, err := device.OpenSerial(cfg.SerialPath, 10400, operationTimeout(cmd))
				if err != nil {
					return err
				}
				defer serial.Close()

				line := kline.NewLine(serial, 10400)
				if err := line.Send(0x55); err != nil {
					return err
				}
				color.Green("loopback OK")
				return nil
			},
		},
		&cobra.Command{
			Use:   "simulate-ecu <protocol>",
			Short: "play the ECU side of a KWP1281 or CAN conversation",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				switch args[0] {
				case "kwp1281":
					return simulateKWP1281(cmd)
				case "can":
					return simulateCAN(cmd)
				default:
					return fmt.Errorf("unknown simulate-ecu protocol %q", args[0])
				}
			},
		},
	)
}

// simulateKWP1281 assumes the tester has already completed the 5-baud
// address handshake externally and the K-line is parked at 10400 baud; this
// command plays only the Established-state ECU behaviour, since a full
// listen-mode 5-baud responder is outside this tool's scope as a tester.
func simulateKWP1281(cmd *cobra.Command) error {
	cfg, err := klineConfig(cmd)
	if err != nil {
		return err
	}
	serial, err := device.OpenSerial(cfg.SerialPath, 10400, operationTimeout(cmd))
	if err != nil {
		return err
	}
	defer serial.Close()

	line := kline.NewLine(serial, 10400)
	ecu := simulator.NewKWP1281ECU(line, []string{"1J0906018AS", "SIMULATOR ECU"}, []byte{0xff, 0xff, 0x88})
	color.Cyan("simulating KWP1281 ECU on %s", cfg.SerialPath)
	return ecu.Run()
}

func simulateCAN(cmd *cobra.Command) error {
	iface, err := cmd.Flags().GetString(flagCANInterface)
	if err != nil {
		iface = "can0"
	}
	can, err := device.OpenCAN(iface)
	if err != nil {
		return err
	}
	defer can.Close()

	ecu := simulator.NewCANECU(canBus{can}, obdFunctionalRequestID, obdECUResponseID, 1726.0, "SIMULATORVIN01")
	color.Cyan("simulating CAN ECU on %s", iface)
	for {
		if err := ecu.Run(operationTimeout(cmd)); err != nil {
			return err
		}
	}
}
