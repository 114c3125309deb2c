package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vwdiag/obdkit/internal/scan"
	"github.com/vwdiag/obdkit/kwp2000"
)

var kwp2000Cmd = &cobra.Command{
	Use:   "kwp2000",
	Short: "KWP2000/ISO 14230 K-line diagnostics",
}

func init() {
	rootCmd.AddCommand(kwp2000Cmd)

	kwp2000Cmd.AddCommand(
		&cobra.Command{
			Use:   "read-dtcs",
			Short: "print stored DTCs",
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := openKWP2000(cmd)
				if err != nil {
					return err
				}
				defer s.Close()

				records, err := s.ReadDTCs()
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
		},
		&cobra.Command{
			Use:   "clear-dtcs",
			Short: "clear stored DTCs",
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := openKWP2000(cmd)
				if err != nil {
					return err
				}
				defer s.Close()
				if err := s.ClearDTCs(); err != nil {
					return err
				}
				color.Green("DTCs cleared")
				return nil
			},
		},
		&cobra.Command{
			Use:   "ecu-id",
			Short: "print the ECU's identification block",
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := openKWP2000(cmd)
				if err != nil {
					return err
				}
				defer s.Close()
				id, err := s.ReadECUID()
				if err != nil {
					return err
				}
				fmt.Printf("% x\n", id)
				return nil
			},
		},
	)
}

// openKWP2000 retries the slow-init handshake for the same reason
// openKWP1281 does: a single missed edge shouldn't be fatal to the command.
func openKWP2000(cmd *cobra.Command) (*kwp2000.Session, error) {
	ecu, err := ecuAddress(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := klineConfig(cmd)
	if err != nil {
		return nil, err
	}

	var s *kwp2000.Session
	err = scan.Retry(func() error {
		var openErr error
		s, openErr = kwp2000.Open(cfg, ecu)
		return openErr
	})
	return s, err
}
