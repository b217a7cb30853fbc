package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/nectar/internal/calibration"
	"github.com/smazurov/nectar/internal/systemd"
)

// CreateCalibrateCmd creates the calibrate command group, a client of the
// calibration service.
func CreateCalibrateCmd() *cobra.Command {
	var server string
	var timeout time.Duration
	var retries int

	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Talk to the calibration service",
	}
	cmd.PersistentFlags().StringVar(&server, "server", "http://localhost:8080", "Calibration service URL")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	cmd.PersistentFlags().IntVar(&retries, "retries", 3, "Retries on connection errors and 5xx responses")

	newClient := func() (*calibration.Client, error) {
		return calibration.NewClient(server, calibration.Options{RetryMax: retries, Timeout: timeout})
	}

	var output, typ string
	load := &cobra.Command{
		Use:   "load FILE",
		Short: "Load a calibration or marker board file into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			var t calibration.Type
			switch typ {
			case string(calibration.TypeProjectiveDevice), string(calibration.TypeMarkerBoard):
				t = calibration.Type(typ)
			default:
				return fmt.Errorf("unknown type %q (want pd or mb)", typ)
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			body, err := client.LoadConfiguration(ctxOf(c), args[0], output, t)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), body)
			return nil
		},
	}
	load.Flags().StringVar(&output, "output", "", "Store key receiving the parsed file (e.g. camera0:calibration)")
	load.Flags().StringVar(&typ, "type", string(calibration.TypeProjectiveDevice), "File type: pd (projective device) or mb (marker board)")
	_ = load.MarkFlagRequired("output")

	var local bool
	service := &cobra.Command{
		Use:   "service NAME ACTION",
		Short: "Start, stop, restart or query a producer service",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			if local {
				mgr, err := systemd.NewManager(ctxOf(c))
				if err != nil {
					return fmt.Errorf("systemd: %w", err)
				}
				defer mgr.Close()
				state, err := systemd.Run(ctxOf(c), mgr, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(c.OutOrStdout(), "%s: %s\n", systemd.UnitName(args[0]), state)
				return nil
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			body, err := client.Service(ctxOf(c), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), body)
			return nil
		},
	}

	service.Flags().BoolVar(&local, "local", false, "Control the systemd user unit on this machine instead of calling the service")

	cmd.AddCommand(load, service)
	return cmd
}

func ctxOf(c *cobra.Command) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
