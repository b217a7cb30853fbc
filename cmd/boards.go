package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/nectar/internal/config"
)

// CreateBoardsCmd creates the boards command group, which edits the boards
// file read by the server. A running server reloads the file on change.
func CreateBoardsCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "boards",
		Short: "Manage tracked marker boards",
	}
	cmd.PersistentFlags().StringVar(&file, "file", "boards.toml", "Boards file")

	list := &cobra.Command{
		Use:   "list",
		Short: "List boards",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			bm := config.NewBoardManager(file)
			if err := bm.Load(); err != nil {
				return err
			}
			w := tabwriter.NewWriter(c.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSIZE\tMARKERS\tCAMERAS\tFILTER\tDRAWING")
			for _, b := range bm.GetBoards() {
				markers := "store"
				if len(b.Markers) > 0 {
					markers = fmt.Sprint(len(b.Markers))
				}
				fmt.Fprintf(w, "%s\t%gx%g\t%s\t%s\t%v\t%v\n",
					b.Name, b.Width, b.Height, markers, strings.Join(b.Cameras, ","),
					b.Filter != nil, b.Drawing != nil && b.Drawing.Enabled)
			}
			return w.Flush()
		},
	}

	var add config.BoardConfig
	var filterFreq, filterCutoff, drawingDist float64
	var drawing bool
	addCmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add or replace a board whose model is read from the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			bm := config.NewBoardManager(file)
			if err := bm.Load(); err != nil {
				return err
			}
			b := add
			b.Name = args[0]
			if existing, ok := bm.GetBoard(b.Name); ok {
				b.Markers = existing.Markers
			}
			if filterFreq > 0 {
				b.Filter = &config.FilterConfig{Frequency: filterFreq, MinCutoff: filterCutoff}
			}
			if drawing {
				b.Drawing = &config.DrawingConfig{Enabled: true, MinDistance: drawingDist}
			}
			b.UpdatedAt = time.Now().UTC()
			if err := bm.AddBoard(b); err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "board %s saved to %s\n", b.Name, bm.Path())
			return nil
		},
	}
	addCmd.Flags().StringSliceVar(&add.Cameras, "cameras", []string{"camera0"}, "Cameras tracking the board")
	addCmd.Flags().Float64Var(&add.Width, "width", 0, "Board width in mm")
	addCmd.Flags().Float64Var(&add.Height, "height", 0, "Board height in mm")
	addCmd.Flags().Float64Var(&filterFreq, "filter-frequency", 0, "Pose filter frequency in Hz (0 disables)")
	addCmd.Flags().Float64Var(&filterCutoff, "filter-min-cutoff", 1, "Pose filter minimum cutoff")
	addCmd.Flags().BoolVar(&drawing, "drawing", false, "Ignore pose changes below the drawing distance")
	addCmd.Flags().Float64Var(&drawingDist, "drawing-distance", 2, "Drawing mode distance in mm")

	remove := &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a board",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			bm := config.NewBoardManager(file)
			if err := bm.Load(); err != nil {
				return err
			}
			if err := bm.RemoveBoard(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "board %s removed\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, addCmd, remove)
	return cmd
}
