package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kerhoff/kasa/internal/hebrew"
)

func newHebrewCommand() *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "hebrew <YYYY-MM-DD>",
		Short: "Convert a Gregorian date to the Hebrew calendar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := hebrew.ParseGregorian(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, d)

			if bm, ok := hebrew.BarMitzvahDate(d); ok {
				fmt.Fprintf(out, "bar mitzvah: %s\n", bm.Format("2006-01-02"))
			}
			if asOf != "" {
				when, err := time.Parse("2006-01-02", asOf)
				if err != nil {
					return fmt.Errorf("--as-of must look like 2024-06-01: %w", err)
				}
				if age, ok := hebrew.Age(d, when); ok {
					fmt.Fprintf(out, "hebrew age on %s: %d\n", asOf, age)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "also print the Hebrew age on this Gregorian date")

	return cmd
}
