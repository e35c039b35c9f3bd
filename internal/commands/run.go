package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Kerhoff/kasa/internal/service"
)

var jobNames = []string{
	service.RunDailyJobs,
	service.RunMonthlyJobs,
	service.RunCycle,
	service.RunRecurring,
	service.RunWedding,
	service.RunBarMitzvah,
}

func newRunCommand() *cobra.Command {
	var inMemory bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:       fmt.Sprintf("run <%s>", strings.Join(jobNames, "|")),
		Short:     "Run an automation job once for every owner",
		Long:      "Run an automation job once for every owner. Manual runs ignore the automation toggles and are safe to repeat.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: jobNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(inMemory)
			if err != nil {
				return err
			}
			defer a.Close()

			svc := a.service(nil)
			if err := a.applySeed(cmd.Context(), svc); err != nil {
				return err
			}

			summaries, runErr := svc.RunNamed(cmd.Context(), args[0])
			reports := make([]service.Report, 0, len(summaries))
			for _, sum := range summaries {
				reports = append(reports, sum.Report())
			}
			if err := writeReports(cmd.OutOrStdout(), reports, asJSON); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&inMemory, "memory", false, "run against an in-memory ledger loaded from the seed file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the reports as JSON")

	return cmd
}

func writeReports(w io.Writer, reports []service.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}
	if len(reports) == 0 {
		_, err := fmt.Fprintln(w, "nothing to run")
		return err
	}
	for _, r := range reports {
		status := fmt.Sprintf("%d succeeded, %d skipped, %d failed", r.Succeeded, r.Skipped, r.Failed)
		switch {
		case r.Disabled:
			status = "disabled"
		case r.Cancelled:
			status += " (cancelled)"
		}
		if _, err := fmt.Fprintf(w, "%-16s owner=%d run=%s %s\n", r.Job, r.OwnerID, r.RunID, status); err != nil {
			return err
		}
		for _, e := range r.Errors {
			if _, err := fmt.Fprintf(w, "  error: %s\n", e); err != nil {
				return err
			}
		}
	}
	return nil
}
