package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/specvital/pyloader/pkg/report"
)

// errLoadFailures makes check exit non-zero.
var errLoadFailures = errors.New("load failures found")

func (a *app) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check [names...]",
		Short: "Fail when any test cannot be loaded",
		Long: `Check loads every name and reports each load failure: unparsable
files, failed imports, unresolvable names and objects that are not tests.
The exit status is non-zero when at least one failure is found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := a.inventory(cmd.Context(), args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			renderer, err := a.renderer()
			if err != nil {
				return err
			}
			fail := color.New(color.FgRed)
			ok := color.New(color.FgGreen)
			if !renderer.Colored() {
				fail.DisableColor()
				ok.DisableColor()
			}

			failures := report.Failures(inv)
			for _, f := range failures {
				fail.Fprintf(out, "%s [%s]: %s\n", f.Name, f.Kind, f.Error)
			}
			if len(failures) > 0 {
				fmt.Fprintf(out, "FAILED (tests=%d, failures=%d)\n", inv.CountTests(), len(failures))
				return fmt.Errorf("%w: %d", errLoadFailures, len(failures))
			}
			ok.Fprintf(out, "ok: %d tests\n", inv.CountTests())
			return nil
		},
	}
}
