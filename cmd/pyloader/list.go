package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"
)

func (a *app) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list [names...]",
		Short: "Print the tests found for names",
		Long: `List loads every name and prints the resulting suite tree. Load
failures are listed alongside the tests; use check to fail on them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.list(cmd.Context(), cmd.OutOrStdout(), args)
		},
	}
}

func (a *app) list(ctx context.Context, w io.Writer, names []string) error {
	renderer, err := a.renderer()
	if err != nil {
		return err
	}
	inv, err := a.inventory(ctx, names)
	if err != nil {
		return err
	}
	return renderer.Render(w, inv)
}
