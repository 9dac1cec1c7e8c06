package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/specvital/pyloader/pkg/loader"
	"github.com/specvital/pyloader/pkg/watch"
)

func (a *app) watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [dir]",
		Short: "List tests again whenever sources change",
		Long: `Watch lists the tests of dir (default: the working directory), then
lists them again each time a Python source or doctest file below dir
changes. Stop it with Ctrl-C.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.WorkingDir
			var names []string
			if len(args) > 0 {
				abs, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				dir, names = abs, []string{abs}
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.watch(ctx, cmd.OutOrStdout(), dir, names)
		},
	}
}

// watch lists names, then lists them again after every settled batch of
// changes below dir until ctx is done.
func (a *app) watch(ctx context.Context, out io.Writer, dir string, names []string) error {
	relist := func(ctx context.Context) {
		if err := a.list(ctx, out, names); err != nil && !loader.IsInterrupt(err) {
			a.log.Error("list failed", zap.Error(err))
		}
	}

	relist(ctx)

	w, err := watch.New(dir, func(ctx context.Context, paths []string) {
		a.log.Info("changes detected", zap.Int("files", len(paths)))
		fmt.Fprintln(out)
		relist(ctx)
	},
		watch.WithDebounce(a.cfg.Watch.Debounce),
		watch.WithFilter(a.watchFilter()),
		watch.WithLogger(a.log.Named("watch")),
	)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	<-w.Done()
	return nil
}

// watchFilter accepts Python sources and, when doctests are enabled, the
// doctest extensions.
func (a *app) watchFilter() func(string) bool {
	exts := map[string]bool{".py": true}
	if a.cfg.Doctest.Enabled {
		for _, ext := range a.cfg.Doctest.Extensions {
			exts[strings.ToLower(ext)] = true
		}
	}
	return func(path string) bool {
		return exts[strings.ToLower(filepath.Ext(path))]
	}
}
