package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-journal/journal"
	"github.com/wippyai/wasm-journal/storage"
)

func newTailCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tail",
		Short: "Follow a file journal as it grows",
		Long: `Print entries of a file journal as they are appended, starting from the
first. Runs until interrupted or the file is removed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTail(cmd, root)
		},
	}
}

func runTail(cmd *cobra.Command, opts *rootOptions) error {
	sc := opts.cfg.StorageConfig()
	if sc.Backend != storage.KindFile {
		return newExitError(exitCommandError, "tail needs a file journal", nil)
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := cmd.OutOrStdout()
	i := 0
	for e, err := range journal.Decode(storage.Follow(ctx, sc.Path)) {
		if err != nil {
			return newExitError(exitFailure, "follow journal", err)
		}
		v := viewEntry(i, e)
		if err := render(w, opts.Format, v, func(w io.Writer) error {
			_, err := fmt.Fprintln(w, v.summary())
			return err
		}); err != nil {
			return err
		}
		i++
	}
	return nil
}
