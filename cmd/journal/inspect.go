package main

import (
	"fmt"
	"io"
	"iter"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-journal/journal"
)

type inspectOptions struct {
	*rootOptions
	Type  string
	Limit int
}

func newInspectCommand(root *rootOptions) *cobra.Command {
	opts := &inspectOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List journal entries",
		Long: `List the entries of a journal in append order.

Examples:
  journal inspect -j run.wjnl
  journal inspect -j run.wjnl --type poll_oneoff --format json
  journal inspect -c journal.yaml --format msgpack > entries.msgpack`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Type, "type", "", "only show entries of this type")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "stop after this many entries")
	return cmd
}

func runInspect(cmd *cobra.Command, opts *inspectOptions) error {
	ctx := cmd.Context()
	b, err := opts.openBackend(ctx, true)
	if err != nil {
		return err
	}
	defer b.Close()

	views, err := collectViews(journal.Decode(b.Records(ctx)), opts.Type, opts.Limit)
	if err != nil {
		return newExitError(exitFailure, "read journal", err)
	}
	return render(cmd.OutOrStdout(), opts.Format, views, func(w io.Writer) error {
		for _, v := range views {
			if _, err := fmt.Fprintln(w, v.summary()); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(w, "%d entries\n", len(views))
		return err
	})
}

func collectViews(entries iter.Seq2[journal.Entry, error], typ string, limit int) ([]entryView, error) {
	views := []entryView{}
	i := 0
	for e, err := range entries {
		if err != nil {
			return views, err
		}
		if typ == "" || e.Type().String() == typ {
			views = append(views, viewEntry(i, e))
			if limit > 0 && len(views) >= limit {
				break
			}
		}
		i++
	}
	return views, nil
}
