package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-journal/effector"
	"github.com/wippyai/wasm-journal/journal"
	"github.com/wippyai/wasm-journal/thread"
)

type replayedView struct {
	Error   string `json:"error,omitempty" yaml:"error,omitempty" msgpack:"error,omitempty"`
	Type    string `json:"type" yaml:"type" msgpack:"type"`
	Outcome string `json:"outcome" yaml:"outcome" msgpack:"outcome"`
	Index   int    `json:"index" yaml:"index" msgpack:"index"`
	Handle  uint32 `json:"handle,omitempty" yaml:"handle,omitempty" msgpack:"handle,omitempty"`
}

type replayResult struct {
	Entries   []replayedView `json:"entries" yaml:"entries" msgpack:"entries"`
	Succeeded int            `json:"succeeded" yaml:"succeeded" msgpack:"succeeded"`
	Failed    int            `json:"failed" yaml:"failed" msgpack:"failed"`
	Discarded int            `json:"discarded" yaml:"discarded" msgpack:"discarded"`
	Pending   int            `json:"pending_polls" yaml:"pending_polls" msgpack:"pending_polls"`
}

func newReplayCommand(root *rootOptions) *cobra.Command {
	var keepGoing bool
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Dry-run a replay pass without a guest",
		Long: `Run the journal through the replay path with a thread manager that
starts no guest code. Thread snapshots are checked for restorability
(main thread routing, entry point width) and polls are queued. The
report lists the outcome of every entry.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, root, keepGoing || root.cfg.Replay.ContinueOnError)
		},
	}
	cmd.Flags().BoolVar(&keepGoing, "continue-on-error", false, "keep going after a failed entry")
	return cmd
}

func runReplay(cmd *cobra.Command, opts *rootOptions, keepGoing bool) error {
	ctx := cmd.Context()
	b, err := opts.openBackend(ctx, true)
	if err != nil {
		return err
	}
	defer b.Close()

	threads := thread.NewManager(thread.LauncherFunc(func(context.Context, *thread.Thread, thread.SpawnRequest) error {
		return nil
	}))
	defer threads.Close()

	effOpts := []effector.Option{}
	if keepGoing {
		effOpts = append(effOpts, effector.WithContinueOnError())
	}
	eff, err := effector.New(nil, threads, effOpts...)
	if err != nil {
		return newExitError(exitCommandError, "create effector", err)
	}

	report, replayErr := eff.Replay(ctx, journal.Decode(b.Records(ctx)))
	res := replayResult{
		Entries:   make([]replayedView, 0, len(report.Entries)),
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
		Discarded: report.Discarded,
		Pending:   eff.Polls().Len(),
	}
	for _, r := range report.Entries {
		v := replayedView{Index: r.Index, Outcome: r.Outcome.String(), Handle: uint32(r.Handle)}
		if r.Entry != nil {
			v.Type = r.Entry.Type().String()
		}
		if r.Err != nil {
			v.Error = r.Err.Error()
		}
		res.Entries = append(res.Entries, v)
	}

	if err := render(cmd.OutOrStdout(), opts.Format, res, func(w io.Writer) error {
		for _, v := range res.Entries {
			line := fmt.Sprintf("%5d  %-12s %s", v.Index, v.Type, v.Outcome)
			if v.Error != "" {
				line += ": " + v.Error
			}
			fmt.Fprintln(w, line)
		}
		_, err := fmt.Fprintf(w, "%d succeeded, %d failed, %d discarded, %d polls queued\n",
			res.Succeeded, res.Failed, res.Discarded, res.Pending)
		return err
	}); err != nil {
		return err
	}
	if replayErr != nil {
		return newExitError(exitFailure, "replay stopped", replayErr)
	}
	if res.Failed > 0 {
		return newExitError(exitFailure, fmt.Sprintf("%d entries failed", res.Failed), nil)
	}
	return nil
}
