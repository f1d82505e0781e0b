package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-journal/storage"
)

type exportOptions struct {
	*rootOptions
	To storage.Config
}

type exportResult struct {
	Backend string `json:"backend" yaml:"backend" msgpack:"backend"`
	Records int    `json:"records" yaml:"records" msgpack:"records"`
}

func newExportCommand(root *rootOptions) *cobra.Command {
	opts := &exportOptions{rootOptions: root}
	var backend, sync string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy a journal to another storage backend",
		Long: `Copy every record of the configured journal, in order, to another
backend. The records are copied byte for byte.

Examples:
  journal export -j run.wjnl --to sqlite --dsn file:runs.db --id run-1
  journal export -c journal.yaml --to file --path copy.wjnl
  journal export -j run.wjnl --to redis --redis-addr localhost:6379 --stream journal:run-1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.To.Backend = storage.Kind(backend)
			opts.To.Sync = storage.SyncMode(sync)
			return runExport(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&backend, "to", "", "target backend (memory|file|sqlite|redis)")
	f.StringVar(&opts.To.Path, "path", "", "target file path")
	f.StringVar(&sync, "sync", "", "target file sync mode (always|never)")
	f.StringVar(&opts.To.DSN, "dsn", "", "target sqlite dsn")
	f.StringVar(&opts.To.JournalID, "id", "", "target journal id")
	f.StringVar(&opts.To.Redis.Addr, "redis-addr", "", "target redis address")
	f.StringVar(&opts.To.Redis.Password, "redis-password", "", "target redis password")
	f.IntVar(&opts.To.Redis.DB, "redis-db", 0, "target redis database")
	f.StringVar(&opts.To.Redis.Stream, "stream", "", "target redis stream")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func runExport(cmd *cobra.Command, opts *exportOptions) error {
	ctx := cmd.Context()
	src, err := opts.openBackend(ctx, true)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := storage.Open(ctx, opts.To)
	if err != nil {
		return newExitError(exitCommandError, "open target", err)
	}
	defer dst.Close()

	res := exportResult{Backend: string(opts.To.Backend)}
	for rec, err := range src.Records(ctx) {
		if err != nil {
			return newExitError(exitFailure, "read journal", err)
		}
		if err := dst.Append(ctx, rec); err != nil {
			return newExitError(exitFailure, fmt.Sprintf("write record %d", res.Records), err)
		}
		res.Records++
	}
	opts.logger.Info("journal exported",
		zap.String("backend", res.Backend),
		zap.Int("records", res.Records))
	return render(cmd.OutOrStdout(), opts.Format, res, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "copied %d records to %s\n", res.Records, res.Backend)
		return err
	})
}
