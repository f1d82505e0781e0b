package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/blake2b"

	"github.com/wippyai/wasm-journal/journal"
)

type verifyOptions struct {
	*rootOptions
	Digest string
}

// problem is one verification finding.
type problem struct {
	Reason string `json:"reason" yaml:"reason" msgpack:"reason"`
	Index  int    `json:"index" yaml:"index" msgpack:"index"`
}

type verifyResult struct {
	Digest   string    `json:"digest" yaml:"digest" msgpack:"digest"`
	Problems []problem `json:"problems" yaml:"problems" msgpack:"problems"`
	Entries  int       `json:"entries" yaml:"entries" msgpack:"entries"`
	OK       bool      `json:"ok" yaml:"ok" msgpack:"ok"`
}

func newVerifyCommand(root *rootOptions) *cobra.Command {
	opts := &verifyOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that every entry decodes and is stored canonically",
		Long: `Decode every record, re-encode it and compare the bytes. A record that
differs from its re-encoding carries non-zero padding or a non-minimal
encoding. Poll entries are also checked for events that do not answer the
subscription they point at.

The journal digest is a BLAKE2b-256 hash over all records in order. Pass
--digest to compare it with a known value.

Exit codes:
  0 - journal is clean
  1 - problems found or digest mismatch
  2 - command error`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Digest, "digest", "", "expected journal digest (hex)")
	return cmd
}

func runVerify(cmd *cobra.Command, opts *verifyOptions) error {
	ctx := cmd.Context()
	b, err := opts.openBackend(ctx, true)
	if err != nil {
		return err
	}
	defer b.Close()

	h, _ := blake2b.New256(nil)
	res := verifyResult{Problems: []problem{}}
	for rec, err := range b.Records(ctx) {
		if err != nil {
			return newExitError(exitFailure, "read journal", err)
		}
		h.Write(rec)
		res.Problems = append(res.Problems, checkRecord(res.Entries, rec)...)
		res.Entries++
	}
	res.Digest = hex.EncodeToString(h.Sum(nil))
	if opts.Digest != "" && !strings.EqualFold(opts.Digest, res.Digest) {
		res.Problems = append(res.Problems, problem{Index: -1, Reason: "journal digest " + res.Digest + " does not match " + opts.Digest})
	}
	res.OK = len(res.Problems) == 0

	if err := render(cmd.OutOrStdout(), opts.Format, res, func(w io.Writer) error {
		for _, p := range res.Problems {
			if p.Index >= 0 {
				fmt.Fprintf(w, "entry %d: %s\n", p.Index, p.Reason)
			} else {
				fmt.Fprintln(w, p.Reason)
			}
		}
		_, err := fmt.Fprintf(w, "%d entries, %d problems, digest %s\n", res.Entries, len(res.Problems), res.Digest)
		return err
	}); err != nil {
		return err
	}
	if !res.OK {
		return newExitError(exitFailure, fmt.Sprintf("%d problems found", len(res.Problems)), nil)
	}
	return nil
}

func checkRecord(i int, rec []byte) []problem {
	e, err := journal.UnmarshalEntry(rec)
	if err != nil {
		return []problem{{Index: i, Reason: "decode: " + err.Error()}}
	}
	var out []problem
	canon, err := journal.MarshalEntry(e)
	if err != nil {
		out = append(out, problem{Index: i, Reason: "re-encode: " + err.Error()})
	} else if !bytes.Equal(canon, rec) {
		out = append(out, problem{Index: i, Reason: "record is not canonical"})
	}
	if p, ok := e.(*journal.PollOneoff); ok {
		for j, idx := range p.Ready {
			sub := p.Subscriptions[idx]
			ev := p.Events[j]
			if ev.UserData != sub.UserData || ev.Type != sub.Event.Type() {
				out = append(out, problem{Index: i, Reason: fmt.Sprintf("event %d does not answer subscription %d", j, idx)})
			}
		}
	}
	return out
}
