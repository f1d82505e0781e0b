package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-journal/journal"
	"github.com/wippyai/wasm-journal/wire"
)

const (
	exitSuccess      = 0
	exitFailure      = 1
	exitCommandError = 2
)

// exitError carries the process exit code for a command failure.
type exitError struct {
	Err     error
	Message string
	Code    int
}

func newExitError(code int, message string, err error) *exitError {
	return &exitError{Code: code, Message: message, Err: err}
}

func (e *exitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *exitError) Unwrap() error {
	return e.Err
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return exitFailure
}

type subscriptionView struct {
	Type      string `json:"type" yaml:"type" msgpack:"type"`
	Clock     string `json:"clock,omitempty" yaml:"clock,omitempty" msgpack:"clock,omitempty"`
	UserData  uint64 `json:"userdata" yaml:"userdata" msgpack:"userdata"`
	Timeout   uint64 `json:"timeout,omitempty" yaml:"timeout,omitempty" msgpack:"timeout,omitempty"`
	Precision uint64 `json:"precision,omitempty" yaml:"precision,omitempty" msgpack:"precision,omitempty"`
	Fd        uint32 `json:"fd,omitempty" yaml:"fd,omitempty" msgpack:"fd,omitempty"`
	Flags     uint16 `json:"flags,omitempty" yaml:"flags,omitempty" msgpack:"flags,omitempty"`
}

type eventView struct {
	Type     string `json:"type" yaml:"type" msgpack:"type"`
	UserData uint64 `json:"userdata" yaml:"userdata" msgpack:"userdata"`
	NBytes   uint64 `json:"nbytes,omitempty" yaml:"nbytes,omitempty" msgpack:"nbytes,omitempty"`
	Index    uint32 `json:"index" yaml:"index" msgpack:"index"`
	Errno    uint16 `json:"errno,omitempty" yaml:"errno,omitempty" msgpack:"errno,omitempty"`
	Flags    uint16 `json:"flags,omitempty" yaml:"flags,omitempty" msgpack:"flags,omitempty"`
}

// entryView is the printable form of one entry.
type entryView struct {
	Type          string             `json:"type" yaml:"type" msgpack:"type"`
	Start         string             `json:"start,omitempty" yaml:"start,omitempty" msgpack:"start,omitempty"`
	Width         string             `json:"width,omitempty" yaml:"width,omitempty" msgpack:"width,omitempty"`
	Digest        string             `json:"digest,omitempty" yaml:"digest,omitempty" msgpack:"digest,omitempty"`
	ExitCode      *uint32            `json:"exit_code,omitempty" yaml:"exit_code,omitempty" msgpack:"exit_code,omitempty"`
	Subscriptions []subscriptionView `json:"subscriptions,omitempty" yaml:"subscriptions,omitempty" msgpack:"subscriptions,omitempty"`
	Events        []eventView        `json:"events,omitempty" yaml:"events,omitempty" msgpack:"events,omitempty"`
	StackUpper    uint64             `json:"stack_upper,omitempty" yaml:"stack_upper,omitempty" msgpack:"stack_upper,omitempty"`
	StackLower    uint64             `json:"stack_lower,omitempty" yaml:"stack_lower,omitempty" msgpack:"stack_lower,omitempty"`
	Index         int                `json:"index" yaml:"index" msgpack:"index"`
	CallStack     int                `json:"call_stack,omitempty" yaml:"call_stack,omitempty" msgpack:"call_stack,omitempty"`
	MemoryStack   int                `json:"memory_stack,omitempty" yaml:"memory_stack,omitempty" msgpack:"memory_stack,omitempty"`
	StoreData     int                `json:"store_data,omitempty" yaml:"store_data,omitempty" msgpack:"store_data,omitempty"`
	Thread        uint32             `json:"thread" yaml:"thread" msgpack:"thread"`
}

func viewEntry(i int, e journal.Entry) entryView {
	v := entryView{Index: i, Type: e.Type().String()}
	switch en := e.(type) {
	case *journal.SetThread:
		v.Thread = uint32(en.ID)
		v.Start = en.Start.String()
		v.Width = en.Width.String()
		v.CallStack = len(en.CallStack)
		v.MemoryStack = len(en.MemoryStack)
		v.StoreData = len(en.StoreData)
		v.StackUpper = en.Layout.StackUpper
		v.StackLower = en.Layout.StackLower
	case *journal.CloseThread:
		v.Thread = uint32(en.ID)
		code := en.ExitCode
		v.ExitCode = &code
	case *journal.PollOneoff:
		v.Thread = uint32(en.Thread)
		for _, s := range en.Subscriptions {
			v.Subscriptions = append(v.Subscriptions, viewSubscription(s))
		}
		for j, ev := range en.Events {
			v.Events = append(v.Events, eventView{
				Index:    en.Ready[j],
				Type:     ev.Type.String(),
				UserData: uint64(ev.UserData),
				Errno:    uint16(ev.Error),
				NBytes:   ev.FdReadwrite.NBytes,
				Flags:    uint16(ev.FdReadwrite.Flags),
			})
		}
		if d, err := en.Digest(); err == nil {
			v.Digest = hex.EncodeToString(d[:])
		}
	}
	return v
}

func viewSubscription(s wire.Subscription) subscriptionView {
	v := subscriptionView{UserData: uint64(s.UserData), Type: s.Event.Type().String()}
	switch ev := s.Event.(type) {
	case wire.Clock:
		v.Clock = ev.ID.String()
		v.Timeout = uint64(ev.Timeout)
		v.Precision = uint64(ev.Precision)
		v.Flags = uint16(ev.Flags)
	case wire.Read:
		v.Fd = uint32(ev.Fd)
	case wire.Write:
		v.Fd = uint32(ev.Fd)
	}
	return v
}

// summary is the one-line text form of an entry.
func (v entryView) summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%5d  %-12s thread=%d", v.Index, v.Type, v.Thread)
	switch v.Type {
	case journal.EntryTypeSetThread.String():
		fmt.Fprintf(&b, " start=%s width=%s call_stack=%d memory_stack=%d store_data=%d",
			v.Start, v.Width, v.CallStack, v.MemoryStack, v.StoreData)
	case journal.EntryTypeCloseThread.String():
		if v.ExitCode != nil {
			fmt.Fprintf(&b, " exit_code=%d", *v.ExitCode)
		}
	case journal.EntryTypePollOneoff.String():
		fmt.Fprintf(&b, " subscriptions=%d events=%d", len(v.Subscriptions), len(v.Events))
	}
	return b.String()
}

// detail is the multi-line text form used by browse.
func (v entryView) detail() string {
	out, err := yaml.Marshal(v)
	if err != nil {
		return err.Error()
	}
	return string(out)
}

// render writes value in format. Text output uses text, which may be nil
// for values with no text form.
func render(w io.Writer, format string, value any, text func(io.Writer) error) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(value); err != nil {
			return err
		}
		return enc.Close()
	case "msgpack":
		return msgpack.NewEncoder(w).Encode(value)
	default:
		if text == nil {
			return fmt.Errorf("no text form for %T", value)
		}
		return text(w)
	}
}
