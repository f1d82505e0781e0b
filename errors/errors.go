package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseEncode  Phase = "encode"  // safe variant to wire record
	PhaseDecode  Phase = "decode"  // wire record or journal bytes to values
	PhaseCapture Phase = "capture" // Save* effector path
	PhaseReplay  Phase = "replay"  // Apply* effector path
	PhaseStorage Phase = "storage" // storage collaborator
	PhaseSpawn   Phase = "spawn"   // thread-lifecycle collaborator
	PhaseConfig  Phase = "config"  // configuration loading
	PhaseHost    Phase = "host"    // host functions
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidDiscriminant Kind = "invalid_discriminant"
	KindUnsupportedRestore  Kind = "unsupported_restore_path"
	KindOverflow            Kind = "overflow"
	KindStorageIO           Kind = "storage_io"
	KindSpawn               Kind = "spawn"
	KindOutOfBounds         Kind = "out_of_bounds"
	KindInvalidData         Kind = "invalid_data"
	KindInvalidInput        Kind = "invalid_input"
	KindNotFound            Kind = "not_found"
	KindClosed              Kind = "closed"
	KindCanceled            Kind = "canceled"
)

// Error is the structured error type used throughout the journal
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Type   string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Type != "" {
		b.WriteString(": type ")
		b.WriteString(e.Type)
	}

	if e.Detail != "" {
		if e.Type != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target with an empty
// Phase matches errors of its Kind in any phase.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is, one per failure class of the journal.
var (
	ErrInvalidDiscriminant = &Error{Kind: KindInvalidDiscriminant}
	ErrUnsupportedRestore  = &Error{Kind: KindUnsupportedRestore}
	ErrAddressOverflow     = &Error{Kind: KindOverflow}
	ErrStorageIO           = &Error{Kind: KindStorageIO}
	ErrSpawn               = &Error{Kind: KindSpawn}
	ErrClosed              = &Error{Kind: KindClosed}
)

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Type sets the wire or entry type name
func (b *Builder) Type(t string) *Builder {
	b.err.Type = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidDiscriminant creates an error for a tag outside the closed set
// of known variants.
func InvalidDiscriminant(phase Phase, path []string, disc uint32, maxValid uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidDiscriminant,
		Path:   path,
		Detail: fmt.Sprintf("discriminant %d out of range (max %d)", disc, maxValid),
		Value:  disc,
	}
}

// UnsupportedRestore creates an error for a snapshot replayed through the
// wrong restoration procedure.
func UnsupportedRestore(detail string) *Error {
	return &Error{
		Phase:  PhaseReplay,
		Kind:   KindUnsupportedRestore,
		Detail: detail,
	}
}

// AddressOverflow creates an error for an address that does not fit the
// target address width.
func AddressOverflow(addr uint64, width uint8) *Error {
	return &Error{
		Phase:  PhaseReplay,
		Kind:   KindOverflow,
		Detail: fmt.Sprintf("address 0x%x does not fit in %d bits", addr, width),
		Value:  addr,
	}
}

// StorageIO wraps a failure of the storage collaborator.
func StorageIO(op string, cause error) *Error {
	return &Error{
		Phase:  PhaseStorage,
		Kind:   KindStorageIO,
		Detail: op,
		Cause:  cause,
	}
}

// Spawn wraps a failure of the thread-lifecycle collaborator.
func Spawn(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseSpawn,
		Kind:   KindSpawn,
		Detail: detail,
		Cause:  cause,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Closed creates an error for an operation on a closed component
func Closed(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s closed", component),
	}
}

// Canceled wraps a context cancellation observed before an operation began
func Canceled(phase Phase, cause error) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindCanceled,
		Cause: cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
