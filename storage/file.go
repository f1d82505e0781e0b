package storage

import (
	"context"
	stderrors "errors"
	"io"
	"iter"
	"os"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-journal/errors"
)

// SyncMode controls when appended frames are flushed to stable storage.
type SyncMode string

const (
	// SyncAlways fsyncs after every append.
	SyncAlways SyncMode = "always"
	// SyncNever leaves flushing to the operating system.
	SyncNever SyncMode = "never"
)

// Valid reports whether m is a known mode. The empty mode means SyncAlways.
func (m SyncMode) Valid() bool {
	return m == "" || m == SyncAlways || m == SyncNever
}

// FileOptions configures OpenFile.
type FileOptions struct {
	Sync     SyncMode
	ReadOnly bool
}

// File is a journal stored as framed records in a single file. One
// writer per file is enforced with an advisory lock; any number of
// read-only handles may be open at the same time.
type File struct {
	f      *os.File
	path   string
	header fileHeader
	opts   FileOptions

	mu     sync.Mutex
	end    int64
	closed bool
}

var _ Backend = (*File)(nil)

// OpenFile opens or creates the journal file at path. A writable open
// takes the file lock and truncates a torn trailing frame left by an
// interrupted append. A checksum failure before the tail is reported as
// corruption.
func OpenFile(path string, opts FileOptions) (*File, error) {
	if !opts.Sync.Valid() {
		return nil, errors.InvalidInput(errors.PhaseStorage, "unknown sync mode "+string(opts.Sync))
	}
	if opts.Sync == "" {
		opts.Sync = SyncAlways
	}

	flag := os.O_RDWR | os.O_CREATE
	if opts.ReadOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, errors.StorageIO("open "+path, err)
	}

	jf := &File{f: f, path: path, opts: opts}
	if err := jf.init(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return jf, nil
}

func (jf *File) init() error {
	if !jf.opts.ReadOnly {
		if err := lockFile(jf.f); err != nil {
			return errors.StorageIO("lock "+jf.path, err)
		}
	}

	st, err := jf.f.Stat()
	if err != nil {
		return jf.fail("stat", err)
	}

	if st.Size() == 0 {
		if jf.opts.ReadOnly {
			return jf.fail("open", errors.InvalidData(errors.PhaseStorage, nil, "empty journal file"))
		}
		jf.header = fileHeader{ID: uuid.New(), Version: fileVersion}
		if _, err := jf.f.WriteAt(jf.header.encode(), 0); err != nil {
			return jf.fail("write header", err)
		}
		if err := jf.f.Sync(); err != nil {
			return jf.fail("sync header", err)
		}
		jf.end = headerSize
		Logger().Debug("created journal file",
			zap.String("path", jf.path),
			zap.Stringer("id", jf.header.ID))
		return nil
	}

	buf := make([]byte, headerSize)
	if _, err := jf.f.ReadAt(buf, 0); err != nil && !stderrors.Is(err, io.EOF) {
		return jf.fail("read header", err)
	}
	if jf.header, err = decodeHeader(buf); err != nil {
		return jf.fail("read header", err)
	}

	end, torn, err := scanFrames(jf.f, st.Size())
	if err != nil {
		return jf.fail("scan", err)
	}
	jf.end = end
	if torn && !jf.opts.ReadOnly {
		if err := jf.f.Truncate(end); err != nil {
			return jf.fail("truncate torn frame", err)
		}
		if err := jf.f.Sync(); err != nil {
			return jf.fail("sync", err)
		}
		Logger().Warn("truncated torn journal frame",
			zap.String("path", jf.path),
			zap.Int64("offset", end),
			zap.Int64("dropped", st.Size()-end))
	}
	return nil
}

func (jf *File) fail(op string, err error) error {
	if !jf.opts.ReadOnly {
		_ = unlockFile(jf.f)
	}
	return errors.StorageIO(op+" "+jf.path, err)
}

// scanFrames walks the frames after the header and returns the end of
// the last good one. torn is set when the file ends in an incomplete or
// mismatched final frame.
func scanFrames(r io.ReaderAt, size int64) (end int64, torn bool, err error) {
	off := int64(headerSize)
	for {
		_, next, err := readFrame(r, off)
		switch {
		case err == nil:
			off = next
		case stderrors.Is(err, io.EOF):
			return off, false, nil
		case stderrors.Is(err, errTorn):
			return off, true, nil
		case stderrors.Is(err, errChecksum) && next >= size:
			return off, true, nil
		case stderrors.Is(err, errChecksum):
			return off, false, errors.InvalidData(errors.PhaseStorage, nil, "corrupt frame before end of journal")
		default:
			return off, false, err
		}
	}
}

// ID returns the journal identifier stored in the file header.
func (jf *File) ID() uuid.UUID {
	return jf.header.ID
}

// Path returns the file path.
func (jf *File) Path() string {
	return jf.path
}

// Size returns the offset one past the last complete frame.
func (jf *File) Size() int64 {
	jf.mu.Lock()
	defer jf.mu.Unlock()
	return jf.end
}

// Append writes record as a single frame. A failed write or sync is
// rolled back so the file never ends in a partial frame written by this
// process.
func (jf *File) Append(ctx context.Context, record []byte) error {
	if err := ctx.Err(); err != nil {
		return errors.Canceled(errors.PhaseStorage, err)
	}
	if len(record) > MaxRecordSize {
		return errors.InvalidInput(errors.PhaseStorage, "record exceeds maximum size")
	}
	frame := encodeFrame(record)

	jf.mu.Lock()
	defer jf.mu.Unlock()
	if jf.closed {
		return errors.Closed(errors.PhaseStorage, "journal file")
	}
	if jf.opts.ReadOnly {
		return errors.InvalidInput(errors.PhaseStorage, "journal file opened read-only")
	}

	if _, err := jf.f.WriteAt(frame, jf.end); err != nil {
		jf.rollback()
		return errors.StorageIO("write frame", err)
	}
	if jf.opts.Sync == SyncAlways {
		if err := jf.f.Sync(); err != nil {
			jf.rollback()
			return errors.StorageIO("sync", err)
		}
	}
	jf.end += int64(len(frame))
	return nil
}

func (jf *File) rollback() {
	if err := jf.f.Truncate(jf.end); err != nil {
		Logger().Error("journal rollback failed",
			zap.String("path", jf.path),
			zap.Int64("offset", jf.end),
			zap.Error(err))
	}
}

// Records yields the records complete when iteration starts.
func (jf *File) Records(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		jf.mu.Lock()
		end, closed := jf.end, jf.closed
		jf.mu.Unlock()
		if closed {
			yield(nil, errors.Closed(errors.PhaseStorage, "journal file"))
			return
		}

		off := int64(headerSize)
		for off < end {
			if err := ctx.Err(); err != nil {
				yield(nil, errors.Canceled(errors.PhaseStorage, err))
				return
			}
			payload, next, err := readFrame(jf.f, off)
			if err != nil {
				yield(nil, errors.StorageIO("read frame", err))
				return
			}
			if !yield(payload, nil) {
				return
			}
			off = next
		}
	}
}

// Follow yields every record of the file and then keeps yielding records
// as they are appended, until ctx is done.
func (jf *File) Follow(ctx context.Context) iter.Seq2[[]byte, error] {
	return Follow(ctx, jf.path)
}

// Close releases the lock and the file handle.
func (jf *File) Close() error {
	jf.mu.Lock()
	defer jf.mu.Unlock()
	if jf.closed {
		return nil
	}
	jf.closed = true
	if !jf.opts.ReadOnly {
		_ = unlockFile(jf.f)
	}
	if err := jf.f.Close(); err != nil {
		return errors.StorageIO("close "+jf.path, err)
	}
	return nil
}
