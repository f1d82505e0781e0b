package storage

import (
	"context"
	stderrors "errors"
	"io"
	"iter"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wippyai/wasm-journal/errors"
)

// followPoll is the fallback wake-up interval when no file events arrive.
var followPoll = 250 * time.Millisecond

// Follow yields the records of the journal file at path as they become
// complete, waiting for the writer between records. It needs no lock and
// may run alongside a writer in another process. Iteration ends without
// an error when ctx is done.
func Follow(ctx context.Context, path string) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(nil, errors.StorageIO("open "+path, err))
			return
		}
		defer f.Close()

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			yield(nil, errors.StorageIO("watch "+path, err))
			return
		}
		defer watcher.Close()
		if err := watcher.Add(path); err != nil {
			yield(nil, errors.StorageIO("watch "+path, err))
			return
		}

		ticker := time.NewTicker(followPoll)
		defer ticker.Stop()

		wait := func() bool {
			select {
			case <-ctx.Done():
				return false
			case ev, ok := <-watcher.Events:
				if !ok {
					return false
				}
				if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					yield(nil, errors.StorageIO("follow "+path, stderrors.New("journal file removed")))
					return false
				}
				return true
			case err, ok := <-watcher.Errors:
				if !ok {
					return false
				}
				yield(nil, errors.StorageIO("watch "+path, err))
				return false
			case <-ticker.C:
				return true
			}
		}

		// The header may not be written yet.
		for {
			buf := make([]byte, headerSize)
			n, err := f.ReadAt(buf, 0)
			if n == headerSize {
				if _, err := decodeHeader(buf); err != nil {
					yield(nil, errors.StorageIO("read header", err))
					return
				}
				break
			}
			if err != nil && !stderrors.Is(err, io.EOF) {
				yield(nil, errors.StorageIO("read header", err))
				return
			}
			if !wait() {
				return
			}
		}

		off := int64(headerSize)
		for {
			payload, next, err := readFrame(f, off)
			switch {
			case err == nil:
				if !yield(payload, nil) {
					return
				}
				off = next
				continue
			case stderrors.Is(err, io.EOF), stderrors.Is(err, errTorn):
				// writer has not finished the next frame
			case stderrors.Is(err, errChecksum):
				st, serr := f.Stat()
				if serr != nil {
					yield(nil, errors.StorageIO("stat "+path, serr))
					return
				}
				if st.Size() > next {
					yield(nil, errors.StorageIO("read frame", err))
					return
				}
			default:
				yield(nil, errors.StorageIO("read frame", err))
				return
			}
			if !wait() {
				return
			}
		}
	}
}
