package storage

import (
	"bytes"
	"encoding/binary"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// File format:
//
//	header  "WJNL" | version u16 | reserved u16 | journal id (16 bytes)
//	frame   length u32 | blake2b-128(payload) | payload
//
// All integers are little-endian.
const (
	fileMagic     = "WJNL"
	fileVersion   = 1
	headerSize    = 4 + 2 + 2 + 16
	checksumSize  = 16
	frameOverhead = 4 + checksumSize

	// MaxRecordSize bounds a single record.
	MaxRecordSize = 64 << 20
)

var (
	// ErrLocked is returned when another writer holds the journal file.
	ErrLocked = stderrors.New("storage: journal file locked by another writer")

	errTorn     = stderrors.New("torn frame")
	errChecksum = stderrors.New("checksum mismatch")
)

type fileHeader struct {
	ID      uuid.UUID
	Version uint16
}

func (h fileHeader) encode() []byte {
	buf := make([]byte, headerSize)
	copy(buf, fileMagic)
	binary.LittleEndian.PutUint16(buf[4:], h.Version)
	copy(buf[8:], h.ID[:])
	return buf
}

func decodeHeader(buf []byte) (fileHeader, error) {
	if len(buf) < headerSize {
		return fileHeader{}, fmt.Errorf("header: %w", io.ErrUnexpectedEOF)
	}
	if !bytes.Equal(buf[:4], []byte(fileMagic)) {
		return fileHeader{}, fmt.Errorf("header: bad magic %q", buf[:4])
	}
	h := fileHeader{Version: binary.LittleEndian.Uint16(buf[4:])}
	if h.Version != fileVersion {
		return fileHeader{}, fmt.Errorf("header: unsupported version %d", h.Version)
	}
	copy(h.ID[:], buf[8:headerSize])
	return h, nil
}

func checksum(payload []byte) [checksumSize]byte {
	h, err := blake2b.New(checksumSize, nil)
	if err != nil {
		panic(err)
	}
	h.Write(payload)
	var sum [checksumSize]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

func encodeFrame(payload []byte) []byte {
	buf := make([]byte, frameOverhead+len(payload))
	binary.LittleEndian.PutUint32(buf, uint32(len(payload)))
	sum := checksum(payload)
	copy(buf[4:], sum[:])
	copy(buf[frameOverhead:], payload)
	return buf
}

// readFrame reads the frame at off. It returns errTorn when the file ends
// inside the frame and errChecksum when the payload does not match; next
// is the declared end of the frame in both cases.
func readFrame(r io.ReaderAt, off int64) (payload []byte, next int64, err error) {
	var hdr [frameOverhead]byte
	n, err := r.ReadAt(hdr[:], off)
	switch {
	case n == 0 && stderrors.Is(err, io.EOF):
		return nil, off, io.EOF
	case n < frameOverhead && err != nil && !stderrors.Is(err, io.EOF):
		return nil, off, err
	case n < frameOverhead:
		return nil, off, errTorn
	}

	size := binary.LittleEndian.Uint32(hdr[:4])
	next = off + frameOverhead + int64(size)
	if size > MaxRecordSize {
		return nil, next, fmt.Errorf("frame at %d: length %d exceeds limit: %w", off, size, errChecksum)
	}
	payload = make([]byte, size)
	if size > 0 {
		n, err = r.ReadAt(payload, off+frameOverhead)
		if n < int(size) {
			if err == nil || stderrors.Is(err, io.EOF) {
				return nil, next, errTorn
			}
			return nil, off, err
		}
	}
	if checksum(payload) != [checksumSize]byte(hdr[4:]) {
		return nil, next, errChecksum
	}
	return payload, next, nil
}
