package segstore

import (
	"bufio"
	"encoding/binary"
	"os"

	"github.com/iamNilotpal/segchangelog/pkg/segment"
)

// fileOffsetReader adapts os.File.ReadAt into an io.Reader starting at a
// fixed offset. Unlike Seek+Read, ReadAt does not share file-offset state
// with concurrent callers, so many goroutines can each read a segment at a
// different offset while the writer appends to the same *os.File under
// s.mu, with no coordination beyond what bbolt's own transaction isolation
// already provides for the offset lookup itself.
type fileOffsetReader struct {
	f   *os.File
	off int64
}

func (r *fileOffsetReader) Read(p []byte) (int, error) {
	n, err := r.f.ReadAt(p, r.off)
	r.off += int64(n)
	return n, err
}

// readSegmentAt decodes the segment record starting at the given byte
// offset in the log file.
func (s *Store) readSegmentAt(offset int64) (segment.Segment, error) {
	r := bufio.NewReader(&fileOffsetReader{f: s.logFile, off: offset})
	return segment.Decode(r)
}

// encodeOffset and decodeOffset convert a log byte offset to and from the
// 8-byte big-endian form stored as a level-head index value.
func encodeOffset(offset int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(offset))
	return buf[:]
}

func decodeOffset(v []byte) int64 {
	return int64(binary.BigEndian.Uint64(v))
}
