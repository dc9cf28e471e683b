package segstore

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/iamNilotpal/segchangelog/pkg/ids"
	"github.com/iamNilotpal/segchangelog/pkg/segment"
	"github.com/iamNilotpal/segchangelog/pkg/serrors"
)

// recordKind distinguishes the three record shapes the append-only log can
// hold at any given offset.
type recordKind int

const (
	recordKindSegment recordKind = iota
	recordKindRewriteLastFlat
	recordKindClearNonMaster
)

// record is one decoded log entry, tagged by kind. Only the fields relevant
// to Kind are populated.
type record struct {
	Kind         recordKind
	Segment      segment.Segment // recordKindSegment, or the replacement for recordKindRewriteLastFlat
	PreviousHigh ids.Id          // recordKindRewriteLastFlat
}

// clearNonMasterLiteral is the exact 5-byte CLEAR_NON_MASTER record.
var clearNonMasterLiteral = segment.ClearNonMasterMagic()

// readRecord reads one record from r, dispatching on its leading byte. It
// returns io.EOF unchanged when called exactly at a record boundary with no
// more data, so callers can detect end-of-log during replay.
func readRecord(r *bufio.Reader) (record, error) {
	lead, err := r.Peek(1)
	if err != nil {
		return record{}, err
	}

	switch {
	case lead[0] == segment.RewriteLastFlatMagic():
		return readRewriteLastFlat(r)
	case lead[0] == clearNonMasterLiteral[0]:
		return readClearNonMaster(r)
	default:
		seg, err := segment.Decode(r)
		if err != nil {
			return record{}, err
		}
		return record{Kind: recordKindSegment, Segment: seg}, nil
	}
}

func readRewriteLastFlat(r *bufio.Reader) (record, error) {
	if _, err := r.ReadByte(); err != nil { // consume the 0xF0 marker
		return record{}, serrors.NewCorruptSegmentError(err, "truncated rewrite marker")
	}

	var levelAndHigh [9]byte
	if _, err := io.ReadFull(r, levelAndHigh[:]); err != nil {
		return record{}, serrors.NewCorruptSegmentError(err, "truncated rewrite-last-flat header")
	}
	if levelAndHigh[0] != 0 {
		return record{}, serrors.NewCorruptSegmentError(nil, "rewrite-last-flat previous level must be 0")
	}
	prevHigh := ids.Id(binary.BigEndian.Uint64(levelAndHigh[1:]))

	replacement, err := segment.Decode(r)
	if err != nil {
		return record{}, err
	}
	if !replacement.IsFlat() {
		return record{}, serrors.NewCorruptSegmentError(nil, "rewrite-last-flat replacement must be level 0")
	}

	return record{Kind: recordKindRewriteLastFlat, Segment: replacement, PreviousHigh: prevHigh}, nil
}

func readClearNonMaster(r *bufio.Reader) (record, error) {
	var buf [5]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return record{}, serrors.NewCorruptSegmentError(err, "truncated clear-non-master marker")
	}
	for i, b := range buf {
		if b != clearNonMasterLiteral[i] {
			return record{}, serrors.NewCorruptSegmentError(nil, "malformed clear-non-master marker")
		}
	}
	return record{Kind: recordKindClearNonMaster}, nil
}

// encodeRewriteLastFlat appends a REWRITE_LAST_FLAT record for previousHigh
// being replaced by replacement.
func encodeRewriteLastFlat(buf []byte, previousHigh ids.Id, replacement segment.Segment) []byte {
	buf = append(buf, segment.RewriteLastFlatMagic(), 0)
	var highBytes [8]byte
	binary.BigEndian.PutUint64(highBytes[:], uint64(previousHigh))
	buf = append(buf, highBytes[:]...)
	return segment.Encode(buf, replacement)
}

// encodeClearNonMaster appends the fixed CLEAR_NON_MASTER literal.
func encodeClearNonMaster(buf []byte) []byte {
	return append(buf, clearNonMasterLiteral...)
}
