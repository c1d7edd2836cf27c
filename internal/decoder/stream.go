package decoder

import (
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/danmuck/protolist/internal/observability"
	"github.com/danmuck/protolist/internal/protocol/envelope"
)

// Mode selects how rows are laid out in the byte stream.
type Mode int

const (
	// ModeEnvelope reads length-delimited envelope frames; every occurrence
	// of the envelope's row field is one row.
	ModeEnvelope Mode = iota
	// ModeDelimited reads one row per length-delimited frame.
	ModeDelimited
	// ModeSingle reads the whole input as one undelimited row.
	ModeSingle
)

func (m Mode) String() string {
	switch m {
	case ModeEnvelope:
		return "envelope"
	case ModeDelimited:
		return "delimited"
	case ModeSingle:
		return "single"
	default:
		return "unknown"
	}
}

// stream walks row boundaries. Decoder and Counter share it so both land on
// the same frames.
type stream struct {
	reader   *envelope.Reader
	mode     Mode
	rowField protowire.Number
	format   string
	started  bool
}

// enterRow positions the reader at the first field of the next row message.
// It returns false once the stream is exhausted.
func (s *stream) enterRow() (bool, error) {
	r := s.reader
	switch s.mode {
	case ModeSingle:
		if s.started {
			return false, nil
		}
		s.started = true
		if err := r.StartMessage(false); err != nil {
			return false, err
		}
		if !r.InMessage() {
			return false, nil
		}
		observability.RecordFrame(s.format)
		return true, nil

	case ModeDelimited:
		if r.EOF() {
			return false, r.EndMessage(false)
		}
		if err := r.StartMessage(true); err != nil {
			return false, err
		}
		if !r.InMessage() {
			return false, nil
		}
		observability.RecordFrame(s.format)
		return true, nil
	}

	for {
		if !r.InMessage() {
			if r.EOF() {
				return false, r.EndMessage(false)
			}
			if err := r.StartMessage(true); err != nil {
				return false, err
			}
			if !r.InMessage() {
				return false, nil
			}
			observability.RecordFrame(s.format)
			continue
		}
		num, ok, err := r.ReadFieldNumber()
		if err != nil {
			return false, err
		}
		if !ok {
			if err := r.EndMessage(false); err != nil {
				return false, err
			}
			continue
		}
		if num != s.rowField || r.WireType() != protowire.BytesType {
			if err := r.SkipField(); err != nil {
				return false, err
			}
			continue
		}
		if err := r.StartNestedMessage(); err != nil {
			return false, err
		}
		return true, nil
	}
}

// exitRow leaves the row entered by enterRow. With skip set the unread
// contents of the row are discarded without complaint.
func (s *stream) exitRow(skip bool) error {
	if s.mode == ModeEnvelope {
		return s.reader.EndNestedMessage()
	}
	return s.reader.EndMessage(skip)
}

func (s *stream) countRows(maxRows int) (int, error) {
	n := 0
	for n < maxRows {
		ok, err := s.enterRow()
		if err != nil {
			return n, err
		}
		if !ok {
			break
		}
		if err := s.exitRow(true); err != nil {
			return n, err
		}
		n++
	}
	observability.RecordRowsCounted(s.format, n)
	return n, nil
}

func (s *stream) setReadBuffer(src io.Reader) error {
	if err := s.reader.SetReadBuffer(src); err != nil {
		return err
	}
	s.started = false
	return nil
}
