package envelope

import (
	"errors"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

var ErrFrameTooLarge = errors.New("envelope: frame too large")

// Writer writes frames in the layout Reader consumes.
type Writer struct {
	w      io.Writer
	limits Limits
	buf    []byte
}

func NewWriter(w io.Writer, limits Limits) *Writer {
	if limits.MaxFrameBytes == 0 {
		limits.MaxFrameBytes = DefaultLimits().MaxFrameBytes
	}
	return &Writer{w: w, limits: limits}
}

// WriteMessage writes msg as one length-delimited frame.
func (w *Writer) WriteMessage(msg []byte) error {
	if uint64(len(msg)) > w.limits.MaxFrameBytes {
		return ErrFrameTooLarge
	}
	w.buf = protowire.AppendVarint(w.buf[:0], uint64(len(msg)))
	if _, err := w.w.Write(w.buf); err != nil {
		return err
	}
	if len(msg) == 0 {
		return nil
	}
	_, err := w.w.Write(msg)
	return err
}

// WriteEnvelope writes one envelope frame holding rows as repeated
// occurrences of field.
func (w *Writer) WriteEnvelope(field protowire.Number, rows [][]byte) error {
	var content []byte
	for _, row := range rows {
		content = AppendRow(content, field, row)
	}
	return w.WriteMessage(content)
}

// AppendRow appends row to an envelope body as one occurrence of field.
func AppendRow(b []byte, field protowire.Number, row []byte) []byte {
	b = protowire.AppendTag(b, field, protowire.BytesType)
	return protowire.AppendBytes(b, row)
}
