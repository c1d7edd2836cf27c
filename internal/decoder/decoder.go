package decoder

import (
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/protolist/internal/observability"
	"github.com/danmuck/protolist/internal/protocol"
	"github.com/danmuck/protolist/internal/protocol/envelope"
	"github.com/danmuck/protolist/internal/protocol/schema"
)

// DefaultBatchRows is the ReadBatch row ceiling when none is given.
const DefaultBatchRows = 65409

type Options struct {
	Mode            Mode
	FlattenWrappers bool
	Limits          envelope.Limits
	Allocator       memory.Allocator
	// Format labels metrics and logs.
	Format string
}

// Batch is one decoded record plus the destination positions no field
// filled. The caller owns Record and must Release it.
type Batch struct {
	Record  arrow.Record
	Missing []int
}

func (b *Batch) Release() {
	if b != nil && b.Record != nil {
		b.Record.Release()
	}
}

// Decoder reads rows of one message type from a byte stream into Arrow
// builders. A Decoder is not safe for concurrent use.
type Decoder struct {
	stream
	msg     schema.MessageType
	binding *Binding
	alloc   memory.Allocator

	cells   []cell
	bound   *array.RecordBuilder
	columns []array.Builder
	rows    int64
}

// New binds msg against dest and prepares to read rows from src.
func New(src io.Reader, msg schema.MessageType, dest *arrow.Schema, opts Options) (*Decoder, error) {
	st, err := newStream(src, msg, opts)
	if err != nil {
		return nil, err
	}
	binding, err := Bind(msg.Descriptor, dest, BindOptions{FlattenWrappers: opts.FlattenWrappers})
	if err != nil {
		observability.RecordDecodeError(opts.Format, protocol.Kind(err))
		return nil, err
	}
	alloc := opts.Allocator
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	log.Debug().
		Str("format", opts.Format).
		Str("message", string(msg.Descriptor.FullName())).
		Int("columns", dest.NumFields()).
		Ints("missing", binding.missing).
		Msg("decoder bound")
	return &Decoder{
		stream:  st,
		msg:     msg,
		binding: binding,
		alloc:   alloc,
		cells:   make([]cell, dest.NumFields()),
	}, nil
}

func newStream(src io.Reader, msg schema.MessageType, opts Options) (stream, error) {
	if msg.Descriptor == nil {
		return stream{}, &protocol.SchemaResolutionError{Reason: "no message type"}
	}
	if opts.Mode == ModeEnvelope && !msg.HasEnvelope() {
		return stream{}, &protocol.SchemaResolutionError{
			Locator: string(msg.Descriptor.FullName()),
			Reason:  "envelope mode needs a type resolved with its envelope",
		}
	}
	return stream{
		reader:   envelope.NewReader(src, opts.Limits),
		mode:     opts.Mode,
		rowField: msg.RowField,
		format:   opts.Format,
	}, nil
}

// ReadRow decodes the next row and appends it to b. populated marks the
// destination columns filled from the message; ok is false at end of stream.
// A row that fails to decode appends nothing.
func (d *Decoder) ReadRow(b *array.RecordBuilder) (populated []bool, ok bool, err error) {
	if b != d.bound {
		if err := d.bind(b); err != nil {
			return nil, false, d.fail(err)
		}
	}

	ok, err = d.enterRow()
	if err != nil {
		return nil, false, d.fail(err)
	}
	if !ok {
		return nil, false, nil
	}

	resetCells(d.cells)
	if err := decodeFields(d.reader, d.binding.root, d.cells); err != nil {
		return nil, false, d.fail(err)
	}
	if err := d.exitRow(false); err != nil {
		return nil, false, d.fail(err)
	}

	for i, ru := range d.binding.root.slots {
		if err := appendCell(d.columns[i], ru, &d.cells[i], d.binding.root.nullable[i]); err != nil {
			return nil, false, d.fail(&protocol.SinkWriteError{Column: i, Err: err})
		}
	}
	d.rows++
	return d.binding.Populated(), true, nil
}

// bind attaches the column builders of a fresh batch.
func (d *Decoder) bind(b *array.RecordBuilder) error {
	if b == nil {
		return &protocol.SinkWriteError{Column: -1, Err: errors.New("nil record builder")}
	}
	if !b.Schema().Equal(d.binding.schema) {
		return &protocol.SinkWriteError{
			Column: -1,
			Err:    fmt.Errorf("builder schema %s does not match bound schema %s", b.Schema(), d.binding.schema),
		}
	}
	d.bound = b
	d.columns = b.Fields()
	return nil
}

// ReadBatch decodes up to maxRows rows into a new record. It returns nil, nil
// once the stream is exhausted.
func (d *Decoder) ReadBatch(maxRows int) (*Batch, error) {
	if maxRows <= 0 {
		maxRows = DefaultBatchRows
	}
	b := array.NewRecordBuilder(d.alloc, d.binding.schema)
	defer b.Release()

	n := 0
	for n < maxRows {
		_, ok, err := d.ReadRow(b)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		n++
	}
	d.bound, d.columns = nil, nil
	if n == 0 {
		return nil, nil
	}
	observability.RecordRowsDecoded(d.format, n)
	return &Batch{Record: b.NewRecord(), Missing: d.binding.Missing()}, nil
}

// CountRows advances over up to maxRows rows without decoding them.
func (d *Decoder) CountRows(maxRows int) (int, error) {
	n, err := d.countRows(maxRows)
	if err != nil {
		return n, d.fail(err)
	}
	return n, nil
}

// SetReadBuffer hands the decoder a new source. It fails while a frame is
// partially read.
func (d *Decoder) SetReadBuffer(src io.Reader) error {
	return d.setReadBuffer(src)
}

func (d *Decoder) Missing() []int        { return d.binding.Missing() }
func (d *Decoder) Schema() *arrow.Schema { return d.binding.schema }
func (d *Decoder) RowsRead() int64       { return d.rows }

// EOF reports whether the source is exhausted between rows.
func (d *Decoder) EOF() bool { return d.reader.EOF() }

func (d *Decoder) fail(err error) error {
	kind := protocol.Kind(err)
	observability.RecordDecodeError(d.format, kind)
	log.Error().
		Err(err).
		Str("format", d.format).
		Str("kind", kind).
		Int64("offset", d.reader.Offset()).
		Int64("rows", d.rows).
		Msg("decode failed")
	return err
}
