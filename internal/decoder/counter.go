package decoder

import (
	"io"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/protolist/internal/observability"
	"github.com/danmuck/protolist/internal/protocol"
	"github.com/danmuck/protolist/internal/protocol/schema"
)

// Counter counts rows without decoding their contents. It walks the same
// row boundaries as Decoder, so both agree on the row count of a stream.
type Counter struct {
	stream
	total int64
}

func NewCounter(src io.Reader, msg schema.MessageType, opts Options) (*Counter, error) {
	st, err := newStream(src, msg, opts)
	if err != nil {
		return nil, err
	}
	return &Counter{stream: st}, nil
}

// CountRows advances over up to maxRows rows and returns how many it passed.
// Zero with a nil error means the stream is exhausted.
func (c *Counter) CountRows(maxRows int) (int, error) {
	n, err := c.countRows(maxRows)
	c.total += int64(n)
	if err != nil {
		kind := protocol.Kind(err)
		observability.RecordDecodeError(c.format, kind)
		log.Error().Err(err).Str("format", c.format).Str("kind", kind).Int64("rows", c.total).Msg("count failed")
		return n, err
	}
	return n, nil
}

// Total is the number of rows counted so far.
func (c *Counter) Total() int64 { return c.total }

func (c *Counter) SetReadBuffer(src io.Reader) error {
	return c.setReadBuffer(src)
}
