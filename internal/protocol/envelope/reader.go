package envelope

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/danmuck/protolist/internal/protocol"
)

const maxVarintLen = 10

var ErrFrameOpen = errors.New("envelope: read buffer switched while a frame is open")

// Limits constrains frame decode memory use and recursion. MaxFrameBytes
// above math.MaxInt64 is clamped.
type Limits struct {
	MaxFrameBytes uint64
	MaxDepth      int
}

func DefaultLimits() Limits {
	return Limits{
		MaxFrameBytes: 64 * 1024 * 1024,
		MaxDepth:      100,
	}
}

// Reader reads one length-prefixed frame at a time and exposes the protobuf
// tag-level primitives inside it. A Reader is the stream cursor of exactly one
// decoder or counter and is not safe for concurrent use.
type Reader struct {
	src    *bufio.Reader
	limits Limits

	frame []byte
	pos   int
	ends  []int
	open  bool
	eof   bool

	field    protowire.Number
	wireType protowire.Type
	tagged   bool

	consumed int64
	base     int64
	fault    error
}

func NewReader(src io.Reader, limits Limits) *Reader {
	if limits.MaxFrameBytes == 0 {
		limits.MaxFrameBytes = DefaultLimits().MaxFrameBytes
	}
	if limits.MaxFrameBytes > math.MaxInt64 {
		limits.MaxFrameBytes = math.MaxInt64
	}
	if limits.MaxDepth <= 0 {
		limits.MaxDepth = DefaultLimits().MaxDepth
	}
	return &Reader{src: bufio.NewReader(src), limits: limits}
}

// StartMessage opens the next frame. With delimited set the frame is a varint
// byte length followed by that many bytes, otherwise the frame is everything
// left in the source. An exhausted source establishes end-of-stream and leaves
// no frame open.
func (r *Reader) StartMessage(delimited bool) error {
	if r.open {
		return r.framing("message already open", nil)
	}
	if !delimited {
		return r.startUndelimited()
	}

	prefix, err := r.src.Peek(maxVarintLen)
	if len(prefix) == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			r.eof = true
			return nil
		}
		return r.fail("read length prefix", err)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return r.fail("read length prefix", err)
	}
	length, n := protowire.ConsumeVarint(prefix)
	if n < 0 {
		return r.fail("malformed length prefix", protowire.ParseError(n))
	}
	if length > r.limits.MaxFrameBytes {
		return r.fail(fmt.Sprintf("frame length %d exceeds limit %d", length, r.limits.MaxFrameBytes), nil)
	}
	if _, err := r.src.Discard(n); err != nil {
		return r.fail("read length prefix", err)
	}
	r.consumed += int64(n)

	data := make([]byte, length)
	if length > 0 {
		read, err := io.ReadFull(r.src, data)
		r.consumed += int64(read)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return r.fail(fmt.Sprintf("declared length %d overruns available bytes (%d read)", length, read), io.ErrUnexpectedEOF)
			}
			return r.fail("read frame", err)
		}
	}
	r.setFrame(data)
	return nil
}

func (r *Reader) startUndelimited() error {
	limit := int64(r.limits.MaxFrameBytes)
	window := limit
	if window < math.MaxInt64 {
		window++
	}
	data, err := io.ReadAll(io.LimitReader(r.src, window))
	if err != nil {
		return r.fail("read message", err)
	}
	r.consumed += int64(len(data))
	if int64(len(data)) > limit {
		return r.fail(fmt.Sprintf("message exceeds limit %d", limit), nil)
	}
	if len(data) == 0 {
		r.eof = true
		return nil
	}
	r.setFrame(data)
	return nil
}

func (r *Reader) setFrame(data []byte) {
	r.frame = data
	r.pos = 0
	r.ends = r.ends[:0]
	r.open = true
	r.eof = false
	r.tagged = false
	r.base = r.consumed - int64(len(data))
}

// ReadFieldNumber returns the next field tag at the current nesting level, or
// false at the end of the current message. An unconsumed payload of the
// previous field is skipped first.
func (r *Reader) ReadFieldNumber() (protowire.Number, bool, error) {
	if !r.open {
		return 0, false, nil
	}
	if r.tagged {
		if err := r.SkipField(); err != nil {
			return 0, false, err
		}
	}
	end := r.end()
	if r.pos >= end {
		return 0, false, nil
	}
	num, typ, n := protowire.ConsumeTag(r.frame[r.pos:end])
	if n < 0 {
		return 0, false, r.fail("malformed field tag", protowire.ParseError(n))
	}
	if typ == protowire.StartGroupType || typ == protowire.EndGroupType {
		return 0, false, r.fail(fmt.Sprintf("field %d uses unsupported group encoding", num), nil)
	}
	r.pos += n
	r.field = num
	r.wireType = typ
	r.tagged = true
	return num, true, nil
}

// WireType is the wire type of the field tag most recently read.
func (r *Reader) WireType() protowire.Type { return r.wireType }

func (r *Reader) ReadVarint() (uint64, error) {
	if err := r.expect(protowire.VarintType); err != nil {
		return 0, err
	}
	v, n := protowire.ConsumeVarint(r.frame[r.pos:r.end()])
	if n < 0 {
		return 0, r.fail(fmt.Sprintf("malformed varint in field %d", r.field), protowire.ParseError(n))
	}
	r.pos += n
	r.tagged = false
	return v, nil
}

func (r *Reader) ReadFixed32() (uint32, error) {
	if err := r.expect(protowire.Fixed32Type); err != nil {
		return 0, err
	}
	v, n := protowire.ConsumeFixed32(r.frame[r.pos:r.end()])
	if n < 0 {
		return 0, r.fail(fmt.Sprintf("truncated fixed32 in field %d", r.field), protowire.ParseError(n))
	}
	r.pos += n
	r.tagged = false
	return v, nil
}

func (r *Reader) ReadFixed64() (uint64, error) {
	if err := r.expect(protowire.Fixed64Type); err != nil {
		return 0, err
	}
	v, n := protowire.ConsumeFixed64(r.frame[r.pos:r.end()])
	if n < 0 {
		return 0, r.fail(fmt.Sprintf("truncated fixed64 in field %d", r.field), protowire.ParseError(n))
	}
	r.pos += n
	r.tagged = false
	return v, nil
}

// ReadBytes returns the payload of a length-delimited field. The slice aliases
// the frame buffer and is valid until the next StartMessage.
func (r *Reader) ReadBytes() ([]byte, error) {
	if err := r.expect(protowire.BytesType); err != nil {
		return nil, err
	}
	v, n := protowire.ConsumeBytes(r.frame[r.pos:r.end()])
	if n < 0 {
		return nil, r.fail(fmt.Sprintf("length-delimited field %d overruns its message", r.field), protowire.ParseError(n))
	}
	r.pos += n
	r.tagged = false
	return v, nil
}

// SkipField discards the payload of the field tag most recently read.
// Length-delimited payloads go through the nested message path.
func (r *Reader) SkipField() error {
	if !r.tagged {
		return nil
	}
	if r.wireType == protowire.BytesType {
		if err := r.StartNestedMessage(); err != nil {
			return err
		}
		return r.EndNestedMessage()
	}
	n := protowire.ConsumeFieldValue(r.field, r.wireType, r.frame[r.pos:r.end()])
	if n < 0 {
		return r.fail(fmt.Sprintf("malformed payload in field %d", r.field), protowire.ParseError(n))
	}
	r.pos += n
	r.tagged = false
	return nil
}

// StartNestedMessage enters the length-delimited payload of the current field.
func (r *Reader) StartNestedMessage() error {
	if err := r.expect(protowire.BytesType); err != nil {
		return err
	}
	end := r.end()
	length, n := protowire.ConsumeVarint(r.frame[r.pos:end])
	if n < 0 {
		return r.fail(fmt.Sprintf("malformed length of nested message %d", r.field), protowire.ParseError(n))
	}
	if length > uint64(end-r.pos-n) {
		return r.fail(fmt.Sprintf("nested message %d length %d overruns enclosing message", r.field, length), io.ErrUnexpectedEOF)
	}
	if len(r.ends) >= r.limits.MaxDepth {
		return r.fail(fmt.Sprintf("nesting depth exceeds %d", r.limits.MaxDepth), nil)
	}
	r.pos += n
	r.ends = append(r.ends, r.pos+int(length))
	r.tagged = false
	return nil
}

// EndNestedMessage leaves the innermost nested message, skipping whatever of
// it was not read.
func (r *Reader) EndNestedMessage() error {
	if len(r.ends) == 0 {
		return r.framing("no nested message open", nil)
	}
	last := len(r.ends) - 1
	r.pos = r.ends[last]
	r.ends = r.ends[:last]
	r.tagged = false
	return nil
}

// EndMessage closes the current frame. Unless ignoreErrors is set, a recorded
// fault, an open nested message or unread frame bytes are reported.
func (r *Reader) EndMessage(ignoreErrors bool) error {
	var err error
	if !ignoreErrors {
		switch {
		case r.fault != nil:
			err = r.fault
		case r.open && len(r.ends) > 0:
			err = r.framing(fmt.Sprintf("message closed with %d nested messages open", len(r.ends)), nil)
		case r.open && (r.pos < len(r.frame) || r.tagged):
			err = r.framing(fmt.Sprintf("message closed with %d unread bytes", len(r.frame)-r.pos), nil)
		}
	}
	r.frame = nil
	r.pos = 0
	r.ends = r.ends[:0]
	r.open = false
	r.tagged = false
	r.fault = nil
	return err
}

// EOF reports whether the source is exhausted and no open frame has bytes left.
func (r *Reader) EOF() bool {
	if r.open && (r.pos < len(r.frame) || len(r.ends) > 0) {
		return false
	}
	if r.eof {
		return true
	}
	_, err := r.src.Peek(1)
	return errors.Is(err, io.EOF)
}

// SetReadBuffer redirects future reads to src. It is only legal between
// frames; a partially read frame makes it fail with ErrFrameOpen.
func (r *Reader) SetReadBuffer(src io.Reader) error {
	if r.open && (r.pos < len(r.frame) || len(r.ends) > 0 || r.tagged) {
		return ErrFrameOpen
	}
	r.src = bufio.NewReader(src)
	r.frame = nil
	r.pos = 0
	r.ends = r.ends[:0]
	r.open = false
	r.eof = false
	r.tagged = false
	r.consumed = 0
	r.base = 0
	r.fault = nil
	return nil
}

// InMessage reports whether a frame is open.
func (r *Reader) InMessage() bool { return r.open }

// AtMessageEnd reports whether the current (nested) message has no fields left.
func (r *Reader) AtMessageEnd() bool { return !r.open || (!r.tagged && r.pos >= r.end()) }

// Depth is the number of nested messages currently open.
func (r *Reader) Depth() int { return len(r.ends) }

// Offset is the source offset of the cursor.
func (r *Reader) Offset() int64 {
	if r.open {
		return r.base + int64(r.pos)
	}
	return r.consumed
}

func (r *Reader) end() int {
	if n := len(r.ends); n > 0 {
		return r.ends[n-1]
	}
	return len(r.frame)
}

func (r *Reader) expect(want protowire.Type) error {
	if !r.open || !r.tagged {
		return r.framing("no field tag pending", nil)
	}
	if r.wireType != want {
		return r.fail(fmt.Sprintf("field %d has wire type %d, want %d", r.field, r.wireType, want), nil)
	}
	return nil
}

func (r *Reader) framing(reason string, cause error) error {
	return &protocol.FramingError{Offset: r.Offset(), Reason: reason, Err: cause}
}

// fail records a fault that EndMessage(false) surfaces again.
func (r *Reader) fail(reason string, cause error) error {
	err := r.framing(reason, cause)
	r.fault = err
	log.Debug().Int64("offset", r.Offset()).Str("reason", reason).Msg("envelope fault")
	return err
}
