package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrFraming              = errors.New("protocol: framing error")
	ErrSchemaResolution     = errors.New("protocol: schema resolution failed")
	ErrSchemaMismatch       = errors.New("protocol: schema mismatch")
	ErrUnsupportedFieldType = errors.New("protocol: unsupported field type")
	ErrSinkWrite            = errors.New("protocol: sink write failed")
)

// FramingError reports a malformed or truncated frame. It is fatal to the stream.
type FramingError struct {
	Offset int64
	Reason string
	Err    error
}

func (e *FramingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol: framing error at offset %d: %s: %v", e.Offset, e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol: framing error at offset %d: %s", e.Offset, e.Reason)
}

func (e *FramingError) Unwrap() error { return e.Err }

func (e *FramingError) Is(target error) bool { return target == ErrFraming }

// SchemaResolutionError reports an invalid schema locator or a missing message type.
type SchemaResolutionError struct {
	Locator string
	Reason  string
	Err     error
}

func (e *SchemaResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol: resolve schema %q: %s: %v", e.Locator, e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol: resolve schema %q: %s", e.Locator, e.Reason)
}

func (e *SchemaResolutionError) Unwrap() error { return e.Err }

func (e *SchemaResolutionError) Is(target error) bool { return target == ErrSchemaResolution }

// SchemaMismatchError reports a matched field whose kind cannot be stored in the
// destination column type.
type SchemaMismatchError struct {
	Field       string
	Kind        string
	Destination string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("protocol: field %q of kind %s cannot be bound to destination type %s", e.Field, e.Kind, e.Destination)
}

func (e *SchemaMismatchError) Is(target error) bool { return target == ErrSchemaMismatch }

// UnsupportedFieldTypeError names a field that has no inferable column type.
type UnsupportedFieldTypeError struct {
	Field  string
	Kind   string
	Reason string
}

func (e *UnsupportedFieldTypeError) Error() string {
	return fmt.Sprintf("protocol: field %q of kind %s is not supported: %s", e.Field, e.Kind, e.Reason)
}

func (e *UnsupportedFieldTypeError) Is(target error) bool { return target == ErrUnsupportedFieldType }

// SinkWriteError wraps a failure to append a decoded value to a destination column.
type SinkWriteError struct {
	Column int
	Err    error
}

func (e *SinkWriteError) Error() string {
	return fmt.Sprintf("protocol: write column %d: %v", e.Column, e.Err)
}

func (e *SinkWriteError) Unwrap() error { return e.Err }

func (e *SinkWriteError) Is(target error) bool { return target == ErrSinkWrite }

// Kind returns a short label for the taxonomy member err belongs to, for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrFraming):
		return "framing"
	case errors.Is(err, ErrSchemaResolution):
		return "schema_resolution"
	case errors.Is(err, ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, ErrUnsupportedFieldType):
		return "unsupported_field_type"
	case errors.Is(err, ErrSinkWrite):
		return "sink_write"
	default:
		return "other"
	}
}
