// Package inference derives an Arrow schema from a message descriptor.
package inference

import (
	"errors"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/danmuck/protolist/internal/protocol"
)

type Options struct {
	// FlattenWrappers infers google.protobuf.*Value fields as their nullable
	// wrapped scalar.
	FlattenWrappers bool
	// SkipUnsupported omits fields that have no column representation instead
	// of failing.
	SkipUnsupported bool
}

// Infer returns one column per representable field of md, in field
// declaration order. The result always binds against md.
func Infer(md protoreflect.MessageDescriptor, opts Options) ([]arrow.Field, error) {
	in := inferrer{opts: opts, open: map[protoreflect.FullName]bool{}}
	fields, err := in.message(md, "")
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, &protocol.UnsupportedFieldTypeError{
			Field:  string(md.FullName()),
			Kind:   "message",
			Reason: "no representable fields",
		}
	}
	return fields, nil
}

func InferSchema(md protoreflect.MessageDescriptor, opts Options) (*arrow.Schema, error) {
	fields, err := Infer(md, opts)
	if err != nil {
		return nil, err
	}
	return arrow.NewSchema(fields, nil), nil
}

type inferrer struct {
	opts Options
	// open holds the messages on the current descent path.
	open map[protoreflect.FullName]bool
}

func (in *inferrer) message(md protoreflect.MessageDescriptor, prefix string) ([]arrow.Field, error) {
	in.open[md.FullName()] = true
	defer delete(in.open, md.FullName())

	fds := md.Fields()
	out := make([]arrow.Field, 0, fds.Len())
	for i := 0; i < fds.Len(); i++ {
		fd := fds.Get(i)
		path := prefix + string(fd.Name())
		dt, nullable, err := in.field(fd, path)
		if err != nil {
			if in.opts.SkipUnsupported && isUnsupported(err) {
				log.Debug().Str("field", path).Err(err).Msg("skipping field in schema inference")
				continue
			}
			return nil, err
		}
		out = append(out, arrow.Field{Name: string(fd.Name()), Type: dt, Nullable: nullable})
	}
	return out, nil
}

func (in *inferrer) field(fd protoreflect.FieldDescriptor, path string) (arrow.DataType, bool, error) {
	dt, nullable, err := in.singular(fd, path)
	if err != nil {
		return nil, false, err
	}
	if fd.Cardinality() == protoreflect.Repeated {
		return arrow.ListOf(dt), false, nil
	}
	return dt, nullable, nil
}

func (in *inferrer) singular(fd protoreflect.FieldDescriptor, path string) (arrow.DataType, bool, error) {
	switch fd.Kind() {
	case protoreflect.GroupKind:
		return nil, false, unsupported(path, fd, "group encoding")
	case protoreflect.MessageKind:
		md := fd.Message()
		if in.opts.FlattenWrappers && isWrapper(md) {
			dt, _, err := in.singular(md.Fields().ByNumber(1), path)
			return dt, true, err
		}
		if in.open[md.FullName()] {
			return nil, false, unsupported(path, fd, "recursive message")
		}
		children, err := in.message(md, path+".")
		if err != nil {
			return nil, false, err
		}
		if len(children) == 0 {
			return nil, false, unsupported(path, fd, "no representable fields")
		}
		return arrow.StructOf(children...), true, nil
	case protoreflect.EnumKind:
		return arrow.BinaryTypes.String, false, nil
	case protoreflect.BoolKind:
		return arrow.FixedWidthTypes.Boolean, false, nil
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return arrow.PrimitiveTypes.Int32, false, nil
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return arrow.PrimitiveTypes.Int64, false, nil
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return arrow.PrimitiveTypes.Uint32, false, nil
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return arrow.PrimitiveTypes.Uint64, false, nil
	case protoreflect.FloatKind:
		return arrow.PrimitiveTypes.Float32, false, nil
	case protoreflect.DoubleKind:
		return arrow.PrimitiveTypes.Float64, false, nil
	case protoreflect.StringKind:
		return arrow.BinaryTypes.String, false, nil
	case protoreflect.BytesKind:
		return arrow.BinaryTypes.Binary, false, nil
	default:
		return nil, false, unsupported(path, fd, "unknown kind")
	}
}

func unsupported(path string, fd protoreflect.FieldDescriptor, reason string) error {
	kind := fd.Kind().String()
	if fd.Message() != nil {
		kind += " " + string(fd.Message().FullName())
	}
	return &protocol.UnsupportedFieldTypeError{Field: path, Kind: kind, Reason: reason}
}

func isUnsupported(err error) bool {
	return errors.Is(err, protocol.ErrUnsupportedFieldType)
}

func isWrapper(md protoreflect.MessageDescriptor) bool {
	wf := wrapperspb.File_google_protobuf_wrappers_proto
	return md.FullName().Parent() == wf.Package() && wf.Messages().ByName(md.Name()) != nil
}
