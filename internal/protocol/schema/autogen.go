package schema

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/danmuck/protolist/internal/protocol"
)

const (
	// AutogenLocator names generated row types in errors and logs.
	AutogenLocator = "autogenerated"
	AutogenPackage = "protolist.autogen"
	AutogenFile    = "protolist/autogen.proto"
	// AutogenMessage is the generated row message. In envelope mode it is
	// nested in Envelope and carried by the repeated field AutogenRowField.
	AutogenMessage  = "Message"
	AutogenRowField = 1
)

// Generate resolves the row type generated from dest. Generated types are
// cached by the destination's shape.
func (r *Resolver) Generate(dest *arrow.Schema, mode EnvelopeMode) (MessageType, error) {
	key := fmt.Sprintf("%s|%s|%s", AutogenLocator, dest.String(), mode)
	return r.cache.GetOrLoad(key, func() (MessageType, error) {
		mt, err := Generate(dest, mode)
		if err != nil {
			log.Error().Err(err).Int("columns", dest.NumFields()).Msg("schema.Generate failed")
			return MessageType{}, err
		}
		log.Debug().Int("columns", dest.NumFields()).Str("mode", mode.String()).Msg("schema.Generate ok")
		return mt, nil
	})
}

// Generate builds a proto3 row message with one field per column of dest,
// numbered from 1 in column order. Struct columns become nested messages and
// list columns become repeated fields.
func Generate(dest *arrow.Schema, mode EnvelopeMode) (MessageType, error) {
	row, err := generateMessage(AutogenMessage, dest.Fields(), "")
	if err != nil {
		return MessageType{}, err
	}

	top := row
	if mode == WithEnvelope {
		top = &descriptorpb.DescriptorProto{
			Name: proto.String(EnvelopeName),
			Field: []*descriptorpb.FieldDescriptorProto{{
				Name:     proto.String("row"),
				Number:   proto.Int32(AutogenRowField),
				Label:    descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
				Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
				TypeName: proto.String("." + AutogenPackage + "." + EnvelopeName + "." + AutogenMessage),
			}},
			NestedType: []*descriptorpb.DescriptorProto{row},
		}
	}
	qualify(top, "."+AutogenPackage)

	fd, err := protodesc.NewFile(&descriptorpb.FileDescriptorProto{
		Name:        proto.String(AutogenFile),
		Package:     proto.String(AutogenPackage),
		Syntax:      proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{top},
	}, new(protoregistry.Files))
	if err != nil {
		return MessageType{}, &protocol.SchemaResolutionError{Locator: AutogenLocator, Reason: "build generated schema", Err: err}
	}

	if mode == WithoutEnvelope {
		return MessageType{Descriptor: fd.Messages().ByName(AutogenMessage)}, nil
	}
	env := fd.Messages().ByName(EnvelopeName)
	md := env.Messages().ByName(AutogenMessage)
	field, err := envelopeField(env, md)
	if err != nil {
		return MessageType{}, &protocol.SchemaResolutionError{Locator: AutogenLocator, Reason: err.Error()}
	}
	return MessageType{Descriptor: md, Envelope: env, RowField: field.Number()}, nil
}

// generateMessage describes one message. Type names of nested messages are
// left relative and made absolute by qualify.
func generateMessage(name string, cols []arrow.Field, path string) (*descriptorpb.DescriptorProto, error) {
	msg := &descriptorpb.DescriptorProto{Name: proto.String(name)}
	for i, col := range cols {
		colPath := path + col.Name
		if !protoreflect.Name(col.Name).IsValid() {
			return nil, &protocol.SchemaResolutionError{
				Locator: AutogenLocator,
				Reason:  fmt.Sprintf("column %q is not a valid protobuf field name", colPath),
			}
		}
		fdp := &descriptorpb.FieldDescriptorProto{
			Name:     proto.String(col.Name),
			JsonName: proto.String(col.Name),
			Number:   proto.Int32(int32(i + 1)),
			Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		}

		dt := col.Type
		if lt, ok := dt.(*arrow.ListType); ok {
			fdp.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
			dt = lt.Elem()
			if dt.ID() == arrow.LIST {
				return nil, unsupportedColumn(colPath, col.Type, "nested lists have no protobuf field")
			}
		}

		if st, ok := dt.(*arrow.StructType); ok {
			nested, err := generateMessage(nestedName(col.Name), st.Fields(), colPath+".")
			if err != nil {
				return nil, err
			}
			msg.NestedType = append(msg.NestedType, nested)
			fdp.Type = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
			fdp.TypeName = proto.String(nestedName(col.Name))
		} else {
			typ, ok := scalarType(dt)
			if !ok {
				return nil, unsupportedColumn(colPath, col.Type, "no protobuf scalar for this column type")
			}
			fdp.Type = typ.Enum()
		}
		msg.Field = append(msg.Field, fdp)
	}
	return msg, nil
}

// qualify rewrites relative message type names under scope to full names.
func qualify(msg *descriptorpb.DescriptorProto, scope string) {
	scope += "." + msg.GetName()
	for _, f := range msg.Field {
		if f.GetType() == descriptorpb.FieldDescriptorProto_TYPE_MESSAGE && f.GetTypeName()[0] != '.' {
			f.TypeName = proto.String(scope + "." + f.GetTypeName())
		}
	}
	for _, nested := range msg.NestedType {
		qualify(nested, scope)
	}
}

func nestedName(column string) string {
	return AutogenMessage + "_" + column
}

func scalarType(dt arrow.DataType) (descriptorpb.FieldDescriptorProto_Type, bool) {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32:
		return descriptorpb.FieldDescriptorProto_TYPE_INT32, true
	case arrow.INT64:
		return descriptorpb.FieldDescriptorProto_TYPE_INT64, true
	case arrow.UINT8, arrow.UINT16, arrow.UINT32:
		return descriptorpb.FieldDescriptorProto_TYPE_UINT32, true
	case arrow.UINT64:
		return descriptorpb.FieldDescriptorProto_TYPE_UINT64, true
	case arrow.FLOAT32:
		return descriptorpb.FieldDescriptorProto_TYPE_FLOAT, true
	case arrow.FLOAT64:
		return descriptorpb.FieldDescriptorProto_TYPE_DOUBLE, true
	case arrow.BOOL:
		return descriptorpb.FieldDescriptorProto_TYPE_BOOL, true
	case arrow.STRING:
		return descriptorpb.FieldDescriptorProto_TYPE_STRING, true
	case arrow.BINARY:
		return descriptorpb.FieldDescriptorProto_TYPE_BYTES, true
	default:
		return 0, false
	}
}

func unsupportedColumn(path string, dt arrow.DataType, reason string) error {
	return &protocol.UnsupportedFieldTypeError{Field: path, Kind: dt.String(), Reason: reason}
}
