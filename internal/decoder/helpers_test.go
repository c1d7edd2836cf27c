package decoder

import (
	"bytes"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/danmuck/protolist/internal/protocol/envelope"
	"github.com/danmuck/protolist/internal/protocol/schema"
	"github.com/danmuck/protolist/internal/testutil/protofixture"
)

func personType(t *testing.T) schema.MessageType {
	t.Helper()
	person := protofixture.Message(t, protofixture.PersonName)
	env, ok := person.Parent().(protoreflect.MessageDescriptor)
	require.True(t, ok)
	return schema.MessageType{Descriptor: person, Envelope: env, RowField: 1}
}

// nameOnlyType is Envelope.Row { string name = 1; } wrapped as row field 1.
func nameOnlyType(t *testing.T) schema.MessageType {
	t.Helper()
	row := &descriptorpb.DescriptorProto{
		Name: proto.String("Row"),
		Field: []*descriptorpb.FieldDescriptorProto{{
			Name:   proto.String("name"),
			Number: proto.Int32(1),
			Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
			Type:   descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
		}},
	}
	env := &descriptorpb.DescriptorProto{
		Name: proto.String("Envelope"),
		Field: []*descriptorpb.FieldDescriptorProto{{
			Name:     proto.String("row"),
			Number:   proto.Int32(1),
			Label:    descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
			Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
			TypeName: proto.String(".mini.Envelope.Row"),
		}},
		NestedType: []*descriptorpb.DescriptorProto{row},
	}
	fd, err := protodesc.NewFile(&descriptorpb.FileDescriptorProto{
		Name:        proto.String("mini.proto"),
		Package:     proto.String("mini"),
		Syntax:      proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{env},
	}, protoregistry.GlobalFiles)
	require.NoError(t, err)
	envMD := fd.Messages().ByName("Envelope")
	return schema.MessageType{Descriptor: envMD.Messages().ByName("Row"), Envelope: envMD, RowField: 1}
}

// packedRowType is packed.Envelope.Row with proto3 repeated scalars, which
// encode packed:
//
//	enum Level { LEVEL_UNSPECIFIED = 0; LOW = 1; HIGH = 2; }
//	message Row {
//	  repeated sint32 s32 = 1;
//	  repeated sint64 s64 = 2;
//	  repeated fixed32 f32 = 3;
//	  repeated sfixed32 sf32 = 4;
//	  repeated Level levels = 5;
//	}
func packedRowType(t *testing.T) schema.MessageType {
	t.Helper()
	repeated := func(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type, typeName string) *descriptorpb.FieldDescriptorProto {
		f := &descriptorpb.FieldDescriptorProto{
			Name:   proto.String(name),
			Number: proto.Int32(number),
			Label:  descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
			Type:   typ.Enum(),
		}
		if typeName != "" {
			f.TypeName = proto.String(typeName)
		}
		return f
	}
	row := &descriptorpb.DescriptorProto{
		Name: proto.String("Row"),
		Field: []*descriptorpb.FieldDescriptorProto{
			repeated("s32", 1, descriptorpb.FieldDescriptorProto_TYPE_SINT32, ""),
			repeated("s64", 2, descriptorpb.FieldDescriptorProto_TYPE_SINT64, ""),
			repeated("f32", 3, descriptorpb.FieldDescriptorProto_TYPE_FIXED32, ""),
			repeated("sf32", 4, descriptorpb.FieldDescriptorProto_TYPE_SFIXED32, ""),
			repeated("levels", 5, descriptorpb.FieldDescriptorProto_TYPE_ENUM, ".packed.Level"),
		},
	}
	env := &descriptorpb.DescriptorProto{
		Name:       proto.String("Envelope"),
		Field:      []*descriptorpb.FieldDescriptorProto{repeated("row", 1, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ".packed.Envelope.Row")},
		NestedType: []*descriptorpb.DescriptorProto{row},
	}
	fd, err := protodesc.NewFile(&descriptorpb.FileDescriptorProto{
		Name:    proto.String("packed.proto"),
		Package: proto.String("packed"),
		Syntax:  proto.String("proto3"),
		EnumType: []*descriptorpb.EnumDescriptorProto{{
			Name: proto.String("Level"),
			Value: []*descriptorpb.EnumValueDescriptorProto{
				{Name: proto.String("LEVEL_UNSPECIFIED"), Number: proto.Int32(0)},
				{Name: proto.String("LOW"), Number: proto.Int32(1)},
				{Name: proto.String("HIGH"), Number: proto.Int32(2)},
			},
		}},
		MessageType: []*descriptorpb.DescriptorProto{env},
	}, protoregistry.GlobalFiles)
	require.NoError(t, err)
	envMD := fd.Messages().ByName("Envelope")
	return schema.MessageType{Descriptor: envMD.Messages().ByName("Row"), Envelope: envMD, RowField: 1}
}

// packedRow encodes one packed.Envelope.Row.
func packedRow(t *testing.T, md protoreflect.MessageDescriptor, s32 []int32, s64 []int64, f32 []uint32, sf32 []int32, levels []int32) []byte {
	t.Helper()
	m := dynamicpb.NewMessage(md)
	list := func(name string) protoreflect.List {
		return m.Mutable(md.Fields().ByName(protoreflect.Name(name))).List()
	}
	for _, v := range s32 {
		list("s32").Append(protoreflect.ValueOfInt32(v))
	}
	for _, v := range s64 {
		list("s64").Append(protoreflect.ValueOfInt64(v))
	}
	for _, v := range f32 {
		list("f32").Append(protoreflect.ValueOfUint32(v))
	}
	for _, v := range sf32 {
		list("sf32").Append(protoreflect.ValueOfInt32(v))
	}
	for _, v := range levels {
		list("levels").Append(protoreflect.ValueOfEnum(protoreflect.EnumNumber(v)))
	}
	b, err := proto.MarshalOptions{Deterministic: true}.Marshal(m)
	require.NoError(t, err)
	return b
}

func nameRow(name string) []byte {
	b := protowire.AppendTag(nil, 1, protowire.BytesType)
	return protowire.AppendString(b, name)
}

func personRows(t *testing.T, values ...protofixture.PersonValues) [][]byte {
	t.Helper()
	md := protofixture.Message(t, protofixture.PersonName)
	rows := make([][]byte, 0, len(values))
	for _, v := range values {
		rows = append(rows, protofixture.Marshal(t, protofixture.NewPerson(md, v)))
	}
	return rows
}

// envelopes writes one envelope frame per entry of frames.
func envelopes(t *testing.T, frames ...[][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := envelope.NewWriter(&buf, envelope.DefaultLimits())
	for _, rows := range frames {
		require.NoError(t, w.WriteEnvelope(1, rows))
	}
	return buf.Bytes()
}

func delimited(t *testing.T, rows [][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := envelope.NewWriter(&buf, envelope.DefaultLimits())
	for _, row := range rows {
		require.NoError(t, w.WriteMessage(row))
	}
	return buf.Bytes()
}

func nameAgeSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "name", Type: arrow.BinaryTypes.String},
		{Name: "age", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
	}, nil)
}

func personSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "name", Type: arrow.BinaryTypes.String},
		{Name: "age", Type: arrow.PrimitiveTypes.Int32},
		{Name: "tags", Type: arrow.ListOf(arrow.BinaryTypes.String)},
		{Name: "address", Type: arrow.StructOf(
			arrow.Field{Name: "city", Type: arrow.BinaryTypes.String, Nullable: true},
			arrow.Field{Name: "zip", Type: arrow.PrimitiveTypes.Uint32, Nullable: true},
		), Nullable: true},
		{Name: "color", Type: arrow.BinaryTypes.String},
		{Name: "score", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "scores", Type: arrow.ListOf(arrow.PrimitiveTypes.Int64)},
		{Name: "attrs", Type: arrow.ListOf(arrow.StructOf(
			arrow.Field{Name: "key", Type: arrow.BinaryTypes.String},
			arrow.Field{Name: "value", Type: arrow.PrimitiveTypes.Int32},
		))},
		{Name: "weight", Type: arrow.PrimitiveTypes.Float64},
		{Name: "active", Type: arrow.FixedWidthTypes.Boolean},
		{Name: "blob", Type: arrow.BinaryTypes.Binary},
		{Name: "delta", Type: arrow.PrimitiveTypes.Int64},
		{Name: "code", Type: arrow.PrimitiveTypes.Uint32},
	}, nil)
}
