package inference

import (
	"bytes"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/danmuck/protolist/internal/decoder"
	"github.com/danmuck/protolist/internal/protocol"
	"github.com/danmuck/protolist/internal/protocol/envelope"
	"github.com/danmuck/protolist/internal/protocol/schema"
	"github.com/danmuck/protolist/internal/testutil/protofixture"
	"github.com/danmuck/protolist/internal/testutil/testlog"
)

func TestInferPersonMapping(t *testing.T) {
	testlog.Start(t)
	person := protofixture.Message(t, protofixture.PersonName)
	sc, err := InferSchema(person, Options{FlattenWrappers: true})
	require.NoError(t, err)

	want := map[string]arrow.DataType{
		"name":   arrow.BinaryTypes.String,
		"age":    arrow.PrimitiveTypes.Int32,
		"tags":   arrow.ListOf(arrow.BinaryTypes.String),
		"color":  arrow.BinaryTypes.String,
		"score":  arrow.PrimitiveTypes.Int64,
		"scores": arrow.ListOf(arrow.PrimitiveTypes.Int64),
		"weight": arrow.PrimitiveTypes.Float64,
		"active": arrow.FixedWidthTypes.Boolean,
		"blob":   arrow.BinaryTypes.Binary,
		"delta":  arrow.PrimitiveTypes.Int64,
		"code":   arrow.PrimitiveTypes.Uint32,
	}
	require.Equal(t, 13, sc.NumFields())
	for name, dt := range want {
		f, ok := sc.FieldsByName(name)
		require.True(t, ok, name)
		require.True(t, arrow.TypeEqual(dt, f[0].Type), "%s: got %s want %s", name, f[0].Type, dt)
	}

	addr, _ := sc.FieldsByName("address")
	st, ok := addr[0].Type.(*arrow.StructType)
	require.True(t, ok)
	require.True(t, addr[0].Nullable)
	require.Equal(t, 2, st.NumFields())
	require.Equal(t, "city", st.Field(0).Name)

	score, _ := sc.FieldsByName("score")
	require.True(t, score[0].Nullable)

	attrs, _ := sc.FieldsByName("attrs")
	lt, ok := attrs[0].Type.(*arrow.ListType)
	require.True(t, ok)
	entry, ok := lt.Elem().(*arrow.StructType)
	require.True(t, ok)
	require.Equal(t, "key", entry.Field(0).Name)
	require.Equal(t, "value", entry.Field(1).Name)
}

func TestInferWrapperWithoutFlattenIsStruct(t *testing.T) {
	testlog.Start(t)
	person := protofixture.Message(t, protofixture.PersonName)
	sc, err := InferSchema(person, Options{})
	require.NoError(t, err)
	score, _ := sc.FieldsByName("score")
	st, ok := score[0].Type.(*arrow.StructType)
	require.True(t, ok)
	require.Equal(t, "value", st.Field(0).Name)
}

func TestInferUnsupportedFields(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		message string
		field   string
		kept    []string
	}{
		{message: "fixture.Node", field: "child", kept: []string{"name"}},
		{message: "fixture.Holder", field: "nothing", kept: []string{"id"}},
		{message: "fixture.Legacy", field: "item", kept: []string{"note"}},
	}
	for _, tc := range cases {
		md := protofixture.Message(t, tc.message)
		_, err := Infer(md, Options{})
		var unsupported *protocol.UnsupportedFieldTypeError
		require.ErrorAs(t, err, &unsupported, tc.message)
		require.Equal(t, tc.field, unsupported.Field)

		fields, err := Infer(md, Options{SkipUnsupported: true})
		require.NoError(t, err)
		var names []string
		for _, f := range fields {
			names = append(names, f.Name)
		}
		require.Equal(t, tc.kept, names)
	}
}

func TestInferEmptyMessageFails(t *testing.T) {
	testlog.Start(t)
	_, err := Infer(protofixture.Message(t, "fixture.Empty"), Options{SkipUnsupported: true})
	require.ErrorIs(t, err, protocol.ErrUnsupportedFieldType)
}

func TestInferredSchemaBindsAndDecodes(t *testing.T) {
	testlog.Start(t)
	person := protofixture.Message(t, protofixture.PersonName)
	for _, flatten := range []bool{false, true} {
		sc, err := InferSchema(person, Options{FlattenWrappers: flatten})
		require.NoError(t, err)

		score := int64(5)
		row := protofixture.Marshal(t, protofixture.NewPerson(person, protofixture.PersonValues{
			Name: "zed", Color: 1, Score: &score, Attrs: map[string]int32{"k": 1},
		}))
		var buf bytes.Buffer
		require.NoError(t, envelope.NewWriter(&buf, envelope.DefaultLimits()).WriteEnvelope(1, [][]byte{row}))

		msg := schema.MessageType{
			Descriptor: person,
			Envelope:   person.Parent().(protoreflect.MessageDescriptor),
			RowField:   1,
		}
		dec, err := decoder.New(&buf, msg, sc, decoder.Options{Mode: decoder.ModeEnvelope, FlattenWrappers: flatten})
		require.NoError(t, err)
		require.Empty(t, dec.Missing())
		batch, err := dec.ReadBatch(0)
		require.NoError(t, err)
		require.EqualValues(t, 1, batch.Record.NumRows())
		batch.Release()
	}
}
