package decoder

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/protolist/internal/protocol"
	"github.com/danmuck/protolist/internal/testutil/protofixture"
	"github.com/danmuck/protolist/internal/testutil/testlog"
)

func TestBindAcceptsCompatibleTypes(t *testing.T) {
	testlog.Start(t)
	person := protofixture.Message(t, protofixture.PersonName)
	cases := []arrow.Field{
		{Name: "age", Type: arrow.PrimitiveTypes.Int64},
		{Name: "age", Type: arrow.PrimitiveTypes.Uint8},
		{Name: "age", Type: arrow.PrimitiveTypes.Float32},
		{Name: "age", Type: arrow.FixedWidthTypes.Boolean},
		{Name: "age", Type: arrow.BinaryTypes.String},
		{Name: "name", Type: arrow.BinaryTypes.Binary},
		{Name: "blob", Type: arrow.BinaryTypes.String},
		{Name: "color", Type: arrow.PrimitiveTypes.Int16},
		{Name: "tags", Type: arrow.ListOf(arrow.BinaryTypes.Binary)},
	}
	for _, f := range cases {
		_, err := Bind(person, arrow.NewSchema([]arrow.Field{f}, nil), BindOptions{})
		require.NoError(t, err, "%s as %s", f.Name, f.Type)
	}
}

func TestBindRejectsIncompatibleTypes(t *testing.T) {
	testlog.Start(t)
	person := protofixture.Message(t, protofixture.PersonName)
	cases := []struct {
		field arrow.Field
		opts  BindOptions
		path  string
	}{
		{field: arrow.Field{Name: "name", Type: arrow.PrimitiveTypes.Int64}, path: "name"},
		{field: arrow.Field{Name: "tags", Type: arrow.BinaryTypes.String}, path: "tags"},
		{field: arrow.Field{Name: "age", Type: arrow.ListOf(arrow.PrimitiveTypes.Int32)}, path: "age"},
		{field: arrow.Field{Name: "color", Type: arrow.BinaryTypes.Binary}, path: "color"},
		{field: arrow.Field{Name: "address", Type: arrow.BinaryTypes.String}, path: "address"},
		{field: arrow.Field{Name: "score", Type: arrow.PrimitiveTypes.Int64}, path: "score"},
		{field: arrow.Field{Name: "score", Type: arrow.ListOf(arrow.PrimitiveTypes.Int64)}, opts: BindOptions{FlattenWrappers: true}, path: "score"},
		{field: arrow.Field{Name: "address", Type: arrow.StructOf(
			arrow.Field{Name: "zip", Type: arrow.BinaryTypes.Binary},
		)}, path: "address.zip"},
	}
	for _, tc := range cases {
		_, err := Bind(person, arrow.NewSchema([]arrow.Field{tc.field}, nil), tc.opts)
		var mismatch *protocol.SchemaMismatchError
		require.ErrorAs(t, err, &mismatch, "%s as %s", tc.field.Name, tc.field.Type)
		require.Equal(t, tc.path, mismatch.Field)
		require.ErrorIs(t, err, protocol.ErrSchemaMismatch)
	}
}

func TestBindRejectsGroupFields(t *testing.T) {
	testlog.Start(t)
	legacy := protofixture.Message(t, "fixture.Legacy")
	dest := arrow.NewSchema([]arrow.Field{
		{Name: "item", Type: arrow.StructOf(arrow.Field{Name: "v", Type: arrow.BinaryTypes.String})},
	}, nil)
	_, err := Bind(legacy, dest, BindOptions{})
	require.ErrorIs(t, err, protocol.ErrSchemaMismatch)
}

func TestBindRejectsDuplicateColumns(t *testing.T) {
	testlog.Start(t)
	person := protofixture.Message(t, protofixture.PersonName)
	dest := arrow.NewSchema([]arrow.Field{
		{Name: "name", Type: arrow.BinaryTypes.String},
		{Name: "name", Type: arrow.BinaryTypes.Binary},
	}, nil)
	_, err := Bind(person, dest, BindOptions{})
	require.ErrorIs(t, err, protocol.ErrSchemaMismatch)
}

func TestBindRecordsMissingColumns(t *testing.T) {
	testlog.Start(t)
	person := protofixture.Message(t, protofixture.PersonName)
	dest := arrow.NewSchema([]arrow.Field{
		{Name: "nickname", Type: arrow.BinaryTypes.String},
		{Name: "name", Type: arrow.BinaryTypes.String},
		{Name: "Age", Type: arrow.PrimitiveTypes.Int32},
	}, nil)
	b, err := Bind(person, dest, BindOptions{})
	require.NoError(t, err)
	require.Equal(t, []int{0, 2}, b.Missing())
	require.Equal(t, []bool{false, true, false}, b.Populated())
	require.True(t, b.Bound(1))
	require.False(t, b.Bound(2))
	require.Same(t, dest, b.Schema())

	missing := b.Missing()
	missing[0] = 99
	require.Equal(t, []int{0, 2}, b.Missing())
}
