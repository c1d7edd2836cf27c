package main

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

var structureTypes = map[string]arrow.DataType{
	"int8":    arrow.PrimitiveTypes.Int8,
	"int16":   arrow.PrimitiveTypes.Int16,
	"int32":   arrow.PrimitiveTypes.Int32,
	"int64":   arrow.PrimitiveTypes.Int64,
	"uint8":   arrow.PrimitiveTypes.Uint8,
	"uint16":  arrow.PrimitiveTypes.Uint16,
	"uint32":  arrow.PrimitiveTypes.Uint32,
	"uint64":  arrow.PrimitiveTypes.Uint64,
	"float32": arrow.PrimitiveTypes.Float32,
	"float64": arrow.PrimitiveTypes.Float64,
	"bool":    arrow.FixedWidthTypes.Boolean,
	"string":  arrow.BinaryTypes.String,
	"binary":  arrow.BinaryTypes.Binary,
}

// parseStructure reads "name:type,..." into a schema. A "[]" type prefix
// makes a list column.
func parseStructure(spec string) (*arrow.Schema, error) {
	var fields []arrow.Field
	for _, part := range strings.Split(spec, ",") {
		name, typ, ok := strings.Cut(strings.TrimSpace(part), ":")
		name, typ = strings.TrimSpace(name), strings.ToLower(strings.TrimSpace(typ))
		if !ok || name == "" || typ == "" {
			return nil, fmt.Errorf("structure entry %q must be name:type", part)
		}
		elem, list := strings.CutPrefix(typ, "[]")
		dt, known := structureTypes[elem]
		if !known {
			return nil, fmt.Errorf("structure entry %q: unknown type %q", part, elem)
		}
		if list {
			dt = arrow.ListOf(dt)
		}
		fields = append(fields, arrow.Field{Name: name, Type: dt})
	}
	return arrow.NewSchema(fields, nil), nil
}
