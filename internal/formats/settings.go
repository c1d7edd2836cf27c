package formats

import (
	"fmt"

	"github.com/danmuck/protolist/internal/protocol/envelope"
)

// Settings are the per-input options every format reads.
type Settings struct {
	// Schema is the format_schema locator, "file:Message". When it is empty
	// and UseAutogeneratedSchema is set, the row type is generated from the
	// destination columns.
	Schema                 string
	UseAutogeneratedSchema bool
	// SchemaPath is the directory relative schema files resolve against.
	SchemaPath      string
	FlattenWrappers bool
	SkipUnsupported bool
	Limits          envelope.Limits
}

// CacheKey is the additional schema-cache key for an inferred schema. Two
// inputs with equal keys infer the same columns.
func CacheKey(s Settings) string {
	return fmt.Sprintf("format_schema=%s, skip_fields_with_unsupported_types_in_schema_inference=%t",
		s.Schema, s.SkipUnsupported)
}
