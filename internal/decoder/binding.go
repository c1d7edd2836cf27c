package decoder

import (
	"github.com/apache/arrow-go/v18/arrow"
	"google.golang.org/protobuf/reflect/protoreflect"
)

type BindOptions struct {
	// FlattenWrappers binds google.protobuf.*Value fields as their wrapped
	// scalar instead of a one-field struct.
	FlattenWrappers bool
}

// Binding is the compiled mapping from one message type to one destination
// schema. It is immutable once built and may be shared.
type Binding struct {
	schema  *arrow.Schema
	root    *messageRules
	missing []int
}

// Bind matches every destination column to the message field of the same
// name and compiles the decode rule for it. Columns with no matching field are
// recorded as missing; incompatible types fail with a SchemaMismatchError.
func Bind(md protoreflect.MessageDescriptor, dest *arrow.Schema, opts BindOptions) (*Binding, error) {
	root, err := compileMessage(md, dest.Fields(), opts, "")
	if err != nil {
		return nil, err
	}
	b := &Binding{schema: dest, root: root}
	for i, r := range root.slots {
		if r == nil {
			b.missing = append(b.missing, i)
		}
	}
	return b, nil
}

func (b *Binding) Schema() *arrow.Schema { return b.schema }

// Missing lists the destination positions no message field fills.
func (b *Binding) Missing() []int {
	return append([]int(nil), b.missing...)
}

// Bound reports whether destination column i has a matching field.
func (b *Binding) Bound(i int) bool {
	return i >= 0 && i < len(b.root.slots) && b.root.slots[i] != nil
}

// Populated returns the per-row mask of columns a decoded row fills.
func (b *Binding) Populated() []bool {
	mask := make([]bool, len(b.root.slots))
	for i, r := range b.root.slots {
		mask[i] = r != nil
	}
	return mask
}
