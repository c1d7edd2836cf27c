package decoder

import (
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/danmuck/protolist/internal/protocol"
)

type ruleKind uint8

const (
	ruleScalar ruleKind = iota
	ruleEnum
	ruleMessage
	ruleRepeated
	ruleWrapper
)

// rule is one compiled field decode step.
type rule struct {
	kind     ruleKind
	field    protoreflect.FieldDescriptor
	dest     arrow.DataType
	nullable bool

	// scalar is the wire kind of the stored value; for wrappers it is the
	// kind of the wrapped value.
	scalar   protoreflect.Kind
	enumName bool
	def      any

	message *messageRules
	elem    *rule
}

// messageRules binds the fields of one message to destination positions.
// A nil slot is a destination with no matching field.
type messageRules struct {
	desc     protoreflect.MessageDescriptor
	slots    []*rule
	nullable []bool
	byNumber map[protowire.Number]int
}

func compileMessage(md protoreflect.MessageDescriptor, dest []arrow.Field, opts BindOptions, prefix string) (*messageRules, error) {
	mr := &messageRules{
		desc:     md,
		slots:    make([]*rule, len(dest)),
		nullable: make([]bool, len(dest)),
		byNumber: make(map[protowire.Number]int, len(dest)),
	}
	seen := make(map[string]struct{}, len(dest))
	for i, col := range dest {
		if _, dup := seen[col.Name]; dup {
			return nil, &protocol.SchemaMismatchError{Field: prefix + col.Name, Kind: "duplicate destination", Destination: col.Type.String()}
		}
		seen[col.Name] = struct{}{}
		mr.nullable[i] = col.Nullable

		fd := md.Fields().ByName(protoreflect.Name(col.Name))
		if fd == nil {
			continue
		}
		r, err := compileField(fd, col.Type, opts, prefix+col.Name)
		if err != nil {
			return nil, err
		}
		r.nullable = col.Nullable
		mr.slots[i] = r
		mr.byNumber[fd.Number()] = i
	}
	return mr, nil
}

func compileField(fd protoreflect.FieldDescriptor, dt arrow.DataType, opts BindOptions, path string) (*rule, error) {
	if fd.Cardinality() != protoreflect.Repeated {
		return compileSingular(fd, dt, opts, path)
	}
	lt, ok := dt.(*arrow.ListType)
	if !ok {
		return nil, mismatch(path, "repeated "+kindLabel(fd), dt)
	}
	elem, err := compileSingular(fd, lt.Elem(), opts, path)
	if err != nil {
		return nil, err
	}
	elem.nullable = lt.ElemField().Nullable
	return &rule{kind: ruleRepeated, field: fd, dest: dt, elem: elem}, nil
}

func compileSingular(fd protoreflect.FieldDescriptor, dt arrow.DataType, opts BindOptions, path string) (*rule, error) {
	switch fd.Kind() {
	case protoreflect.GroupKind:
		return nil, mismatch(path, kindLabel(fd), dt)

	case protoreflect.MessageKind:
		md := fd.Message()
		if opts.FlattenWrappers && isWrapper(md) {
			inner := md.Fields().ByNumber(1)
			if !scalarAccepts(inner.Kind(), dt) {
				return nil, mismatch(path, "wrapper "+string(md.Name()), dt)
			}
			return &rule{
				kind:   ruleWrapper,
				field:  fd,
				dest:   dt,
				scalar: inner.Kind(),
				def:    normalize(inner.Kind(), inner.Default()),
			}, nil
		}
		st, ok := dt.(*arrow.StructType)
		if !ok {
			return nil, mismatch(path, kindLabel(fd), dt)
		}
		children, err := compileMessage(md, st.Fields(), opts, path+".")
		if err != nil {
			return nil, err
		}
		return &rule{kind: ruleMessage, field: fd, dest: dt, message: children}, nil

	case protoreflect.EnumKind:
		r := &rule{kind: ruleEnum, field: fd, dest: dt, scalar: protoreflect.EnumKind}
		switch {
		case isInteger(dt):
		case dt.ID() == arrow.STRING:
			r.enumName = true
		default:
			return nil, mismatch(path, kindLabel(fd), dt)
		}
		if singular(fd) {
			r.def = r.enumValue(int64(fd.Default().Enum()))
		}
		return r, nil

	default:
		if !scalarAccepts(fd.Kind(), dt) {
			return nil, mismatch(path, kindLabel(fd), dt)
		}
		r := &rule{kind: ruleScalar, field: fd, dest: dt, scalar: fd.Kind()}
		if singular(fd) {
			r.def = normalize(fd.Kind(), fd.Default())
		}
		return r, nil
	}
}

// singular reports whether fd has a default value; repeated fields do not.
func singular(fd protoreflect.FieldDescriptor) bool {
	return fd.Cardinality() != protoreflect.Repeated
}

// enumValue maps an enum number to the stored representation.
func (r *rule) enumValue(n int64) any {
	if !r.enumName {
		return n
	}
	if ev := r.field.Enum().Values().ByNumber(protoreflect.EnumNumber(n)); ev != nil {
		return string(ev.Name())
	}
	return strconv.FormatInt(n, 10)
}

func mismatch(path, kind string, dt arrow.DataType) error {
	return &protocol.SchemaMismatchError{Field: path, Kind: kind, Destination: dt.String()}
}

func kindLabel(fd protoreflect.FieldDescriptor) string {
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return fd.Kind().String() + " " + string(fd.Message().FullName())
	case protoreflect.EnumKind:
		return "enum " + string(fd.Enum().FullName())
	default:
		return fd.Kind().String()
	}
}

var wrappersFile = wrapperspb.File_google_protobuf_wrappers_proto

// isWrapper reports whether md is one of the google.protobuf.*Value types.
func isWrapper(md protoreflect.MessageDescriptor) bool {
	return md.FullName().Parent() == wrappersFile.Package() &&
		wrappersFile.Messages().ByName(md.Name()) != nil
}

// scalarAccepts reports whether a field of kind k may fill a column of type
// dt. Any numeric kind binds to any integer width; values outside a narrower
// column wrap to its width the way a Go integer conversion does, so 300 from
// a uint32 field stores 44 in a Uint8 column.
func scalarAccepts(k protoreflect.Kind, dt arrow.DataType) bool {
	switch k {
	case protoreflect.StringKind, protoreflect.BytesKind:
		return dt.ID() == arrow.STRING || dt.ID() == arrow.BINARY
	case protoreflect.BoolKind,
		protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind,
		protoreflect.Uint32Kind, protoreflect.Fixed32Kind,
		protoreflect.Uint64Kind, protoreflect.Fixed64Kind,
		protoreflect.FloatKind, protoreflect.DoubleKind:
		return isInteger(dt) || dt.ID() == arrow.FLOAT32 || dt.ID() == arrow.FLOAT64 ||
			dt.ID() == arrow.BOOL || dt.ID() == arrow.STRING
	default:
		return false
	}
}

func isInteger(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return true
	default:
		return false
	}
}
