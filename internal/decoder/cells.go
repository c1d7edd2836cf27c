package decoder

import (
	"math"

	"github.com/richardartoul/molecule"
	"github.com/richardartoul/molecule/src/codec"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/danmuck/protolist/internal/protocol"
	"github.com/danmuck/protolist/internal/protocol/envelope"
)

// cell stages one decoded value until its whole row is known to be valid.
// Scalars hold int64, uint64, float64, bool, string or []byte.
type cell struct {
	set    bool
	value  any
	fields []cell
	list   []cell
}

func resetCells(cells []cell) {
	for i := range cells {
		cells[i] = cell{}
	}
}

// decodeFields reads the fields of the current message into cells until the
// message ends. Fields without a rule are skipped.
func decodeFields(r *envelope.Reader, mr *messageRules, cells []cell) error {
	for {
		num, ok, err := r.ReadFieldNumber()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		idx, bound := mr.byNumber[num]
		if !bound {
			if err := r.SkipField(); err != nil {
				return err
			}
			continue
		}
		if err := decodeValue(r, mr.slots[idx], &cells[idx]); err != nil {
			return err
		}
	}
}

func decodeValue(r *envelope.Reader, ru *rule, c *cell) error {
	switch ru.kind {
	case ruleScalar:
		v, err := readScalar(r, ru.scalar)
		if err != nil {
			return err
		}
		c.set, c.value = true, v

	case ruleEnum:
		raw, err := readRaw(r, protowire.VarintType)
		if err != nil {
			return err
		}
		c.set, c.value = true, ru.enumValue(int64(int32(raw)))

	case ruleWrapper:
		if err := r.StartNestedMessage(); err != nil {
			return err
		}
		c.set = true
		for {
			num, ok, err := r.ReadFieldNumber()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			if num != 1 {
				if err := r.SkipField(); err != nil {
					return err
				}
				continue
			}
			v, err := readScalar(r, ru.scalar)
			if err != nil {
				return err
			}
			c.value = v
		}
		return r.EndNestedMessage()

	case ruleMessage:
		if err := r.StartNestedMessage(); err != nil {
			return err
		}
		if !c.set {
			c.set = true
			c.fields = make([]cell, len(ru.message.slots))
		}
		if err := decodeFields(r, ru.message, c.fields); err != nil {
			return err
		}
		return r.EndNestedMessage()

	case ruleRepeated:
		c.set = true
		if ft, ok := packedType(ru.elem); ok && r.WireType() == protowire.BytesType {
			return decodePacked(r, ru.elem, ft, c)
		}
		var elem cell
		if err := decodeValue(r, ru.elem, &elem); err != nil {
			return err
		}
		c.list = append(c.list, elem)
	}
	return nil
}

func decodePacked(r *envelope.Reader, elem *rule, ft codec.FieldType, c *cell) error {
	payload, err := r.ReadBytes()
	if err != nil {
		return err
	}
	err = molecule.PackedRepeatedEach(codec.NewBuffer(payload), ft, func(v molecule.Value) (bool, error) {
		var val any
		if elem.kind == ruleEnum {
			val = elem.enumValue(int64(int32(v.Number)))
		} else {
			val = fromRaw(elem.scalar, v.Number)
		}
		c.list = append(c.list, cell{set: true, value: val})
		return true, nil
	})
	if err != nil {
		return &protocol.FramingError{Offset: r.Offset(), Reason: "malformed packed repeated field", Err: err}
	}
	return nil
}

// packedType reports the molecule field type for element rules that may be
// packed on the wire.
func packedType(elem *rule) (ft codec.FieldType, ok bool) {
	if elem.kind != ruleScalar && elem.kind != ruleEnum {
		return ft, false
	}
	switch elem.scalar {
	case protoreflect.BoolKind:
		return codec.FieldType_BOOL, true
	case protoreflect.EnumKind:
		return codec.FieldType_ENUM, true
	case protoreflect.Int32Kind:
		return codec.FieldType_INT32, true
	case protoreflect.Sint32Kind:
		return codec.FieldType_SINT32, true
	case protoreflect.Uint32Kind:
		return codec.FieldType_UINT32, true
	case protoreflect.Int64Kind:
		return codec.FieldType_INT64, true
	case protoreflect.Sint64Kind:
		return codec.FieldType_SINT64, true
	case protoreflect.Uint64Kind:
		return codec.FieldType_UINT64, true
	case protoreflect.Sfixed32Kind:
		return codec.FieldType_SFIXED32, true
	case protoreflect.Fixed32Kind:
		return codec.FieldType_FIXED32, true
	case protoreflect.FloatKind:
		return codec.FieldType_FLOAT, true
	case protoreflect.Sfixed64Kind:
		return codec.FieldType_SFIXED64, true
	case protoreflect.Fixed64Kind:
		return codec.FieldType_FIXED64, true
	case protoreflect.DoubleKind:
		return codec.FieldType_DOUBLE, true
	default:
		return ft, false
	}
}

func wireTypeOf(k protoreflect.Kind) protowire.Type {
	switch k {
	case protoreflect.Fixed32Kind, protoreflect.Sfixed32Kind, protoreflect.FloatKind:
		return protowire.Fixed32Type
	case protoreflect.Fixed64Kind, protoreflect.Sfixed64Kind, protoreflect.DoubleKind:
		return protowire.Fixed64Type
	case protoreflect.StringKind, protoreflect.BytesKind, protoreflect.MessageKind:
		return protowire.BytesType
	default:
		return protowire.VarintType
	}
}

func readRaw(r *envelope.Reader, wt protowire.Type) (uint64, error) {
	switch wt {
	case protowire.Fixed32Type:
		v, err := r.ReadFixed32()
		return uint64(v), err
	case protowire.Fixed64Type:
		return r.ReadFixed64()
	default:
		return r.ReadVarint()
	}
}

func readScalar(r *envelope.Reader, k protoreflect.Kind) (any, error) {
	switch k {
	case protoreflect.StringKind:
		b, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case protoreflect.BytesKind:
		b, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		return append([]byte{}, b...), nil
	}
	raw, err := readRaw(r, wireTypeOf(k))
	if err != nil {
		return nil, err
	}
	return fromRaw(k, raw), nil
}

// fromRaw converts a raw varint or fixed-width payload to its staged value.
func fromRaw(k protoreflect.Kind, raw uint64) any {
	switch k {
	case protoreflect.BoolKind:
		return protowire.DecodeBool(raw)
	case protoreflect.Int32Kind, protoreflect.EnumKind:
		return int64(int32(raw))
	case protoreflect.Sint32Kind:
		return int64(int32(protowire.DecodeZigZag(raw & math.MaxUint32)))
	case protoreflect.Sfixed32Kind:
		return int64(int32(uint32(raw)))
	case protoreflect.Int64Kind, protoreflect.Sfixed64Kind:
		return int64(raw)
	case protoreflect.Sint64Kind:
		return protowire.DecodeZigZag(raw)
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return uint64(uint32(raw))
	case protoreflect.FloatKind:
		return float64(math.Float32frombits(uint32(raw)))
	case protoreflect.DoubleKind:
		return math.Float64frombits(raw)
	default:
		return raw
	}
}

// normalize converts a descriptor default to its staged value.
func normalize(k protoreflect.Kind, v protoreflect.Value) any {
	switch k {
	case protoreflect.BoolKind:
		return v.Bool()
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return v.Int()
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind,
		protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return v.Uint()
	case protoreflect.FloatKind, protoreflect.DoubleKind:
		return v.Float()
	case protoreflect.StringKind:
		return v.String()
	case protoreflect.BytesKind:
		return v.Bytes()
	case protoreflect.EnumKind:
		return int64(v.Enum())
	default:
		return nil
	}
}
