package decoder

import (
	"fmt"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow/array"
)

// appendCell writes one staged value into b. A nil rule is a destination
// with no matching field and is filled as absent.
func appendCell(b array.Builder, ru *rule, c *cell, nullable bool) error {
	if ru == nil {
		appendAbsent(b, nullable)
		return nil
	}
	switch ru.kind {
	case ruleScalar, ruleEnum:
		if !c.set {
			return appendScalar(b, ru.def)
		}
		return appendScalar(b, c.value)

	case ruleWrapper:
		if !c.set {
			appendAbsent(b, ru.nullable)
			return nil
		}
		if c.value == nil {
			return appendScalar(b, ru.def)
		}
		return appendScalar(b, c.value)

	case ruleMessage:
		sb, ok := b.(*array.StructBuilder)
		if !ok {
			return fmt.Errorf("message field %s needs a struct builder, got %T", ru.field.Name(), b)
		}
		if !c.set {
			appendAbsent(sb, ru.nullable)
			return nil
		}
		sb.Append(true)
		for i, child := range ru.message.slots {
			if err := appendCell(sb.FieldBuilder(i), child, &c.fields[i], ru.message.nullable[i]); err != nil {
				return err
			}
		}
		return nil

	case ruleRepeated:
		lb, ok := b.(*array.ListBuilder)
		if !ok {
			return fmt.Errorf("repeated field %s needs a list builder, got %T", ru.field.Name(), b)
		}
		lb.Append(true)
		vb := lb.ValueBuilder()
		for i := range c.list {
			if err := appendCell(vb, ru.elem, &c.list[i], ru.elem.nullable); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unknown rule kind %d", ru.kind)
}

// appendAbsent fills a value the row did not carry: null when the
// destination is nullable, the type's zero value otherwise.
func appendAbsent(b array.Builder, nullable bool) {
	if nullable {
		b.AppendNull()
		return
	}
	b.AppendEmptyValue()
}

func appendScalar(b array.Builder, v any) error {
	switch b := b.(type) {
	case *array.Int8Builder:
		n, err := toInt64(v)
		if err != nil {
			return err
		}
		b.Append(int8(n))
	case *array.Int16Builder:
		n, err := toInt64(v)
		if err != nil {
			return err
		}
		b.Append(int16(n))
	case *array.Int32Builder:
		n, err := toInt64(v)
		if err != nil {
			return err
		}
		b.Append(int32(n))
	case *array.Int64Builder:
		n, err := toInt64(v)
		if err != nil {
			return err
		}
		b.Append(n)
	case *array.Uint8Builder:
		n, err := toUint64(v)
		if err != nil {
			return err
		}
		b.Append(uint8(n))
	case *array.Uint16Builder:
		n, err := toUint64(v)
		if err != nil {
			return err
		}
		b.Append(uint16(n))
	case *array.Uint32Builder:
		n, err := toUint64(v)
		if err != nil {
			return err
		}
		b.Append(uint32(n))
	case *array.Uint64Builder:
		n, err := toUint64(v)
		if err != nil {
			return err
		}
		b.Append(n)
	case *array.Float32Builder:
		f, err := toFloat64(v)
		if err != nil {
			return err
		}
		b.Append(float32(f))
	case *array.Float64Builder:
		f, err := toFloat64(v)
		if err != nil {
			return err
		}
		b.Append(f)
	case *array.BooleanBuilder:
		t, err := toBool(v)
		if err != nil {
			return err
		}
		b.Append(t)
	case *array.StringBuilder:
		s, err := toString(v)
		if err != nil {
			return err
		}
		b.Append(s)
	case *array.BinaryBuilder:
		raw, err := toBytes(v)
		if err != nil {
			return err
		}
		b.Append(raw)
	default:
		return fmt.Errorf("unsupported builder %T", b)
	}
	return nil
}

func toInt64(v any) (int64, error) {
	switch v := v.(type) {
	case int64:
		return v, nil
	case uint64:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("cannot store %T as integer", v)
}

func toUint64(v any) (uint64, error) {
	switch v := v.(type) {
	case uint64:
		return v, nil
	case int64:
		return uint64(v), nil
	case float64:
		return uint64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("cannot store %T as unsigned integer", v)
}

func toFloat64(v any) (float64, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("cannot store %T as float", v)
}

func toBool(v any) (bool, error) {
	switch v := v.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case uint64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	}
	return false, fmt.Errorf("cannot store %T as bool", v)
}

func toString(v any) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	}
	return "", fmt.Errorf("cannot store %T as string", v)
}

func toBytes(v any) ([]byte, error) {
	switch v := v.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, fmt.Errorf("cannot store %T as binary", v)
}
