package doctree

import (
	"github.com/gridfmt/bintree"
)

// Value is one attribute value. Which fields are meaningful depends on Kind.
// Null marks a null string, a null enum or an absent optional scalar.
type Value struct {
	Kind Kind
	Num  float64
	Int  int32
	Bool bool
	Str  string
	Ord  int
	Null bool
	Ints []int32
	Strs []string
}

func Double(v float64) Value { return Value{Kind: KindDouble, Num: v} }
func Float(v float32) Value  { return Value{Kind: KindFloat, Num: float64(v)} }
func Int(v int32) Value      { return Value{Kind: KindInt, Int: v} }
func Bool(v bool) Value      { return Value{Kind: KindBool, Bool: v} }
func String(v string) Value  { return Value{Kind: KindString, Str: v} }

func NullableString(v *string) Value {
	if v == nil {
		return Value{Kind: KindNullableString, Null: true}
	}
	return Value{Kind: KindNullableString, Str: *v}
}

// Enum holds an ordinal; bintree.NullEnum makes a null enum.
func Enum(ordinal int) Value {
	if ordinal == bintree.NullEnum {
		return Value{Kind: KindEnum, Ord: bintree.NullEnum, Null: true}
	}
	return Value{Kind: KindEnum, Ord: ordinal}
}

func OptionalDouble(v bintree.Optional[float64]) Value {
	return Value{Kind: KindOptionalDouble, Num: v.Value, Null: !v.Valid}
}

func OptionalInt(v bintree.Optional[int32]) Value {
	return Value{Kind: KindOptionalInt, Int: v.Value, Null: !v.Valid}
}

func OptionalBool(v bintree.Optional[bool]) Value {
	return Value{Kind: KindOptionalBool, Bool: v.Value, Null: !v.Valid}
}

func IntArray(v []int32) Value {
	if len(v) == 0 {
		v = nil
	}
	return Value{Kind: KindIntArray, Ints: v}
}

func StringArray(v []string) Value {
	if len(v) == 0 {
		v = nil
	}
	return Value{Kind: KindStringArray, Strs: v}
}

// Native converts v to a plain Go value for export: nil for null values,
// enum value names for enums.
func (v Value) Native(spec AttrSpec) any {
	if v.Null {
		return nil
	}
	switch v.Kind {
	case KindDouble, KindOptionalDouble, KindFloat:
		return v.Num
	case KindInt, KindOptionalInt:
		return v.Int
	case KindBool, KindOptionalBool:
		return v.Bool
	case KindString, KindNullableString:
		return v.Str
	case KindEnum:
		if v.Ord >= 0 && v.Ord < len(spec.Values) {
			return spec.Values[v.Ord]
		}
		return v.Ord
	case KindIntArray:
		return append([]int32{}, v.Ints...)
	case KindStringArray:
		return append([]string{}, v.Strs...)
	}
	return nil
}

func writeValue(w bintree.TreeWriter, spec AttrSpec, v Value) {
	switch spec.Kind {
	case KindDouble:
		w.WriteDoubleAttribute(spec.Name, v.Num)
	case KindFloat:
		w.WriteFloatAttribute(spec.Name, float32(v.Num))
	case KindInt:
		w.WriteIntAttribute(spec.Name, v.Int)
	case KindBool:
		w.WriteBooleanAttribute(spec.Name, v.Bool)
	case KindString:
		w.WriteStringAttribute(spec.Name, v.Str)
	case KindNullableString:
		if v.Null {
			w.WriteNullableStringAttribute(spec.Name, nil)
		} else {
			w.WriteStringAttribute(spec.Name, v.Str)
		}
	case KindEnum:
		if v.Null {
			w.WriteEnumAttribute(spec.Name, bintree.NullEnum)
		} else {
			w.WriteEnumAttribute(spec.Name, v.Ord)
		}
	case KindOptionalDouble:
		w.WriteOptionalDoubleAttribute(spec.Name, bintree.Optional[float64]{Value: v.Num, Valid: !v.Null})
	case KindOptionalInt:
		w.WriteOptionalIntAttribute(spec.Name, bintree.Optional[int32]{Value: v.Int, Valid: !v.Null})
	case KindOptionalBool:
		w.WriteOptionalBooleanAttribute(spec.Name, bintree.Optional[bool]{Value: v.Bool, Valid: !v.Null})
	case KindIntArray:
		w.WriteIntArrayAttribute(spec.Name, v.Ints)
	case KindStringArray:
		w.WriteStringArrayAttribute(spec.Name, v.Strs)
	}
}

func readValue(r bintree.TreeReader, spec AttrSpec) (Value, error) {
	switch spec.Kind {
	case KindDouble:
		v, err := r.ReadDoubleAttribute(spec.Name)
		return Double(v), err
	case KindFloat:
		v, err := r.ReadFloatAttribute(spec.Name)
		return Float(v), err
	case KindInt:
		v, err := r.ReadIntAttribute(spec.Name)
		return Int(v), err
	case KindBool:
		v, err := r.ReadBooleanAttribute(spec.Name)
		return Bool(v), err
	case KindString:
		v, err := r.ReadStringAttribute(spec.Name)
		return String(v), err
	case KindNullableString:
		v, err := r.ReadNullableStringAttribute(spec.Name)
		return NullableString(v), err
	case KindEnum:
		v, err := r.ReadEnumAttribute(spec.Name, len(spec.Values))
		return Enum(v), err
	case KindOptionalDouble:
		v, err := r.ReadOptionalDoubleAttribute(spec.Name)
		return OptionalDouble(v), err
	case KindOptionalInt:
		v, err := r.ReadOptionalIntAttribute(spec.Name)
		return OptionalInt(v), err
	case KindOptionalBool:
		v, err := r.ReadOptionalBooleanAttribute(spec.Name)
		return OptionalBool(v), err
	case KindIntArray:
		v, err := r.ReadIntArrayAttribute(spec.Name)
		return IntArray(v), err
	case KindStringArray:
		v, err := r.ReadStringArrayAttribute(spec.Name)
		return StringArray(v), err
	}
	return Value{}, errUnknownKind(spec)
}
