package bintree

import "slices"

// WriteEnum writes v as the ordinal of its position in values.
func WriteEnum[E comparable](w TreeWriter, name string, values []E, v E) {
	w.WriteEnumAttribute(name, ordinalOf(values, v))
}

// WriteNullableEnum writes v, or NullEnum when v is nil.
func WriteNullableEnum[E comparable](w TreeWriter, name string, values []E, v *E) {
	if v == nil {
		w.WriteEnumAttribute(name, NullEnum)
		return
	}
	w.WriteEnumAttribute(name, ordinalOf(values, *v))
}

// ReadEnum resolves an ordinal against values. It returns false for NullEnum.
func ReadEnum[E any](r TreeReader, name string, values []E) (E, bool, error) {
	var zero E
	ord, err := r.ReadEnumAttribute(name, len(values))
	if err != nil {
		return zero, false, err
	}
	if ord == NullEnum {
		return zero, false, nil
	}
	return values[ord], true, nil
}

// ReadNullableEnum is ReadEnum returning nil for NullEnum.
func ReadNullableEnum[E any](r TreeReader, name string, values []E) (*E, error) {
	v, ok, err := ReadEnum(r, name, values)
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

// ordinalOf returns the index of v. A value outside the list maps to an
// ordinal the writer rejects, never to NullEnum.
func ordinalOf[E comparable](values []E, v E) int {
	i := slices.Index(values, v)
	if i < 0 {
		return MaxEnumOrdinal + 1
	}
	return i
}
