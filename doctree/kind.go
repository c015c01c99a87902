package doctree

import "fmt"

// Kind is the encoded type of an attribute.
type Kind int

const (
	KindUnknown Kind = iota
	KindDouble
	KindFloat
	KindInt
	KindBool
	KindString
	KindNullableString
	KindEnum
	KindOptionalDouble
	KindOptionalInt
	KindOptionalBool
	KindIntArray
	KindStringArray
)

var kindNames = [...]string{
	KindUnknown:        "unknown",
	KindDouble:         "double",
	KindFloat:          "float",
	KindInt:            "int",
	KindBool:           "bool",
	KindString:         "string",
	KindNullableString: "nullable-string",
	KindEnum:           "enum",
	KindOptionalDouble: "optional-double",
	KindOptionalInt:    "optional-int",
	KindOptionalBool:   "optional-bool",
	KindIntArray:       "int-array",
	KindStringArray:    "string-array",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s && Kind(k) != KindUnknown {
			return Kind(k), nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown attribute kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
