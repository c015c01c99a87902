package bintree

// Reserved values. EndNode never collides with a dictionary code because
// codes start at 1; NullEnum never collides with an ordinal because ordinals
// are non-negative.
const (
	// EndNode closes a node and terminates child iteration.
	EndNode uint16 = 0

	// NullEnum is the ordinal written for an absent enum value.
	NullEnum = -1
)

const (
	rootCode uint16 = 1

	// nullStringLen is the 16-bit length prefix of a null string (-1 as int16).
	nullStringLen uint16 = 0xFFFF

	// MaxStringLen is the longest string, in bytes, the 16-bit length prefix
	// can describe; the all-ones prefix is reserved for null.
	MaxStringLen = 0xFFFE

	// MaxCount is the largest element count of an array attribute, extension
	// map or dictionary.
	MaxCount = 0xFFFF

	// MaxEnumOrdinal is the largest ordinal that fits the signed 16-bit slot.
	MaxEnumOrdinal = 0x7FFF
)

// DefaultMagic identifies binary IIDM documents ("Binary IIDM" in ASCII).
var DefaultMagic = []byte{0x42, 0x69, 0x6e, 0x61, 0x72, 0x79, 0x20, 0x49, 0x49, 0x44, 0x4d}
