package components

import "fmt"

// Device variants as used by the AIE_VARIANT parameter.
const (
	VariantAIE     int64 = 1
	VariantAIEML   int64 = 2
	VariantAIEMLv2 int64 = 22
)

var dataTypeBytes = map[string]int64{
	"int8":      1,
	"uint8":     1,
	"int16":     2,
	"bfloat16":  2,
	"int32":     4,
	"cint16":    4,
	"float":     4,
	"cbfloat16": 4,
	"cint32":    8,
	"cfloat":    8,
}

// SizeOf returns the size in bytes of one sample of a datatype tag.
func SizeOf(dataType string) (int64, error) {
	n, ok := dataTypeBytes[dataType]
	if !ok {
		return 0, fmt.Errorf("unknown data type %q", dataType)
	}
	return n, nil
}

// IsComplex reports whether a datatype tag names a complex type.
func IsComplex(dataType string) bool {
	switch dataType {
	case "cint16", "cint32", "cfloat", "cbfloat16":
		return true
	default:
		return false
	}
}

// dataMemoryBytes is the local data memory of one tile.
func dataMemoryBytes(variant int64) int64 {
	if variant == VariantAIE {
		return 32768
	}
	return 65536
}

// maxReadWriteBits is the widest single load or store.
func maxReadWriteBits(variant int64) int64 {
	if variant == VariantAIEMLv2 {
		return 512
	}
	return 256
}

// ceilMultiple rounds x up to a multiple of m.
func ceilMultiple(x, m int64) int64 {
	if m <= 0 {
		return x
	}
	return (x + m - 1) / m * m
}
