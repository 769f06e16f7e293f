package simd

import (
	"encoding/binary"
	"math"
	"math/bits"
)

// Dot calculates the dot product of two vectors.
//
// This function assumes len(a) == len(b) and does not compare the lengths:
// if b is shorter than a it panics with an index out of range, and any
// elements of b beyond len(a) are ignored.
func Dot(a, b []float32) float32 {
	var ret float32
	for i := range a {
		ret += a[i] * b[i]
	}

	return ret
}

// SquaredL2 calculates the squared L2 distance.
//
// This function assumes len(a) == len(b) and does not compare the lengths:
// if b is shorter than a it panics with an index out of range, and any
// elements of b beyond len(a) are ignored.
func SquaredL2(a, b []float32) float32 {
	var distance float32
	for i := range a {
		d := a[i] - b[i]
		distance += d * d
	}

	return distance
}

// ScaleInPlace multiplies all elements of a by scalar.
//
// This is primarily used by distance normalization.
func ScaleInPlace(a []float32, scalar float32) {
	for i := range a {
		a[i] *= scalar
	}
}

// Sqrt returns the square root of v as a float32.
func Sqrt(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}

// Hamming computes the Hamming distance between a and b, processing eight
// bytes at a time with a trailing byte-wise remainder.
func Hamming(a, b []byte) int64 {
	var sum int64
	n := len(a)
	for n >= 8 {
		v1 := binary.LittleEndian.Uint64(a)
		v2 := binary.LittleEndian.Uint64(b)
		sum += int64(bits.OnesCount64(v1 ^ v2))
		a = a[8:]
		b = b[8:]
		n -= 8
	}
	for i := range a {
		sum += int64(bits.OnesCount8(a[i] ^ b[i]))
	}
	return sum
}
