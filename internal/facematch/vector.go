package facematch

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
)

// Validate checks the descriptor length and that every component is finite.
func (v FaceVector) Validate() error {
	if len(v) != Dimension {
		return fmt.Errorf("%w: expected %d components, got %d", ErrInvalidDescriptor, Dimension, len(v))
	}
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: component %d is not finite", ErrInvalidDescriptor, i)
		}
	}
	return nil
}

// Clone returns a copy that does not share the backing array.
func (v FaceVector) Clone() FaceVector {
	if v == nil {
		return nil
	}
	out := make(FaceVector, len(v))
	copy(out, v)
	return out
}

// Key returns a stable content-derived key: the first 16 bytes of the SHA-256
// over the little-endian float32 bits, hex encoded.
func (v FaceVector) Key() string {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:16])
}

// FromFloat64 converts a JSON-decoded descriptor into a FaceVector.
func FromFloat64(values []float64) FaceVector {
	out := make(FaceVector, len(values))
	for i, x := range values {
		out[i] = float32(x)
	}
	return out
}

// EuclideanDistance returns the L2 distance between two descriptors.
// Accumulation is done in float64. Vectors of different length are infinitely far apart.
func EuclideanDistance(a, b FaceVector) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
