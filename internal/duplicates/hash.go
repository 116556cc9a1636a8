package duplicates

import (
	"fmt"
	"image"
	"strconv"

	"github.com/corona10/goimagehash"
)

// Hash is a 64-bit average hash: bit i is set when pixel i of the 8x8
// luminance thumbnail is brighter than the thumbnail mean.
type Hash uint64

// ComputeHash fingerprints a decoded image.
func ComputeHash(img image.Image) (Hash, error) {
	h, err := goimagehash.AverageHash(img)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return Hash(h.GetHash()), nil
}

// ParseHash reads the 16-digit hex form produced by String.
func ParseHash(s string) (Hash, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}
	return Hash(v), nil
}

func (h Hash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(b []byte) error {
	v, err := ParseHash(string(b))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// Distance is the Hamming distance between two hashes.
func (h Hash) Distance(other Hash) int {
	a := goimagehash.NewImageHash(uint64(h), goimagehash.AHash)
	b := goimagehash.NewImageHash(uint64(other), goimagehash.AHash)
	d, _ := a.Distance(b)
	return d
}
