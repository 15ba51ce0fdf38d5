package policy

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// HashPolicyVersion identifies the hash used by StableIndex. Persisted
// assignments record it; changing the hash means bumping this value.
const HashPolicyVersion = "xxh3-64/v1"

// StableIndex maps key onto [0, length) using unseeded XXH3-64 over the
// key's bytes. The result is the same on every process and platform.
func StableIndex(key string, length int) (int, error) {
	if length <= 0 {
		return 0, fmt.Errorf("%w: length must be positive, got %d", ErrInvalidArgument, length)
	}
	return int(xxh3.HashString(key) % uint64(length)), nil
}
