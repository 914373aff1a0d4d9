package coalescer

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/zeebo/xxh3"
)

var hasherPool = sync.Pool{New: func() any { return xxh3.New() }}

// Key derives the request key from the target and a stable serialization of
// options: JSON with sorted map keys, hashed with xxh3-128. Options that
// cannot be serialized (channels, funcs, NaN) make the key malformed.
func Key(target string, options any) (string, error) {
	if target == "" {
		return "", fmt.Errorf("%w: empty target", ErrMalformedKey)
	}

	data, err := json.Marshal(options)
	if err != nil {
		return "", fmt.Errorf("%w: serialize options of %s: %w", ErrMalformedKey, target, err)
	}

	// acquire reusable hasher
	hasher := hasherPool.Get().(*xxh3.Hasher)
	hasher.Reset()
	_, _ = hasher.WriteString(target)
	_, _ = hasher.Write([]byte{0})
	_, _ = hasher.Write(data)
	sum := hasher.Sum128()
	// release hasher after use
	hasherPool.Put(hasher)

	return fmt.Sprintf("%s#%016x%016x", target, sum.Hi, sum.Lo), nil
}
