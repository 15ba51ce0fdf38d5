package policy

import (
	"fmt"
	"strings"
)

const (
	keySeparator = ':'
	keyEscape    = '\\'
)

// OwnerKey identifies the channel/blueprint pair a default asset belongs to.
type OwnerKey struct {
	ChannelSlug string `json:"channel_slug"`
	BlueprintID string `json:"blueprint_id"`
}

// Parts returns the owner components in hashing order.
func (o OwnerKey) Parts() []string {
	return []string{o.ChannelSlug, o.BlueprintID}
}

// String returns the composite key, e.g. "nutrition:bp-1".
func (o OwnerKey) String() string {
	return CompositeKey(o.Parts()...)
}

// CompositeKey joins parts with ':' after escaping '\' and ':' inside each
// part, so two different part tuples never produce the same key.
func CompositeKey(parts ...string) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(keySeparator)
		}
		for j := 0; j < len(p); j++ {
			c := p[j]
			if c == keySeparator || c == keyEscape {
				b.WriteByte(keyEscape)
			}
			b.WriteByte(c)
		}
	}
	return b.String()
}

// SelectDefault picks the default asset for owner from candidates. Identical
// inputs always yield the same candidate, so concurrent workers racing to
// assign a default agree on the value.
func SelectDefault(owner OwnerKey, candidates []string) (string, error) {
	return SelectDefaultParts(owner.Parts(), candidates)
}

// SelectDefaultParts is SelectDefault for an arbitrary list of owner parts.
func SelectDefaultParts(parts []string, candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: owner %q", ErrNoCandidates, CompositeKey(parts...))
	}
	idx, err := StableIndex(CompositeKey(parts...), len(candidates))
	if err != nil {
		return "", err
	}
	return candidates[idx], nil
}
