package ring

import (
	"sort"
	"strings"

	"github.com/pg-sharding/ringkv/pkg/models/kverror"
)

// Key is a position on the ring: a fixed-width lowercase hex string.
type Key string

// Range is a ring interval with an exclusive lower and an inclusive upper
// bound. Lower == Upper covers the whole ring, Lower > Upper wraps past the
// maximum key.
type Range struct {
	Lower Key
	Upper Key
}

func (r Range) String() string {
	return string(r.Lower) + "-" + string(r.Upper)
}

// ParseRange reads the "lower-upper" form used on the wire.
func ParseRange(s string, hf HashFunctionType) (Range, error) {
	lower, upper, ok := strings.Cut(s, "-")
	if !ok {
		return Range{}, kverror.Newf(kverror.KV_INVALID_ARGUMENT, "range %q has no separator", s)
	}
	for _, bound := range []string{lower, upper} {
		if !validKey(bound, hf) {
			return Range{}, kverror.Newf(kverror.KV_INVALID_ARGUMENT, "range bound %q is not a %d digit hex key", bound, hf.Width())
		}
	}
	return Range{Lower: Key(lower), Upper: Key(upper)}, nil
}

func validKey(s string, hf HashFunctionType) bool {
	if len(s) != hf.Width() {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Owns reports whether h falls into r.
func Owns(r Range, h Key) bool {
	switch {
	case r.Lower == r.Upper:
		return true
	case r.Lower > r.Upper:
		return h > r.Lower || h <= r.Upper
	default:
		return r.Lower < h && h <= r.Upper
	}
}

// RangeFor returns the partition of member key within sortedMembers. The
// lower bound is the preceding member, wrapping to the last one.
func RangeFor(key Key, sortedMembers []Key) Range {
	i := sort.Search(len(sortedMembers), func(i int) bool {
		return sortedMembers[i] >= key
	})
	prev := i - 1
	if prev < 0 {
		prev = len(sortedMembers) - 1
	}
	if prev < 0 || sortedMembers[prev] == key {
		// key is alone on the ring
		return Range{Lower: key, Upper: key}
	}
	return Range{Lower: sortedMembers[prev], Upper: key}
}

// Successor returns the first member strictly after key, wrapping to the
// first member.
func Successor(key Key, sortedMembers []Key) Key {
	if len(sortedMembers) == 0 {
		return key
	}
	i := sort.Search(len(sortedMembers), func(i int) bool {
		return sortedMembers[i] > key
	})
	if i == len(sortedMembers) {
		i = 0
	}
	return sortedMembers[i]
}
