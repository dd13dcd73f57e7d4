package query

import (
	"strconv"
	"strings"
)

// Key identifies a cache entry. The first segment is the key family:
// Key{"students", "ann"} and Key{"students", ""} both belong to "students".
type Key []string

// Family returns the first segment, or "" for an empty key.
func (k Key) Family() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// HasPrefix reports whether the first len(prefix) segments of k equal prefix.
// The empty prefix matches every key.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// String is the map key of the entry. Each segment is length-prefixed, so
// {"a", "b"} and {"a:b"} map to different strings.
func (k Key) String() string {
	var b strings.Builder
	for _, seg := range k {
		b.WriteString(strconv.Itoa(len(seg)))
		b.WriteByte(':')
		b.WriteString(seg)
	}
	return b.String()
}

func (k Key) clone() Key {
	return append(Key(nil), k...)
}
