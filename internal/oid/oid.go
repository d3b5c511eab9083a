// Package oid implements the ordered object-identifier type the data-resolution
// core compares, sorts and seeks by. OIDs are compared component-wise as
// unsigned integers, never as raw dotted strings, so "1.2.10" correctly sorts
// after "1.2.9".
package oid

import (
	"fmt"
	"strconv"
	"strings"
)

// OID is an ordered sequence of non-negative integers, e.g. 1.3.6.1.2.1.1.1.0.
type OID []uint32

// Last is the sentinel used by the index when a lookup runs off the end of
// the data file (the "last" key referenced by the lookup algorithm).
const Last = "last"

// Parse splits a dotted-decimal string into an OID. A leading "." is
// tolerated since wire-level OIDs are frequently rendered with one.
func Parse(s string) (OID, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), ".")
	if s == "" {
		return OID{}, nil
	}
	parts := strings.Split(s, ".")
	out := make(OID, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("oid: invalid component %q in %q: %w", p, s, err)
		}
		out = append(out, uint32(n))
	}
	return out, nil
}

// MustParse is Parse, panicking on error. Reserved for constants and tests.
func MustParse(s string) OID {
	o, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return o
}

// String renders the OID in dotted-decimal form.
func (o OID) String() string {
	if len(o) == 0 {
		return ""
	}
	var b strings.Builder
	for i, n := range o {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.FormatUint(uint64(n), 10))
	}
	return b.String()
}

// Compare returns -1, 0 or 1 as o is lexicographically less than, equal to,
// or greater than other. Lexicographic order compares components pairwise;
// a strict prefix sorts before any of its extensions.
func (o OID) Compare(other OID) int {
	n := len(o)
	if len(other) < n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		if o[i] != other[i] {
			if o[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(o) < len(other):
		return -1
	case len(o) > len(other):
		return 1
	default:
		return 0
	}
}

// Less reports whether o sorts strictly before other.
func (o OID) Less(other OID) bool {
	return o.Compare(other) < 0
}

// Equal reports whether o and other name the same OID.
func (o OID) Equal(other OID) bool {
	return o.Compare(other) == 0
}

// IsPrefixOf reports whether o is a proper-or-equal prefix of other, i.e.
// every component of o matches the corresponding component of other.
func (o OID) IsPrefixOf(other OID) bool {
	if len(o) > len(other) {
		return false
	}
	for i, n := range o {
		if other[i] != n {
			return false
		}
	}
	return true
}

// Clone returns a defensive copy of o.
func (o OID) Clone() OID {
	out := make(OID, len(o))
	copy(out, o)
	return out
}
