// Package snmpindex implements the external sorted index the data-file
// controller probes before falling back to a sequential scan. The index is
// opaque to the controller: a KV store keyed by the dotted-decimal OID
// string, mapping to an Entry describing where the matching record sits in
// the data file and how to continue the successor chain from there.
//
// The store is backed by a radix tree for prefix-aware lookups, paired with
// a separately maintained ascending slice of keys for binary-search
// nearest-match queries — radix tree iteration order is byte order on the
// raw string, which is not the same as numeric OID order, so the sorted
// slice is what actually gives GETNEXT its ordering guarantee.
package snmpindex

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/armon/go-radix"

	"github.com/grm84/snmpsim/internal/oid"
)

// Entry is one index record: the byte offset of the matching line in the
// data file, whether that line covers an entire subtree (and therefore
// should be re-consulted for every OID under it rather than only for an
// exact match), and the offset of the previous subtree-covering record —
// the link the successor loop follows when a line's own successor
// reference is stale or itself exhausted.
type Entry struct {
	Offset      int64
	SubtreeFlag bool
	PrevOffset  int64
}

// IndexError reports a problem building or reading the index, distinct from
// errors in the data file it indexes.
type IndexError struct {
	Path string
	Err  error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("snmpindex: %s: %v", e.Path, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// Encode renders an entry in the on-disk wire format "<offset>,<subtree>,<prev>".
func (e Entry) Encode() string {
	subtree := 0
	if e.SubtreeFlag {
		subtree = 1
	}
	return fmt.Sprintf("%d,%d,%d", e.Offset, subtree, e.PrevOffset)
}

// ParseEntry decodes the wire format produced by Encode.
func ParseEntry(raw string) (Entry, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return Entry{}, fmt.Errorf("malformed index entry %q", raw)
	}
	offset, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("malformed offset in %q: %w", raw, err)
	}
	subtree, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return Entry{}, fmt.Errorf("malformed subtree flag in %q: %w", raw, err)
	}
	prev, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("malformed prev offset in %q: %w", raw, err)
	}
	return Entry{Offset: offset, SubtreeFlag: subtree != 0, PrevOffset: prev}, nil
}

// Store is the narrow KV contract the controller depends on. Everything
// about how the index is built, stored or persisted is hidden behind it.
type Store interface {
	// Get returns the entry exactly matching key, if any.
	Get(key string) (Entry, bool)
	// Nearest returns the entry for the greatest indexed key less than or
	// equal to target, following the same ordering as OID.Compare. ok is
	// false only when no indexed key is <= target.
	Nearest(target oid.OID) (key string, entry Entry, ok bool)
	// Last returns the sentinel entry describing end-of-file, inserted by
	// Build under the literal key oid.Last.
	Last() (Entry, bool)
}

// RadixStore is the default Store, backed by a radix tree for exact lookups
// and an ascending parallel slice of keys for nearest-match binary search.
type RadixStore struct {
	tree       *radix.Tree
	sortedKeys []oid.OID
	sortedRaw  []string
}

// NewRadixStore returns an empty store, ready for Insert.
func NewRadixStore() *RadixStore {
	return &RadixStore{tree: radix.New()}
}

// Insert adds or overwrites the entry for key. Keys other than oid.Last
// must parse as OIDs; Insert panics on a malformed non-sentinel key since
// index construction controls every key it ever inserts.
func (s *RadixStore) Insert(key string, e Entry) {
	s.tree.Insert(key, e)
	if key == oid.Last {
		return
	}
	parsed, err := oid.Parse(key)
	if err != nil {
		panic(fmt.Sprintf("snmpindex: invalid OID key %q: %v", key, err))
	}
	s.sortedKeys = append(s.sortedKeys, parsed)
	s.sortedRaw = append(s.sortedRaw, key)
}

// Finalize sorts the accumulated keys. Must be called once after the last
// Insert and before any Get/Nearest call.
func (s *RadixStore) Finalize() {
	idx := make([]int, len(s.sortedKeys))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool {
		return s.sortedKeys[idx[i]].Less(s.sortedKeys[idx[j]])
	})
	keys := make([]oid.OID, len(idx))
	raw := make([]string, len(idx))
	for i, j := range idx {
		keys[i] = s.sortedKeys[j]
		raw[i] = s.sortedRaw[j]
	}
	s.sortedKeys = keys
	s.sortedRaw = raw
}

func (s *RadixStore) Get(key string) (Entry, bool) {
	v, ok := s.tree.Get(key)
	if !ok {
		return Entry{}, false
	}
	return v.(Entry), true
}

func (s *RadixStore) Last() (Entry, bool) {
	return s.Get(oid.Last)
}

// Nearest returns the greatest indexed key <= target via binary search
// over the sorted slice built by Finalize.
func (s *RadixStore) Nearest(target oid.OID) (string, Entry, bool) {
	i := sort.Search(len(s.sortedKeys), func(i int) bool {
		return !s.sortedKeys[i].Less(target)
	})
	if i < len(s.sortedKeys) && s.sortedKeys[i].Equal(target) {
		e, _ := s.Get(s.sortedRaw[i])
		return s.sortedRaw[i], e, true
	}
	if i == 0 {
		return "", Entry{}, false
	}
	key := s.sortedRaw[i-1]
	e, _ := s.Get(key)
	return key, e, true
}

// Ceiling returns the entry for the least indexed key greater than target
// (when strict is true) or greater than or equal to target (when strict is
// false). This is the "round up" search the controller falls back to when
// an exact index hit is absent — the miss always lands on the nearest
// following record, never a preceding one.
func (s *RadixStore) Ceiling(target oid.OID, strict bool) (string, Entry, bool) {
	i := sort.Search(len(s.sortedKeys), func(i int) bool {
		if strict {
			return target.Less(s.sortedKeys[i])
		}
		return !s.sortedKeys[i].Less(target)
	})
	if i >= len(s.sortedKeys) {
		return "", Entry{}, false
	}
	key := s.sortedRaw[i]
	e, _ := s.Get(key)
	return key, e, true
}

// Len reports the number of non-sentinel keys in the store.
func (s *RadixStore) Len() int {
	return len(s.sortedKeys)
}

// Save writes the index sidecar file, one "<oid>,<entry>" line per record in
// ascending key order, followed by the "last" sentinel.
func Save(path string, s *RadixStore) error {
	f, err := os.Create(path)
	if err != nil {
		return &IndexError{Path: path, Err: err}
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i, key := range s.sortedRaw {
		e, _ := s.Get(key)
		_ = i
		if _, err := fmt.Fprintf(w, "%s,%s\n", key, e.Encode()); err != nil {
			return &IndexError{Path: path, Err: err}
		}
	}
	if last, ok := s.Last(); ok {
		if _, err := fmt.Fprintf(w, "%s,%s\n", oid.Last, last.Encode()); err != nil {
			return &IndexError{Path: path, Err: err}
		}
	}
	return w.Flush()
}

// Load reads a sidecar file previously written by Save.
func Load(path string) (*RadixStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IndexError{Path: path, Err: err}
	}
	defer f.Close()

	s := NewRadixStore()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		i := strings.IndexByte(line, ',')
		if i < 0 {
			return nil, &IndexError{Path: path, Err: fmt.Errorf("malformed line %q", line)}
		}
		key := line[:i]
		entry, err := ParseEntry(line[i+1:])
		if err != nil {
			return nil, &IndexError{Path: path, Err: err}
		}
		s.Insert(key, entry)
	}
	if err := sc.Err(); err != nil {
		return nil, &IndexError{Path: path, Err: err}
	}
	s.Finalize()
	return s, nil
}
