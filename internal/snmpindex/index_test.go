package snmpindex

import (
	"path/filepath"
	"testing"

	"github.com/grm84/snmpsim/internal/oid"
)

func TestEntryEncodeParseRoundTrip(t *testing.T) {
	e := Entry{Offset: 128, SubtreeFlag: true, PrevOffset: 64}
	got, err := ParseEntry(e.Encode())
	if err != nil {
		t.Fatalf("ParseEntry: %v", err)
	}
	if got != e {
		t.Fatalf("round trip = %+v, want %+v", got, e)
	}

	if _, err := ParseEntry("not,enough"); err == nil {
		t.Fatalf("expected error for malformed entry")
	}
}

func buildStore(t *testing.T, keys []string) *RadixStore {
	t.Helper()
	s := NewRadixStore()
	for i, k := range keys {
		s.Insert(k, Entry{Offset: int64(i * 10)})
	}
	s.Insert(oid.Last, Entry{Offset: -1})
	s.Finalize()
	return s
}

func TestGetExactMatch(t *testing.T) {
	s := buildStore(t, []string{"1.3.6.1.2.1.1.1.0", "1.3.6.1.2.1.1.2.0"})
	e, ok := s.Get("1.3.6.1.2.1.1.1.0")
	if !ok || e.Offset != 0 {
		t.Fatalf("Get exact match = %v, %v", e, ok)
	}
	if _, ok := s.Get("1.3.6.1.2.1.1.9.0"); ok {
		t.Fatalf("Get on absent key should miss")
	}
}

func TestNearestAndCeiling(t *testing.T) {
	s := buildStore(t, []string{"1.3.6.1.2.1.1.1.0", "1.3.6.1.2.1.1.3.0", "1.3.6.1.2.1.1.5.0"})

	// Nearest: greatest indexed key <= target.
	key, e, ok := s.Nearest(oid.MustParse("1.3.6.1.2.1.1.4.0"))
	if !ok || key != "1.3.6.1.2.1.1.3.0" || e.Offset != 10 {
		t.Fatalf("Nearest(1.1.4.0) = %q, %v, %v", key, e, ok)
	}
	if key, _, ok := s.Nearest(oid.MustParse("1.3.6.1.2.1.1.0.0")); ok || key != "" {
		t.Fatalf("Nearest before first key should miss, got %q", key)
	}

	// Ceiling: least indexed key > target when strict.
	key, e, ok = s.Ceiling(oid.MustParse("1.3.6.1.2.1.1.1.0"), true)
	if !ok || key != "1.3.6.1.2.1.1.3.0" || e.Offset != 10 {
		t.Fatalf("Ceiling(strict) = %q, %v, %v", key, e, ok)
	}
	// Non-strict ceiling on an exact key returns that key itself.
	key, e, ok = s.Ceiling(oid.MustParse("1.3.6.1.2.1.1.3.0"), false)
	if !ok || key != "1.3.6.1.2.1.1.3.0" || e.Offset != 10 {
		t.Fatalf("Ceiling(non-strict, exact) = %q, %v, %v", key, e, ok)
	}
	if _, _, ok := s.Ceiling(oid.MustParse("1.3.6.1.2.1.1.9.0"), true); ok {
		t.Fatalf("Ceiling past the last key should miss")
	}
}

func TestLastSentinel(t *testing.T) {
	s := buildStore(t, []string{"1.3.6.1.2.1.1.1.0"})
	last, ok := s.Last()
	if !ok || last.Offset != -1 {
		t.Fatalf("Last() = %v, %v", last, ok)
	}
}

func TestLen(t *testing.T) {
	s := buildStore(t, []string{"1.3.6.1.2.1.1.1.0", "1.3.6.1.2.1.1.2.0"})
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (the \"last\" sentinel must not count)", s.Len())
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := buildStore(t, []string{"1.3.6.1.2.1.1.1.0", "1.3.6.1.2.1.1.5.0"})
	path := filepath.Join(t.TempDir(), "index.sidecar")
	if err := Save(path, s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Len() != s.Len() {
		t.Fatalf("loaded Len() = %d, want %d", loaded.Len(), s.Len())
	}
	e, ok := loaded.Get("1.3.6.1.2.1.1.1.0")
	if !ok || e.Offset != 0 {
		t.Fatalf("loaded Get = %v, %v", e, ok)
	}
	last, ok := loaded.Last()
	if !ok || last.Offset != -1 {
		t.Fatalf("loaded Last() = %v, %v", last, ok)
	}
}
