package handlecache

import (
	"errors"
	"testing"
)

type fakeOpener struct {
	path       string
	opens      int
	closes     int
	openErr    error
	closeErr   error
}

func (f *fakeOpener) Path() string { return f.path }
func (f *fakeOpener) Open() error {
	f.opens++
	return f.openErr
}
func (f *fakeOpener) Close() error {
	f.closes++
	return f.closeErr
}

func TestNewDefaultsCapacity(t *testing.T) {
	p := New(0)
	if p.capacity != DefaultCapacity {
		t.Fatalf("New(0) capacity = %d, want %d", p.capacity, DefaultCapacity)
	}
	p = New(-5)
	if p.capacity != DefaultCapacity {
		t.Fatalf("New(-5) capacity = %d, want %d", p.capacity, DefaultCapacity)
	}
}

func TestAcquireOpensOnce(t *testing.T) {
	p := New(31)
	o := &fakeOpener{path: "a"}
	if _, err := p.Acquire(o); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if o.opens != 1 {
		t.Fatalf("opens = %d, want 1", o.opens)
	}

	// Re-acquiring the same path must return the existing entry, not
	// reopen it.
	dup := &fakeOpener{path: "a"}
	got, err := p.Acquire(dup)
	if err != nil {
		t.Fatalf("Acquire(dup): %v", err)
	}
	if got != o {
		t.Fatalf("Acquire(dup) returned a different entry than the cached one")
	}
	if dup.opens != 0 {
		t.Fatalf("discarded opener must never be opened")
	}
}

func TestAcquireEvictsOldestOnCapacity(t *testing.T) {
	p := New(2)
	a := &fakeOpener{path: "a"}
	b := &fakeOpener{path: "b"}
	c := &fakeOpener{path: "c"}

	if _, err := p.Acquire(a); err != nil {
		t.Fatalf("Acquire(a): %v", err)
	}
	if _, err := p.Acquire(b); err != nil {
		t.Fatalf("Acquire(b): %v", err)
	}
	if p.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", p.Len())
	}

	// Pool is now at capacity; acquiring a third path must evict "a",
	// the oldest by open time, not by access recency.
	if _, err := p.Acquire(c); err != nil {
		t.Fatalf("Acquire(c): %v", err)
	}
	if a.closes != 1 {
		t.Fatalf("oldest entry a.closes = %d, want 1", a.closes)
	}
	if b.closes != 0 {
		t.Fatalf("b must survive eviction, b.closes = %d, want 0", b.closes)
	}
	if p.Len() != 2 {
		t.Fatalf("Len() after eviction = %d, want 2", p.Len())
	}
}

func TestAcquirePropagatesOpenError(t *testing.T) {
	p := New(31)
	wantErr := errors.New("disk on fire")
	o := &fakeOpener{path: "a", openErr: wantErr}
	if _, err := p.Acquire(o); err == nil {
		t.Fatalf("expected Acquire to propagate Open error")
	}
	if p.Len() != 0 {
		t.Fatalf("a failed Open must not register an entry, Len() = %d", p.Len())
	}
}

func TestReleaseClosesAndForgets(t *testing.T) {
	p := New(31)
	o := &fakeOpener{path: "a"}
	if _, err := p.Acquire(o); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := p.Release("a"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if o.closes != 1 {
		t.Fatalf("closes = %d, want 1", o.closes)
	}
	if p.Len() != 0 {
		t.Fatalf("Len() after release = %d, want 0", p.Len())
	}
	// Releasing an absent path is a no-op, not an error.
	if err := p.Release("missing"); err != nil {
		t.Fatalf("Release(missing): %v", err)
	}
}

func TestCloseAllClosesEverything(t *testing.T) {
	p := New(31)
	a := &fakeOpener{path: "a"}
	b := &fakeOpener{path: "b"}
	if _, err := p.Acquire(a); err != nil {
		t.Fatalf("Acquire(a): %v", err)
	}
	if _, err := p.Acquire(b); err != nil {
		t.Fatalf("Acquire(b): %v", err)
	}
	if err := p.CloseAll(); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
	if a.closes != 1 || b.closes != 1 {
		t.Fatalf("a.closes=%d b.closes=%d, want 1,1", a.closes, b.closes)
	}
	if p.Len() != 0 {
		t.Fatalf("Len() after CloseAll = %d, want 0", p.Len())
	}
}
