package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte("1.3.6.1.2.1.1.1.0|2|1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestWalkDerivesIdentifierFromRelativePath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "device-a.snmprec"))
	writeFile(t, filepath.Join(root, "group", "device-b.snmprec"))

	entries, err := Walk(root, map[string]string{"snmprec": "snmprec"})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Walk returned %d entries, want 2", len(entries))
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.Identifier
	}
	sort.Strings(ids)
	want := []string{"device-a", "group/device-b"}
	sort.Strings(want)
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("identifiers = %v, want %v", ids, want)
		}
	}
}

func TestWalkIgnoresUnrecognizedExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "device-a.snmprec"))
	if err := os.WriteFile(filepath.Join(root, "readme.txt"), []byte("not a dataset"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	entries, err := Walk(root, map[string]string{"snmprec": "snmprec"})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(entries) != 1 || entries[0].Identifier != "device-a" {
		t.Fatalf("entries = %+v, want exactly device-a", entries)
	}
}

func TestWalkElidesSelfSegment(t *testing.T) {
	root := t.TempDir()
	// "site/self.snmprec" names "site"'s default agent: the trailing
	// "self" segment (the file's own basename, extension stripped) is
	// elided from the derived identifier.
	writeFile(t, filepath.Join(root, "site", "self.snmprec"))
	// A bare "self.snmprec" at the data root identifies the empty (root)
	// agent.
	writeFile(t, filepath.Join(root, "self.snmprec"))

	entries, err := Walk(root, map[string]string{"snmprec": "snmprec"})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Walk returned %d entries, want 2", len(entries))
	}

	ids := make(map[string]bool, len(entries))
	for _, e := range entries {
		ids[e.Identifier] = true
	}
	if !ids["site"] {
		t.Fatalf("expected identifier %q (elided from site/self.snmprec), got %v", "site", ids)
	}
	if !ids[""] {
		t.Fatalf("expected empty root identifier (elided from self.snmprec), got %v", ids)
	}
}

func TestWalkFollowsOneLevelSymlink(t *testing.T) {
	root := t.TempDir()
	real := filepath.Join(root, "real", "device-a.snmprec")
	writeFile(t, real)

	link := filepath.Join(root, "alias")
	if err := os.Symlink(filepath.Join(root, "real"), link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	entries, err := Walk(root, map[string]string{"snmprec": "snmprec"})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	ids := make(map[string]bool, len(entries))
	for _, e := range entries {
		ids[e.Identifier] = true
	}
	if !ids["real/device-a"] || !ids["alias/device-a"] {
		t.Fatalf("expected both real and symlinked paths discovered, got %v", ids)
	}
}

func TestWalkEmptyRoot(t *testing.T) {
	root := t.TempDir()
	entries, err := Walk(root, map[string]string{"snmprec": "snmprec"})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("Walk(empty root) = %+v, want no entries", entries)
	}
}
