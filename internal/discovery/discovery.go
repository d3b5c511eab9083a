// Package discovery walks a data root directory and derives the agent
// identifier each simulation data file answers to. A single level of
// symbolic link is followed for both files and directories encountered
// along the walk, matching how the data root is expected to be laid out on
// disk (one indirection, not an arbitrary chain).
package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SelfLabel is the path segment eliding to "this directory's default
// agent" when deriving an identifier.
const SelfLabel = "self"

// Entry is one discovered data file.
type Entry struct {
	Path       string
	Extension  string
	Identifier string
}

// Walk walks root and returns one Entry per regular file whose extension is
// a key of extensions, in deterministic (lexicographic path) order.
// extensions maps a registered record-type extension (without the leading
// dot) to an opaque record-type tag the caller associates with that
// extension; discovery does not interpret it.
func Walk(root string, extensions map[string]string) ([]Entry, error) {
	entries, err := walkDir(root, root, extensions)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func walkDir(dir, root string, extensions map[string]string) ([]Entry, error) {
	names, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []Entry
	for _, d := range names {
		full := filepath.Join(dir, d.Name())

		info, err := os.Lstat(full)
		if err != nil {
			return nil, err
		}

		if info.Mode()&os.ModeSymlink != 0 {
			target, terr := followSymlink(full, dir)
			if terr != nil {
				return nil, terr
			}
			info, err = os.Stat(target)
			if err != nil {
				return nil, err
			}
		}

		switch {
		case info.IsDir():
			sub, err := walkDir(full, root, extensions)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)

		case info.Mode().IsRegular():
			entry, ok := entryFor(d.Name(), full, root, extensions)
			if ok {
				out = append(out, entry)
			}
		}
	}
	return out, nil
}

func followSymlink(path, parentDir string) (string, error) {
	target, err := os.Readlink(path)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(parentDir, target)
	}
	return target, nil
}

func entryFor(name, fullPath, root string, extensions map[string]string) (Entry, bool) {
	for ext, recordType := range extensions {
		suffix := "." + ext
		if !strings.HasSuffix(name, suffix) {
			continue
		}

		rel, err := filepath.Rel(root, fullPath)
		if err != nil {
			return Entry{}, false
		}

		ident := deriveIdentifier(rel, ext)
		return Entry{Path: fullPath, Extension: recordType, Identifier: ident}, true
	}
	return Entry{}, false
}

// deriveIdentifier turns a data-root-relative path into an agent
// identifier: extension stripped, path separators normalized to "/", and a
// trailing "self" segment (the file's own basename) elided — a data file
// named "self.<ext>" names its containing directory's default agent, so
// "site/self.snmprec" identifies "site", and a bare "self.snmprec" at the
// data root identifies the empty (root) agent.
func deriveIdentifier(rel, ext string) string {
	segments := strings.Split(filepath.ToSlash(rel), "/")

	last := strings.TrimSuffix(segments[len(segments)-1], "."+ext)
	segments[len(segments)-1] = last

	if last == SelfLabel {
		segments = segments[:len(segments)-1]
	}

	return strings.Join(segments, "/")
}
