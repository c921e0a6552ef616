// Package classindex holds the short-name to fully-qualified-name mapping
// built from scanned archives.
//
// Each value set is a sorted slice without duplicates, so lookups return
// names in lexicographic order and re-indexing an archive is a no-op for
// names already present. An Index is not safe for concurrent mutation; the
// owner serializes access.
package classindex

import (
	"fmt"
	"slices"
	"strings"
)

// Index maps a short class name to the fully-qualified names sharing it.
type Index struct {
	classes map[string][]string
	total   int
}

// New returns an empty index.
func New() *Index {
	return &Index{classes: make(map[string][]string)}
}

// ShortName returns the text after the last '.' of a fully-qualified name,
// or the whole name when it has no package.
func ShortName(fullName string) string {
	if i := strings.LastIndexByte(fullName, '.'); i >= 0 {
		return fullName[i+1:]
	}
	return fullName
}

// Add inserts a fully-qualified name under its short name and reports
// whether it was new.
func (x *Index) Add(fullName string) bool {
	short := ShortName(fullName)
	names := x.classes[short]
	i, found := slices.BinarySearch(names, fullName)
	if found {
		return false
	}
	x.classes[short] = slices.Insert(names, i, fullName)
	x.total++
	return true
}

// AddAll inserts every name and returns how many were new.
func (x *Index) AddAll(fullNames []string) int {
	added := 0
	for _, name := range fullNames {
		if x.Add(name) {
			added++
		}
	}
	return added
}

// Lookup returns the fully-qualified names for an exact short name, or nil
// when the name is unknown. The returned slice is a copy.
func (x *Index) Lookup(shortName string) []string {
	names, ok := x.classes[shortName]
	if !ok {
		return nil
	}
	return slices.Clone(names)
}

// Contains reports whether the fully-qualified name is indexed.
func (x *Index) Contains(fullName string) bool {
	_, found := slices.BinarySearch(x.classes[ShortName(fullName)], fullName)
	return found
}

// Len returns the number of distinct short names.
func (x *Index) Len() int {
	return len(x.classes)
}

// Count returns the number of fully-qualified names across all keys.
func (x *Index) Count() int {
	return x.total
}

// ShortNames returns every key in sorted order.
func (x *Index) ShortNames() []string {
	keys := make([]string, 0, len(x.classes))
	for k := range x.classes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Each calls fn for every key in sorted order. fn must not modify names.
func (x *Index) Each(fn func(shortName string, fullNames []string)) {
	for _, k := range x.ShortNames() {
		fn(k, x.classes[k])
	}
}

// Put replaces the set stored under shortName. Names are sorted and
// deduplicated; every name must have shortName as its short name.
func (x *Index) Put(shortName string, fullNames []string) error {
	set := slices.Clone(fullNames)
	slices.Sort(set)
	set = slices.Compact(set)
	for _, name := range set {
		if ShortName(name) != shortName {
			return fmt.Errorf("class %q does not belong under short name %q", name, shortName)
		}
	}
	x.total -= len(x.classes[shortName])
	if len(set) == 0 {
		delete(x.classes, shortName)
		return nil
	}
	x.classes[shortName] = set
	x.total += len(set)
	return nil
}

// Merge adds every name of other into x and returns how many were new.
func (x *Index) Merge(other *Index) int {
	added := 0
	for _, names := range other.classes {
		added += x.AddAll(names)
	}
	return added
}

// Equal reports whether both indexes hold the same keys and sets.
func (x *Index) Equal(other *Index) bool {
	if x.Len() != other.Len() || x.Count() != other.Count() {
		return false
	}
	for k, names := range x.classes {
		if !slices.Equal(names, other.classes[k]) {
			return false
		}
	}
	return true
}
