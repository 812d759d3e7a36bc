package hashstore

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/livesync/internal/livesync"
)

// ChangeSet is the difference between two hash snapshots. Every list is sorted.
type ChangeSet struct {
	Added   []string
	Changed []string
	Removed []string
}

// IsEmpty reports whether both snapshots hold the same content
func (c ChangeSet) IsEmpty() bool {
	return len(c.Added) == 0 && len(c.Changed) == 0 && len(c.Removed) == 0
}

// Diff compares the device snapshot with the local one
func Diff(oldHashes, newHashes livesync.HashSnapshot) ChangeSet {
	oldPaths := mapset.NewThreadUnsafeSetFromMapKeys(oldHashes)
	newPaths := mapset.NewThreadUnsafeSetFromMapKeys(newHashes)

	var changed []string
	for path := range oldPaths.Intersect(newPaths).Iter() {
		if oldHashes[path] != newHashes[path] {
			changed = append(changed, path)
		}
	}

	return ChangeSet{
		Added:   sorted(newPaths.Difference(oldPaths)),
		Changed: sortedSlice(changed),
		Removed: sorted(oldPaths.Difference(newPaths)),
	}
}

// ChangedShasums returns the new hash of every added or modified path
func ChangedShasums(oldHashes, newHashes livesync.HashSnapshot) livesync.HashSnapshot {
	diff := Diff(oldHashes, newHashes)
	out := make(livesync.HashSnapshot, len(diff.Added)+len(diff.Changed))
	for _, path := range diff.Added {
		out[path] = newHashes[path]
	}
	for _, path := range diff.Changed {
		out[path] = newHashes[path]
	}
	return out
}

// MissingShasums returns the old hash of every path that is gone locally
func MissingShasums(oldHashes, newHashes livesync.HashSnapshot) livesync.HashSnapshot {
	diff := Diff(oldHashes, newHashes)
	out := make(livesync.HashSnapshot, len(diff.Removed))
	for _, path := range diff.Removed {
		out[path] = oldHashes[path]
	}
	return out
}

func sorted(set mapset.Set[string]) []string {
	return sortedSlice(set.ToSlice())
}

func sortedSlice(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	slices.Sort(s)
	return s
}
