package mirror

import (
	"slices"
)

// Diff returns the keys found but not existing, and the keys existing but no longer found.
// Both are sorted and free of duplicates.
func Diff(existing, found []string) (added, stale []string) {
	existingSet := make(map[string]struct{}, len(existing))
	for _, k := range existing {
		existingSet[k] = struct{}{}
	}
	foundSet := make(map[string]struct{}, len(found))
	for _, k := range found {
		foundSet[k] = struct{}{}
	}

	for k := range foundSet {
		if _, ok := existingSet[k]; !ok {
			added = append(added, k)
		}
	}
	for k := range existingSet {
		if _, ok := foundSet[k]; !ok {
			stale = append(stale, k)
		}
	}
	slices.Sort(added)
	slices.Sort(stale)
	return added, stale
}
