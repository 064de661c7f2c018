package mcu

import "sort"

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func sortByID(names []string, ids map[string]int) {
	sort.SliceStable(names, func(i, j int) bool { return ids[names[i]] < ids[names[j]] })
}
