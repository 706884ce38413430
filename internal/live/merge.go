package live

import "maps"

// Merge applies a partial document on top of a previous one. The merge is
// shallow: top-level keys in partial overwrite, omitted keys persist, and
// nested objects are replaced whole. Neither input is modified.
func Merge(prev, partial map[string]any) map[string]any {
	merged := make(map[string]any, len(prev)+len(partial))
	maps.Copy(merged, prev)
	maps.Copy(merged, partial)
	return merged
}
