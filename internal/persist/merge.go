package persist

import (
	"cmp"
	"slices"

	"github.com/huangsam/repoharvest/schema"
)

// topCount is how many repositories a merge summary lists.
const topCount = 5

// Merge concatenates first and second, keeps the first record per URL and
// orders the result by stars, most popular first.
func Merge(first, second []schema.CombinedRecord) ([]schema.CombinedRecord, schema.MergeSummary) {
	seen := make(map[string]struct{}, len(first)+len(second))
	merged := make([]schema.CombinedRecord, 0, len(first)+len(second))
	uniqueFirst := 0
	for i, rec := range slices.Concat(first, second) {
		if _, dup := seen[rec.URL]; dup {
			continue
		}
		seen[rec.URL] = struct{}{}
		merged = append(merged, rec)
		if i < len(first) {
			uniqueFirst++
		}
	}
	slices.SortStableFunc(merged, func(a, b schema.CombinedRecord) int {
		return cmp.Compare(b.Stars, a.Stars)
	})

	combined := len(first) + len(second)
	summary := schema.MergeSummary{
		FirstCount:      len(first),
		SecondCount:     len(second),
		Combined:        combined,
		Unique:          len(merged),
		Overlap:         combined - len(merged),
		AddedFromSecond: len(merged) - uniqueFirst,
		Top:             slices.Clone(merged[:min(topCount, len(merged))]),
	}
	return merged, summary
}
