package ingest

import "finman/internal/core"

// partition splits normalized candidates into records to insert and records
// skipped as duplicates. A candidate is a duplicate when its
// (date, description, value) key matches a stored expense or an earlier
// candidate in the same batch. Pure filtering: nothing is mutated.
func partition(candidates, existing []core.Expense) (toInsert, skipped []core.Expense) {
	seen := make(map[string]struct{}, len(existing)+len(candidates))
	for _, e := range existing {
		seen[e.Key()] = struct{}{}
	}

	for _, c := range candidates {
		key := c.Key()
		if _, dup := seen[key]; dup {
			skipped = append(skipped, c)
			continue
		}
		seen[key] = struct{}{}
		toInsert = append(toInsert, c)
	}
	return toInsert, skipped
}
