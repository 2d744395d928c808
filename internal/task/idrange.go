package task

import "strconv"

// ParseIDRange parses "N" into {N} and "A-B" (A <= B) into {A, A+1, ..., B}.
// Any other form, or a range with A > B, yields the empty set. Used by
// collaborators (the CLI's --range flag) for bulk delete.
func ParseIDRange(s string) []uint64 {
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return []uint64{n}
	}

	dash := -1
	for i := 1; i < len(s); i++ {
		if s[i] == '-' {
			dash = i
			break
		}
	}
	if dash < 0 {
		return nil
	}

	a, errA := strconv.ParseUint(s[:dash], 10, 64)
	b, errB := strconv.ParseUint(s[dash+1:], 10, 64)
	if errA != nil || errB != nil || a > b {
		return nil
	}

	ids := make([]uint64, 0, b-a+1)
	for id := a; id <= b; id++ {
		ids = append(ids, id)
	}
	return ids
}
