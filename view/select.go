package view

import "fmt"

// selectRows applies key, keys and range filters in the requested direction.
// It never modifies entries, which is shared with concurrent queries.
func selectRows(entries []entry, q *Query) ([]entry, error) {
	if q.hasKey {
		key, err := Normalize(q.key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		return ordered(matching(entries, key), q.descending), nil
	}

	if len(q.keys) > 0 {
		var out []entry
		for _, k := range q.keys {
			key, err := Normalize(k)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
			}
			out = append(out, ordered(matching(entries, key), q.descending)...)
		}
		return out, nil
	}

	var start, end any
	var err error
	if q.hasStartKey {
		if start, err = Normalize(q.startKey); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
	}
	if q.hasEndKey {
		if end, err = Normalize(q.endKey); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
	}

	out := make([]entry, 0, len(entries))
	for _, ent := range ordered(entries, q.descending) {
		if q.hasStartKey {
			c := compareBound(ent, start, q.startKeyDocID)
			if (!q.descending && c < 0) || (q.descending && c > 0) {
				continue
			}
		}
		if q.hasEndKey {
			c := compareBound(ent, end, q.endKeyDocID)
			if q.descending {
				c = -c
			}
			if c > 0 || (c == 0 && q.exclusiveEnd) {
				continue
			}
		}
		out = append(out, ent)
	}
	return out, nil
}

// compareBound compares an entry with a range bound, using the document id
// as a tie breaker when one is given
func compareBound(ent entry, key any, docID string) int {
	c := Compare(ent.key, key)
	if c != 0 || docID == "" {
		return c
	}
	switch {
	case ent.id < docID:
		return -1
	case ent.id > docID:
		return 1
	}
	return 0
}

func matching(entries []entry, key any) []entry {
	var out []entry
	for _, ent := range entries {
		if Compare(ent.key, key) == 0 {
			out = append(out, ent)
		}
	}
	return out
}

func ordered(entries []entry, descending bool) []entry {
	if !descending {
		return entries
	}
	out := make([]entry, len(entries))
	for i, ent := range entries {
		out[len(entries)-1-i] = ent
	}
	return out
}

// reduceRows folds the selected rows: into one row without grouping, or one
// row per key (group) or per array-key prefix (group_level)
func reduceRows(rows []entry, reduce ReduceFunc, q *Query) ([]Row, error) {
	if !q.group && q.groupLevel == 0 {
		if len(rows) == 0 {
			return []Row{}, nil
		}
		value, err := reduceGroup(rows, reduce)
		if err != nil {
			return nil, err
		}
		return []Row{{Key: nil, Value: value}}, nil
	}

	var out []Row
	var groupKey any
	var members []entry
	flush := func() error {
		if len(members) == 0 {
			return nil
		}
		value, err := reduceGroup(members, reduce)
		if err != nil {
			return err
		}
		out = append(out, Row{Key: groupKey, Value: value})
		members = nil
		return nil
	}

	for _, ent := range rows {
		k := groupingKey(ent.key, q)
		if len(members) > 0 && Compare(k, groupKey) != 0 {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		groupKey = k
		members = append(members, ent)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Row{}
	}
	return out, nil
}

func groupingKey(key any, q *Query) any {
	if q.groupLevel == 0 {
		return key
	}
	arr, ok := key.([]any)
	if !ok || len(arr) <= q.groupLevel {
		return key
	}
	return arr[:q.groupLevel]
}

func reduceGroup(rows []entry, reduce ReduceFunc) (any, error) {
	keys := make([]any, len(rows))
	values := make([]any, len(rows))
	for i, ent := range rows {
		keys[i] = []any{ent.key, ent.id}
		values[i] = ent.value
	}
	value, err := reduce(keys, values)
	if err != nil {
		return nil, fmt.Errorf("reduce: %w", err)
	}
	return value, nil
}

// paginate applies skip then limit
func paginate[T any](rows []T, q *Query) []T {
	if q.skip >= len(rows) {
		return rows[:0:0]
	}
	rows = rows[q.skip:]
	if q.limit > 0 && q.limit < len(rows) {
		rows = rows[:q.limit]
	}
	return rows
}
