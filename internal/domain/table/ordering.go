package table

import "strings"

// OrderingParam is the query parameter holding the current ordering.
const OrderingParam = "ordering"

// NextOrdering cycles a column through unsorted, ascending and descending:
// "" -> key -> "-key" -> "". Ordering by another column starts at ascending.
func NextOrdering(current, key string) string {
	switch current {
	case key:
		return "-" + key
	case "-" + key:
		return ""
	}
	return key
}

// SortState reports how current sorts by key: "asc", "desc" or "".
func SortState(current, key string) string {
	switch {
	case key == "":
		return ""
	case current == key:
		return "asc"
	case current == "-"+key:
		return "desc"
	}
	return ""
}

// OrderBy converts an ordering parameter into query ordering, accepting only
// keys that belong to a sortable column.
func OrderBy(current string, cols []Column) []string {
	key := strings.TrimPrefix(current, "-")
	if key == "" {
		return nil
	}
	for _, c := range cols {
		if c.SortKey == key {
			return []string{current}
		}
	}
	return nil
}
