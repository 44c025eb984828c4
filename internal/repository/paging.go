package repository

import (
	"fmt"
	"strings"
)

// pageWindow normalises pagination inputs into LIMIT/OFFSET values.
func pageWindow(page, size int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return size, (page - 1) * size
}

func sortOrder(raw, fallback string) string {
	order := strings.ToUpper(raw)
	if order != "ASC" && order != "DESC" {
		return fallback
	}
	return order
}

// filterSet accumulates positional predicates for list queries.
type filterSet struct {
	conditions []string
	args       []interface{}
}

// add appends a predicate; %d in the format receives the next placeholder index.
func (f *filterSet) add(format string, arg interface{}) {
	f.args = append(f.args, arg)
	f.conditions = append(f.conditions, strings.ReplaceAll(format, "%d", fmt.Sprintf("%d", len(f.args))))
}

func (f *filterSet) where() string {
	if len(f.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.conditions, " AND ")
}
