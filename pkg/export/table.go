package export

import "fmt"

// Column describes one exported field.
type Column struct {
	Key   string
	Label string
	// Align is a gofpdf alignment string ("L", "C", "R").
	Align string
}

// Table is the tabular payload shared by every renderer.
type Table struct {
	Title   string
	Columns []Column
	Rows    []map[string]string
	Footer  map[string]string
}

func (t Table) validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("table requires at least one column")
	}
	return nil
}

func (t Table) labels() []string {
	labels := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		labels[i] = col.Label
		if labels[i] == "" {
			labels[i] = col.Key
		}
	}
	return labels
}

func (t Table) record(row map[string]string) []string {
	record := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		record[i] = row[col.Key]
	}
	return record
}
