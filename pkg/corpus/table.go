/*
Copyright 2025 The llm-d Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package corpus

import (
	"fmt"
	"sort"
)

// Table is an ordered set of records with named text columns.
type Table struct {
	columns map[string][]string
	rows    int
}

// NewTable creates a Table from column slices of equal length.
func NewTable(columns map[string][]string) (*Table, error) {
	rows := -1
	for name, values := range columns {
		if rows >= 0 && len(values) != rows {
			return nil, fmt.Errorf("column %q has %d records, expected %d", name, len(values), rows)
		}
		rows = len(values)
	}
	if rows < 0 {
		rows = 0
	}

	return &Table{columns: columns, rows: rows}, nil
}

// Len returns the number of records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return t.rows
}

// Column returns the values of a column, or nil if the column is absent.
func (t *Table) Column(name string) []string {
	if t == nil {
		return nil
	}
	return t.columns[name]
}

// Columns returns the sorted column names.
func (t *Table) Columns() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.columns))
	for name := range t.columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Slice returns the records in [lo, hi), clamped to the table bounds.
func (t *Table) Slice(lo, hi int) *Table {
	lo = max(0, min(lo, t.rows))
	hi = max(lo, min(hi, t.rows))

	columns := make(map[string][]string, len(t.columns))
	for name, values := range t.columns {
		columns[name] = values[lo:hi]
	}
	return &Table{columns: columns, rows: hi - lo}
}

// Head returns the first n records.
func (t *Table) Head(n int) *Table {
	return t.Slice(0, n)
}

// Append concatenates other after t. Both tables must have the same columns.
func (t *Table) Append(other *Table) (*Table, error) {
	if t == nil || (t.rows == 0 && len(t.columns) == 0) {
		return other, nil
	}
	if len(other.columns) != len(t.columns) {
		return nil, fmt.Errorf("column mismatch: %v vs %v", t.Columns(), other.Columns())
	}

	columns := make(map[string][]string, len(t.columns))
	for name, values := range t.columns {
		more, ok := other.columns[name]
		if !ok {
			return nil, fmt.Errorf("column %q missing from appended table", name)
		}
		merged := make([]string, 0, len(values)+len(more))
		columns[name] = append(append(merged, values...), more...)
	}
	return &Table{columns: columns, rows: t.rows + other.rows}, nil
}
