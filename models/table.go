package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Cell is one named value of a sheet row.
type Cell struct {
	Column string `json:"column"`
	Value  any    `json:"value"`
}

// Record is a sheet row in column order.
type Record []Cell

// Get returns the raw value stored under column.
func (r Record) Get(column string) (any, bool) {
	for _, c := range r {
		if c.Column == column {
			return c.Value, true
		}
	}
	return nil, false
}

// String returns the value under column rendered as text, "" when absent.
func (r Record) String(column string) string {
	v, _ := r.Get(column)
	return CellString(v)
}

// Table is a full sheet read: titles and rows in sheet order.
type Table struct {
	ID      string   `json:"id"`
	Columns []string `json:"columns"`
	Rows    []Record `json:"rows"`
}

// CellString renders a Smartsheet cell value the way it shows in the sheet.
// Whole numbers print without a fraction.
func CellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
