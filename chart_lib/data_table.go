package chart_lib

import (
	"errors"
	"fmt"

	cb "chartview/server/chart_behavior"
)

var (
	// ErrRowWidth is returned when a row's width differs from the number of columns.
	ErrRowWidth = errors.New("row width does not match columns")
	// ErrRowRange is returned when removing rows outside the table.
	ErrRowRange = errors.New("row range out of bounds")
)

// Column describes one column of a DataTable.
type Column struct {
	Type  cb.ColumnType
	Label string
}

// DataTable is a two dimensional table of values; the first column labels the
// category axis and every number column after it becomes a series.
type DataTable struct {
	columns []Column
	rows    []cb.Row
}

var _ cb.DataSource = (*DataTable)(nil)

// NewDataTable returns an empty table without columns.
func NewDataTable() *DataTable {
	return &DataTable{}
}

// AddColumn appends a column, returning its index. Existing rows get a nil cell.
func (dt *DataTable) AddColumn(kind cb.ColumnType, label string) int {
	dt.columns = append(dt.columns, Column{Type: kind, Label: label})
	for i := range dt.rows {
		dt.rows[i] = append(dt.rows[i], nil)
	}
	return len(dt.columns) - 1
}

// AddRows appends rows. Either all rows are added or, on error, none.
func (dt *DataTable) AddRows(rows []cb.Row) error {
	for i, row := range rows {
		if len(row) != len(dt.columns) {
			return fmt.Errorf("%w: row %d has %d cells, table has %d columns",
				ErrRowWidth, i, len(row), len(dt.columns))
		}
	}
	for _, row := range rows {
		dt.rows = append(dt.rows, append(cb.Row(nil), row...))
	}
	return nil
}

// RemoveRows removes count rows starting at start.
func (dt *DataTable) RemoveRows(start, count int) error {
	if start < 0 || count < 0 || start+count > len(dt.rows) {
		return fmt.Errorf("%w: [%d, %d) of %d rows", ErrRowRange, start, start+count, len(dt.rows))
	}
	dt.rows = append(dt.rows[:start], dt.rows[start+count:]...)
	return nil
}

func (dt *DataTable) NumberOfRows() int {
	return len(dt.rows)
}

// Columns returns a copy of the table's columns.
func (dt *DataTable) Columns() []Column {
	return append([]Column(nil), dt.columns...)
}

// Rows returns a copy of the table's rows; cells are shared.
func (dt *DataTable) Rows() []cb.Row {
	return append([]cb.Row(nil), dt.rows...)
}
