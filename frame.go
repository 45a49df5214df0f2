package quacksql

import "slices"

// Column describes one result column.
type Column struct {
	Name         string
	DatabaseType string // engine type name, e.g. INTEGER, VARCHAR
}

// Frame is a column-major table: Data[i] holds every value of Columns[i].
type Frame struct {
	Columns []Column
	Data    [][]any
}

func newFrame(cols []Column, rows []Row) *Frame {
	f := &Frame{
		Columns: slices.Clone(cols),
		Data:    make([][]any, len(cols)),
	}
	for i := range f.Data {
		f.Data[i] = make([]any, len(rows))
	}
	for r, row := range rows {
		for c, v := range row {
			f.Data[c][r] = v
		}
	}
	return f
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if len(f.Data) == 0 {
		return 0
	}
	return len(f.Data[0])
}

// Names returns the column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		names[i] = c.Name
	}
	return names
}

// Col returns the values of the first column called name.
func (f *Frame) Col(name string) ([]any, bool) {
	for i, c := range f.Columns {
		if c.Name == name {
			return f.Data[i], true
		}
	}
	return nil, false
}

// Row returns row i in column order. It panics if i is out of range.
func (f *Frame) Row(i int) Row {
	row := make(Row, len(f.Columns))
	for c := range f.Columns {
		row[c] = f.Data[c][i]
	}
	return row
}

// Rows converts the frame back to row-major form.
func (f *Frame) Rows() []Row {
	out := make([]Row, f.Len())
	for i := range out {
		out[i] = f.Row(i)
	}
	return out
}
