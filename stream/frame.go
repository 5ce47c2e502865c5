package stream

import (
	"github.com/pkg/errors"
)

// FieldKind is coarse type metadata for a Frame column, sufficient to rebuild
// a storage schema (parquet or SQL DDL) without inspecting row values.
type FieldKind int

const (
	KindBool FieldKind = iota + 1
	KindInt32
	KindInt64
	KindFloat64
	KindString
	KindBytes
	KindTimestamp
)

func (k FieldKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindTimestamp:
		return "timestamp"
	}
	return "unknown"
}

// Column describes one Frame column.
type Column struct {
	Name string
	Kind FieldKind
}

// Frame is an ordered, typed in-memory table: the canonical form of one unit's
// data between the transform and load stages.
type Frame struct {
	columns []Column
	rows    []Record
}

func NewFrame(columns []Column) *Frame {
	cols := make([]Column, len(columns))
	copy(cols, columns)
	return &Frame{columns: cols}
}

func (f *Frame) Columns() []Column {
	return f.columns
}

func (f *Frame) ColumnNames() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

func (f *Frame) AppendRow(rec Record) {
	f.rows = append(f.rows, rec)
}

func (f *Frame) Rows() []Record {
	return f.rows
}

func (f *Frame) NumRows() int {
	return len(f.rows)
}

// RenameColumns returns a new Frame with fn applied to every column name.
// Row data is rebuilt under the new names. An error is returned if two source
// columns map to the same output name, since that would silently drop data.
func (f *Frame) RenameColumns(fn func(string) string) (*Frame, error) {
	newCols := make([]Column, len(f.columns))
	seen := make(map[string]string, len(f.columns))
	for i, c := range f.columns {
		newName := fn(c.Name)
		if prev, ok := seen[newName]; ok {
			return nil, errors.Errorf("columns %q and %q both map to %q", prev, c.Name, newName)
		}
		seen[newName] = c.Name
		newCols[i] = Column{Name: newName, Kind: c.Kind}
	}
	out := NewFrame(newCols)
	for _, rec := range f.rows {
		newRec := NewRecord()
		for i, c := range f.columns {
			if v, ok := rec.GetDataOk(c.Name); ok {
				newRec.SetData(newCols[i].Name, v)
			}
		}
		out.AppendRow(newRec)
	}
	return out, nil
}
