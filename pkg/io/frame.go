package io

import (
	"errors"
	"fmt"
)

// ErrMissingColumn is returned when a column required by the fitted schema
// is absent from an input frame.
var ErrMissingColumn = errors.New("column missing from frame")

// ErrColumnTypeMismatch is returned when a column arrives with a raw type
// incompatible with the one it was fitted as.
var ErrColumnTypeMismatch = errors.New("column type incompatible with fitted schema")

// ColumnType is the raw type of a data column as declared or inferred at
// load time.
type ColumnType int

const (
	Object ColumnType = iota
	Int
	Float
	Datetime
	Category
	Bool
)

func (t ColumnType) String() string {
	switch t {
	case Object:
		return "object"
	case Int:
		return "int"
	case Float:
		return "float"
	case Datetime:
		return "datetime"
	case Category:
		return "category"
	case Bool:
		return "bool"
	}
	return "unknown"
}

// Continuous reports whether columns of this type feed the continuous part
// of the network input.
func (t ColumnType) Continuous() bool {
	return t == Int || t == Float || t == Datetime
}

func (t ColumnType) Categorical() bool {
	return t == Object || t == Category || t == Bool
}

// Column is a single typed data column. Continuous types store their values
// in Floats, categorical types in Strings; Missing marks null cells in
// either representation.
type Column struct {
	Name    string
	Type    ColumnType
	Floats  []float64
	Strings []string
	Missing []bool
}

func NewFloatColumn(name string, t ColumnType, values []float64, missing []bool) *Column {
	if missing == nil {
		missing = make([]bool, len(values))
	}
	return &Column{Name: name, Type: t, Floats: values, Missing: missing}
}

func NewStringColumn(name string, t ColumnType, values []string, missing []bool) *Column {
	if missing == nil {
		missing = make([]bool, len(values))
	}
	return &Column{Name: name, Type: t, Strings: values, Missing: missing}
}

func (c *Column) Len() int {
	return len(c.Missing)
}

func (c *Column) Clone() *Column {
	clone := &Column{Name: c.Name, Type: c.Type}
	if c.Floats != nil {
		clone.Floats = append([]float64(nil), c.Floats...)
	}
	if c.Strings != nil {
		clone.Strings = append([]string(nil), c.Strings...)
	}
	clone.Missing = append([]bool(nil), c.Missing...)
	return clone
}

// Distinct counts the distinct present values of a categorical column. The
// count is unmeasurable for continuous columns and for columns with no
// present value at all.
func (c *Column) Distinct() (int, error) {
	if !c.Type.Categorical() {
		return 0, fmt.Errorf("cardinality of %s column %s is not measurable", c.Type, c.Name)
	}
	seen := map[string]struct{}{}
	for i, v := range c.Strings {
		if c.Missing[i] {
			continue
		}
		seen[v] = struct{}{}
	}
	if len(seen) == 0 {
		return 0, fmt.Errorf("column %s has no measurable values", c.Name)
	}
	return len(seen), nil
}

func (c *Column) append(other *Column) error {
	if c.Type != other.Type {
		return fmt.Errorf("cannot append %s column to %s column %s", other.Type, c.Type, c.Name)
	}
	c.Floats = append(c.Floats, other.Floats...)
	c.Strings = append(c.Strings, other.Strings...)
	c.Missing = append(c.Missing, other.Missing...)
	return nil
}

// Frame is a column-major table with uniquely named typed columns of equal
// length.
type Frame struct {
	cols  []*Column
	index map[string]int
}

func NewFrame(cols ...*Column) (*Frame, error) {
	f := &Frame{index: map[string]int{}}
	for _, col := range cols {
		if err := f.add(col); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *Frame) add(col *Column) error {
	if _, ok := f.index[col.Name]; ok {
		return fmt.Errorf("duplicate column %s", col.Name)
	}
	if len(f.cols) > 0 && col.Len() != f.NumRows() {
		return fmt.Errorf("column %s has %d rows, frame has %d", col.Name, col.Len(), f.NumRows())
	}
	f.index[col.Name] = len(f.cols)
	f.cols = append(f.cols, col)
	return nil
}

func (f *Frame) NumRows() int {
	if len(f.cols) == 0 {
		return 0
	}
	return f.cols[0].Len()
}

func (f *Frame) NumColumns() int {
	return len(f.cols)
}

func (f *Frame) Columns() []*Column {
	return f.cols
}

func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

func (f *Frame) Names() []string {
	names := make([]string, len(f.cols))
	for i, col := range f.cols {
		names[i] = col.Name
	}
	return names
}

// Select returns a new frame holding clones of the named columns, in the
// given order. Columns not present in the frame produce an error wrapping
// ErrMissingColumn.
func (f *Frame) Select(names []string) (*Frame, error) {
	out := &Frame{index: map[string]int{}}
	for _, name := range names {
		col, ok := f.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
		if err := out.add(col.Clone()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (f *Frame) Clone() *Frame {
	out := &Frame{index: map[string]int{}}
	for _, col := range f.cols {
		_ = out.add(col.Clone())
	}
	return out
}

// Concat stacks the rows of b under the rows of a. Both frames must have the
// same columns in the same order.
func Concat(a, b *Frame) (*Frame, error) {
	if a.NumColumns() != b.NumColumns() {
		return nil, fmt.Errorf("cannot concat frames with %d and %d columns", a.NumColumns(), b.NumColumns())
	}
	out := a.Clone()
	for i, col := range out.cols {
		other := b.cols[i]
		if col.Name != other.Name {
			return nil, fmt.Errorf("cannot concat: column %s does not match %s", other.Name, col.Name)
		}
		if err := col.append(other); err != nil {
			return nil, err
		}
	}
	return out, nil
}
