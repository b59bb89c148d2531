// Package mapper projects fetched rows onto record shapes. Field matching
// is case-insensitive; a shape is either open (undeclared server columns
// are carried through) or closed (undeclared columns are an error).
package mapper

import (
	"strings"

	"github.com/lahirusamith/mssql-go/driver"
)

// Shape describes the target record shape for a projection.
type Shape struct {
	open   bool
	fields map[string]string // lower-case name -> declared spelling
}

// OpenShape returns a shape that accepts every server column. Declared
// fields, if any, fix the spelling used in the projected record; columns
// without a declared field keep the server's spelling.
func OpenShape(fields ...string) *Shape {
	return newShape(true, fields)
}

// ClosedShape returns a shape that accepts only the declared fields. Any
// server column without a matching declared field fails the projection
// with FieldMismatchError.
func ClosedShape(fields ...string) *Shape {
	return newShape(false, fields)
}

func newShape(open bool, fields []string) *Shape {
	s := &Shape{open: open, fields: make(map[string]string, len(fields))}
	for _, f := range fields {
		s.fields[strings.ToLower(f)] = f
	}
	return s
}

// Open reports whether the shape accepts undeclared columns.
func (s *Shape) Open() bool { return s.open }

// Fields returns the declared field names.
func (s *Shape) Fields() []string {
	out := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		out = append(out, f)
	}
	return out
}

// Validate checks server column metadata against the shape. For a closed
// shape, every column must match a declared field; the check runs before
// any row is consumed so a mismatch fails fast at cursor open.
func (s *Shape) Validate(cols []driver.Column) error {
	if s.open {
		return nil
	}
	for _, col := range cols {
		if _, ok := s.fields[strings.ToLower(col.Name)]; !ok {
			return &FieldMismatchError{Column: col.Name, Declared: s.Fields()}
		}
	}
	return nil
}

// Project maps one fetched row onto the shape. Matching is
// case-insensitive; declared spellings win over server spellings in the
// projected record.
func (s *Shape) Project(row driver.Row) (Record, error) {
	rec := make(Record, len(row))
	for col, val := range row {
		declared, ok := s.fields[strings.ToLower(col)]
		if !ok {
			if !s.open {
				return nil, &FieldMismatchError{Column: col, Declared: s.Fields()}
			}
			rec[col] = val
			continue
		}
		rec[declared] = val
	}
	return rec, nil
}
