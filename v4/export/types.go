// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"context"
	"database/sql"
)

// Attribute is one named value of a record.
type Attribute struct {
	Name  string
	Value Value
}

// Attr builds an Attribute, inferring the value kind with ValueOf.
func Attr(name string, v interface{}) Attribute {
	return Attribute{Name: name, Value: ValueOf(v)}
}

// Record is an ordered set of attributes.
type Record struct {
	attrs []Attribute
}

// NewRecord creates a record whose attribute order is the argument order.
func NewRecord(attrs ...Attribute) Record {
	return Record{attrs: attrs}
}

// Attributes returns the attributes in their declared order.
func (r Record) Attributes() []Attribute {
	return r.attrs
}

// Get returns the value of the named attribute.
func (r Record) Get(name string) (Value, bool) {
	for _, a := range r.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return Value{}, false
}

// Set replaces the named attribute or appends it.
func (r *Record) Set(name string, v Value) {
	for i := range r.attrs {
		if r.attrs[i].Name == name {
			r.attrs[i].Value = v
			return
		}
	}
	r.attrs = append(r.attrs, Attribute{Name: name, Value: v})
}

// RecordIter is the iterator on a collection of records.
type RecordIter interface {
	Next() Record
	HasNext() bool
}

// RecordSource is the intermediate representation of the records of one
// model. A source is either a PagedSource or an EnumerableSource.
type RecordSource interface {
	// ModelName is the class the generated code calls, e.g. `Sample`.
	ModelName() string
	// AttributeNames is the declared attribute order of the records.
	AttributeNames() []string
}

// PagedSource is a query-like source which can count and page its records.
type PagedSource interface {
	RecordSource
	Count(ctx context.Context) (int, error)
	// Ordered reports whether an explicit order is already applied.
	Ordered() bool
	// OrderByPrimaryKey returns the source ordered ascending by primary key.
	OrderByPrimaryKey() PagedSource
	Fetch(ctx context.Context, offset, limit int) ([]Record, error)
}

// EnumerableSource is an in-memory, finite source.
type EnumerableSource interface {
	RecordSource
	Len() int
	Records() RecordIter
}

// BatchIter yields the records of a source in ordered, bounded batches.
type BatchIter interface {
	// Total is the number of records the iterator covers.
	Total() int
	HasNext() bool
	Next(ctx context.Context) ([]Record, error)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}
