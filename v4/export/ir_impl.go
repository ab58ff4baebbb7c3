// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"context"
	"database/sql"

	"github.com/pingcap/errors"
)

// rowIter decodes the rows of a query into records.
// Note: To create a rowIter, please use `newRowIter()` instead of struct literal.
type rowIter struct {
	rows    *sql.Rows
	columns []*columnInfo
	hasNext bool
	args    []interface{}
}

func newRowIter(rows *sql.Rows, columns []*columnInfo) *rowIter {
	r := &rowIter{
		rows:    rows,
		columns: columns,
		args:    make([]interface{}, len(columns)),
	}
	r.hasNext = r.rows.Next()
	return r
}

func (iter *rowIter) Next() (Record, error) {
	raw := make([]interface{}, len(iter.columns))
	for i := range raw {
		iter.args[i] = &raw[i]
	}
	err := iter.rows.Scan(iter.args...)
	iter.hasNext = iter.rows.Next()
	if err != nil {
		return Record{}, errors.Trace(err)
	}
	attrs := make([]Attribute, len(iter.columns))
	for i, col := range iter.columns {
		attrs[i] = Attribute{Name: col.name, Value: decodeValue(col, raw[i])}
	}
	return NewRecord(attrs...), nil
}

func (iter *rowIter) HasNext() bool {
	return iter.hasNext
}

func (iter *rowIter) Error() error {
	return errors.Trace(iter.rows.Err())
}

func (iter *rowIter) Close() error {
	return iter.rows.Close()
}

// RecordSlice is an in-memory EnumerableSource.
type RecordSlice struct {
	model   string
	names   []string
	records []Record
}

// NewRecordSlice creates a source of records of model. The attribute order
// is taken from the first record unless set with WithAttributeNames.
func NewRecordSlice(model string, records ...Record) *RecordSlice {
	s := &RecordSlice{model: model, records: records}
	if len(records) > 0 {
		for _, a := range records[0].Attributes() {
			s.names = append(s.names, a.Name)
		}
	}
	return s
}

// WithAttributeNames sets the declared attribute order.
func (s *RecordSlice) WithAttributeNames(names ...string) *RecordSlice {
	s.names = names
	return s
}

func (s *RecordSlice) ModelName() string {
	return s.model
}

func (s *RecordSlice) AttributeNames() []string {
	return s.names
}

func (s *RecordSlice) Len() int {
	return len(s.records)
}

func (s *RecordSlice) Records() RecordIter {
	return &recordSliceIter{records: s.records}
}

type recordSliceIter struct {
	records []Record
	idx     int
}

func (it *recordSliceIter) HasNext() bool {
	return it.idx < len(it.records)
}

func (it *recordSliceIter) Next() Record {
	r := it.records[it.idx]
	it.idx++
	return r
}

// pagedBatchIter pages an ordered PagedSource with offset and limit.
type pagedBatchIter struct {
	src        PagedSource
	batchSize  int
	total      int
	numBatches int
	current    int
}

func newPagedBatchIter(ctx context.Context, src PagedSource, batchSize int) (*pagedBatchIter, error) {
	if !src.Ordered() {
		src = src.OrderByPrimaryKey()
	}
	total, err := src.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &pagedBatchIter{
		src:        src,
		batchSize:  batchSize,
		total:      total,
		numBatches: (total + batchSize - 1) / batchSize,
	}, nil
}

func (it *pagedBatchIter) Total() int {
	return it.total
}

func (it *pagedBatchIter) HasNext() bool {
	return it.current < it.numBatches
}

func (it *pagedBatchIter) Next(ctx context.Context) ([]Record, error) {
	offset := it.current * it.batchSize
	limit := it.batchSize
	if rest := it.total - offset; rest < limit {
		limit = rest
	}
	it.current++
	return it.src.Fetch(ctx, offset, limit)
}

// streamBatchIter cuts a materialized sequence into batches.
type streamBatchIter struct {
	records   RecordIter
	batchSize int
	total     int
}

func newStreamBatchIter(src EnumerableSource, batchSize int) *streamBatchIter {
	return &streamBatchIter{
		records:   src.Records(),
		batchSize: batchSize,
		total:     src.Len(),
	}
}

func (it *streamBatchIter) Total() int {
	return it.total
}

func (it *streamBatchIter) HasNext() bool {
	return it.records.HasNext()
}

func (it *streamBatchIter) Next(context.Context) ([]Record, error) {
	batch := make([]Record, 0, it.batchSize)
	for len(batch) < it.batchSize && it.records.HasNext() {
		batch = append(batch, it.records.Next())
	}
	return batch, nil
}

// newBatchIter classifies src once and returns the matching iterator.
func newBatchIter(ctx context.Context, src RecordSource, batchSize int) (BatchIter, error) {
	switch s := src.(type) {
	case PagedSource:
		return newPagedBatchIter(ctx, s, batchSize)
	case EnumerableSource:
		return newStreamBatchIter(s, batchSize), nil
	default:
		return nil, errors.Errorf("record source %T of model %s can neither be paged nor enumerated", src, src.ModelName())
	}
}
