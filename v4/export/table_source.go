// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"context"
	"time"

	"github.com/pingcap/errors"
	"go.uber.org/zap"

	tcontext "github.com/pingcap/seed-dumpling/v4/context"
)

// tableSource is the PagedSource of one database table.
type tableSource struct {
	tctx  *tcontext.Context
	q     queryer
	query selectQuery
	model string
	// orderColumns order the table ascending when no order is given.
	orderColumns []string
	// idColumn identifies records for association lookups, empty when the
	// table has no single column primary key.
	idColumn     string
	associations *associationLoader
}

func newTableSource(tctx *tcontext.Context, q queryer, d dialect, conf *Config, info ServerInfo, table string) (*tableSource, error) {
	ctx := tctx.Context()
	columns, err := GetColumnInfos(ctx, q, d, conf.Database, table)
	if err != nil {
		return nil, err
	}
	pk, err := d.primaryKeyColumns(ctx, q, conf.Database, table)
	if err != nil {
		return nil, err
	}

	model := modelNameOf(conf, table)
	src := &tableSource{
		tctx: tctx.WithFields(zap.String("table", table), zap.String("model", model)),
		q:    q,
		query: selectQuery{
			d:        d,
			database: conf.Database,
			table:    table,
			columns:  columns,
			where:    conf.Where,
			orderBy:  conf.OrderBy,
			limit:    conf.Limit,
		},
		model:        model,
		orderColumns: pk,
	}
	switch {
	case len(pk) == 1:
		src.idColumn = pk[0]
	case len(pk) == 0:
		if rowID := d.rowIDColumn(info); rowID != "" {
			src.orderColumns = []string{rowID}
		} else {
			src.tctx.L().Warn("table has no primary key, records are dumped in server order")
		}
	}

	src.associations = newAssociationLoader(q, d, conf, model)
	if src.associations != nil && src.idColumn == "" {
		src.tctx.L().Warn("attachments and rich texts need a single column primary key, skip loading them")
		src.associations = nil
	}
	return src, nil
}

func (s *tableSource) ModelName() string {
	return s.model
}

func (s *tableSource) AttributeNames() []string {
	names := make([]string, 0, len(s.query.columns))
	for _, col := range s.query.columns {
		names = append(names, col.name)
	}
	if s.associations != nil {
		names = append(names, s.associations.names()...)
	}
	return names
}

func (s *tableSource) Count(ctx context.Context) (int, error) {
	n, err := countRecords(ctx, s.q, s.query.buildCountQuery())
	if err != nil {
		return 0, err
	}
	if s.query.limit > 0 && n > s.query.limit {
		n = s.query.limit
	}
	return n, nil
}

func (s *tableSource) Ordered() bool {
	return s.query.orderBy != ""
}

func (s *tableSource) OrderByPrimaryKey() PagedSource {
	if len(s.orderColumns) == 0 {
		return s
	}
	ordered := *s
	ordered.query.orderBy = buildOrderByClause(s.query.d, s.orderColumns)
	return &ordered
}

func (s *tableSource) Fetch(ctx context.Context, offset, limit int) ([]Record, error) {
	query := s.query.buildFetchQuery()
	start := time.Now()
	rows, err := s.q.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, errors.Annotatef(err, "sql: %s", query)
	}
	iter := newRowIter(rows, s.query.columns)
	defer iter.Close()

	records := make([]Record, 0, limit)
	for iter.HasNext() {
		r, err := iter.Next()
		if err != nil {
			return nil, errors.Annotatef(err, "sql: %s", query)
		}
		records = append(records, r)
	}
	if err := iter.Error(); err != nil {
		return nil, errors.Annotatef(err, "sql: %s", query)
	}
	// the session may be a transaction which runs one query at a time
	if err := iter.Close(); err != nil {
		return nil, errors.Trace(err)
	}
	fetchBatchTimeHistogram.WithLabelValues(s.model).Observe(time.Since(start).Seconds())

	if s.associations != nil && len(records) > 0 {
		if err := s.associations.load(ctx, records, s.idColumn); err != nil {
			return nil, err
		}
	}
	return records, nil
}
