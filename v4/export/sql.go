// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pingcap/errors"
)

// SelectVersion gets the version information from the database server.
func SelectVersion(ctx context.Context, q queryer, d dialect) (string, error) {
	var versionInfo string
	handleOneRow := func(rows *sql.Rows) error {
		return rows.Scan(&versionInfo)
	}
	query := d.versionQuery()
	if err := simpleQuery(ctx, q, query, handleOneRow); err != nil {
		return "", errors.Annotatef(err, "sql: %s", query)
	}
	return versionInfo, nil
}

// GetColumnInfos returns the columns of table in declared order.
func GetColumnInfos(ctx context.Context, q queryer, d dialect, database, table string) ([]*columnInfo, error) {
	query := fmt.Sprintf("SELECT * FROM %s LIMIT 1", d.qualify(database, table))
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Annotatef(err, "sql: %s", query)
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		return nil, errors.Annotatef(err, "sql: %s", query)
	}
	// the session may be a transaction which runs one query at a time
	if err = rows.Close(); err != nil {
		return nil, errors.Annotatef(err, "sql: %s", query)
	}

	declared, err := d.declaredColumnTypes(ctx, q, database, table)
	if err != nil {
		return nil, err
	}
	cols := make([]*columnInfo, 0, len(colTypes))
	for _, ct := range colTypes {
		dbType := ct.DatabaseTypeName()
		if t, ok := declared[ct.Name()]; ok {
			dbType = t
		}
		cols = append(cols, newColumnInfo(ct.Name(), dbType))
	}
	return cols, nil
}

// selectQuery holds the parts of the query of one table source.
type selectQuery struct {
	d        dialect
	database string
	table    string
	columns  []*columnInfo
	where    string
	orderBy  string
	// limit caps the number of records, 0 means unlimited.
	limit int
}

func (s *selectQuery) from() string {
	var sb strings.Builder
	sb.WriteString(" FROM ")
	sb.WriteString(s.d.qualify(s.database, s.table))
	if s.where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(s.where)
	}
	return sb.String()
}

func (s *selectQuery) buildCountQuery() string {
	return "SELECT COUNT(*)" + s.from()
}

// buildFetchQuery builds the query of the records in [offset, offset+limit),
// bound with limit and offset as arguments.
func (s *selectQuery) buildFetchQuery() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	for i, col := range s.columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(s.d.quoteIdent(col.name))
	}
	sb.WriteString(s.from())
	if s.orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(s.orderBy)
	}
	fmt.Fprintf(&sb, " LIMIT %s OFFSET %s", s.d.placeholder(1), s.d.placeholder(2))
	return sb.String()
}

func buildOrderByClause(d dialect, columns []string) string {
	quoted := make([]string, 0, len(columns))
	for _, col := range columns {
		quoted = append(quoted, d.quoteIdent(col)+" ASC")
	}
	return strings.Join(quoted, ", ")
}

func countRecords(ctx context.Context, q queryer, query string) (int, error) {
	var count int
	handleOneRow := func(rows *sql.Rows) error {
		return rows.Scan(&count)
	}
	if err := simpleQuery(ctx, q, query, handleOneRow); err != nil {
		return 0, errors.Annotatef(err, "sql: %s", query)
	}
	return count, nil
}

type oneStrColumnTable struct {
	data []string
}

func (o *oneStrColumnTable) handleOneRow(rows *sql.Rows) error {
	var str string
	if err := rows.Scan(&str); err != nil {
		return errors.Trace(err)
	}
	o.data = append(o.data, str)
	return nil
}

func simpleQuery(ctx context.Context, q queryer, query string, handleOneRow func(*sql.Rows) error, args ...interface{}) error {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return errors.Trace(err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := handleOneRow(rows); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(rows.Err())
}
