// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/pingcap/errors"
)

const (
	driverMySQL    = "mysql"
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
)

// dialect hides the SQL differences of the supported servers.
type dialect interface {
	// driverName is the database/sql driver the dialect talks to.
	driverName() string
	quoteIdent(name string) string
	// placeholder returns the bind marker of the i-th argument, 1 based.
	placeholder(i int) string
	qualify(database, table string) string
	versionQuery() string
	parseServerInfo(version string) ServerInfo
	listTables(ctx context.Context, q queryer, database string) ([]string, error)
	primaryKeyColumns(ctx context.Context, q queryer, database, table string) ([]string, error)
	// declaredColumnTypes returns the full declared type of each column when
	// the driver reports less, nil otherwise.
	declaredColumnTypes(ctx context.Context, q queryer, database, table string) (map[string]string, error)
	// rowIDColumn is the implicit row id used to order tables without a
	// primary key, empty if the server has none.
	rowIDColumn(info ServerInfo) string
}

func dialectFor(driver string) (dialect, error) {
	switch strings.ToLower(driver) {
	case driverMySQL, "tidb", "mariadb":
		return mysqlDialect{}, nil
	case driverSQLite, "sqlite3":
		return sqliteDialect{}, nil
	case driverPostgres, "postgresql", "pgx":
		return postgresDialect{}, nil
	default:
		return nil, errors.Errorf("unsupported driver %s", driver)
	}
}

func placeholders(d dialect, from, n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(d.placeholder(from + i))
	}
	return sb.String()
}

func wrapBackTicks(identifier string) string {
	if !strings.HasPrefix(identifier, "`") && !strings.HasSuffix(identifier, "`") {
		return wrapStringWith(strings.ReplaceAll(identifier, "`", "``"), "`")
	}
	return identifier
}

func wrapDoubleQuotes(identifier string) string {
	return wrapStringWith(strings.ReplaceAll(identifier, `"`, `""`), `"`)
}

func wrapStringWith(str string, wrapper string) string {
	return fmt.Sprintf("%s%s%s", wrapper, str, wrapper)
}

type mysqlDialect struct{}

func (mysqlDialect) driverName() string { return "mysql" }

func (mysqlDialect) quoteIdent(name string) string { return wrapBackTicks(name) }

func (mysqlDialect) placeholder(int) string { return "?" }

func (d mysqlDialect) qualify(database, table string) string {
	if database == "" {
		return d.quoteIdent(table)
	}
	return d.quoteIdent(database) + "." + d.quoteIdent(table)
}

func (mysqlDialect) versionQuery() string { return "SELECT version()" }

func (mysqlDialect) parseServerInfo(version string) ServerInfo {
	return ParseServerInfo(version)
}

func (mysqlDialect) listTables(ctx context.Context, q queryer, database string) ([]string, error) {
	const query = "SELECT table_name FROM information_schema.tables WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE()) AND table_type = 'BASE TABLE' ORDER BY table_name"
	var tables oneStrColumnTable
	if err := simpleQuery(ctx, q, query, tables.handleOneRow, database); err != nil {
		return nil, errors.Annotatef(err, "sql: %s", query)
	}
	return tables.data, nil
}

func (mysqlDialect) primaryKeyColumns(ctx context.Context, q queryer, database, table string) ([]string, error) {
	const query = "SELECT column_name FROM information_schema.key_column_usage WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE()) AND table_name = ? AND constraint_name = 'PRIMARY' ORDER BY ordinal_position"
	var cols oneStrColumnTable
	if err := simpleQuery(ctx, q, query, cols.handleOneRow, database, table); err != nil {
		return nil, errors.Annotatef(err, "sql: %s", query)
	}
	return cols.data, nil
}

// declaredColumnTypes reads column_type, which keeps the display width the
// driver drops from TINYINT(1).
func (mysqlDialect) declaredColumnTypes(ctx context.Context, q queryer, database, table string) (map[string]string, error) {
	const query = "SELECT column_name, column_type FROM information_schema.columns WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE()) AND table_name = ?"
	types := make(map[string]string)
	err := simpleQuery(ctx, q, query, func(rows *sql.Rows) error {
		var name, colType string
		if err := rows.Scan(&name, &colType); err != nil {
			return errors.Trace(err)
		}
		types[name] = colType
		return nil
	}, database, table)
	if err != nil {
		return nil, errors.Annotatef(err, "sql: %s", query)
	}
	return types, nil
}

func (mysqlDialect) rowIDColumn(info ServerInfo) string {
	if info.ServerType == ServerTypeTiDB {
		return "_tidb_rowid"
	}
	return ""
}

type sqliteDialect struct{}

func (sqliteDialect) driverName() string { return "sqlite" }

func (sqliteDialect) quoteIdent(name string) string { return wrapDoubleQuotes(name) }

func (sqliteDialect) placeholder(int) string { return "?" }

func (d sqliteDialect) qualify(_, table string) string { return d.quoteIdent(table) }

func (sqliteDialect) versionQuery() string { return "SELECT sqlite_version()" }

func (sqliteDialect) parseServerInfo(version string) ServerInfo {
	return parseSQLiteServerInfo(version)
}

func (sqliteDialect) listTables(ctx context.Context, q queryer, _ string) ([]string, error) {
	const query = "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
	var tables oneStrColumnTable
	if err := simpleQuery(ctx, q, query, tables.handleOneRow); err != nil {
		return nil, errors.Annotatef(err, "sql: %s", query)
	}
	return tables.data, nil
}

func (d sqliteDialect) primaryKeyColumns(ctx context.Context, q queryer, _, table string) ([]string, error) {
	query := fmt.Sprintf("PRAGMA table_info(%s)", d.quoteIdent(table))
	type pkColumn struct {
		name string
		seq  int64
	}
	var pks []pkColumn
	handleOneRow := func(rows *sql.Rows) error {
		var (
			cid, notNull, pk int64
			name, colType    string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return err
		}
		if pk > 0 {
			pks = append(pks, pkColumn{name: name, seq: pk})
		}
		return nil
	}
	if err := simpleQuery(ctx, q, query, handleOneRow); err != nil {
		return nil, errors.Annotatef(err, "sql: %s", query)
	}
	sort.Slice(pks, func(i, j int) bool { return pks[i].seq < pks[j].seq })
	cols := make([]string, 0, len(pks))
	for _, pk := range pks {
		cols = append(cols, pk.name)
	}
	return cols, nil
}

func (sqliteDialect) rowIDColumn(ServerInfo) string { return "rowid" }

func (sqliteDialect) declaredColumnTypes(context.Context, queryer, string, string) (map[string]string, error) {
	return nil, nil
}

type postgresDialect struct{}

func (postgresDialect) driverName() string { return "pgx" }

func (postgresDialect) quoteIdent(name string) string { return wrapDoubleQuotes(name) }

func (postgresDialect) placeholder(i int) string { return fmt.Sprintf("$%d", i) }

func (d postgresDialect) qualify(_, table string) string { return d.quoteIdent(table) }

func (postgresDialect) versionQuery() string { return "SELECT version()" }

func (postgresDialect) parseServerInfo(version string) ServerInfo {
	return ParseServerInfo(version)
}

func (postgresDialect) listTables(ctx context.Context, q queryer, _ string) ([]string, error) {
	const query = "SELECT tablename FROM pg_catalog.pg_tables WHERE schemaname = current_schema() ORDER BY tablename"
	var tables oneStrColumnTable
	if err := simpleQuery(ctx, q, query, tables.handleOneRow); err != nil {
		return nil, errors.Annotatef(err, "sql: %s", query)
	}
	return tables.data, nil
}

func (d postgresDialect) primaryKeyColumns(ctx context.Context, q queryer, _, table string) ([]string, error) {
	const query = "SELECT a.attname FROM pg_index i JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey) WHERE i.indrelid = $1::regclass AND i.indisprimary ORDER BY array_position(i.indkey::int2[], a.attnum)"
	var cols oneStrColumnTable
	if err := simpleQuery(ctx, q, query, cols.handleOneRow, d.quoteIdent(table)); err != nil {
		return nil, errors.Annotatef(err, "sql: %s", query)
	}
	return cols.data, nil
}

func (postgresDialect) rowIDColumn(ServerInfo) string { return "" }

func (postgresDialect) declaredColumnTypes(context.Context, queryer, string, string) (map[string]string, error) {
	return nil, nil
}
