// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/coreos/go-semver/semver"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestDetectServerInfo(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	data := []struct {
		version string
		tp      ServerType
		ver     *semver.Version
	}{
		{"8.0.18", ServerTypeMySQL, semver.New("8.0.18")},
		{"10.4.10-MariaDB-1:10.4.10+maria~bionic", ServerTypeMariaDB, semver.New("10.4.10")},
		{"5.7.25-TiDB-v4.0.0-alpha-1263-g635f2e1af", ServerTypeTiDB, semver.New("4.0.0")},
		{"5.7.25-TiDB-v3.0.7-58-g6adce2367", ServerTypeTiDB, semver.New("3.0.7")},
		{"PostgreSQL 16.2 on x86_64-pc-linux-gnu, compiled by gcc", ServerTypePostgreSQL, semver.New("16.2.0")},
	}
	for _, datum := range data {
		mock.ExpectQuery("SELECT version()").
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(datum.version))

		d := mysqlDialect{}
		info, err := detectServerInfo(testContext(), db, d)
		require.NoError(t, err)
		require.Equal(t, datum.tp, info.ServerType, datum.version)
		require.NotNil(t, info.ServerVersion, datum.version)
		require.Equal(t, datum.ver.Major, info.ServerVersion.Major, datum.version)
		require.Equal(t, datum.ver.Minor, info.ServerVersion.Minor, datum.version)
		require.Equal(t, datum.ver.Patch, info.ServerVersion.Patch, datum.version)
		require.NoError(t, mock.ExpectationsWereMet())
	}

	mock.ExpectQuery("SELECT sqlite_version()").
		WillReturnRows(sqlmock.NewRows([]string{"sqlite_version()"}).AddRow("3.45.1"))
	info, err := detectServerInfo(testContext(), db, sqliteDialect{})
	require.NoError(t, err)
	require.Equal(t, ServerTypeSQLite, info.ServerType)
	require.Equal(t, "3.45.1", info.ServerVersion.String())

	mock.ExpectQuery("SELECT version()").WillReturnError(fmt.Errorf("err"))
	info, err = detectServerInfo(testContext(), db, mysqlDialect{})
	require.Error(t, err)
	require.Equal(t, ServerTypeUnknown, info.ServerType)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestParseServerInfoUnknown(t *testing.T) {
	info := ParseServerInfo("not a version")
	require.Equal(t, ServerTypeUnknown, info.ServerType)
	require.Nil(t, info.ServerVersion)
	require.Equal(t, "Unknown", info.ServerType.String())
	require.Equal(t, "", ServerTypeAll.String())
}

func TestPrepareDumpingModels(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	conf := DefaultConfig()
	conf.Database = "app"
	conf.ModelsExclude = []string{"Post"}
	rows := sqlmock.NewRows([]string{"table_name"}).
		AddRow("active_storage_blobs").
		AddRow("ar_internal_metadata").
		AddRow("posts").
		AddRow("schema_migrations").
		AddRow("users")
	mock.ExpectQuery("SELECT table_name FROM information_schema.tables").WithArgs("app").WillReturnRows(rows)

	models, err := prepareDumpingModels(testContext(), db, mysqlDialect{}, conf)
	require.NoError(t, err)
	require.Equal(t, []string{"users"}, models)

	mock.ExpectQuery("SELECT table_name FROM information_schema.tables").WillReturnError(fmt.Errorf("err"))
	_, err = prepareDumpingModels(testContext(), db, mysqlDialect{}, conf)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDumpModels(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	conf := DefaultConfig()
	conf.Database = "app"

	mock.ExpectQuery("SELECT version()").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("8.0.26"))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT table_name FROM information_schema.tables").
		WithArgs("app").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("schema_migrations").AddRow("tags").AddRow("users"))
	// tags has no records
	expectColumns(mock, "SELECT * FROM `app`.`tags` LIMIT 1", sqlmock.NewColumn("id").OfType("INT", int64(0)))
	expectDeclaredTypes(mock, "app", "tags", "id", "int(11)")
	mock.ExpectQuery("SELECT column_name FROM information_schema.key_column_usage").
		WithArgs("app", "tags").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("id"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `app`.`tags`")).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(0))

	expectColumns(mock, "SELECT * FROM `app`.`users` LIMIT 1",
		sqlmock.NewColumn("id").OfType("BIGINT", int64(0)),
		sqlmock.NewColumn("name").OfType("VARCHAR", ""),
		sqlmock.NewColumn("admin").OfType("TINYINT", int64(0)))
	expectDeclaredTypes(mock, "app", "users", "id", "bigint(20)", "name", "varchar(255)", "admin", "tinyint(1)")
	mock.ExpectQuery("SELECT column_name FROM information_schema.key_column_usage").
		WithArgs("app", "users").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("id"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `app`.`users`")).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT `id`, `name`, `admin` FROM `app`.`users` ORDER BY `id` ASC LIMIT ? OFFSET ?")).
		WithArgs(2, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "admin"}).
			AddRow(int64(1), []byte("alice"), int64(1)).
			AddRow(int64(2), []byte("bob"), int64(0)))
	mock.ExpectRollback()

	out, err := DumpModels(testContext(), db, conf)
	require.NoError(t, err)
	require.Equal(t,
		"User.create!([\n"+
			"  {name: \"alice\", admin: true},\n"+
			"  {name: \"bob\", admin: false}\n"+
			"])\n",
		out.Text)
	require.Equal(t, 1, out.Models)
	require.Equal(t, 2, out.Records)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDumpModelsRejectsModelNameForManyTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	conf := DefaultConfig()
	conf.Consistency = consistencyTypeNone
	conf.ModelName = "Thing"
	mock.ExpectQuery("SELECT version()").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("8.0.26"))
	mock.ExpectQuery("SELECT table_name FROM information_schema.tables").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("posts").AddRow("users"))

	_, err = DumpModels(testContext(), db, conf)
	require.Error(t, err)
	require.Contains(t, err.Error(), "single model")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDumpModelsCountsTableSourceError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	conf := DefaultConfig()
	conf.Database = "app"
	conf.Consistency = consistencyTypeNone
	mock.ExpectQuery("SELECT version()").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("8.0.26"))
	mock.ExpectQuery("SELECT table_name FROM information_schema.tables").
		WithArgs("app").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("orders"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `app`.`orders` LIMIT 1")).
		WillReturnError(fmt.Errorf("table is locked"))

	defer RemoveModelMetrics("Order")
	before := testutil.ToFloat64(errorCount.WithLabelValues("Order"))
	out, err := DumpModels(testContext(), db, conf)
	require.Nil(t, out)
	require.Error(t, err)
	require.Contains(t, err.Error(), "table is locked")
	require.Equal(t, before+1, testutil.ToFloat64(errorCount.WithLabelValues("Order")))
	require.NoError(t, mock.ExpectationsWereMet())
}
