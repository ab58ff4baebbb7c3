// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestConsistencyController(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	conf := DefaultConfig()
	conf.Consistency = consistencyTypeNone
	ctrl, err := NewConsistencyController(ctx, conf, db)
	require.NoError(t, err)
	q, err := ctrl.Setup()
	require.NoError(t, err)
	require.Equal(t, db, q)
	require.NoError(t, ctrl.TearDown())

	conf.Consistency = consistencyTypeSnapshot
	ctrl, err = NewConsistencyController(ctx, conf, db)
	require.NoError(t, err)
	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = ctrl.Setup()
	require.NoError(t, err)
	require.NoError(t, ctrl.TearDown())
	require.NoError(t, ctrl.TearDown())

	conf.Consistency = "strict"
	_, err = NewConsistencyController(ctx, conf, db)
	require.Error(t, err)

	conf.Consistency = consistencyTypeSnapshot
	conf.ServerInfo = ServerInfo{ServerType: ServerTypeSQLite}
	_, err = NewConsistencyController(ctx, conf, db)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveAutoConsistency(t *testing.T) {
	for tp, exp := range map[ServerType]string{
		ServerTypeMySQL:      consistencyTypeSnapshot,
		ServerTypeMariaDB:    consistencyTypeSnapshot,
		ServerTypeTiDB:       consistencyTypeSnapshot,
		ServerTypePostgreSQL: consistencyTypeSnapshot,
		ServerTypeSQLite:     consistencyTypeNone,
		ServerTypeUnknown:    consistencyTypeNone,
	} {
		conf := DefaultConfig()
		conf.ServerInfo.ServerType = tp
		resolveAutoConsistency(conf)
		require.Equal(t, exp, conf.Consistency, tp.String())
	}
	conf := DefaultConfig()
	conf.Consistency = consistencyTypeNone
	conf.ServerInfo.ServerType = ServerTypeMySQL
	resolveAutoConsistency(conf)
	require.Equal(t, consistencyTypeNone, conf.Consistency)
}
