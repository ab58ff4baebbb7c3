// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"context"
	"database/sql"

	"github.com/pingcap/errors"
)

// NewConsistencyController returns the controller of the configured
// consistency level. "auto" is resolved against the detected server first.
func NewConsistencyController(ctx context.Context, conf *Config, db *sql.DB) (ConsistencyController, error) {
	resolveAutoConsistency(conf)
	switch conf.Consistency {
	case consistencyTypeSnapshot:
		if conf.ServerInfo.ServerType == ServerTypeSQLite {
			return nil, errors.Errorf("consistency %s is not supported by %s", conf.Consistency, conf.ServerInfo.ServerType)
		}
		return &ConsistencySnapshot{ctx: ctx, db: db}, nil
	case consistencyTypeNone:
		return &ConsistencyNone{db: db}, nil
	default:
		return nil, errors.Errorf("invalid consistency option %s", conf.Consistency)
	}
}

// ConsistencyController sets up the session all models are read through.
type ConsistencyController interface {
	Setup() (queryer, error)
	TearDown() error
}

// ConsistencyNone reads every query from the pool without coordination.
type ConsistencyNone struct {
	db *sql.DB
}

func (c *ConsistencyNone) Setup() (queryer, error) {
	return c.db, nil
}

func (c *ConsistencyNone) TearDown() error {
	return nil
}

// ConsistencySnapshot reads all models inside one read only repeatable read
// transaction, so they come from the same snapshot.
type ConsistencySnapshot struct {
	ctx context.Context
	db  *sql.DB
	tx  *sql.Tx
}

func (c *ConsistencySnapshot) Setup() (queryer, error) {
	tx, err := c.db.BeginTx(c.ctx, &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  true,
	})
	if err != nil {
		return nil, errors.Annotate(err, "begin snapshot transaction")
	}
	c.tx = tx
	return tx, nil
}

func (c *ConsistencySnapshot) TearDown() error {
	if c.tx == nil {
		return nil
	}
	err := c.tx.Rollback()
	c.tx = nil
	if err == sql.ErrTxDone {
		return nil
	}
	return errors.Trace(err)
}

func resolveAutoConsistency(conf *Config) {
	if conf.Consistency != consistencyTypeAuto {
		return
	}
	switch conf.ServerInfo.ServerType {
	case ServerTypeTiDB, ServerTypeMySQL, ServerTypeMariaDB, ServerTypePostgreSQL:
		conf.Consistency = consistencyTypeSnapshot
	default:
		conf.Consistency = consistencyTypeNone
	}
}
