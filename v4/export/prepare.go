// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"go.uber.org/zap"

	tcontext "github.com/pingcap/seed-dumpling/v4/context"
)

func detectServerInfo(tctx *tcontext.Context, q queryer, d dialect) (ServerInfo, error) {
	versionStr, err := SelectVersion(tctx.Context(), q, d)
	if err != nil {
		return ServerInfo{ServerType: ServerTypeUnknown}, err
	}
	return d.parseServerInfo(versionStr), nil
}

// prepareDumpingModels lists the tables of the database and keeps the ones
// selected by the model filters.
func prepareDumpingModels(tctx *tcontext.Context, q queryer, d dialect, conf *Config) ([]string, error) {
	tctx.L().Debug("list all the tables")
	tables, err := d.listTables(tctx.Context(), q, conf.Database)
	if err != nil {
		return nil, err
	}
	selected, err := filterModels(tctx, conf, tables)
	if err != nil {
		return nil, err
	}
	tctx.L().Info("prepared models to dump",
		zap.Int("tables", len(tables)),
		zap.Strings("selected", selected))
	return selected, nil
}
