// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"database/sql"

	"github.com/pingcap/errors"
	"go.uber.org/zap"

	tcontext "github.com/pingcap/seed-dumpling/v4/context"
)

// Dump generates the seed code of the records of src.
//
// The code is written to conf.File, or returned in Output.Text when no file
// is configured. A source without records produces nothing: Dump returns a
// nil Output and leaves conf.File untouched.
func Dump(tctx *tcontext.Context, src RecordSource, conf *Config) (*Output, error) {
	conf = conf.Clone()
	if err := adjustConfig(conf); err != nil {
		return nil, err
	}
	return dumpSource(tctx, NewSimpleWriter(conf), src, conf.BatchSize)
}

func dumpSource(tctx *tcontext.Context, w Writer, src RecordSource, batchSize int) (*Output, error) {
	tctx = tctx.WithFields(zap.String("model", src.ModelName()))
	batches, err := newBatchIter(tctx.Context(), src, batchSize)
	if err != nil {
		errorCount.WithLabelValues(src.ModelName()).Inc()
		return nil, err
	}
	if batches.Total() == 0 {
		tctx.L().Info("no records to dump")
		return nil, nil
	}
	tctx.L().Debug("start dumping model",
		zap.Int("records", batches.Total()),
		zap.Int("batch-size", batchSize))
	return w.WriteModelSeeds(tctx, src, batches)
}

// DumpModels dumps the tables of db selected by conf, one model per table,
// into one seed file (or text). Models without records are skipped; the
// first model written truncates the file unless conf.Append is set and the
// rest are appended. It returns nil when no model had records.
func DumpModels(tctx *tcontext.Context, db *sql.DB, conf *Config) (out *Output, err error) {
	conf = conf.Clone()
	if err := adjustConfig(conf); err != nil {
		return nil, err
	}
	d, err := dialectFor(conf.Driver)
	if err != nil {
		return nil, err
	}
	ctx := tctx.Context()

	conf.ServerInfo, err = detectServerInfo(tctx, db, d)
	if err != nil {
		return nil, err
	}
	conCtrl, err := NewConsistencyController(ctx, conf, db)
	if err != nil {
		return nil, err
	}
	q, err := conCtrl.Setup()
	if err != nil {
		return nil, err
	}
	defer func() {
		if tdErr := conCtrl.TearDown(); tdErr != nil {
			tctx.L().Warn("fail to tear down consistency controller", zap.Error(tdErr))
		}
	}()

	tables, err := prepareDumpingModels(tctx, q, d, conf)
	if err != nil {
		return nil, err
	}
	if conf.ModelName != "" && len(tables) > 1 {
		return nil, errors.Errorf("model name %s can only be used with a single model, %d selected", conf.ModelName, len(tables))
	}
	if conf.BlobService == nil && len(conf.HasOneAttached)+len(conf.HasManyAttached) > 0 {
		conf.BlobService, err = createBlobService(ctx, conf)
		if err != nil {
			return nil, err
		}
	}

	tctx.L().Info("begin to dump models",
		zap.String("consistency", conf.Consistency),
		zap.Int("models", len(tables)))
	w := NewSimpleWriter(conf)
	total := &Output{}
	for i, table := range tables {
		task := NewTaskModelData(table, i, len(tables))
		tctx.L().Debug(task.Brief(), zap.Int("index", task.Index), zap.Int("total", task.Total))
		task.Source, err = newTableSource(tctx, q, d, conf, conf.ServerInfo, table)
		if err != nil {
			errorCount.WithLabelValues(modelNameOf(conf, table)).Inc()
			return nil, err
		}
		o, err := dumpSource(tctx, w, task.Source, conf.BatchSize)
		if err != nil {
			return nil, errors.Annotatef(err, "dump model %s", task.Source.ModelName())
		}
		if o != nil {
			total.merge(o)
		}
	}
	if total.Models == 0 {
		tctx.L().Info("no model had records, nothing dumped")
		return nil, nil
	}
	tctx.L().Info("dump models successfully",
		zap.Int("models", total.Models),
		zap.Int("records", total.Records),
		zap.Int("attachments", total.CopiedAttachments))
	return total, nil
}

func modelNameOf(conf *Config, table string) string {
	if conf.ModelName != "" {
		return conf.ModelName
	}
	return modelNameFromTable(table)
}
