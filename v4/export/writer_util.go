// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/pingcap/errors"
	"go.uber.org/zap"

	tcontext "github.com/pingcap/seed-dumpling/v4/context"
	"github.com/pingcap/seed-dumpling/v4/log"
)

var bufferPool = sync.Pool{
	New: func() interface{} {
		return &bytes.Buffer{}
	},
}

// seedStats counts what one WriteSeed call emitted.
type seedStats struct {
	records int
	batches int
}

// WriteSeed writes the seed code of all records of batches into w. Records
// are encoded and their attachments materialized before the record text is
// emitted, and the buffered text is flushed every conf.FlushSize bytes.
func WriteSeed(tctx *tcontext.Context, conf *Config, src RecordSource, batches BatchIter,
	m *attachmentMaterializer, w io.StringWriter) (seedStats, error) {
	var (
		stats   seedStats
		model   = src.ModelName()
		exclude = newExcludeSet(conf.Exclude)
		columns []string
		record  bytes.Buffer
	)
	if conf.Import.Enabled {
		columns = filterAttributeNames(src.AttributeNames(), exclude)
	}
	formatter := newRecordFormatter(newEncoder(conf.FilesDir), exclude, columns)

	bf := bufferPool.Get().(*bytes.Buffer)
	bf.Reset()
	defer bufferPool.Put(bf)

	bf.WriteString(model)
	if conf.Import.Enabled {
		bf.WriteString(".import([")
		for i, col := range columns {
			if i > 0 {
				bf.WriteString(", ")
			}
			bf.WriteString(rubySymbol(col))
		}
		bf.WriteString("], [\n  ")
	} else {
		bf.WriteString(".create!([\n  ")
	}

	flushSize := int(conf.FlushSize)
	for batches.HasNext() {
		records, err := batches.Next(tctx.Context())
		if err != nil {
			return stats, withStack(err)
		}
		for _, r := range records {
			record.Reset()
			ops, err := formatter.format(&record, r)
			if err != nil {
				return stats, errors.Annotatef(err, "encode record %d of %s", stats.records+1, model)
			}
			if err := m.Materialize(tctx, ops); err != nil {
				return stats, err
			}
			if stats.records > 0 {
				bf.WriteString(",\n  ")
			}
			bf.Write(record.Bytes())
			stats.records++
		}
		stats.batches++
		finishedBatchesCounter.WithLabelValues(model).Inc()
		finishedRecordsCounter.WithLabelValues(model).Add(float64(len(records)))
		if tctx.L().IsDebugEnabled() {
			tctx.L().Debug("dumped batch",
				zap.Int("batch", stats.batches),
				zap.Int("records", len(records)),
				zap.String("buffered", units.HumanSize(float64(bf.Len()))))
		}

		if bf.Len() >= flushSize {
			if err := flush(model, w, bf); err != nil {
				return stats, err
			}
		}
	}

	bf.WriteString("\n]")
	if conf.Import.Enabled {
		for _, opt := range conf.Import.Options {
			bf.WriteString(", ")
			bf.WriteString(rubyHashKey(opt.Key))
			bf.WriteByte(' ')
			bf.WriteString(opt.Value)
		}
	}
	bf.WriteString(")\n")
	if err := flush(model, w, bf); err != nil {
		return stats, err
	}
	tctx.L().Debug("dumped model",
		zap.Int("records", stats.records),
		zap.Int("batches", stats.batches))
	return stats, nil
}

func flush(model string, w io.StringWriter, bf *bytes.Buffer) error {
	start := time.Now()
	err := write(w, bf.String())
	bf.Reset()
	writeTimeHistogram.WithLabelValues(model).Observe(time.Since(start).Seconds())
	return err
}

func write(writer io.StringWriter, str string) error {
	_, err := writer.WriteString(str)
	if err != nil {
		log.Error("writing failed",
			zap.Int("length", len(str)),
			zap.Error(err))
	}
	return errors.Trace(err)
}

// buildFileWriter opens path for writing, truncating it unless appendMode.
// The returned tear down flushes and closes the file.
func buildFileWriter(path string, appendMode bool) (io.StringWriter, func() error, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, errors.Trace(err)
		}
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		log.Error("open file failed",
			zap.String("path", path),
			zap.Error(err))
		return nil, nil, errors.Trace(err)
	}
	log.Debug("opened file", zap.String("path", path), zap.Bool("append", appendMode))
	buf := bufio.NewWriter(file)
	tearDownRoutine := func() error {
		flushErr := buf.Flush()
		closeErr := file.Close()
		if flushErr != nil {
			return errors.Trace(flushErr)
		}
		if closeErr != nil {
			log.Error("close file failed",
				zap.String("path", path),
				zap.Error(closeErr))
		}
		return errors.Trace(closeErr)
	}
	return buf, tearDownRoutine, nil
}

// InterceptStringWriter is an interceptor of io.StringWriter,
// tracking how much a StringWriter has written.
type InterceptStringWriter struct {
	io.StringWriter
	SomethingIsWritten bool
	Written            int64
}

func (w *InterceptStringWriter) WriteString(str string) (int, error) {
	n, err := w.StringWriter.WriteString(str)
	if n > 0 {
		w.SomethingIsWritten = true
		w.Written += int64(n)
	}
	return n, err
}
