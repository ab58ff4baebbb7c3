// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"strings"

	"github.com/docker/go-units"
	"go.uber.org/zap"

	tcontext "github.com/pingcap/seed-dumpling/v4/context"
)

// Output describes the seeds one dump produced.
type Output struct {
	// Text is the generated code when no output file is configured.
	Text              string
	Models            int
	Records           int
	Batches           int
	Bytes             int64
	CopiedAttachments int
}

func (o *Output) merge(other *Output) {
	o.Text += other.Text
	o.Models += other.Models
	o.Records += other.Records
	o.Batches += other.Batches
	o.Bytes += other.Bytes
	o.CopiedAttachments += other.CopiedAttachments
}

// Writer emits the seeds of models.
type Writer interface {
	WriteModelSeeds(tctx *tcontext.Context, src RecordSource, batches BatchIter) (*Output, error)
}

// SimpleWriter writes seeds into conf.File, or returns them when no file is
// configured. Once it has written a model it appends the following ones.
type SimpleWriter struct {
	conf         *Config
	materializer *attachmentMaterializer
	appendMode   bool
}

// NewSimpleWriter creates a writer. The first model truncates conf.File
// unless conf.Append is set.
func NewSimpleWriter(conf *Config) *SimpleWriter {
	return &SimpleWriter{
		conf:         conf,
		materializer: newAttachmentMaterializer(conf),
		appendMode:   conf.Append,
	}
}

// WriteModelSeeds implements Writer.
func (f *SimpleWriter) WriteModelSeeds(tctx *tcontext.Context, src RecordSource, batches BatchIter) (out *Output, err error) {
	var (
		model     = src.ModelName()
		copied    = f.materializer.copied
		sb        strings.Builder
		intWriter = &InterceptStringWriter{StringWriter: &sb}
		tearDown  = func() error { return nil }
	)
	if f.conf.File != "" {
		fileWriter, td, err := buildFileWriter(f.conf.File, f.appendMode)
		if err != nil {
			return nil, err
		}
		intWriter.StringWriter = fileWriter
		tearDown = td
	}
	defer func() {
		if tearDownErr := tearDown(); err == nil && tearDownErr != nil {
			err = tearDownErr
			out = nil
		}
		if err != nil {
			errorCount.WithLabelValues(model).Inc()
		}
	}()

	stats, err := WriteSeed(tctx, f.conf, src, batches, f.materializer, intWriter)
	if err != nil {
		return nil, err
	}
	finishedSizeCounter.WithLabelValues(model).Add(float64(intWriter.Written))
	f.appendMode = true

	tctx.L().Info("dumped model seeds",
		zap.String("model", model),
		zap.String("file", f.conf.File),
		zap.Int("records", stats.records),
		zap.String("size", units.HumanSize(float64(intWriter.Written))))
	return &Output{
		Text:              sb.String(),
		Models:            1,
		Records:           stats.records,
		Batches:           stats.batches,
		Bytes:             intWriter.Written,
		CopiedAttachments: f.materializer.copied - copied,
	}, nil
}
