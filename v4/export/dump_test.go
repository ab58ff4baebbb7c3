// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pingcap/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestDumpCreate(t *testing.T) {
	conf := DefaultConfig()
	out, err := Dump(testContext(), NewRecordSlice("Sample", sampleRecord(1)), conf)
	require.NoError(t, err)
	require.Equal(t,
		"Sample.create!([\n"+
			"  {string: \"string\", decimal: \"2.72\", date: \"1863-11-19\"}\n"+
			"])\n",
		out.Text)
	require.Equal(t, 1, out.Models)
	require.Equal(t, 1, out.Records)
	require.Equal(t, int64(len(out.Text)), out.Bytes)
}

func TestDumpImport(t *testing.T) {
	conf := DefaultConfig()
	conf.Exclude = []string{}
	conf.BatchSize = 2
	conf.Import.Enabled = true

	defer RemoveModelMetrics("ImportSample")
	src := newMockPagedSource("ImportSample", sampleRecord(1), sampleRecord(2), sampleRecord(3), sampleRecord(4))
	recordsBefore := testutil.ToFloat64(finishedRecordsCounter.WithLabelValues("ImportSample"))
	batchesBefore := testutil.ToFloat64(finishedBatchesCounter.WithLabelValues("ImportSample"))

	out, err := Dump(testContext(), src, conf)
	require.NoError(t, err)
	row := func(id string) string {
		return "[" + id + `, "string", "2.72", "1863-11-19", "2021-01-01 10:00:00", "2021-01-01 10:00:00"]`
	}
	require.Equal(t,
		"ImportSample.import([:id, :string, :decimal, :date, :created_at, :updated_at], [\n  "+
			row("1")+",\n  "+row("2")+",\n  "+row("3")+",\n  "+row("4")+
			"\n])\n",
		out.Text)
	require.Equal(t, 4, out.Records)
	require.Equal(t, 2, out.Batches)
	require.True(t, src.orderedByPK)
	require.Equal(t, [][2]int{{0, 2}, {2, 2}}, src.fetches)
	require.Equal(t, recordsBefore+4, testutil.ToFloat64(finishedRecordsCounter.WithLabelValues("ImportSample")))
	require.Equal(t, batchesBefore+2, testutil.ToFloat64(finishedBatchesCounter.WithLabelValues("ImportSample")))
}

func TestDumpImportOptions(t *testing.T) {
	conf := DefaultConfig()
	conf.Import = ImportMode{
		Enabled: true,
		Options: []ImportOption{{Key: "validate", Value: "false"}, {Key: "on_duplicate_key_ignore", Value: "true"}},
	}
	out, err := Dump(testContext(), NewRecordSlice("Sample", sampleRecord(1)), conf)
	require.NoError(t, err)
	require.Equal(t,
		"Sample.import([:string, :decimal, :date], [\n"+
			"  [\"string\", \"2.72\", \"1863-11-19\"]\n"+
			"], validate: false, on_duplicate_key_ignore: true)\n",
		out.Text)
}

func TestDumpNoRecords(t *testing.T) {
	conf := DefaultConfig()
	conf.File = filepath.Join(t.TempDir(), "seeds.rb")

	out, err := Dump(testContext(), NewRecordSlice("Sample"), conf)
	require.NoError(t, err)
	require.Nil(t, out)
	_, err = os.Stat(conf.File)
	require.True(t, os.IsNotExist(err))

	out, err = Dump(testContext(), newMockPagedSource("Sample"), conf)
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestDumpToFile(t *testing.T) {
	conf := DefaultConfig()
	conf.File = filepath.Join(t.TempDir(), "seeds.rb")

	out, err := Dump(testContext(), NewRecordSlice("Sample", sampleRecord(1)), conf)
	require.NoError(t, err)
	require.Empty(t, out.Text)
	first := "Sample.create!([\n  {string: \"string\", decimal: \"2.72\", date: \"1863-11-19\"}\n])\n"
	content, err := os.ReadFile(conf.File)
	require.NoError(t, err)
	require.Equal(t, first, string(content))

	// without append the file is replaced
	_, err = Dump(testContext(), NewRecordSlice("Sample", sampleRecord(1)), conf)
	require.NoError(t, err)
	content, err = os.ReadFile(conf.File)
	require.NoError(t, err)
	require.Equal(t, first, string(content))

	conf.Append = true
	_, err = Dump(testContext(), NewRecordSlice("Other", NewRecord(Attr("name", "x"))), conf)
	require.NoError(t, err)
	content, err = os.ReadFile(conf.File)
	require.NoError(t, err)
	require.Equal(t, first+"Other.create!([\n  {name: \"x\"}\n])\n", string(content))
}

func TestDumpMaterializesAttachmentsOnce(t *testing.T) {
	blobs := newMockBlobService()
	blobs.blobs["k1"] = []byte("hello")
	conf := DefaultConfig()
	conf.RootDir = t.TempDir()

	src := func() RecordSource {
		return NewRecordSlice("User",
			NewRecord(
				Attr("name", "alice"),
				Attr("avatar", AttachmentValue(&Attachment{Filename: "alice.png", ContentType: "image/png", Key: "k1", Service: blobs})),
			),
			NewRecord(
				Attr("name", "bob"),
				Attr("avatar", AttachmentValue(&Attachment{Filename: "alice.png", ContentType: "image/png", Key: "k1", Service: blobs})),
			),
		)
	}
	out, err := Dump(testContext(), src(), conf)
	require.NoError(t, err)
	require.Equal(t, 1, out.CopiedAttachments)
	require.Contains(t, out.Text,
		`{name: "alice", avatar: {io: File.open(Rails.root.join("db/seeds/files", "alice.png")), filename: "alice.png", content_type: "image/png"}}`)

	out, err = Dump(testContext(), src(), conf)
	require.NoError(t, err)
	require.Equal(t, 0, out.CopiedAttachments)
	require.Equal(t, 1, blobs.opens)

	content, err := os.ReadFile(filepath.Join(conf.RootDir, DefaultFilesDir, "alice.png"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(content))
}

func TestDumpAttachmentFailure(t *testing.T) {
	conf := DefaultConfig()
	conf.RootDir = t.TempDir()
	conf.File = filepath.Join(conf.RootDir, "seeds.rb")
	src := NewRecordSlice("User", NewRecord(
		Attr("avatar", AttachmentValue(&Attachment{Filename: "gone.png", Key: "missing", Service: newMockBlobService()})),
	))

	_, err := Dump(testContext(), src, conf)
	require.Error(t, err)
	var attErr *AttachmentError
	require.True(t, stderrors.As(err, &attErr))
	require.Equal(t, "gone.png", attErr.Filename)
	require.Contains(t, err.Error(), "gone.png")
}

func TestDumpFetchError(t *testing.T) {
	src := newMockPagedSource("Sample", sampleRecord(1))
	src.fetchErr = errors.New("connection lost")
	_, err := Dump(testContext(), src, DefaultConfig())
	require.EqualError(t, errors.Cause(err), "connection lost")
}

func TestDumpCountErrorCounted(t *testing.T) {
	defer RemoveModelMetrics("Broken")
	src := newMockPagedSource("Broken", sampleRecord(1))
	src.countErr = errors.New("table is gone")
	before := testutil.ToFloat64(errorCount.WithLabelValues("Broken"))

	out, err := Dump(testContext(), src, DefaultConfig())
	require.Nil(t, out)
	require.EqualError(t, errors.Cause(err), "table is gone")
	require.Equal(t, before+1, testutil.ToFloat64(errorCount.WithLabelValues("Broken")))
	require.Empty(t, src.fetches)
}

func TestDumpZeroConfigExcludesDefaults(t *testing.T) {
	out, err := Dump(testContext(), NewRecordSlice("Sample", sampleRecord(1)), &Config{})
	require.NoError(t, err)
	require.NotContains(t, out.Text, "id:")
	require.NotContains(t, out.Text, "created_at:")
	require.NotContains(t, out.Text, "updated_at:")
	require.Equal(t,
		"Sample.create!([\n"+
			"  {string: \"string\", decimal: \"2.72\", date: \"1863-11-19\"}\n"+
			"])\n",
		out.Text)

	// an empty non-nil exclude list keeps every attribute
	out, err = Dump(testContext(), NewRecordSlice("Sample", sampleRecord(1)), &Config{Exclude: []string{}})
	require.NoError(t, err)
	require.Contains(t, out.Text, "{id: 1, ")
}

func TestDumpRejectsBadConfig(t *testing.T) {
	conf := DefaultConfig()
	conf.BatchSize = -1
	_, err := Dump(testContext(), NewRecordSlice("Sample", sampleRecord(1)), conf)
	require.Error(t, err)
}
