// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package main

import (
	"bufio"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pingcap/errors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	naughtystrings "github.com/pingcap/seed-dumpling/cmd/integration_test/naughty_strings"
	tcontext "github.com/pingcap/seed-dumpling/v4/context"
	"github.com/pingcap/seed-dumpling/v4/export"
	"github.com/pingcap/seed-dumpling/v4/log"
)

// TestRunner prepares a database and names the seeds the dump of it must
// produce.
type TestRunner interface {
	Name() string
	RelativeTestDataPath() string
	RelativeTestResultPath() string
	BuildConfig() *export.Config
	Prepare(dataFilePath string, db *sql.DB) error
}

func main() {
	wd, err := os.Getwd()
	assertNotNil(err)
	integrationTestDir := pflag.String("src", wd, "the path of directory that contains test data")
	pflag.Parse()

	allTestRunners := []TestRunner{
		naughtystrings.NewNaughtyStringTestRunner(),
	}
	for _, runner := range allTestRunners {
		testDataPath := filepath.Join(*integrationTestDir, runner.RelativeTestDataPath())
		resultPath := filepath.Join(*integrationTestDir, runner.RelativeTestResultPath())

		conf := runner.BuildConfig()
		workDir := processConfig(conf, runner.Name())
		db := setupTestDB(conf)
		assertNotNil(runner.Prepare(testDataPath, db))

		_, err := export.DumpModels(tcontext.Background(), db, conf)
		assertNotNil(err)
		assertNotNil(db.Close())

		assert(conf.File, resultPath)
		assertNotNil(os.RemoveAll(workDir))
		log.Info("integration test passed", zap.String("runner", runner.Name()))
	}
}

func processConfig(conf *export.Config, name string) string {
	workDir := filepath.Join(os.TempDir(), "test-seed-dumpling", name)
	assertNotNil(os.RemoveAll(workDir))
	assertNotNil(os.MkdirAll(workDir, 0o755))
	conf.Driver = "sqlite"
	conf.Database = filepath.Join(workDir, "test.sqlite3")
	conf.RootDir = workDir
	conf.File = filepath.Join(workDir, export.DefaultSeedsFile)
	return workDir
}

func setupTestDB(conf *export.Config) *sql.DB {
	db, err := export.OpenDB(conf)
	assertNotNil(err)
	assertNotNil(db.Ping())
	return db
}

func assert(obtainResultPath, expectedResultPath string) {
	obtainReader, closeObtain, err := openFileAsReader(obtainResultPath)
	assertNotNil(err)
	defer closeObtain()
	expectedReader, closeExpected, err := openFileAsReader(expectedResultPath)
	assertNotNil(err)
	defer closeExpected()

	if diff := compare(obtainReader, expectedReader); diff != nil {
		log.Error("result mismatch",
			zap.String("file", obtainResultPath),
			zap.Int("line", diff.lineNum+1),
			zap.String("diff", diff.String()))
		os.Exit(1)
	}
}

func openFileAsReader(path string) (*bufio.Reader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return bufio.NewReader(f), func() { f.Close() }, nil
}

// Diff is the first differing line of two results.
type Diff struct {
	left     string
	right    string
	lineNum  int
	leftErr  error
	rightErr error
}

func (d *Diff) String() string {
	var left, right string
	if d.leftErr != nil {
		left = fmt.Sprintf("error: %v", d.leftErr)
	} else {
		left = fmt.Sprintf("string: %s", d.left)
	}
	if d.rightErr != nil {
		right = fmt.Sprintf("error: %v", d.rightErr)
	} else {
		right = fmt.Sprintf("string: %s", d.right)
	}
	return fmt.Sprintf("left '%s', right '%s'", escapeEscape(left), escapeEscape(right))
}

func compare(obtainReader, expectedReader *bufio.Reader) *Diff {
	diff := &Diff{}
	for {
		left, leftErr := obtainReader.ReadString('\n')
		right, rightErr := expectedReader.ReadString('\n')
		switch {
		case leftErr == io.EOF && rightErr == io.EOF:
			return nil
		case leftErr == nil && rightErr == nil:
			if left != right {
				diff.left, diff.right = left, right
				return diff
			}
			diff.lineNum++
		default:
			diff.left, diff.right = left, right
			diff.leftErr, diff.rightErr = leftErr, rightErr
			return diff
		}
	}
}

func escapeEscape(src string) string {
	return strings.ReplaceAll(src, "\n", `\n`)
}

func assertNotNil(err error) {
	if err != nil {
		log.Error("integration test failed", zap.String("error", fmt.Sprintf("%+v", errors.WithStack(err))))
		os.Exit(1)
	}
}
