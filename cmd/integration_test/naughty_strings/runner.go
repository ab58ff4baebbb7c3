// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package naughtystrings

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pingcap/errors"

	"github.com/pingcap/seed-dumpling/v4/export"
)

// NaughtyStringTestRunner dumps strings which are easy to escape wrongly.
type NaughtyStringTestRunner struct{}

// NewNaughtyStringTestRunner creates the runner.
func NewNaughtyStringTestRunner() *NaughtyStringTestRunner {
	return &NaughtyStringTestRunner{}
}

func (n *NaughtyStringTestRunner) Name() string {
	return "naughty_strings"
}

func (n *NaughtyStringTestRunner) BuildConfig() *export.Config {
	conf := export.DefaultConfig()
	conf.Models = []string{"NaughtyString"}
	conf.BatchSize = 4
	return conf
}

func (n *NaughtyStringTestRunner) Prepare(dataFilePath string, db *sql.DB) error {
	data, err := os.ReadFile(dataFilePath)
	if err != nil {
		return errors.Trace(err)
	}
	var strs []string
	if err = json.Unmarshal(data, &strs); err != nil {
		return errors.Trace(err)
	}

	if _, err = db.Exec("CREATE TABLE naughty_strings (id INTEGER PRIMARY KEY, body TEXT)"); err != nil {
		return errors.Trace(err)
	}
	for _, str := range strs {
		if _, err = db.Exec("INSERT INTO naughty_strings (body) VALUES (?)", str); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (n *NaughtyStringTestRunner) RelativeTestDataPath() string {
	return filepath.Join("naughty_strings", "data.json")
}

func (n *NaughtyStringTestRunner) RelativeTestResultPath() string {
	return filepath.Join("naughty_strings", "result.rb")
}
