// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"regexp"
	"strings"

	"github.com/pingcap/errors"
	tf "github.com/pingcap/tidb-tools/pkg/table-filter"
	"go.uber.org/zap"

	tcontext "github.com/pingcap/seed-dumpling/v4/context"
)

// railsInternalTables never hold application records.
var railsInternalTables = []string{
	"schema_migrations",
	"ar_internal_metadata",
	"active_storage_*",
	"action_text_*",
	"action_mailbox_*",
}

var plainTablePattern = regexp.MustCompile(`^[0-9a-zA-Z_$*?]+$`)

// tablePattern quotes name for a table filter rule unless it is a plain
// name or wildcard.
func tablePattern(name string) string {
	if plainTablePattern.MatchString(name) {
		return name
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// resolveModel maps a model class name such as `Sample` to its table.
// Anything else is returned unchanged.
func resolveModel(entry string, tables []string) string {
	for _, t := range tables {
		if t == entry {
			return t
		}
	}
	for _, t := range tables {
		if modelNameFromTable(t) == entry {
			return t
		}
	}
	return entry
}

// modelFilterRules builds table filter rules where later rules win: the
// model list, then excluded models on top.
func modelFilterRules(conf *Config, tables []string) []string {
	rules := make([]string, 0, 1+len(railsInternalTables)+len(conf.Models)+len(conf.ModelsExclude))
	if len(conf.Models) == 0 {
		rules = append(rules, "*.*")
	}
	for _, t := range railsInternalTables {
		rules = append(rules, "!*."+t)
	}
	for _, m := range conf.Models {
		rules = append(rules, "*."+tablePattern(resolveModel(m, tables)))
	}
	for _, m := range conf.ModelsExclude {
		rules = append(rules, "!*."+tablePattern(resolveModel(m, tables)))
	}
	return rules
}

func newModelFilter(conf *Config, tables []string) (tf.Filter, error) {
	f, err := tf.Parse(modelFilterRules(conf, tables))
	if err != nil {
		return nil, errors.Annotate(err, "parse model filter")
	}
	return tf.CaseInsensitive(f), nil
}

// filterModels keeps the order of tables and drops those not selected.
func filterModels(tctx *tcontext.Context, conf *Config, tables []string) ([]string, error) {
	f, err := newModelFilter(conf, tables)
	if err != nil {
		return nil, err
	}
	schema := conf.Database
	if schema == "" {
		schema = "main"
	}
	kept := make([]string, 0, len(tables))
	for _, t := range tables {
		if f.MatchTable(schema, t) {
			kept = append(kept, t)
			continue
		}
		tctx.L().Debug("filter model", zap.String("table", t))
	}
	return kept, nil
}
