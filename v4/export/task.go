// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

// Task is one unit of a database dump.
type Task interface {
	// Brief is the short description of the task used in logs.
	Brief() string
}

// TaskModelData dumps the records of one table as seeds of one model.
type TaskModelData struct {
	Table string
	// Source is resolved lazily when the task runs.
	Source RecordSource
	// Index is the position of the task in the dump, 0 based.
	Index int
	Total int
}

// NewTaskModelData creates the task of dumping table.
func NewTaskModelData(table string, index, total int) *TaskModelData {
	return &TaskModelData{
		Table: table,
		Index: index,
		Total: total,
	}
}

// Brief implements Task.
func (t *TaskModelData) Brief() string {
	return "dump model data of table " + t.Table
}
