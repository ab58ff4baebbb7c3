// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

//go:build tools

package tools

import (
	_ "github.com/golangci/golangci-lint/cmd/golangci-lint"
	_ "github.com/mgechev/revive"
	_ "mvdan.cc/gofumpt"
)
