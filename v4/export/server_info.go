// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"regexp"
	"strings"

	"github.com/coreos/go-semver/semver"
	"go.uber.org/zap"

	"github.com/pingcap/seed-dumpling/v4/log"
)

// ServerType represents the type of database server.
type ServerType int8

func (s ServerType) String() string {
	if s >= ServerTypeAll {
		return ""
	}
	return serverTypeString[s]
}

const (
	// ServerTypeUnknown represents unknown server type
	ServerTypeUnknown ServerType = iota
	// ServerTypeMySQL represents MySQL server type
	ServerTypeMySQL
	// ServerTypeMariaDB represents MariaDB server type
	ServerTypeMariaDB
	// ServerTypeTiDB represents TiDB server type
	ServerTypeTiDB
	// ServerTypePostgreSQL represents PostgreSQL server type
	ServerTypePostgreSQL
	// ServerTypeSQLite represents SQLite databases
	ServerTypeSQLite

	// ServerTypeAll represents All server types
	ServerTypeAll
)

var serverTypeString = []string{
	ServerTypeUnknown:    "Unknown",
	ServerTypeMySQL:      "MySQL",
	ServerTypeMariaDB:    "MariaDB",
	ServerTypeTiDB:       "TiDB",
	ServerTypePostgreSQL: "PostgreSQL",
	ServerTypeSQLite:     "SQLite",
}

// ServerInfo is the combination of ServerType and ServerVersion
type ServerInfo struct {
	ServerType    ServerType
	ServerVersion *semver.Version
}

var (
	versionRegex     = regexp.MustCompile(`^\d+\.\d+\.\d+([0-9A-Za-z-]+(\.[0-9A-Za-z-]+)*)?`)
	tidbVersionRegex = regexp.MustCompile(`-[v]?\d+\.\d+\.\d+([0-9A-Za-z-]+(\.[0-9A-Za-z-]+)*)?`)
	pgVersionRegex   = regexp.MustCompile(`\d+(\.\d+){1,2}`)
)

// ParseServerInfo parses the output of the version query of the server.
func ParseServerInfo(src string) ServerInfo {
	log.Debug("parse server info", zap.String("server info string", src))
	lowerCase := strings.ToLower(src)
	serverInfo := ServerInfo{}
	switch {
	case strings.Contains(lowerCase, "tidb"):
		serverInfo.ServerType = ServerTypeTiDB
	case strings.Contains(lowerCase, "mariadb"):
		serverInfo.ServerType = ServerTypeMariaDB
	case strings.Contains(lowerCase, "postgresql"):
		serverInfo.ServerType = ServerTypePostgreSQL
	case versionRegex.MatchString(lowerCase):
		serverInfo.ServerType = ServerTypeMySQL
	default:
		serverInfo.ServerType = ServerTypeUnknown
	}

	var versionStr string
	switch serverInfo.ServerType {
	case ServerTypeTiDB:
		versionStr = tidbVersionRegex.FindString(src)
		if versionStr != "" {
			versionStr = strings.TrimPrefix(versionStr[1:], "v")
		}
	case ServerTypePostgreSQL:
		versionStr = padVersion(pgVersionRegex.FindString(src))
	default:
		versionStr = versionRegex.FindString(src)
	}

	var err error
	serverInfo.ServerVersion, err = semver.NewVersion(versionStr)
	if err != nil {
		log.Warn("fail to parse version",
			zap.String("version", versionStr))
		return serverInfo
	}

	log.Info("detect server type",
		zap.String("type", serverInfo.ServerType.String()))
	log.Info("detect server version",
		zap.String("version", serverInfo.ServerVersion.String()))
	return serverInfo
}

// parseSQLiteServerInfo parses the output of sqlite_version().
func parseSQLiteServerInfo(src string) ServerInfo {
	info := ServerInfo{ServerType: ServerTypeSQLite}
	v, err := semver.NewVersion(padVersion(strings.TrimSpace(src)))
	if err != nil {
		log.Warn("fail to parse version", zap.String("version", src))
		return info
	}
	info.ServerVersion = v
	return info
}

// padVersion completes `16.2` to `16.2.0`.
func padVersion(v string) string {
	if v != "" && strings.Count(v, ".") == 1 {
		return v + ".0"
	}
	return v
}
