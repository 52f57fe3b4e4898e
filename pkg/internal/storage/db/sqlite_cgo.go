//go:build !no_sqlite && cgo

package db

import (
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yeisme/sharevault/pkg/configs"
)

// mattn/go-sqlite3 spells pragmas as _name=value instead of _pragma=name(value).
var cgoPragmaReplacer = strings.NewReplacer(
	"_pragma=busy_timeout(10000)", "_busy_timeout=10000",
	"_pragma=journal_mode(WAL)", "_journal_mode=WAL",
	"_pragma=foreign_keys(1)", "_foreign_keys=1",
)

func createSQLiteDialector(dsn string) gorm.Dialector {
	return sqlite.Open(cgoPragmaReplacer.Replace(dsn))
}

func init() {
	RegisterDialectorFactory(createSQLiteDialector, configs.SQLite)
}
