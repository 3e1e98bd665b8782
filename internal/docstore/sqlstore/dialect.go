package sqlstore

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
)

// Driver names a SQL dialect.
type Driver string

const (
	SQLite Driver = "sqlite3"
	MySQL  Driver = "mysql"
)

type dialect struct {
	driver Driver
	schema string
	// lock is appended to SELECTs that validate the read set at commit.
	lock   string
	upsert string
	// retryable reports errors that mean "lost a race, run again".
	retryable func(error) bool
}

var sqliteDialect = dialect{
	driver: SQLite,
	schema: sqliteSchema,
	upsert: `
		INSERT INTO documents (path, parent, id, data, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			data = excluded.data,
			version = MAX(documents.version + 1, excluded.version),
			updated_at = excluded.updated_at`,
	retryable: func(err error) bool {
		var se sqlite3.Error
		if errors.As(err, &se) {
			return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
		}
		return false
	},
}

// MySQL error numbers treated as aborted attempts.
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

var mysqlDialect = dialect{
	driver: MySQL,
	schema: mysqlSchema,
	lock:   " FOR UPDATE",
	upsert: `
		INSERT INTO documents (path, parent, id, data, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			data = VALUES(data),
			version = GREATEST(version + 1, VALUES(version)),
			updated_at = VALUES(updated_at)`,
	retryable: func(err error) bool {
		var me *mysql.MySQLError
		if errors.As(err, &me) {
			switch me.Number {
			case mysqlDuplicateEntry, mysqlLockWaitTimeout, mysqlDeadlock:
				return true
			}
		}
		return false
	},
}
