package repository

import (
	"database/sql"
)

// SQLExecutor is the slice of *sql.DB the repositories need. Balance
// mutations go through single conditional updates rather than multi-row
// transactions, so Begin/Commit never appears here.
type SQLExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

var _ SQLExecutor = (*sql.DB)(nil)
