package db

import (
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// IsSystemic reports whether err is a store-level failure that will not go
// away by retrying the next batch (disk full, I/O error, corruption, a
// read-only or unopenable database).
func IsSystemic(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_FULL,
		sqlite3.SQLITE_IOERR,
		sqlite3.SQLITE_CORRUPT,
		sqlite3.SQLITE_READONLY,
		sqlite3.SQLITE_CANTOPEN,
		sqlite3.SQLITE_NOTADB:
		return true
	}
	return false
}

// IsConstraint reports whether err is a constraint violation.
func IsConstraint(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
