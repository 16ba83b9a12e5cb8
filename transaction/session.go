package transaction

import (
	"database/sql"

	"go.uber.org/zap"
)

// WithTransaction runs fn inside a database transaction that commits on a
// nil return and rolls back on any error. The error from fn is returned
// unchanged and logged at error severity.
func WithTransaction(db *sql.DB, logger *zap.SugaredLogger, fn func(*sql.Tx) error) error {
	err := WithQuietTransaction(db, fn)
	if err != nil {
		logger.Errorw("Transaction rolled back", "error", err)
	}
	return err
}

// WithQuietTransaction is WithTransaction without the error logging, for
// callers whose failures are expected and client-attributable.
func WithQuietTransaction(db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Savepoint runs fn inside a named savepoint on an open transaction. A nil
// return releases the savepoint; an error rolls back to it, leaving the
// surrounding transaction usable. Used where one row's failure must not
// abort its siblings.
func Savepoint(tx *sql.Tx, name string, fn func() error) error {
	if _, err := tx.Exec("SAVEPOINT " + name); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if _, rbErr := tx.Exec("ROLLBACK TO SAVEPOINT " + name); rbErr != nil {
			return rbErr
		}
		return err
	}
	_, err := tx.Exec("RELEASE SAVEPOINT " + name)
	return err
}
