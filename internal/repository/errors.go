// Package repository defines the persistence contracts of the credential
// store and the revocation ledger together with their MySQL and Redis
// implementations. The sentinel errors below let the service layer tell
// business outcomes apart from infrastructure failures.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a requested user does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an insert collides with the unique
// constraint on users.email. Handlers should translate this into the
// "User already exists" response.
var ErrEmailExists = errors.New("email already exists")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
