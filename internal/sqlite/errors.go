package sqlite

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// IsUniqueConstraintError reports a UNIQUE or PRIMARY KEY violation, such as
// a second response for the same product and key.
func IsUniqueConstraintError(err error) bool {
	return hasExtendedCode(err, sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey)
}

// IsForeignKeyError reports a FOREIGN KEY violation, such as a machine row
// whose response is gone.
func IsForeignKeyError(err error) bool {
	return hasExtendedCode(err, sqlite3.ErrConstraintForeignKey)
}

func hasExtendedCode(err error, codes ...sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	for _, c := range codes {
		if sqliteErr.ExtendedCode == c {
			return true
		}
	}
	return false
}
