package metadata

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"satpipe/internal/config"
)

const (
	sqliteBusyCode             = 5
	sqliteConstraintUnique     = 2067
	sqliteConstraintPrimaryKey = 1555
	mysqlDuplicateEntry        = 1062
	postgresUniqueViolation    = "23505"
)

// dialect captures the few places where the supported SQL engines differ.
type dialect struct {
	name        string
	driverName  string
	schemaFile  string
	numbered    bool
	returningID bool
	uniqueErr   func(error) bool
	busyErr     func(error) bool
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case config.DriverSQLite, "":
		return dialect{
			name:       config.DriverSQLite,
			driverName: "sqlite",
			schemaFile: "schema/sqlite.sql",
			uniqueErr:  isSQLiteUnique,
			busyErr:    isSQLiteBusy,
		}, nil
	case config.DriverMySQL:
		return dialect{
			name:       config.DriverMySQL,
			driverName: "mysql",
			schemaFile: "schema/mysql.sql",
			uniqueErr:  isMySQLUnique,
			busyErr:    func(error) bool { return false },
		}, nil
	case config.DriverPostgres:
		return dialect{
			name:        config.DriverPostgres,
			driverName:  "postgres",
			schemaFile:  "schema/postgres.sql",
			numbered:    true,
			returningID: true,
			uniqueErr:   isPostgresUnique,
			busyErr:     func(error) bool { return false },
		}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported store driver %q", driver)
	}
}

// rebind rewrites ? placeholders into $1..$n for engines that need it.
// Queries never carry literal question marks.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isSQLiteUnique(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		switch coder.Code() {
		case sqliteConstraintUnique, sqliteConstraintPrimaryKey:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isMySQLUnique(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

func isPostgresUnique(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == postgresUniqueViolation
}
