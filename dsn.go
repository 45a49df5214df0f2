package quacksql

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"
)

// dataSourceName renders the driver-specific DSN for database. Both drivers
// read options from a query string after the path, so paths holding '?' or
// '#' are rejected rather than misparsed.
func dataSourceName(driver, database string, readOnly bool) (string, error) {
	if driver == DriverDuckDB || driver == DriverSQLite {
		if strings.ContainsAny(database, "?#") {
			return "", fmt.Errorf("%w: %q", ErrInvalidDatabase, database)
		}
	}
	switch driver {
	case DriverDuckDB:
		if !readOnly {
			return database, nil
		}
		params := url.Values{}
		params.Set("access_mode", "read_only")
		return database + "?" + params.Encode(), nil

	case DriverSQLite:
		if !readOnly {
			return database, nil
		}
		params := url.Values{}
		params.Set("mode", "ro")
		return "file:" + database + "?" + params.Encode(), nil

	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// pinConnection limits the pool to one long-lived connection, so session
// state (temp tables, SET variables, :memory: contents) is shared by every
// query issued through the Manager.
func pinConnection(db *sql.DB) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)
}
