// Package database centralises sqlx connection helpers.  The driver is
// go-sql-driver/mysql, which also works with MariaDB.
//
// Public entry points:
//
//	Open(dsn)                               – conservative pool sizes.
//	OpenWithOptions(dsn, maxOpen, maxIdle)  – fine-grained control.
//	FillDSN(template, password)             – inject a resolved secret.
//
// Both Open helpers Ping the database before returning so callers can fail
// fast during bootstrap.
package database

import (
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// DriverName is the sqlx driver every query in the module is written for.
const DriverName = "mysql"

// Open returns a *sqlx.DB with 15 max open, 5 idle, and a 30-minute
// connection lifetime.
func Open(dsn string) (*sqlx.DB, error) {
	return OpenWithOptions(dsn, 15, 5)
}

// OpenWithOptions lets callers tune maxOpen and maxIdle.
func OpenWithOptions(dsn string, maxOpen, maxIdle int) (*sqlx.DB, error) {
	db, err := sqlx.Open(DriverName, dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// FillDSN substitutes password into the single %s verb of template.  A
// template without a verb is returned unchanged.
func FillDSN(template, password string) (string, error) {
	switch strings.Count(template, "%s") {
	case 0:
		return template, nil
	case 1:
		return fmt.Sprintf(template, password), nil
	default:
		return "", fmt.Errorf("database dsn: expected one %%s verb, found %d", strings.Count(template, "%s"))
	}
}
