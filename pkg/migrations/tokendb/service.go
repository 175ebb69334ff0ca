// Package tokendb holds all the migrations for the token metrics database
package tokendb

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the collection of all migrations for the token metrics database
var Migrations = migrate.NewMigrations()
