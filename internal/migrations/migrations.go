package migrations

import (
	_ "embed"
)

//go:embed schema.sql
var initialSchema string

// InitialSchema returns the archive index schema.
func InitialSchema() string {
	return initialSchema
}
