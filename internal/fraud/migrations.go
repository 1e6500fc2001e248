package fraud

import "embed"

// Migrations holds the schema of the order history and assessment tables.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations holding the files.
const MigrationsDir = "migrations"
