package repo

import "embed"

// Migrations holds the postgres schema applied by the migrate command
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations
const MigrationsDir = "migrations"
