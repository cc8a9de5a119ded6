package migrations

import (
	_ "embed"

	"github.com/uptrace/bun/migrate"
)

//go:embed 0001_create_quiz_sessions.sql
var createQuizSessionsSQL string

//go:embed 0002_create_page_views.sql
var createPageViewsSQL string

var Migrations = migrate.NewMigrations()
