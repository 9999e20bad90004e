package client

import (
	"context"
	"database/sql"

	"boopsite/internal/client/migrations"
	"boopsite/internal/repository/sqlite"
)

// OpenSessionDB opens the local session database at path and brings its
// schema up to date.
func OpenSessionDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	if err := sqlite.MigrateFS(ctx, db, migrations.Migrations); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
