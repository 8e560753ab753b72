package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"go.uber.org/zap"
)

// Execer is the subset of *sql.DB the migration runner needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Migrate applies the base schema and any incremental migration files
// from fsys against db. schema.sql runs first when present; the
// remaining *.sql files run in lexical order. The runner executes on
// every process start, so every file must be written to be safe to
// re-run.
func Migrate(ctx context.Context, db Execer, fsys fs.FS, logger *zap.SugaredLogger) error {
	apply := func(name string) error {
		sqlText, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if strings.TrimSpace(string(sqlText)) == "" {
			return nil
		}
		logger.Infow("applying migration", "file", name)
		if _, err := db.ExecContext(ctx, string(sqlText)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
		return nil
	}

	if _, err := fs.Stat(fsys, "schema.sql"); err == nil {
		if err := apply("schema.sql"); err != nil {
			return err
		}
	} else if !isNotExist(err) {
		return fmt.Errorf("stat schema.sql: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	// fs.ReadDir returns entries sorted by filename, which is the
	// application order.
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") || e.Name() == "schema.sql" {
			continue
		}
		if err := apply(e.Name()); err != nil {
			return err
		}
	}
	return nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
