package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"go.uber.org/zap"
)

type recordingExecer struct {
	queries []string
	failOn  string
}

func (r *recordingExecer) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	if r.failOn != "" && strings.Contains(query, r.failOn) {
		return nil, errors.New("exec failed")
	}
	r.queries = append(r.queries, query)
	return nil, nil
}

func TestMigrateAppliesSchemaFirstThenLexical(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_second.sql": {Data: []byte("ALTER TABLE b;")},
		"0001_first.sql":  {Data: []byte("ALTER TABLE a;")},
		"schema.sql":      {Data: []byte("CREATE TABLE a;")},
		"notes.txt":       {Data: []byte("ignored")},
		"0003_blank.sql":  {Data: []byte("   \n")},
	}
	db := &recordingExecer{}
	if err := Migrate(context.Background(), db, fsys, zap.NewNop().Sugar()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	expected := []string{"CREATE TABLE a;", "ALTER TABLE a;", "ALTER TABLE b;"}
	if len(db.queries) != len(expected) {
		t.Fatalf("applied %d statements, expected %d: %v", len(db.queries), len(expected), db.queries)
	}
	for i, q := range expected {
		if db.queries[i] != q {
			t.Fatalf("statement %d = %q, expected %q", i, db.queries[i], q)
		}
	}
}

func TestMigrateWithoutSchemaFile(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_only.sql": {Data: []byte("ALTER TABLE a;")},
	}
	db := &recordingExecer{}
	if err := Migrate(context.Background(), db, fsys, zap.NewNop().Sugar()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if len(db.queries) != 1 || db.queries[0] != "ALTER TABLE a;" {
		t.Fatalf("unexpected statements: %v", db.queries)
	}
}

func TestMigrateStopsOnError(t *testing.T) {
	fsys := fstest.MapFS{
		"schema.sql":      {Data: []byte("CREATE TABLE a;")},
		"0001_broken.sql": {Data: []byte("BROKEN;")},
		"0002_after.sql":  {Data: []byte("ALTER TABLE a;")},
	}
	db := &recordingExecer{failOn: "BROKEN"}
	err := Migrate(context.Background(), db, fsys, zap.NewNop().Sugar())
	if err == nil {
		t.Fatal("expected error from broken migration")
	}
	if !strings.Contains(err.Error(), "0001_broken.sql") {
		t.Fatalf("error should name the failing file: %v", err)
	}
	if len(db.queries) != 1 {
		t.Fatalf("later files must not run after a failure: %v", db.queries)
	}
}
