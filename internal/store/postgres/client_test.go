package postgres

import (
	"io/fs"
	"slices"
	"strings"
	"testing"
	"testing/fstest"
)

func TestMigrationFilesAndPending(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/002_fees.sql":  {Data: []byte("SELECT 2")},
		"migrations/001_init.sql":  {Data: []byte("SELECT 1")},
		"migrations/README.md":     {Data: []byte("notes")},
		"migrations/old/x.sql":     {Data: []byte("SELECT 0")},
		"migrations/010_audit.sql": {Data: []byte("SELECT 10")},
	}
	files, err := migrationFiles(fsys)
	if err != nil {
		t.Fatalf("migrationFiles() error = %v", err)
	}
	want := []string{"001_init.sql", "002_fees.sql", "010_audit.sql"}
	if !slices.Equal(files, want) {
		t.Fatalf("migrationFiles() = %v, want %v", files, want)
	}

	tests := []struct {
		name    string
		applied map[string]bool
		want    []string
	}{
		{"fresh database", nil, want},
		{"partially applied", map[string]bool{"001_init.sql": true}, []string{"002_fees.sql", "010_audit.sql"}},
		{"up to date", map[string]bool{"001_init.sql": true, "002_fees.sql": true, "010_audit.sql": true}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pendingMigrations(files, tt.applied); !slices.Equal(got, tt.want) {
				t.Fatalf("pendingMigrations() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEmbeddedMigrationsCreateRequiredRelations(t *testing.T) {
	files, err := migrationFiles(migrationsFS)
	if err != nil {
		t.Fatalf("migrationFiles() error = %v", err)
	}
	var all strings.Builder
	for _, f := range files {
		data, err := fs.ReadFile(migrationsFS, "migrations/"+f)
		if err != nil {
			t.Fatalf("ReadFile(%s) error = %v", f, err)
		}
		all.Write(data)
	}
	sql := all.String()
	for _, rel := range requiredRelations {
		if !strings.Contains(sql, "EXISTS "+rel) {
			t.Errorf("no migration creates %s", rel)
		}
	}
}
