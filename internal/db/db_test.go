package db

import (
	"path/filepath"
	"testing"
)

func TestNew_CreatesDatabase(t *testing.T) {
	database, err := New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	for _, table := range []string{"jobs", "config", "sequence_transitions", "_migrations"} {
		var name string
		err := database.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestNew_WALEnabled(t *testing.T) {
	database, err := New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	var journalMode string
	if err := database.Conn().QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("PRAGMA journal_mode error = %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}
}

func TestNew_MigrationsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db1, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("first New() error = %v", err)
	}
	db1.Close()

	db2, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	defer db2.Close()

	var count int
	if err := db2.Conn().QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations error = %v", err)
	}
	if count != 2 {
		t.Errorf("migration count = %d, want 2", count)
	}
}

func TestMarkInterruptedJobs(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db1, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = db1.Conn().Exec(`
		INSERT INTO jobs (id, type, status, manifest_path, progress, created_at, updated_at)
		VALUES ('running-job', 'sort', 'running', '/m.json', 50, '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z'),
		       ('done-job', 'sort', 'completed', '/m.json', 100, '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')
	`)
	if err != nil {
		t.Fatalf("insert job error = %v", err)
	}
	db1.Close()

	db2, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	defer db2.Close()

	var status, errMsg string
	err = db2.Conn().QueryRow("SELECT status, error FROM jobs WHERE id = 'running-job'").Scan(&status, &errMsg)
	if err != nil {
		t.Fatalf("query job error = %v", err)
	}
	if status != "failed" || errMsg != "interrupted by restart" {
		t.Errorf("running job = (%s, %s), want (failed, interrupted by restart)", status, errMsg)
	}

	if err := db2.Conn().QueryRow("SELECT status FROM jobs WHERE id = 'done-job'").Scan(&status); err != nil {
		t.Fatalf("query job error = %v", err)
	}
	if status != "completed" {
		t.Errorf("completed job status changed to %s", status)
	}
}

func TestSequenceTransitionsCascade(t *testing.T) {
	database, err := New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	conn := database.Conn()
	if _, err := conn.Exec(`INSERT INTO jobs (id, type, status, manifest_path, created_at, updated_at)
		VALUES ('j1', 'sort', 'completed', '/m.json', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')`); err != nil {
		t.Fatalf("insert job: %v", err)
	}
	if _, err := conn.Exec(`INSERT INTO sequence_transitions (job_id, position, from_clip, to_clip, score)
		VALUES ('j1', 0, 'a', 'b', 0.9)`); err != nil {
		t.Fatalf("insert transition: %v", err)
	}
	if _, err := conn.Exec(`DELETE FROM jobs WHERE id = 'j1'`); err != nil {
		t.Fatalf("delete job: %v", err)
	}

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM sequence_transitions`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("transitions left after job delete: %d", n)
	}
}
