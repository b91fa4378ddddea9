package migrate

import (
	"testing"

	"creetonbiz/internal/db"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	for i := 0; i < 2; i++ {
		if err := Migrate(conn); err != nil {
			t.Fatalf("migrate run %d: %v", i+1, err)
		}
	}

	var version int
	if err := conn.QueryRow(`SELECT version FROM schema_version`).Scan(&version); err != nil {
		t.Fatalf("read schema_version: %v", err)
	}
	if version < 1 {
		t.Fatalf("schema_version = %d, want at least 1", version)
	}

	for _, table := range []string{"users", "ideas", "projects", "deliverables", "checkout_sessions", "events"} {
		var name string
		err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}

func TestReadStepsOrdered(t *testing.T) {
	steps, err := readSteps()
	if err != nil {
		t.Fatalf("read steps: %v", err)
	}
	if len(steps) == 0 {
		t.Fatal("no embedded migrations")
	}
	for i := 1; i < len(steps); i++ {
		if steps[i].version <= steps[i-1].version {
			t.Fatalf("steps out of order: %s then %s", steps[i-1].file, steps[i].file)
		}
	}
}
