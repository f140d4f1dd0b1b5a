package db

import (
	"os"
	"testing"
)

func TestRebind(t *testing.T) {
	q := `UPDATE tasks SET title=?,status=? WHERE id=?`
	if got := SQLite.Rebind(q); got != q {
		t.Fatalf("sqlite rebind changed query: %s", got)
	}
	want := `UPDATE tasks SET title=$1,status=$2 WHERE id=$3`
	if got := Postgres.Rebind(q); got != want {
		t.Fatalf("postgres rebind = %s, want %s", got, want)
	}
}

func TestOpenSQLiteCreatesWorkspace(t *testing.T) {
	dir := t.TempDir()
	conn, err := Open(Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	if err := conn.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if _, err := os.Stat(Path(dir)); err != nil {
		t.Fatalf("db file missing: %v", err)
	}
}

func TestOpenPostgresNeedsDSN(t *testing.T) {
	if _, err := Open(Config{Dialect: Postgres}); err == nil {
		t.Fatalf("expected dsn error")
	}
	if _, err := Open(Config{Dialect: "mysql"}); err == nil {
		t.Fatalf("expected dialect error")
	}
}
