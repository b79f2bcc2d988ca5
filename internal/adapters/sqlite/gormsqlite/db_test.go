package gormsqlite

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestBuildDSNIncludesPerConnectionPragmas(t *testing.T) {
	reader := buildDSN("./db.sqlite", true)
	writer := buildDSN("./db.sqlite", false)

	checks := []string{
		"_pragma=journal_mode(WAL)",
		"_pragma=synchronous(NORMAL)",
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
		"_pragma=trusted_schema(OFF)",
	}
	for _, c := range checks {
		if !strings.Contains(reader, c) {
			t.Fatalf("reader dsn missing %q: %s", c, reader)
		}
		if !strings.Contains(writer, c) {
			t.Fatalf("writer dsn missing %q: %s", c, writer)
		}
	}

	if !strings.Contains(reader, "_pragma=query_only(1)") {
		t.Fatalf("reader dsn missing query_only(1): %s", reader)
	}
	if !strings.Contains(writer, "_pragma=query_only(0)") {
		t.Fatalf("writer dsn missing query_only(0): %s", writer)
	}
}

func TestBuildDSNKeepsExistingQuery(t *testing.T) {
	dsn := buildDSN("file:data.sqlite?cache=shared", false)
	if !strings.HasPrefix(dsn, "file:data.sqlite?cache=shared&_pragma=") {
		t.Fatalf("unexpected dsn: %s", dsn)
	}
}

func TestOpenAppliesPragmasPerPool(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "pragmas.sqlite"), Options{Log: logrus.New()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var mode string
	if err := db.W.Raw("PRAGMA journal_mode").Scan(&mode).Error; err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("expected wal, got %q", mode)
	}

	var queryOnly int
	if err := db.R.Raw("PRAGMA query_only").Scan(&queryOnly).Error; err != nil {
		t.Fatalf("query_only: %v", err)
	}
	if queryOnly != 1 {
		t.Fatalf("expected reader query_only=1, got %d", queryOnly)
	}
}
