package store

import (
	"os"
	"testing"
)

// Requires a reachable MySQL instance, e.g.
//
//	MYSQL_DSN="root:secret@tcp(127.0.0.1:3306)/weave_test" go test ./graph/store/
func TestMySQLStore(t *testing.T) {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		t.Skip("MYSQL_DSN not set")
	}

	s, err := NewMySQLStore(dsn)
	if err != nil {
		t.Fatalf("NewMySQLStore failed: %v", err)
	}
	defer s.Close()
	runStoreSuite(t, s)
}
