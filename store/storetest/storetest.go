// Package storetest provides store constructors for tests.
package storetest

import (
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/linkreach/store"
)

// Open opens an in-memory store, closed via t.Cleanup. MaxOpenConns(1)
// keeps every query on the same in-memory database (each new connection to
// ":memory:" would otherwise get its own).
func Open(t testing.TB) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("storetest.Open: %v", err)
	}
	st.DB.SetMaxOpenConns(1)
	t.Cleanup(func() { st.DB.Close() })
	return st
}
