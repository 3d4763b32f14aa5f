package testsupport

import (
	"testing"

	"runreel/internal/config"
	"runreel/internal/records"
)

// MustOpenStore opens a throwaway record store for the given test config and
// registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *records.Store {
	t.Helper()

	store, err := records.Open(cfg)
	if err != nil {
		t.Fatalf("open record store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close record store: %v", err)
		}
	})
	return store
}
