package testsupport

import (
	"testing"

	"reelbooth/internal/config"
	"reelbooth/internal/outbox"
)

// MustOpenOutbox opens an outbox.Store for tests and registers cleanup.
func MustOpenOutbox(t testing.TB, cfg *config.Config, opts ...outbox.StoreOption) *outbox.Store {
	t.Helper()

	store, err := outbox.Open(cfg, opts...)
	if err != nil {
		t.Fatalf("outbox.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
