package testsupport

import (
	"context"
	"testing"

	"engram/internal/config"
	"engram/internal/job"
	"engram/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewJob inserts a fresh job for tests using the provided store.
func NewJob(t testing.TB, st *store.Store, driveID, volumeLabel string) *job.DiscJob {
	t.Helper()

	j := job.NewDiscJob(driveID, volumeLabel)
	if err := st.CreateJob(context.Background(), j); err != nil {
		t.Fatalf("store.CreateJob: %v", err)
	}
	return j
}
