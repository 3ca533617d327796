package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/retrolearn/internal/learning"
	"github.com/roach88/retrolearn/internal/testutil"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new store backed by a temp-file database.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// insertTestLearning inserts a fixture learning and fails the test on error.
func insertTestLearning(t *testing.T, s *Store, id string, cat learning.Category, opts ...testutil.LearningOption) learning.Learning {
	t.Helper()
	l := testutil.NewLearning(id, cat, testEpoch, opts...)
	if err := s.InsertLearning(t.Context(), l); err != nil {
		t.Fatalf("InsertLearning(%s) failed: %v", id, err)
	}
	return l
}
