package store

import (
	"testing"

	"github.com/kmehra/gradelens/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestContextBuilds(t *testing.T) {
	s := newTestStore(t)

	// No builds yet.
	cb, err := s.LatestContextBuild()
	if err != nil {
		t.Fatalf("LatestContextBuild: %v", err)
	}
	if cb != nil {
		t.Error("expected nil before first build")
	}

	if _, err := s.RecordContextBuild("midterm.txt", 5, 30); err != nil {
		t.Fatalf("RecordContextBuild: %v", err)
	}
	if _, err := s.RecordContextBuild("final.pdf", 8, 50); err != nil {
		t.Fatalf("RecordContextBuild: %v", err)
	}

	cb, err = s.LatestContextBuild()
	if err != nil {
		t.Fatalf("LatestContextBuild: %v", err)
	}
	if cb == nil {
		t.Fatal("expected a context build")
	}
	if cb.SourceFile != "final.pdf" {
		t.Errorf("expected latest build final.pdf, got %q", cb.SourceFile)
	}
	if cb.Questions != 8 || cb.TotalMarks != 50 {
		t.Errorf("unexpected build fields: %+v", cb)
	}
	if cb.BuiltAt.IsZero() {
		t.Error("expected built_at to be set")
	}
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)

	id, err := s.StartRun("students.csv", "uploads/results.json")
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	run, err := s.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != model.RunPending {
		t.Errorf("expected pending, got %q", run.Status)
	}
	if run.FinishedAt != nil {
		t.Error("expected nil finished_at for pending run")
	}

	if err := s.FinishRun(id, 12); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	run, _ = s.GetRun(id)
	if run.Status != model.RunDone {
		t.Errorf("expected done, got %q", run.Status)
	}
	if run.Students != 12 {
		t.Errorf("expected 12 students, got %d", run.Students)
	}
	if run.FinishedAt == nil {
		t.Error("expected finished_at to be set")
	}
}

func TestFailRun(t *testing.T) {
	s := newTestStore(t)

	id, err := s.StartRun("students.xlsx", "out.json")
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if err := s.FailRun(id, "context not built"); err != nil {
		t.Fatalf("FailRun: %v", err)
	}

	run, err := s.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != model.RunFailed {
		t.Errorf("expected failed, got %q", run.Status)
	}
	if run.Error != "context not built" {
		t.Errorf("unexpected error text: %q", run.Error)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := newTestStore(t)

	// Empty list.
	runs, err := s.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("expected 0 runs, got %d", len(runs))
	}

	first, _ := s.StartRun("a.csv", "out.json")
	second, _ := s.StartRun("b.csv", "out.json")

	runs, err = s.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != second || runs[1].ID != first {
		t.Errorf("expected newest first, got IDs %d, %d", runs[0].ID, runs[1].ID)
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)

	// Missing key returns empty string.
	v, err := s.GetMetadata("active_context_source")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if v != "" {
		t.Errorf("expected empty value, got %q", v)
	}

	if err := s.SetMetadata("active_context_source", "midterm.txt"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	v, _ = s.GetMetadata("active_context_source")
	if v != "midterm.txt" {
		t.Errorf("expected midterm.txt, got %q", v)
	}

	// Upsert overwrites.
	if err := s.SetMetadata("active_context_source", "final.docx"); err != nil {
		t.Fatalf("SetMetadata update: %v", err)
	}
	v, _ = s.GetMetadata("active_context_source")
	if v != "final.docx" {
		t.Errorf("expected final.docx, got %q", v)
	}
}
