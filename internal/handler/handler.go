// Package handler is the thin HTTP glue over the scoring engine: file
// uploads in, JSON reports out. All grading semantics live in the engine.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kmehra/gradelens/internal/answerkey"
	"github.com/kmehra/gradelens/internal/engine"
	"github.com/kmehra/gradelens/internal/extract"
	"github.com/kmehra/gradelens/internal/model"
	"github.com/kmehra/gradelens/internal/store"
	"github.com/kmehra/gradelens/internal/tabular"
)

// maxUploadBytes bounds multipart form memory before spilling to disk.
const maxUploadBytes = 32 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	engine *engine.Engine
	store  *store.Store
	config model.ServerConfig
}

// New creates a new Handler.
func New(e *engine.Engine, s *store.Store, cfg model.ServerConfig) (*Handler, error) {
	if err := os.MkdirAll(cfg.UploadsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &Handler{engine: e, store: s, config: cfg}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleStatus)
	r.Post("/upload/solved", h.handleUploadSolved)
	r.Post("/upload/students", h.handleUploadStudents)
	r.Get("/results", h.handleResults)
	r.Get("/runs", h.handleRuns)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "answer sheet validator API",
		"status":  "running",
	})
}

// handleUploadSolved accepts a reference answer key (txt, pdf or docx),
// extracts its text and rebuilds the grading context.
func (h *Handler) handleUploadSolved(w http.ResponseWriter, r *http.Request) {
	name, dest, err := h.saveUpload(r, "solved_sheet")
	if err != nil {
		writeError(w, err)
		return
	}

	text, err := extract.Text(dest)
	if err != nil {
		writeError(w, err)
		return
	}

	c, err := h.engine.BuildContext(r.Context(), text)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.store.RecordContextBuild(name, len(c.Questions), c.TotalMarks); err != nil {
		slog.Error("record context build", "error", err)
	}
	if err := h.store.SetMetadata("active_context_source", name); err != nil {
		slog.Error("set context metadata", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"detail":      "solved sheet uploaded and context built",
		"questions":   len(c.Questions),
		"total_marks": c.TotalMarks,
	})
}

// handleUploadStudents accepts a student submission table and starts a
// grading run. Grading is asynchronous by default since it is dominated by
// embedding calls; ?wait=1 grades synchronously and returns the report.
func (h *Handler) handleUploadStudents(w http.ResponseWriter, r *http.Request) {
	name, dest, err := h.saveUpload(r, "student_answers")
	if err != nil {
		writeError(w, err)
		return
	}

	outPath := filepath.Join(h.config.UploadsDir, "results.json")
	runID, err := h.store.StartRun(name, outPath)
	if err != nil {
		writeError(w, err)
		return
	}

	if r.URL.Query().Get("wait") == "1" {
		report, err := h.gradeRun(r.Context(), runID, dest, outPath)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"detail":   "graded synchronously",
			"run_id":   runID,
			"students": report.TotalStudents,
		})
		return
	}

	go func() {
		if _, err := h.gradeRun(context.Background(), runID, dest, outPath); err != nil {
			slog.Error("background grading failed", "run_id", runID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "ok",
		"detail": "student file uploaded; grading started",
		"run_id": runID,
	})
}

func (h *Handler) gradeRun(ctx context.Context, runID int64, tablePath, outPath string) (*model.GradingReport, error) {
	report, err := h.engine.GradeFile(ctx, tablePath, outPath)
	if err != nil {
		if ferr := h.store.FailRun(runID, err.Error()); ferr != nil {
			slog.Error("mark run failed", "run_id", runID, "error", ferr)
		}
		return nil, err
	}
	if err := h.store.FinishRun(runID, report.TotalStudents); err != nil {
		slog.Error("mark run done", "run_id", runID, "error", err)
	}
	return report, nil
}

// handleResults serves the persisted report from the last grading run.
func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(filepath.Join(h.config.UploadsDir, "results.json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "no_results"})
			return
		}
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleRuns lists recorded grading runs, newest first.
func (h *Handler) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListRuns()
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []model.GradingRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// saveUpload stores the multipart "file" field under the uploads dir as
// baseName plus the original extension (the extension drives format
// detection downstream). Returns the original filename and the saved path.
func (h *Handler) saveUpload(r *http.Request, baseName string) (string, string, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", "", fmt.Errorf("parse multipart form: %w", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", fmt.Errorf("read form file: %w", err)
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	dest := filepath.Join(h.config.UploadsDir, baseName+ext)

	out, err := os.Create(dest)
	if err != nil {
		return "", "", fmt.Errorf("create %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		return "", "", fmt.Errorf("save %s: %w", dest, err)
	}
	return header.Filename, dest, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps deterministic input-shape failures to 400 and
// everything else to 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	for _, kind := range []error{
		extract.ErrUnsupportedFormat,
		extract.ErrExtraction,
		answerkey.ErrEmptyKey,
		tabular.ErrUnsupportedFormat,
		tabular.ErrEmptyTable,
		tabular.ErrRead,
		engine.ErrContextNotBuilt,
	} {
		if errors.Is(err, kind) {
			status = http.StatusBadRequest
			break
		}
	}
	writeJSON(w, status, map[string]string{"status": "error", "detail": err.Error()})
}
