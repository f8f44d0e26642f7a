// Package engine implements the scoring core: building an embedded
// context from a reference answer key and grading batches of student
// rows against it with similarity-based partial credit.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/kmehra/gradelens/internal/answerkey"
	"github.com/kmehra/gradelens/internal/embed"
	"github.com/kmehra/gradelens/internal/model"
	"github.com/kmehra/gradelens/internal/tabular"
)

// ErrContextNotBuilt is returned when grading is invoked before any
// context exists, in memory or persisted.
var ErrContextNotBuilt = errors.New("context not built: upload a solved answer sheet first")

// Partial-credit banding: highest matching threshold wins, lower bound
// inclusive. Below the last band the answer scores zero.
var bands = []struct {
	threshold float64
	fraction  float64
}{
	{0.90, 1.00},
	{0.80, 0.90},
	{0.70, 0.70},
	{0.60, 0.50},
	{0.50, 0.30},
}

// Engine owns the current grading context and the embedding provider.
// The context pointer is guarded by mu; a grading run snapshots it once
// at start and uses that snapshot for the whole run, so a concurrent
// context rebuild never races an in-flight grade.
type Engine struct {
	provider    embed.Provider
	contextPath string

	mu      sync.RWMutex
	current *model.Context
}

// New creates an Engine. contextPath is where the parsed answer key is
// persisted (and reloaded from when a new process grades before any
// upload).
func New(provider embed.Provider, contextPath string) *Engine {
	return &Engine{provider: provider, contextPath: contextPath}
}

// BuildContext parses reference answer-key text, embeds every canonical
// answer in one batched provider call, persists the context (without
// embeddings) and installs it as the current context, replacing any
// previous one wholesale.
func (e *Engine) BuildContext(ctx context.Context, referenceText string) (*model.Context, error) {
	questions, err := answerkey.Parse(referenceText)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(questions))
	for i, q := range questions {
		texts[i] = q.Answer
	}
	embeddings, err := e.provider.Encode(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed canonical answers: %w", err)
	}

	c := &model.Context{
		Questions:  questions,
		TotalMarks: answerkey.TotalMarks(questions),
		Embeddings: embeddings,
	}

	if err := e.persistContext(c); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.current = c
	e.mu.Unlock()

	slog.Info("context built", "questions", len(questions), "total_marks", c.TotalMarks)
	return c, nil
}

func (e *Engine) persistContext(c *model.Context) error {
	data, err := json.MarshalIndent(model.PersistedContext{
		Questions:  c.Questions,
		TotalMarks: c.TotalMarks,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	if dir := filepath.Dir(e.contextPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create context dir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(e.contextPath, data, 0o644); err != nil {
		return fmt.Errorf("write context %s: %w", e.contextPath, err)
	}
	return nil
}

// Current returns the in-memory context, or nil if none is built.
func (e *Engine) Current() *model.Context {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// loadContext reloads the persisted context and re-embeds the canonical
// answers (embeddings are not persisted). The loaded context becomes
// current.
func (e *Engine) loadContext(ctx context.Context) (*model.Context, error) {
	data, err := os.ReadFile(e.contextPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrContextNotBuilt
		}
		return nil, fmt.Errorf("read context %s: %w", e.contextPath, err)
	}

	var pc model.PersistedContext
	if err := json.Unmarshal(data, &pc); err != nil {
		return nil, fmt.Errorf("parse context %s: %w", e.contextPath, err)
	}

	texts := make([]string, len(pc.Questions))
	for i, q := range pc.Questions {
		texts[i] = q.Answer
	}
	embeddings, err := e.provider.Encode(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("re-embed canonical answers: %w", err)
	}

	c := &model.Context{
		Questions:  pc.Questions,
		TotalMarks: pc.TotalMarks,
		Embeddings: embeddings,
	}

	e.mu.Lock()
	e.current = c
	e.mu.Unlock()

	slog.Info("context reloaded", "path", e.contextPath, "questions", len(pc.Questions))
	return c, nil
}

// snapshot returns the context a grading run should use: the in-memory
// one if present, otherwise the persisted one.
func (e *Engine) snapshot(ctx context.Context) (*model.Context, error) {
	if c := e.Current(); c != nil {
		return c, nil
	}
	return e.loadContext(ctx)
}

// Grade scores every row against the current context and returns the
// ranked report. Result order is rank ascending, input order preserved
// among exact ties.
func (e *Engine) Grade(ctx context.Context, rows []tabular.Row) (*model.GradingReport, error) {
	c, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]model.StudentResult, 0, len(rows))
	for idx, row := range rows {
		res, err := e.gradeRow(ctx, c, row, idx)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	Rank(results)

	report := &model.GradingReport{
		TotalStudents: len(results),
		TotalMarks:    c.TotalMarks,
		Results:       results,
	}
	slog.Info("grading complete", "students", len(results), "total_marks", c.TotalMarks)
	return report, nil
}

func (e *Engine) gradeRow(ctx context.Context, c *model.Context, row tabular.Row, idx int) (model.StudentResult, error) {
	studentID, ok := row.Get("student_id")
	if !ok {
		studentID = strconv.Itoa(idx)
	}

	total := 0.0
	perQuestion := make([]model.PerQuestionResult, 0, len(c.Questions))

	for i, q := range c.Questions {
		answer, found := resolveAnswer(row, q.Name, i)

		var marks, sim float64
		if !found || isNoAnswer(answer) {
			// No answer: score zero without touching the provider.
			marks, sim = 0, 0
		} else {
			vecs, err := e.provider.Encode(ctx, []string{answer})
			if err != nil {
				return model.StudentResult{}, fmt.Errorf("embed answer (student %s, %s): %w", studentID, q.Name, err)
			}
			// Embeddings are index-aligned with questions; comparing
			// across mismatched indices would be a programming error.
			sim = embed.Cosine(vecs[0], c.Embeddings[i])
			marks = marksFor(sim, q.MaxMarks)
		}

		total += marks

		perQuestion = append(perQuestion, model.PerQuestionResult{
			Question:      q.Name,
			MaxMarks:      q.MaxMarks,
			MarksObtained: round1(marks),
			Similarity:    round3(sim),
			Percentage:    questionPercent(round1(marks), q.MaxMarks),
		})
	}

	return model.StudentResult{
		StudentID:     studentID,
		TotalScore:    round1(total),
		TotalPossible: c.TotalMarks,
		Percentage:    totalPercent(total, c.TotalMarks),
		PerQuestion:   perQuestion,
	}, nil
}

// resolveAnswer looks up the student's answer by question name, falling
// back to the positional key "Q{i+1}" when the named column is absent.
func resolveAnswer(row tabular.Row, name string, index int) (string, bool) {
	if v, ok := row.Get(name); ok {
		return v, true
	}
	return row.Get(fmt.Sprintf("Q%d", index+1))
}

// isNoAnswer reports whether a cell value means "no answer". A literal
// "0" is a real (zero-value) answer, not an absent one.
func isNoAnswer(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "nan", "none":
		return true
	}
	return false
}

func marksFor(sim float64, maxMarks int) float64 {
	for _, b := range bands {
		if sim >= b.threshold {
			return b.fraction * float64(maxMarks)
		}
	}
	return 0
}

func questionPercent(marks float64, maxMarks int) float64 {
	if maxMarks <= 0 {
		return 0
	}
	return round1(marks / float64(maxMarks) * 100)
}

func totalPercent(total float64, possible int) float64 {
	if possible <= 0 {
		return 0
	}
	return round1(total / float64(possible) * 100)
}

func round1(x float64) float64 { return math.Round(x*10) / 10 }
func round3(x float64) float64 { return math.Round(x*1000) / 1000 }

// GradeFile reads a student table, grades it and writes the full report
// JSON to outPath, overwriting any prior report.
func (e *Engine) GradeFile(ctx context.Context, tablePath, outPath string) (*model.GradingReport, error) {
	rows, err := tabular.Read(tablePath)
	if err != nil {
		return nil, err
	}
	report, err := e.Grade(ctx, rows)
	if err != nil {
		return nil, err
	}
	if err := WriteReport(report, outPath); err != nil {
		return nil, err
	}
	return report, nil
}

// WriteReport persists a report as indented JSON, replacing the file.
func WriteReport(report *model.GradingReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
