// Package answerkey parses reference answer-key text into an ordered list
// of graded questions.
package answerkey

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/kmehra/gradelens/internal/model"
)

// DefaultMaxMarks is assigned when a question line carries no explicit
// bracketed marks.
const DefaultMaxMarks = 5

// ErrEmptyKey is returned when no questions could be parsed from the text.
var ErrEmptyKey = errors.New("no questions found in answer key (expected format: 'Q1 [5 marks]: answer')")

// Matches "Q1 [10 marks]: Paris is the capital of France".
var questionRe = regexp.MustCompile(`^(.+?)\s*\[(\d+)\s*marks?\]\s*:\s*(.+)$`)

// Parse turns raw answer-key text into an ordered question list. A line is
// a question candidate iff it contains a colon; the preferred form is
// "<name> [<n> marks]: <answer>", falling back to a first-colon split with
// DefaultMaxMarks when the bracket pattern is absent. Lines without a colon
// are ignored. Question order is significant downstream: it indexes the
// canonical-answer embeddings and drives positional column fallback.
//
// Duplicate question names are permitted and create separate entries,
// matching the source format's permissiveness.
func Parse(text string) ([]model.Question, error) {
	var questions []model.Question

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(line, ":") {
			continue
		}

		if m := questionRe.FindStringSubmatch(line); m != nil {
			marks, err := strconv.Atoi(m[2])
			if err != nil {
				// \d+ guarantees digits; overflow is the only failure.
				marks = DefaultMaxMarks
			}
			questions = append(questions, model.Question{
				Name:     strings.TrimSpace(m[1]),
				Answer:   strings.TrimSpace(m[3]),
				MaxMarks: marks,
			})
			continue
		}

		name, answer, _ := strings.Cut(line, ":")
		questions = append(questions, model.Question{
			Name:     strings.TrimSpace(name),
			Answer:   strings.TrimSpace(answer),
			MaxMarks: DefaultMaxMarks,
		})
	}

	if len(questions) == 0 {
		return nil, ErrEmptyKey
	}
	return questions, nil
}

// TotalMarks sums max marks over all questions.
func TotalMarks(questions []model.Question) int {
	total := 0
	for _, q := range questions {
		total += q.MaxMarks
	}
	return total
}
