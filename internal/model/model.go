package model

// Question is a single graded question from the reference answer key.
// The JSON field names match the persisted context file format.
type Question struct {
	Name     string `json:"question"`
	Answer   string `json:"answer"`
	MaxMarks int    `json:"max_marks"`
}

// Context is the parsed, embedded representation of the reference answer
// key, built once per key upload and reused across grading runs.
// Embeddings are index-aligned with Questions and are never persisted;
// they are recomputed from the canonical answer text on reload.
type Context struct {
	Questions  []Question
	TotalMarks int
	Embeddings [][]float32
}

// PersistedContext is the on-disk JSON form of a Context (no embeddings).
type PersistedContext struct {
	Questions  []Question `json:"questions"`
	TotalMarks int        `json:"total_marks"`
}

// PerQuestionResult holds one student's score on one question.
type PerQuestionResult struct {
	Question      string  `json:"question"`
	MaxMarks      int     `json:"max_marks"`
	MarksObtained float64 `json:"marks_obtained"`
	Similarity    float64 `json:"similarity"`
	Percentage    float64 `json:"percentage"`
}

// StudentResult holds one student's total score and per-question breakdown.
type StudentResult struct {
	StudentID     string              `json:"student_id"`
	TotalScore    float64             `json:"total_score"`
	TotalPossible int                 `json:"total_possible"`
	Percentage    float64             `json:"percentage"`
	Rank          int                 `json:"rank"`
	PerQuestion   []PerQuestionResult `json:"per_question"`
}

// GradingReport is the final artifact of a grading run, written in full
// (overwriting any prior report) at the configured output path.
type GradingReport struct {
	TotalStudents int             `json:"total_students"`
	TotalMarks    int             `json:"total_marks"`
	Results       []StudentResult `json:"results"`
}

// ServerConfig holds runtime server parameters set via CLI flags.
type ServerConfig struct {
	UploadsDir  string   // directory holding uploads, context.json and results.json
	CORSOrigins []string // allowed CORS origins for the HTTP API
}
