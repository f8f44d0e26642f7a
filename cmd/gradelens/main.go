package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kmehra/gradelens/internal/embed"
	"github.com/kmehra/gradelens/internal/engine"
	"github.com/kmehra/gradelens/internal/extract"
	"github.com/kmehra/gradelens/internal/handler"
	"github.com/kmehra/gradelens/internal/model"
	"github.com/kmehra/gradelens/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gradelens",
		Short: "Semantic answer-sheet grader",
	}

	serve := serveCmd()
	root.AddCommand(serve, gradeCmd(), reportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `gradelens --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP grading server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8000", "HTTP listen address")
	f.String("db", "gradelens.db", "SQLite database path for run history")
	f.StringP("uploads", "u", "uploads", "Directory for uploaded files, context and report")
	f.StringSlice("cors-origins", []string{"http://localhost:3000"}, "Allowed CORS origins")
	addEmbedFlags(f)
	addLogFlags(f)
	return cmd
}

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade a student table against a solved answer sheet",
		RunE:  runGrade,
	}
	f := cmd.Flags()
	f.String("solved", "", "Path to the solved answer sheet (.txt, .pdf, .docx) (required)")
	f.String("students", "", "Path to the student table (.csv, .xlsx, .xls) (required)")
	f.StringP("output", "o", "results.json", "Report output path")
	f.String("context", "context.json", "Persisted context path")
	f.String("db", "gradelens.db", "SQLite database path for run history")
	addEmbedFlags(f)
	addLogFlags(f)

	_ = cmd.MarkFlagRequired("solved")
	_ = cmd.MarkFlagRequired("students")

	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a grading report JSON as a text summary",
		RunE:  runReport,
	}
	f := cmd.Flags()
	f.StringP("input", "i", "uploads/results.json", "Report JSON path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(f)
	return cmd
}

func addEmbedFlags(f *pflag.FlagSet) {
	f.String("embed-url", "", "OpenAI-compatible embeddings API base URL (empty = api.openai.com)")
	f.String("embed-key", "", "API key for the embeddings endpoint (or GRADELENS_EMBED_KEY)")
	f.String("embed-model", "text-embedding-3-small", "Embedding model name")
}

func addLogFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("GRADELENS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("gradelens")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/gradelens")
	v.AddConfigPath("/etc/gradelens")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func newProvider(v *viper.Viper) *embed.Client {
	return embed.NewClient(
		v.GetString("embed-url"),
		v.GetString("embed-key"),
		v.GetString("embed-model"),
	)
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	uploadsDir := v.GetString("uploads")
	eng := engine.New(newProvider(v), filepath.Join(uploadsDir, "context.json"))

	cfg := model.ServerConfig{
		UploadsDir:  uploadsDir,
		CORSOrigins: v.GetStringSlice("cors-origins"),
	}
	h, err := handler.New(eng, db, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"uploads", uploadsDir,
		"embed_url", v.GetString("embed-url"),
		"embed_model", v.GetString("embed-model"),
		"cors_origins", cfg.CORSOrigins,
	)
	return http.ListenAndServe(addr, r)
}

func runGrade(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	eng := engine.New(newProvider(v), v.GetString("context"))

	solvedPath := v.GetString("solved")
	text, err := extract.Text(solvedPath)
	if err != nil {
		return err
	}
	c, err := eng.BuildContext(context.Background(), text)
	if err != nil {
		return err
	}
	if _, err := db.RecordContextBuild(solvedPath, len(c.Questions), c.TotalMarks); err != nil {
		slog.Warn("record context build", "error", err)
	}

	studentsPath := v.GetString("students")
	outPath := v.GetString("output")
	runID, err := db.StartRun(studentsPath, outPath)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	report, err := eng.GradeFile(context.Background(), studentsPath, outPath)
	if err != nil {
		if ferr := db.FailRun(runID, err.Error()); ferr != nil {
			slog.Warn("mark run failed", "error", ferr)
		}
		return err
	}
	if err := db.FinishRun(runID, report.TotalStudents); err != nil {
		slog.Warn("mark run done", "error", err)
	}

	slog.Info("report written", "path", outPath, "students", report.TotalStudents)
	return nil
}

func runReport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	data, err := os.ReadFile(v.GetString("input"))
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}
	var report model.GradingReport
	if err := json.Unmarshal(data, &report); err != nil {
		return fmt.Errorf("parse report: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	return renderReport(w, report)
}

func renderReport(w io.Writer, report model.GradingReport) error {
	line := strings.Repeat("=", 80)
	sep := strings.Repeat("-", 80)

	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "          ANSWER SHEET VALIDATOR - RESULTS REPORT")
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "\nTotal Students: %d\n", report.TotalStudents)
	fmt.Fprintf(w, "Total Marks: %d\n", report.TotalMarks)
	fmt.Fprintln(w, "\n"+line)

	for _, s := range report.Results {
		fmt.Fprintf(w, "\nRANK %d: %s\n", s.Rank, s.StudentID)
		fmt.Fprintln(w, sep)
		fmt.Fprintf(w, "Total Score: %.1f/%d (%.1f%%)\n", s.TotalScore, s.TotalPossible, s.Percentage)
		fmt.Fprintln(w, "\nQuestion-wise Breakdown:")
		fmt.Fprintln(w, sep)

		for _, q := range s.PerQuestion {
			fmt.Fprintf(w, "\n  %s\n", q.Question)
			fmt.Fprintf(w, "    Marks Obtained: %.1f/%d (%.1f%%)\n", q.MarksObtained, q.MaxMarks, q.Percentage)
			fmt.Fprintf(w, "    Similarity:     %.1f%%\n", q.Similarity*100)
			fmt.Fprintf(w, "    Progress:       [%s]\n", progressBar(q.Percentage))
		}

		fmt.Fprintln(w, "\n"+line)
	}

	_, err := fmt.Fprintln(w, "\nGrading Complete!")
	return err
}

// progressBar renders a 10-slot bar for a percentage in [0,100].
func progressBar(pct float64) string {
	filled := int(pct / 10)
	if filled < 0 {
		filled = 0
	}
	if filled > 10 {
		filled = 10
	}
	return strings.Repeat("#", filled) + strings.Repeat(".", 10-filled)
}
