package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/physlab/inquiry-tutor/internal/docparse"
	"github.com/physlab/inquiry-tutor/internal/grader"
	"github.com/physlab/inquiry-tutor/internal/handler"
	appI18n "github.com/physlab/inquiry-tutor/internal/i18n"
	"github.com/physlab/inquiry-tutor/internal/llm"
	"github.com/physlab/inquiry-tutor/internal/mail"
	"github.com/physlab/inquiry-tutor/internal/model"
	"github.com/physlab/inquiry-tutor/internal/questions"
	"github.com/physlab/inquiry-tutor/internal/store"
	"github.com/physlab/inquiry-tutor/internal/wizard"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "inquiry-tutor",
		Short: "Physics inquiry tutoring wizard and diagnostic tests",
	}

	serve := serveCmd()
	root.AddCommand(serve, gradeCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addStoreFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db-driver", "sqlite", "Database driver (sqlite, mysql)")
	f.String("db", "inquiry.db", "SQLite database path")
	f.String("db-host", "localhost", "MySQL host")
	f.Int("db-port", 3306, "MySQL port")
	f.String("db-user", "inquiry", "MySQL user")
	f.String("db-password", "", "MySQL password (or set INQUIRY_DB_PASSWORD)")
	f.String("db-name", "inquiry", "MySQL database name")
}

func addLLMFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("llm-url", "https://api.openai.com/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for LLM (or set INQUIRY_LLM_KEY)")
	f.String("llm-model", "gpt-4o", "LLM model name")
}

func addMailFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("smtp-host", "", "SMTP host (empty disables mail)")
	f.Int("smtp-port", 587, "SMTP port")
	f.String("smtp-user", "", "SMTP username")
	f.String("smtp-password", "", "SMTP password (or set INQUIRY_SMTP_PASSWORD)")
	f.String("smtp-from", "", "From address for results mail")
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP tutoring server",
		RunE:  runServe,
	}
	addStoreFlags(cmd)
	addLLMFlags(cmd)
	addMailFlags(cmd)
	addLogFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("questions-ai", "questions/ai.xlsx", "AI competence question bank (.json or .xlsx)")
	f.String("questions-thermal", "questions/thermal.json", "Thermal physics question bank (.json or .xlsx)")
	f.String("docparse-url", "https://api.upstage.ai/v1/document-ai/document-parse", "Document parse API URL")
	f.String("docparse-key", "", "Document parse API key (or set INQUIRY_DOCPARSE_KEY)")
	f.String("uploads", "uploads", "Directory for uploaded plan files")
	f.StringP("lang", "l", "ko", "UI language (ko, en)")
	f.String("evaluator-password", "", "Password for the review pages (or set INQUIRY_EVALUATOR_PASSWORD)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	return cmd
}

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade ungraded diagnostic results for one variant",
		RunE:  runGrade,
	}
	addStoreFlags(cmd)
	addLLMFlags(cmd)
	addMailFlags(cmd)
	addLogFlags(cmd)
	f := cmd.Flags()
	f.String("variant", "ai", "Test variant to grade (ai, thermal)")
	f.String("questions", "", "Question bank path for the variant (required)")
	_ = cmd.MarkFlagRequired("questions")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export inquiry records and diagnostic results as JSON",
		RunE:  runExport,
	}
	addStoreFlags(cmd)
	addLogFlags(cmd)
	f := cmd.Flags()
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	return cmd
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

	v.SetEnvPrefix("INQUIRY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("inquiry-tutor")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/inquiry-tutor")
	v.AddConfigPath("/etc/inquiry-tutor")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func openStore(v *viper.Viper) (*store.Store, error) {
	driver := v.GetString("db-driver")
	switch driver {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
			v.GetString("db-user"), v.GetString("db-password"),
			v.GetString("db-host"), v.GetInt("db-port"), v.GetString("db-name"))
		return store.New("mysql", dsn)
	case "sqlite":
		return store.New("sqlite", v.GetString("db"))
	default:
		return nil, fmt.Errorf("unknown db driver %q", driver)
	}
}

func newMailer(v *viper.Viper) handler.Sender {
	host := v.GetString("smtp-host")
	if host == "" {
		slog.Info("smtp host not set, mail disabled")
		return nil
	}
	from := v.GetString("smtp-from")
	if from == "" {
		from = v.GetString("smtp-user")
	}
	return mail.New(host, v.GetInt("smtp-port"), v.GetString("smtp-user"), v.GetString("smtp-password"), from)
}

// loadBank loads one question bank and records its content hash so edits to
// a bank with results already stored get noticed.
func loadBank(db *store.Store, path string, kind model.QuestionKind) ([]model.DiagnosticQuestion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	storedHash, err := db.GetQuestionSetHash(path)
	if err != nil {
		return nil, fmt.Errorf("check question set hash for %s: %w", path, err)
	}
	if storedHash != "" && storedHash != hash {
		slog.Warn("question bank changed since results were stored; old results may not match",
			"path", path)
	}

	bank, err := questions.Load(path, kind)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if err := db.SetQuestionSetHash(path, hash); err != nil {
		return nil, fmt.Errorf("record question set hash for %s: %w", path, err)
	}
	slog.Info("loaded question bank", "path", path, "count", len(bank))
	return bank, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	banks := make(map[string][]model.DiagnosticQuestion)
	if bank, err := loadBank(db, v.GetString("questions-ai"), model.KindChoice); err != nil {
		slog.Warn("AI question bank unavailable", "error", err)
	} else {
		banks["ai"] = bank
	}
	if bank, err := loadBank(db, v.GetString("questions-thermal"), model.KindText); err != nil {
		slog.Warn("thermal question bank unavailable", "error", err)
	} else {
		banks["thermal"] = bank
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	llmClient := llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"))
	parser := docparse.New(v.GetString("docparse-url"), v.GetString("docparse-key"))

	svc, err := wizard.New(llmClient, parser, db, v.GetString("uploads"))
	if err != nil {
		return fmt.Errorf("create wizard: %w", err)
	}

	evalPassword := v.GetString("evaluator-password")
	if evalPassword == "" {
		return fmt.Errorf("evaluator password is required: set --evaluator-password flag or INQUIRY_EVALUATOR_PASSWORD env var")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(evalPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash evaluator password: %w", err)
	}

	h := handler.New(db, svc, grader.New(llmClient, db), newMailer(v), banks, handler.Config{
		EvaluatorHash: string(hash),
		SecureCookies: v.GetBool("secure-cookies"),
	})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"db_driver", v.GetString("db-driver"),
		"model", v.GetString("llm-model"),
		"llm_url", v.GetString("llm-url"),
		"lang", lang,
		"banks", len(banks),
	)
	return http.ListenAndServe(addr, r)
}

func runGrade(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	variant := v.GetString("variant")
	kind := model.KindChoice
	if variant == "thermal" {
		kind = model.KindText
	}
	bank, err := loadBank(db, v.GetString("questions"), kind)
	if err != nil {
		return err
	}

	llmClient := llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"))
	g := grader.New(llmClient, db)
	mailer := newMailer(v)

	summaries, err := db.ListDiagnosticResults(variant)
	if err != nil {
		return fmt.Errorf("list results: %w", err)
	}

	var graded, failed int
	for _, summary := range summaries {
		res, err := db.GetDiagnosticResult(summary.ID)
		if err != nil || res == nil {
			slog.Error("load result failed", "id", summary.ID, "error", err)
			failed++
			continue
		}
		if res.TotalFeedback != "" {
			continue
		}
		if len(res.Answers) != len(bank) {
			slog.Warn("result does not match question bank, skipping", "id", res.ID)
			continue
		}

		var (
			subject string
			body    string
		)
		if kind == model.KindChoice {
			grade, _, err := g.GradeChoice(context.Background(), res, bank)
			if err != nil {
				slog.Error("grading failed", "id", res.ID, "error", err)
				failed++
				continue
			}
			subject = fmt.Sprintf("AI 역량 평가 결과 - %s", res.Name)
			body = grade.TotalFeedback
		} else {
			grade, err := g.GradeText(context.Background(), res, bank)
			if err != nil {
				slog.Error("grading failed", "id", res.ID, "error", err)
				failed++
				continue
			}
			subject = fmt.Sprintf("열물리 개념 진단 평가 결과 - %s", res.Name)
			body = grader.TestGradeMarkdown(grade)
		}
		graded++

		if mailer != nil {
			if err := mailer.Send(res.Email, subject, body, nil); err != nil {
				slog.Error("result mail failed", "id", res.ID, "error", err)
			}
		}
	}

	slog.Info("grading pass finished", "variant", variant, "graded", graded, "failed", failed)
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportAll()
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
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

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)

	return nil
}
