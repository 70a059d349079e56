// Package views renders the server-side HTML pages from embedded
// templates. Each template file is one page; head and foot are shared
// partials.
package views

import (
	"context"
	"embed"
	"html/template"
	"io"

	"github.com/physlab/inquiry-tutor/internal/docparse"
	appI18n "github.com/physlab/inquiry-tutor/internal/i18n"
	"github.com/physlab/inquiry-tutor/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// t and td are rebound per request in Render; the parse-time versions only
// reserve the names.
var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"add": func(a, b int) int { return a + b },
	"seq": func(n int) []int {
		s := make([]int, n)
		for i := range s {
			s[i] = i + 1
		}
		return s
	},
	"t":  func(string) string { return "" },
	"td": func(string, string, any) string { return "" },
}).ParseFS(templateFS, "templates/*.html"))

// Render executes the named page template. Chrome strings resolve through
// the localizer carried in ctx.
func Render(ctx context.Context, w io.Writer, name string, data any) error {
	tmpl, err := templates.Clone()
	if err != nil {
		return err
	}
	tmpl.Funcs(template.FuncMap{
		"t": func(id string) string { return appI18n.T(ctx, id) },
		"td": func(id, key string, value any) string {
			return appI18n.Td(ctx, id, map[string]any{key: value})
		},
	})
	return tmpl.ExecuteTemplate(w, name, data)
}

// StartPage is the identity form opening the wizard.
type StartPage struct {
	Title string
	Flash string
}

// UploadPage shows the upload form and, once parsed, the editable plan
// sections.
type UploadPage struct {
	Title    string
	Flash    string
	Topics   []string
	Topic    string
	Sections docparse.Sections
	Uploaded bool
}

// ChatPage is one tutoring stage's conversation.
type ChatPage struct {
	Title     string
	StageName string
	Turns     []model.Turn
	Flash     string
}

// OverallPage shows the four synthesized reviews.
type OverallPage struct {
	Title     string
	Summaries [model.NumStages]string
	Titles    [model.NumStages]string
	Flash     string
	Emailed   bool
}

// SurveyPage is the closing questionnaire: Likert items then free-text.
type SurveyPage struct {
	Title     string
	Likert    []string
	FreeText  []string
	Flash     string
}

// TestStartPage is a diagnostic test's identity form.
type TestStartPage struct {
	Title   string
	Variant string
	Flash   string
}

// TestQuestionPage is one open diagnostic question.
type TestQuestionPage struct {
	Title     string
	Variant   string
	Number    int
	Total     int
	Problem   string
	Figure    string
	Choices   []string
	Selected  string
	Answer    string
	IsChoice  bool
	Remaining int
	Flash     string
}

// LoginPage is the evaluator password gate.
type LoginPage struct {
	Title string
	Flash string
}

// RecordsPage lists inquiry records for review.
type RecordsPage struct {
	Title   string
	Records []model.InquiryRecord
	Count   string
}

// RecordPage shows one record's plan and the four stage tabs.
type RecordPage struct {
	Title  string
	Record *model.InquiryRecord
	Tabs   [model.NumStages]string
}

// TestsPage lists diagnostic results for one variant.
type TestsPage struct {
	Title    string
	Variant  string
	Variants []string
	Results  []model.DiagnosticResult
}

// TestDetailPage shows one graded or ungraded result.
type TestDetailPage struct {
	Title  string
	Result *model.DiagnosticResult
	Graded bool
	Flash  string
}

// MessagePage is a terminal page with a single line of text.
type MessagePage struct {
	Title   string
	Message string
}
