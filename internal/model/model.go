package model

import (
	"context"
	"time"
)

// Step identifies the wizard page a session is currently on.
type Step string

const (
	StepStart      Step = "start"
	StepDisclaimer Step = "disclaimer"
	StepUpload     Step = "upload"
	StepProblem    Step = "problem"
	StepHypothesis Step = "hypothesis"
	StepTheory     Step = "theory"
	StepProcess    Step = "process"
	StepOverall    Step = "overall"
	StepSurvey     Step = "survey"
)

// Stage indexes the four tutoring conversation stages.
type Stage int

const (
	StageProblem Stage = iota
	StageHypothesis
	StageTheory
	StageProcess

	NumStages = 4
)

// Step returns the wizard step that hosts this stage.
func (s Stage) Step() Step {
	switch s {
	case StageProblem:
		return StepProblem
	case StageHypothesis:
		return StepHypothesis
	case StageTheory:
		return StepTheory
	default:
		return StepProcess
	}
}

// Next returns the step that follows this stage's step.
func (s Stage) Next() Step {
	switch s {
	case StageProblem:
		return StepHypothesis
	case StageHypothesis:
		return StepTheory
	case StageTheory:
		return StepProcess
	default:
		return StepOverall
	}
}

// StageForStep maps a conversation step back to its stage index.
func StageForStep(step Step) (Stage, bool) {
	switch step {
	case StepProblem:
		return StageProblem, true
	case StepHypothesis:
		return StageHypothesis, true
	case StepTheory:
		return StageTheory, true
	case StepProcess:
		return StageProcess, true
	}
	return 0, false
}

// Role represents a chat message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry in a stage's conversation log. Turns are append-only;
// their order forms the exact request payload to the chat-completion API.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// InquiryRecord is the single persisted row for one wizard run. It is
// inserted once when the upload step completes and mutated column-by-column
// afterwards; concurrent writers are last-write-wins per column.
type InquiryRecord struct {
	ID            int64     `json:"id"`
	StudentNumber string    `json:"student_number"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Date          time.Time `json:"date"`
	Topic         string    `json:"topic"`
	Problem       string    `json:"problem"`
	Hypothesis    string    `json:"hypothesis"`
	Theory        string    `json:"theory"`
	Apparatus     string    `json:"apparatus"`
	Process       string    `json:"process"`

	Conversations [NumStages]string `json:"conversations"`
	Advice        [NumStages]string `json:"advice"`
	Survey        []string          `json:"survey,omitempty"`
}

// NumSurveyItems is the size of the usage survey on the final wizard page:
// 22 Likert items followed by 4 free-text items.
const NumSurveyItems = 26

// QuestionKind distinguishes the diagnostic test variants.
type QuestionKind string

const (
	KindChoice QuestionKind = "choice" // fixed options plus the "don't know" sentinel
	KindText   QuestionKind = "text"   // free-text, graded by the LLM
)

// Choice answer sentinels. Real choices are 1-based.
const (
	AnswerUnknown    = 0  // explicit "don't know"
	AnswerUnanswered = -1 // question never answered
)

// DiagnosticQuestion is one item of a diagnostic question set.
type DiagnosticQuestion struct {
	Number   int          `json:"number"`
	Kind     QuestionKind `json:"kind"`
	Problem  string       `json:"problem"`
	Choices  []string     `json:"choices,omitempty"`
	Answer   int          `json:"answer,omitempty"`   // correct 1-based choice, choice kind only
	Standard string       `json:"standard,omitempty"` // grading rubric, text kind only
	Domain   string       `json:"domain,omitempty"`
	Figure   string       `json:"figure,omitempty"`
}

// DiagnosticResult is one completed test run. Answers and per-question
// elapsed times are written once at completion; the grading pass fills in
// scores and feedback later.
type DiagnosticResult struct {
	ID        int64     `json:"id"`
	Variant   string    `json:"variant"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Date      time.Time `json:"date"`
	TotalTime float64   `json:"total_time"`
	Answers   []string  `json:"answers"`
	Times     []float64 `json:"times"`

	Scores        []int    `json:"scores,omitempty"`
	Feedback      []string `json:"feedback,omitempty"`
	TotalScore    float64  `json:"total_score,omitempty"`
	TotalFeedback string   `json:"total_feedback,omitempty"`

	CorrectCount   int `json:"correct_count,omitempty"`
	IncorrectCount int `json:"incorrect_count,omitempty"`
	UnknownCount   int `json:"unknown_count,omitempty"`
}

// TestGrade is the validated structured grading response for a free-text
// diagnostic run.
type TestGrade struct {
	Scores        []int    // one per question, 0..3
	Feedback      []string // one per question
	TotalScore    float64  // aggregate score normalized by question count
	TotalFeedback string
}

type evaluatorCtxKey struct{}

// ContextWithEvaluator marks the request as authenticated for the gated
// review pages.
func ContextWithEvaluator(ctx context.Context) context.Context {
	return context.WithValue(ctx, evaluatorCtxKey{}, true)
}

// EvaluatorFromContext reports whether the request passed the evaluator gate.
func EvaluatorFromContext(ctx context.Context) bool {
	ok, _ := ctx.Value(evaluatorCtxKey{}).(bool)
	return ok
}
