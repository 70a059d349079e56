// Package grader scores finished diagnostic sittings. Free-text runs are
// graded as one batch by the LLM against each question's standard;
// multiple-choice runs are scored locally and sent out only for the
// per-domain feedback text.
package grader

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/physlab/inquiry-tutor/internal/llm"
	"github.com/physlab/inquiry-tutor/internal/llm/prompts"
	"github.com/physlab/inquiry-tutor/internal/model"
)

// Domains lists the multiple-choice competence domains in report order.
var Domains = [4]string{"인공지능 소양", "인공지능 이해", "데이터의 이해", "인공지능의 활용"}

type gradeStore interface {
	UpdateDiagnosticGrade(id int64, grade *model.TestGrade) error
	UpdateChoiceTallies(id int64, correct, incorrect, unknown int) error
}

type gradeLLM interface {
	GradeTest(ctx context.Context, systemPrompt, userPrompt string, n int) (*model.TestGrade, error)
	GradeDomains(ctx context.Context, systemPrompt, userPrompt string) (*llm.DomainFeedback, error)
}

// Grader scores results and persists the outcome.
type Grader struct {
	llm   gradeLLM
	store gradeStore
}

func New(llmClient gradeLLM, store gradeStore) *Grader {
	return &Grader{llm: llmClient, store: store}
}

// GradeText grades a free-text sitting. Questions the learner left blank
// are forced to zero regardless of what the model returned, and the total
// is recomputed afterwards. Nothing is persisted when the model's response
// cannot be parsed.
func (g *Grader) GradeText(ctx context.Context, res *model.DiagnosticResult, questions []model.DiagnosticQuestion) (*model.TestGrade, error) {
	if len(questions) != len(res.Answers) {
		return nil, fmt.Errorf("question/answer count mismatch: %d vs %d", len(questions), len(res.Answers))
	}

	prompt := prompts.TestGrade(questions, *res)
	grade, err := g.llm.GradeTest(ctx, prompts.SystemPhysicsExpert, prompt, len(questions))
	if err != nil {
		return nil, err
	}

	for i, answer := range res.Answers {
		if strings.TrimSpace(answer) == "" {
			grade.Scores[i] = 0
			grade.Feedback[i] = "응답이 없어 0점으로 처리되었습니다."
		}
	}
	grade.TotalScore = averageScore(grade.Scores)

	if err := g.store.UpdateDiagnosticGrade(res.ID, grade); err != nil {
		return nil, fmt.Errorf("save grade: %w", err)
	}
	return grade, nil
}

func averageScore(scores []int) float64 {
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return math.Round(float64(sum)/float64(len(scores))*100) / 100
}

// Correctness maps one recorded answer to the stored score value: 1 for
// the right choice, -1 when the question was never answered, 0 otherwise.
// The don't-know escape is recorded as answer 0 and scores 0.
func Correctness(q model.DiagnosticQuestion, answer string) int {
	n, err := strconv.Atoi(strings.TrimSpace(answer))
	if err != nil {
		return model.AnswerUnanswered
	}
	switch {
	case n == model.AnswerUnanswered:
		return model.AnswerUnanswered
	case n == q.Answer:
		return 1
	default:
		return 0
	}
}

// questionResponse is one row of the per-question table sent with the
// domain feedback request.
type questionResponse struct {
	Problem    string   `json:"Problem"`
	Choice     []string `json:"Choice"`
	UserAnswer string   `json:"User_Answer"`
	Correct    int      `json:"Correct"`
	TimeTaken  float64  `json:"Time_Taken"`
	Domain     string   `json:"Domain"`
}

// GradeChoice scores a multiple-choice sitting. Correctness and the
// correct/incorrect/unknown tallies are computed locally; the LLM only
// writes the per-domain feedback. The per-question scores and tallies are
// persisted even when the feedback request fails.
func (g *Grader) GradeChoice(ctx context.Context, res *model.DiagnosticResult, questions []model.DiagnosticQuestion) (*model.TestGrade, *llm.DomainFeedback, error) {
	if len(questions) != len(res.Answers) {
		return nil, nil, fmt.Errorf("question/answer count mismatch: %d vs %d", len(questions), len(res.Answers))
	}

	n := len(questions)
	grade := &model.TestGrade{
		Scores:   make([]int, n),
		Feedback: make([]string, n),
	}
	var correct, incorrect, unknown int
	responses := make([]questionResponse, n)
	for i, q := range questions {
		score := Correctness(q, res.Answers[i])
		grade.Scores[i] = score
		switch {
		case score == 1:
			correct++
		case strings.TrimSpace(res.Answers[i]) == strconv.Itoa(model.AnswerUnknown):
			unknown++
		default:
			incorrect++
		}
		responses[i] = questionResponse{
			Problem:    q.Problem,
			Choice:     q.Choices,
			UserAnswer: res.Answers[i],
			Correct:    score,
			TimeTaken:  res.Times[i],
			Domain:     q.Domain,
		}
	}
	grade.TotalScore = math.Round(float64(correct)/float64(n)*10000) / 100

	if err := g.store.UpdateChoiceTallies(res.ID, correct, incorrect, unknown); err != nil {
		return nil, nil, fmt.Errorf("save tallies: %w", err)
	}

	js, err := json.Marshal(responses)
	if err != nil {
		return nil, nil, fmt.Errorf("encode responses: %w", err)
	}
	feedback, err := g.llm.GradeDomains(ctx, prompts.SystemAIExpert, prompts.DomainGrade(string(js)))
	if err != nil {
		// Scores are deterministic; keep them even without feedback text.
		if saveErr := g.store.UpdateDiagnosticGrade(res.ID, grade); saveErr != nil {
			return nil, nil, fmt.Errorf("save grade: %w", saveErr)
		}
		return grade, nil, err
	}
	grade.TotalFeedback = DomainFeedbackMarkdown(feedback)

	if err := g.store.UpdateDiagnosticGrade(res.ID, grade); err != nil {
		return nil, nil, fmt.Errorf("save grade: %w", err)
	}
	return grade, feedback, nil
}

// DomainAccuracy returns each domain's share of correct answers, keyed by
// domain name. Unanswered questions count against the domain.
func DomainAccuracy(questions []model.DiagnosticQuestion, scores []int) map[string]float64 {
	total := make(map[string]int)
	right := make(map[string]int)
	for i, q := range questions {
		total[q.Domain]++
		if i < len(scores) && scores[i] == 1 {
			right[q.Domain]++
		}
	}
	acc := make(map[string]float64, len(total))
	for domain, count := range total {
		acc[domain] = math.Round(float64(right[domain])/float64(count)*10000) / 10000
	}
	return acc
}

// TestGradeMarkdown renders a free-text grade as the markdown body of the
// results mail.
func TestGradeMarkdown(grade *model.TestGrade) string {
	var sb strings.Builder
	sb.WriteString("### 열물리 개념 진단 평가 결과:\n\n")
	for i, score := range grade.Scores {
		fmt.Fprintf(&sb, "**문항 %d** (%d점):\n%s\n\n", i+1, score, grade.Feedback[i])
	}
	fmt.Fprintf(&sb, "---\n**평균 점수**: %.2f점\n\n**종합 피드백**:\n%s\n", grade.TotalScore, grade.TotalFeedback)
	return sb.String()
}

// DomainFeedbackMarkdown renders the five feedback sections as the
// markdown body of the results mail.
func DomainFeedbackMarkdown(fb *llm.DomainFeedback) string {
	var sb strings.Builder
	sb.WriteString("### AI 역량 평가 결과:\n\n")
	sections := []struct {
		title, body string
	}{
		{"인공지능 소양", fb.Literacy},
		{"인공지능 이해", fb.Understanding},
		{"데이터의 이해", fb.Data},
		{"인공지능의 활용", fb.Application},
		{"종합 평가", fb.Overall},
	}
	for _, s := range sections {
		fmt.Fprintf(&sb, "**%s**:\n%s\n\n---\n", s.title, s.body)
	}
	return sb.String()
}
