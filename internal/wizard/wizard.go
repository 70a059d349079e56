// Package wizard orchestrates the inquiry-design flow: identity entry,
// consent, plan upload and parsing, the four tutoring conversations, the
// synthesized feedback and the closing survey.
package wizard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/physlab/inquiry-tutor/internal/docparse"
	"github.com/physlab/inquiry-tutor/internal/llm/prompts"
	"github.com/physlab/inquiry-tutor/internal/model"
)

// ChatClient is the slice of the LLM client the wizard needs.
type ChatClient interface {
	Chat(ctx context.Context, turns []model.Turn) (string, error)
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Parser extracts ordered elements from an uploaded plan document.
type Parser interface {
	Parse(ctx context.Context, path string) ([]docparse.Element, error)
}

type recordStore interface {
	CreateInquiryRecord(rec model.InquiryRecord) (int64, error)
	UpdateConversation(id int64, stage model.Stage, transcript string) error
	UpdateAdvice(id int64, stage model.Stage, advice string) error
	UpdateSurveyAnswer(id int64, item int, value string) error
}

var emailPattern = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w+$`)

// ValidEmail reports whether the address looks deliverable enough to
// accept on the start page.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// Service drives wizard sessions through their steps.
type Service struct {
	llm       ChatClient
	parser    Parser
	store     recordStore
	uploadDir string

	now func() time.Time
}

// New creates the wizard service. uploadDir is created if missing.
func New(llmClient ChatClient, parser Parser, store recordStore, uploadDir string) (*Service, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Service{
		llm:       llmClient,
		parser:    parser,
		store:     store,
		uploadDir: uploadDir,
		now:       time.Now,
	}, nil
}

// Start records the learner's identity and moves to the consent step.
func (s *Service) Start(sess *Session, studentNumber, name, email string) error {
	if studentNumber == "" || name == "" || email == "" {
		return fmt.Errorf("모든 필드를 입력해주세요")
	}
	if !ValidEmail(email) {
		return fmt.Errorf("올바른 이메일 형식이 아닙니다")
	}
	sess.StudentNumber = studentNumber
	sess.Name = name
	sess.Email = email
	sess.Step = model.StepDisclaimer
	return nil
}

// Agree records consent and moves to the upload step.
func (s *Service) Agree(sess *Session) {
	sess.Turns = nil
	sess.Completed = nil
	sess.Step = model.StepUpload
}

// Upload stores the plan under a collision-avoided name, parses it and
// splits it into sections the learner can review and edit.
func (s *Service) Upload(ctx context.Context, sess *Session, filename string, src io.Reader) error {
	path, err := s.saveUpload(sess.Name, filename, src)
	if err != nil {
		return err
	}
	sess.UploadPath = path

	elements, err := s.parser.Parse(ctx, path)
	if err != nil {
		return fmt.Errorf("parse plan: %w", err)
	}
	sections, id := docparse.Split(elements)
	sess.Sections = sections
	if id.StudentNumber != "" && id.StudentNumber != sess.StudentNumber {
		slog.Warn("plan identity differs from entered student number",
			"entered", sess.StudentNumber, "parsed", id.StudentNumber)
	}
	return nil
}

// saveUpload writes the file as <name><ext>, appending a counter when the
// name is taken.
func (s *Service) saveUpload(name, filename string, src io.Reader) (string, error) {
	ext := filepath.Ext(filename)
	base := filepath.Base(name)

	path := filepath.Join(s.uploadDir, base+ext)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		path = filepath.Join(s.uploadDir, fmt.Sprintf("%s%d%s", base, counter, ext))
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, src); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("save upload: %w", err)
	}
	return path, nil
}

// ConfirmUpload persists the reviewed plan and opens the first tutoring
// stage. Topic and problem are required; the other sections may be empty.
func (s *Service) ConfirmUpload(sess *Session, topic string, sections docparse.Sections) error {
	if topic == "" || sections.Problem == "" {
		return fmt.Errorf("주제와 탐구 문제를 입력해야 합니다")
	}
	if _, ok := Topics[topic]; !ok {
		return fmt.Errorf("unknown topic %q", topic)
	}
	sess.Topic = topic
	sess.Sections = sections

	id, err := s.store.CreateInquiryRecord(model.InquiryRecord{
		StudentNumber: sess.StudentNumber,
		Name:          sess.Name,
		Email:         sess.Email,
		Topic:         topic,
		Problem:       sections.Problem,
		Hypothesis:    sections.Hypothesis,
		Theory:        sections.Theory,
		Apparatus:     sections.Apparatus,
		Process:       sections.Process,
	})
	if err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	sess.RecordID = id
	sess.Step = model.StepProblem
	return nil
}

// Respond advances the current stage's conversation. Empty input seeds the
// log with the stage's system prompt; otherwise the input becomes a user
// turn. Either way the assistant's reply is appended. On failure the log is
// left exactly as it was.
func (s *Service) Respond(ctx context.Context, sess *Session, input string) (string, error) {
	stage, ok := model.StageForStep(sess.Step)
	if !ok {
		return "", fmt.Errorf("step %s has no conversation", sess.Step)
	}

	turns := sess.Turns
	if input == "" {
		if len(turns) > 0 {
			return "", fmt.Errorf("conversation already started")
		}
		turns = append(turns, model.Turn{
			Role:      model.RoleSystem,
			Content:   s.stagePrompt(stage, sess),
			CreatedAt: s.now(),
		})
	} else {
		turns = append(turns, model.Turn{
			Role:      model.RoleUser,
			Content:   input,
			CreatedAt: s.now(),
		})
	}

	answer, err := s.llm.Chat(ctx, turns)
	if err != nil {
		return "", err
	}

	turns = append(turns, model.Turn{
		Role:      model.RoleAssistant,
		Content:   answer,
		CreatedAt: s.now(),
	})
	sess.Turns = turns
	return answer, nil
}

func (s *Service) stagePrompt(stage model.Stage, sess *Session) string {
	rec := model.InquiryRecord{
		Topic:      sess.Topic,
		Problem:    sess.Sections.Problem,
		Hypothesis: sess.Sections.Hypothesis,
		Theory:     sess.Sections.Theory,
		Apparatus:  sess.Sections.Apparatus,
		Process:    sess.Sections.Process,
	}
	return prompts.Stage(stage, rec, Topics[sess.Topic])
}

// CompleteStage serializes the stage transcript, persists it, archives the
// turns and advances to the next step.
func (s *Service) CompleteStage(sess *Session) error {
	stage, ok := model.StageForStep(sess.Step)
	if !ok {
		return fmt.Errorf("step %s has no conversation", sess.Step)
	}

	if err := s.store.UpdateConversation(sess.RecordID, stage, Transcript(sess.Turns)); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	sess.Completed = append(sess.Completed, sess.Turns)
	sess.Turns = nil
	sess.Step = stage.Next()
	return nil
}

// Transcript flattens turns to the persisted text form, one line per turn.
func Transcript(turns []model.Turn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, fmt.Sprintf("%s (%s): %s",
			t.Role, t.CreatedAt.Format("2006-01-02 15:04:05"), t.Content))
	}
	return strings.Join(lines, "\n")
}

// Summarize asks for a condensed review of every completed stage, retrying
// each request up to maxAttempts times. The session keeps either all four
// reviews or none, so callers can retry on a partial failure.
func (s *Service) Summarize(ctx context.Context, sess *Session, maxAttempts int) error {
	if len(sess.Completed) != model.NumStages {
		return fmt.Errorf("expected %d completed stages, have %d", model.NumStages, len(sess.Completed))
	}
	var summaries [model.NumStages]string
	for stage := model.StageProblem; stage <= model.StageProcess; stage++ {
		prompt := prompts.Summary(stage, Transcript(sess.Completed[stage]))

		for attempt := 1; attempt <= maxAttempts; attempt++ {
			reply, err := s.llm.Complete(ctx, prompts.SystemTutor, prompt)
			if err == nil && reply != "" {
				summaries[stage] = reply
				break
			}
			// An empty reply counts as a failed attempt.
			slog.Warn("stage summary failed", "stage", stage, "attempt", attempt, "error", err)
		}
		if summaries[stage] == "" {
			return fmt.Errorf("summarize stage %d: no usable review after %d attempts", stage, maxAttempts)
		}
	}
	sess.Summaries = summaries
	return nil
}

// SaveSummaries persists the four stage reviews and opens the survey.
func (s *Service) SaveSummaries(sess *Session) error {
	for stage := model.StageProblem; stage <= model.StageProcess; stage++ {
		if sess.Summaries[stage] == "" {
			return fmt.Errorf("stage %d summary missing", stage)
		}
	}
	for stage := model.StageProblem; stage <= model.StageProcess; stage++ {
		if err := s.store.UpdateAdvice(sess.RecordID, stage, sess.Summaries[stage]); err != nil {
			return fmt.Errorf("save advice: %w", err)
		}
	}
	sess.Step = model.StepSurvey
	return nil
}

// SubmitSurvey persists the survey answers, one column per item.
func (s *Service) SubmitSurvey(sess *Session, answers []string) error {
	if len(answers) != model.NumSurveyItems {
		return fmt.Errorf("expected %d survey answers, got %d", model.NumSurveyItems, len(answers))
	}
	for i, value := range answers {
		if err := s.store.UpdateSurveyAnswer(sess.RecordID, i+1, value); err != nil {
			return fmt.Errorf("save survey item %d: %w", i+1, err)
		}
	}
	return nil
}

// FeedbackMail renders the four stage reviews as the markdown body of the
// results mail.
func FeedbackMail(summaries [model.NumStages]string) string {
	var sb strings.Builder
	sb.WriteString("### AI 피드백 결과:\n\n")
	titles := [model.NumStages]string{
		"탐구 문제 피드백", "가설 피드백", "배경이론 피드백", "탐구 과정 피드백",
	}
	for stage := model.StageProblem; stage <= model.StageProcess; stage++ {
		fmt.Fprintf(&sb, "**%s**:\n%s\n\n---\n", titles[stage], summaries[stage])
	}
	return sb.String()
}
