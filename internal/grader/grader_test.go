package grader

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/physlab/inquiry-tutor/internal/llm"
	"github.com/physlab/inquiry-tutor/internal/model"
)

type fakeGradeLLM struct {
	grade      *model.TestGrade
	gradeErr   error
	feedback   *llm.DomainFeedback
	domainsErr error
	lastPrompt string
}

func (f *fakeGradeLLM) GradeTest(ctx context.Context, systemPrompt, userPrompt string, n int) (*model.TestGrade, error) {
	f.lastPrompt = userPrompt
	if f.gradeErr != nil {
		return nil, f.gradeErr
	}
	g := *f.grade
	g.Scores = append([]int(nil), f.grade.Scores...)
	g.Feedback = append([]string(nil), f.grade.Feedback...)
	return &g, nil
}

func (f *fakeGradeLLM) GradeDomains(ctx context.Context, systemPrompt, userPrompt string) (*llm.DomainFeedback, error) {
	f.lastPrompt = userPrompt
	if f.domainsErr != nil {
		return nil, f.domainsErr
	}
	return f.feedback, nil
}

type fakeGradeStore struct {
	grades   map[int64]*model.TestGrade
	tallies  map[int64][3]int
	gradeErr error
}

func newFakeGradeStore() *fakeGradeStore {
	return &fakeGradeStore{
		grades:  make(map[int64]*model.TestGrade),
		tallies: make(map[int64][3]int),
	}
}

func (f *fakeGradeStore) UpdateDiagnosticGrade(id int64, grade *model.TestGrade) error {
	if f.gradeErr != nil {
		return f.gradeErr
	}
	f.grades[id] = grade
	return nil
}

func (f *fakeGradeStore) UpdateChoiceTallies(id int64, correct, incorrect, unknown int) error {
	f.tallies[id] = [3]int{correct, incorrect, unknown}
	return nil
}

func textQuestions() []model.DiagnosticQuestion {
	return []model.DiagnosticQuestion{
		{Number: 1, Kind: model.KindText, Problem: "열전도란?", Standard: "입자의 충돌로 설명한다"},
		{Number: 2, Kind: model.KindText, Problem: "대류란?", Standard: "밀도 차이로 설명한다"},
		{Number: 3, Kind: model.KindText, Problem: "복사란?", Standard: "전자기파로 설명한다"},
	}
}

func choiceQuestions() []model.DiagnosticQuestion {
	domains := []string{"인공지능 소양", "인공지능 소양", "인공지능 이해", "데이터의 이해", "인공지능의 활용"}
	qs := make([]model.DiagnosticQuestion, 5)
	for i := range qs {
		qs[i] = model.DiagnosticQuestion{
			Number:  i + 1,
			Kind:    model.KindChoice,
			Problem: "문항",
			Choices: []string{"①", "②", "③", "④"},
			Answer:  2,
			Domain:  domains[i],
		}
	}
	return qs
}

func TestGradeTextZeroesBlankAnswers(t *testing.T) {
	fakeLLM := &fakeGradeLLM{grade: &model.TestGrade{
		Scores:        []int{3, 2, 2},
		Feedback:      []string{"좋음", "보통", "보통"},
		TotalScore:    2.33,
		TotalFeedback: "전반적으로 양호",
	}}
	store := newFakeGradeStore()
	g := New(fakeLLM, store)

	res := &model.DiagnosticResult{ID: 5, Answers: []string{"입자 충돌", "  ", "전자기파"}, Times: []float64{10, 0, 20}}
	grade, err := g.GradeText(context.Background(), res, textQuestions())
	if err != nil {
		t.Fatalf("GradeText: %v", err)
	}
	if grade.Scores[1] != 0 {
		t.Errorf("blank answer score = %d, want 0", grade.Scores[1])
	}
	if grade.Scores[0] != 3 || grade.Scores[2] != 2 {
		t.Errorf("scores = %v", grade.Scores)
	}
	if grade.TotalScore != 1.67 {
		t.Errorf("total = %v, want 1.67", grade.TotalScore)
	}
	saved := store.grades[5]
	if saved == nil || saved.Scores[1] != 0 {
		t.Errorf("persisted grade = %+v", saved)
	}
}

func TestGradeTextMalformedWritesNothing(t *testing.T) {
	fakeLLM := &fakeGradeLLM{gradeErr: llm.ErrMalformedGrade}
	store := newFakeGradeStore()
	g := New(fakeLLM, store)

	res := &model.DiagnosticResult{ID: 5, Answers: []string{"a", "b", "c"}, Times: []float64{1, 2, 3}}
	if _, err := g.GradeText(context.Background(), res, textQuestions()); !errors.Is(err, llm.ErrMalformedGrade) {
		t.Fatalf("err = %v, want ErrMalformedGrade", err)
	}
	if len(store.grades) != 0 {
		t.Error("grade persisted despite malformed response")
	}
}

func TestCorrectness(t *testing.T) {
	q := model.DiagnosticQuestion{Answer: 2, Choices: []string{"①", "②", "③", "④"}}
	cases := []struct {
		answer string
		want   int
	}{
		{"2", 1},
		{"3", 0},
		{"0", 0},
		{"-1", -1},
		{"garbage", -1},
	}
	for _, c := range cases {
		if got := Correctness(q, c.answer); got != c.want {
			t.Errorf("Correctness(%q) = %d, want %d", c.answer, got, c.want)
		}
	}
}

func TestGradeChoice(t *testing.T) {
	fb := &llm.DomainFeedback{
		Literacy: "소양 피드백", Understanding: "이해 피드백",
		Data: "데이터 피드백", Application: "활용 피드백", Overall: "기초 수준",
	}
	fakeLLM := &fakeGradeLLM{feedback: fb}
	store := newFakeGradeStore()
	g := New(fakeLLM, store)

	// correct, wrong, don't-know, unanswered, correct
	res := &model.DiagnosticResult{
		ID:      9,
		Answers: []string{"2", "3", "0", "-1", "2"},
		Times:   []float64{5, 8, 3, -1, 12},
	}
	grade, feedback, err := g.GradeChoice(context.Background(), res, choiceQuestions())
	if err != nil {
		t.Fatalf("GradeChoice: %v", err)
	}
	wantScores := []int{1, 0, 0, -1, 1}
	for i, want := range wantScores {
		if grade.Scores[i] != want {
			t.Errorf("score %d = %d, want %d", i, grade.Scores[i], want)
		}
	}
	// The three tallies partition the questions.
	if got := store.tallies[9]; got != [3]int{2, 2, 1} {
		t.Errorf("tallies = %v, want [2 2 1]", got)
	}
	if grade.TotalScore != 40 {
		t.Errorf("total = %v, want 40", grade.TotalScore)
	}
	if feedback.Overall != "기초 수준" {
		t.Errorf("overall = %q", feedback.Overall)
	}
	if !strings.Contains(grade.TotalFeedback, "소양 피드백") {
		t.Error("total feedback missing domain section")
	}
	if !strings.Contains(fakeLLM.lastPrompt, `"User_Answer":"0"`) {
		t.Errorf("prompt missing response table: %s", fakeLLM.lastPrompt)
	}
}

func TestGradeChoiceKeepsScoresWhenFeedbackFails(t *testing.T) {
	fakeLLM := &fakeGradeLLM{domainsErr: errors.New("upstream unavailable")}
	store := newFakeGradeStore()
	g := New(fakeLLM, store)

	res := &model.DiagnosticResult{
		ID:      9,
		Answers: []string{"2", "3", "0", "-1", "2"},
		Times:   []float64{5, 8, 3, -1, 12},
	}
	grade, feedback, err := g.GradeChoice(context.Background(), res, choiceQuestions())
	if err == nil {
		t.Fatal("expected feedback error")
	}
	if feedback != nil {
		t.Error("feedback returned despite error")
	}
	if grade == nil || store.grades[9] == nil {
		t.Fatal("scores not persisted on feedback failure")
	}
	if store.grades[9].TotalFeedback != "" {
		t.Errorf("total feedback = %q, want empty", store.grades[9].TotalFeedback)
	}
}

func TestDomainAccuracy(t *testing.T) {
	scores := []int{1, 0, 1, -1, 1}
	acc := DomainAccuracy(choiceQuestions(), scores)
	if acc["인공지능 소양"] != 0.5 {
		t.Errorf("소양 = %v, want 0.5", acc["인공지능 소양"])
	}
	if acc["인공지능 이해"] != 1 {
		t.Errorf("이해 = %v, want 1", acc["인공지능 이해"])
	}
	if acc["데이터의 이해"] != 0 {
		t.Errorf("데이터 = %v, want 0", acc["데이터의 이해"])
	}
	if acc["인공지능의 활용"] != 1 {
		t.Errorf("활용 = %v, want 1", acc["인공지능의 활용"])
	}
}

func TestDomainFeedbackMarkdown(t *testing.T) {
	body := DomainFeedbackMarkdown(&llm.DomainFeedback{
		Literacy: "a", Understanding: "b", Data: "c", Application: "d", Overall: "e",
	})
	for _, want := range []string{"### AI 역량 평가 결과:", "인공지능 소양", "종합 평가", "---"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}
