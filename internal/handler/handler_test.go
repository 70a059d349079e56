package handler

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/physlab/inquiry-tutor/internal/docparse"
	"github.com/physlab/inquiry-tutor/internal/grader"
	appI18n "github.com/physlab/inquiry-tutor/internal/i18n"
	"github.com/physlab/inquiry-tutor/internal/llm"
	"github.com/physlab/inquiry-tutor/internal/model"
	"github.com/physlab/inquiry-tutor/internal/store"
	"github.com/physlab/inquiry-tutor/internal/wizard"
)

// fakeLLM answers every chat with a fixed reply and grades every sitting
// with full marks.
type fakeLLM struct {
	reply string
}

func (f *fakeLLM) Chat(ctx context.Context, turns []model.Turn) (string, error) {
	return f.reply, nil
}

func (f *fakeLLM) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return "요약된 피드백", nil
}

func (f *fakeLLM) GradeTest(ctx context.Context, systemPrompt, userPrompt string, n int) (*model.TestGrade, error) {
	grade := &model.TestGrade{
		Scores:        make([]int, n),
		Feedback:      make([]string, n),
		TotalScore:    3,
		TotalFeedback: "훌륭합니다",
	}
	for i := range grade.Scores {
		grade.Scores[i] = 3
		grade.Feedback[i] = "정확한 설명입니다"
	}
	return grade, nil
}

func (f *fakeLLM) GradeDomains(ctx context.Context, systemPrompt, userPrompt string) (*llm.DomainFeedback, error) {
	return &llm.DomainFeedback{
		Literacy: "a", Understanding: "b", Data: "c", Application: "d", Overall: "e",
	}, nil
}

type fakeParser struct{}

func (fakeParser) Parse(ctx context.Context, path string) ([]docparse.Element, error) {
	el := func(category, text string) docparse.Element {
		var e docparse.Element
		e.Category = category
		e.Content.Text = text
		return e
	}
	return []docparse.Element{
		el("heading1", "탐구 계획서"),
		el("paragraph", "등반 자석 탐구 계획"),
		el("table", "학번 20261234 성명 홍길동"),
		el("heading1", "탐구 문제"),
		el("paragraph", "자석은 왜 벽을 오르는가?"),
		el("heading1", "가설"),
		el("paragraph", "진동이 마찰을 이긴다."),
	}, nil
}

type sentMail struct {
	to, subject, body string
	png               []byte
}

type fakeSender struct {
	sent []sentMail
}

func (f *fakeSender) Send(to, subject, markdown string, inlinePNG []byte) error {
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: markdown, png: inlinePNG})
	return nil
}

func testBanks() map[string][]model.DiagnosticQuestion {
	ai := make([]model.DiagnosticQuestion, 3)
	for i := range ai {
		ai[i] = model.DiagnosticQuestion{
			Number:  i + 1,
			Kind:    model.KindChoice,
			Problem: "AI 문항",
			Choices: []string{"①", "②", "③", "④"},
			Answer:  2,
			Domain:  grader.Domains[i%len(grader.Domains)],
		}
	}
	thermal := make([]model.DiagnosticQuestion, 2)
	for i := range thermal {
		thermal[i] = model.DiagnosticQuestion{
			Number:   i + 1,
			Kind:     model.KindText,
			Problem:  "열물리 문항",
			Standard: "평가 기준",
		}
	}
	return map[string][]model.DiagnosticQuestion{"ai": ai, "thermal": thermal}
}

type fixture struct {
	server *httptest.Server
	client *http.Client
	store  *store.Store
	mailer *fakeSender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	if err := appI18n.Init("ko"); err != nil {
		t.Fatalf("i18n init: %v", err)
	}

	st, err := store.New("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	fake := &fakeLLM{reply: "좋은 생각이에요."}
	svc, err := wizard.New(fake, fakeParser{}, st, t.TempDir())
	if err != nil {
		t.Fatalf("wizard: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	mailer := &fakeSender{}
	h := New(st, svc, grader.New(fake, st), mailer, testBanks(), Config{EvaluatorHash: string(hash)})

	r := chi.NewRouter()
	r.Use(appI18n.Middleware("ko"))
	h.Routes(r)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &fixture{
		server: server,
		client: &http.Client{Jar: jar},
		store:  st,
		mailer: mailer,
	}
}

func (f *fixture) get(t *testing.T, path string) string {
	t.Helper()
	resp, err := f.client.Get(f.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d: %s", path, resp.StatusCode, body)
	}
	return string(body)
}

func (f *fixture) post(t *testing.T, path string, form url.Values) string {
	t.Helper()
	resp, err := f.client.PostForm(f.server.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		t.Fatalf("POST %s: status %d: %s", path, resp.StatusCode, body)
	}
	return string(body)
}

// postStatus is post without the status check, for requests that are
// expected to be rejected.
func (f *fixture) postStatus(t *testing.T, path string, form url.Values) (int, string) {
	t.Helper()
	resp, err := f.client.PostForm(f.server.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func (f *fixture) uploadPlan(t *testing.T) {
	t.Helper()
	var buf strings.Builder
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("document", "plan.pdf")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	fmt.Fprint(fw, "%PDF-1.4 fake")
	mw.Close()

	resp, err := f.client.Post(f.server.URL+"/wizard/upload", mw.FormDataContentType(), strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		t.Fatalf("upload: status %d", resp.StatusCode)
	}
}

func TestWizardFullFlow(t *testing.T) {
	f := newFixture(t)

	body := f.get(t, "/wizard")
	if !strings.Contains(body, "학번") {
		t.Fatalf("start page missing identity form: %s", body)
	}

	body = f.post(t, "/wizard/start", url.Values{
		"student_number": {"20261234"}, "name": {"홍길동"}, "email": {"hong@school.kr"},
	})
	if !strings.Contains(body, "동의") {
		t.Fatalf("expected disclaimer, got: %s", body)
	}

	f.post(t, "/wizard/agree", nil)
	f.uploadPlan(t)

	body = f.get(t, "/wizard")
	if !strings.Contains(body, "자석은 왜 벽을 오르는가?") {
		t.Fatalf("parsed problem not shown: %s", body)
	}

	body = f.post(t, "/wizard/upload/next", url.Values{
		"topic":      {"climbing magnet"},
		"problem":    {"자석은 왜 벽을 오르는가?"},
		"hypothesis": {"진동이 마찰을 이긴다."},
	})
	if !strings.Contains(body, "좋은 생각이에요.") {
		t.Fatalf("opening tutor turn not shown: %s", body)
	}

	// Four stages: chat once, then advance.
	for i := 0; i < model.NumStages; i++ {
		f.post(t, "/wizard/chat", url.Values{"message": {"제 생각은 이렇습니다."}})
		f.post(t, "/wizard/next", nil)
	}

	body = f.get(t, "/wizard")
	if !strings.Contains(body, "요약된 피드백") {
		t.Fatalf("overall page missing summaries: %s", body)
	}

	f.post(t, "/wizard/email", nil)
	if len(f.mailer.sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(f.mailer.sent))
	}
	if f.mailer.sent[0].to != "hong@school.kr" {
		t.Errorf("mail to %q", f.mailer.sent[0].to)
	}

	body = f.post(t, "/wizard/overall/next", nil)
	if !strings.Contains(body, "설문") {
		t.Fatalf("expected survey page: %s", body)
	}

	form := url.Values{}
	for i := 1; i <= 22; i++ {
		form.Set(fmt.Sprintf("q%d", i), "4")
	}
	for i := 23; i <= 26; i++ {
		form.Set(fmt.Sprintf("q%d", i), "자유 응답")
	}
	body = f.post(t, "/wizard/survey", form)
	if !strings.Contains(body, "감사") {
		t.Fatalf("expected closing page: %s", body)
	}

	rec, err := f.store.GetInquiryRecord(1)
	if err != nil || rec == nil {
		t.Fatalf("record not persisted: %v", err)
	}
	if rec.Topic != "climbing magnet" {
		t.Errorf("topic = %q", rec.Topic)
	}
	for i := 0; i < model.NumStages; i++ {
		if rec.Conversations[i] == "" {
			t.Errorf("conversation %d empty", i+1)
		}
		if rec.Advice[i] != "요약된 피드백" {
			t.Errorf("advice %d = %q", i+1, rec.Advice[i])
		}
	}
	if rec.Survey[0] != "4" || rec.Survey[25] != "자유 응답" {
		t.Errorf("survey = %v", rec.Survey)
	}
}

func TestWizardStartRejectsBadEmail(t *testing.T) {
	f := newFixture(t)
	f.get(t, "/wizard")
	body := f.post(t, "/wizard/start", url.Values{
		"student_number": {"1"}, "name": {"홍길동"}, "email": {"bogus"},
	})
	if !strings.Contains(body, "이메일") || !strings.Contains(body, "학번") {
		t.Fatalf("expected start page with flash: %s", body)
	}
}

func TestChoiceTestFlow(t *testing.T) {
	f := newFixture(t)

	body := f.get(t, "/test/ai")
	if !strings.Contains(body, "AI 역량 진단 평가") {
		t.Fatalf("start page: %s", body)
	}

	body = f.post(t, "/test/ai/start", url.Values{"name": {"홍길동"}, "email": {"hong@school.kr"}})
	if !strings.Contains(body, "문항 1 / 3") {
		t.Fatalf("first question: %s", body)
	}
	if !strings.Contains(body, "모르겠음") {
		t.Fatal("don't-know escape missing")
	}

	body = f.post(t, "/test/ai/answer", url.Values{"choice": {"2"}, "action": {"back"}})
	if !strings.Contains(body, "첫 번째 문항입니다") {
		t.Fatalf("expected first-question warning: %s", body)
	}

	f.post(t, "/test/ai/answer", url.Values{"choice": {"2"}, "action": {"next"}})
	f.post(t, "/test/ai/answer", url.Values{"choice": {"5"}, "action": {"next"}})
	body = f.post(t, "/test/ai/answer", url.Values{"action": {"next"}})
	if !strings.Contains(body, "평가가 완료되었습니다") {
		t.Fatalf("expected done page: %s", body)
	}

	res, err := f.store.GetDiagnosticResult(1)
	if err != nil || res == nil {
		t.Fatalf("result not persisted: %v", err)
	}
	if res.Answers[0] != "2" || res.Answers[1] != "0" || res.Answers[2] != "-1" {
		t.Errorf("answers = %v", res.Answers)
	}
}

func TestTextTestGradesAndMails(t *testing.T) {
	f := newFixture(t)

	f.get(t, "/test/thermal")
	f.post(t, "/test/thermal/start", url.Values{"name": {"홍길동"}, "email": {"hong@school.kr"}})
	f.post(t, "/test/thermal/answer", url.Values{"answer": {"입자의 충돌로 전달된다"}, "action": {"next"}})
	body := f.post(t, "/test/thermal/answer", url.Values{"answer": {"밀도 차이로 순환한다"}, "action": {"next"}})
	if !strings.Contains(body, "이메일로 발송") {
		t.Fatalf("expected done page: %s", body)
	}

	res, err := f.store.GetDiagnosticResult(1)
	if err != nil || res == nil {
		t.Fatalf("result not persisted: %v", err)
	}
	if res.TotalFeedback != "훌륭합니다" {
		t.Errorf("total feedback = %q", res.TotalFeedback)
	}
	if len(f.mailer.sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(f.mailer.sent))
	}
	if !strings.Contains(f.mailer.sent[0].subject, "열물리") {
		t.Errorf("subject = %q", f.mailer.sent[0].subject)
	}
}

func TestLanguageSwitchTranslatesChrome(t *testing.T) {
	f := newFixture(t)

	body := f.get(t, "/test/ai")
	if !strings.Contains(body, ">시작하기<") {
		t.Fatalf("expected Korean start button: %s", body)
	}

	body = f.get(t, "/test/ai?lang=en")
	if !strings.Contains(body, ">Start<") {
		t.Fatalf("expected English start button: %s", body)
	}
}

func TestConcurrentFinalAnswerSubmitsOnce(t *testing.T) {
	f := newFixture(t)

	f.post(t, "/test/thermal/start", url.Values{"name": {"홍길동"}, "email": {"hong@school.kr"}})
	f.post(t, "/test/thermal/answer", url.Values{"answer": {"입자의 충돌로 전달된다"}, "action": {"next"}})

	// A double-submit of the last answer must produce a single result row.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.client.PostForm(f.server.URL+"/test/thermal/answer",
				url.Values{"answer": {"밀도 차이로 순환한다"}, "action": {"next"}})
			if err != nil {
				t.Errorf("POST answer: %v", err)
				return
			}
			resp.Body.Close()
		}()
	}
	wg.Wait()

	results, err := f.store.ListDiagnosticResults("thermal")
	if err != nil {
		t.Fatalf("list results: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("persisted %d results, want 1", len(results))
	}
	if len(f.mailer.sent) != 1 {
		t.Errorf("sent %d mails, want 1", len(f.mailer.sent))
	}
}

func TestReviewRequiresLogin(t *testing.T) {
	f := newFixture(t)

	body := f.get(t, "/review/records")
	if !strings.Contains(body, "로그인") {
		t.Fatalf("expected login redirect: %s", body)
	}

	status, body := f.postStatus(t, "/review/login", url.Values{"password": {"wrong"}})
	if status != http.StatusUnauthorized {
		t.Fatalf("wrong password: status %d", status)
	}
	if !strings.Contains(body, "비밀번호가 올바르지 않습니다") {
		t.Fatalf("expected login error: %s", body)
	}

	body = f.post(t, "/review/login", url.Values{"password": {"secret"}})
	if !strings.Contains(body, "탐구 기록 평가") {
		t.Fatalf("expected records page: %s", body)
	}
}

func TestReviewGradeChoiceResult(t *testing.T) {
	f := newFixture(t)

	// A finished multiple-choice sitting to grade.
	f.post(t, "/test/ai/start", url.Values{"name": {"홍길동"}, "email": {"hong@school.kr"}})
	f.post(t, "/test/ai/answer", url.Values{"choice": {"2"}, "action": {"next"}})
	f.post(t, "/test/ai/answer", url.Values{"choice": {"3"}, "action": {"next"}})
	f.post(t, "/test/ai/answer", url.Values{"choice": {"5"}, "action": {"next"}})

	f.post(t, "/review/login", url.Values{"password": {"secret"}})
	body := f.get(t, "/review/tests?variant=ai")
	if !strings.Contains(body, "홍길동") {
		t.Fatalf("result missing from list: %s", body)
	}

	body = f.post(t, "/review/tests/1/grade", nil)
	if !strings.Contains(body, "종합") {
		t.Fatalf("expected graded detail page: %s", body)
	}

	res, err := f.store.GetDiagnosticResult(1)
	if err != nil || res == nil {
		t.Fatalf("result: %v", err)
	}
	if res.CorrectCount != 1 || res.IncorrectCount != 1 || res.UnknownCount != 1 {
		t.Errorf("tallies = %d/%d/%d", res.CorrectCount, res.IncorrectCount, res.UnknownCount)
	}

	if len(f.mailer.sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(f.mailer.sent))
	}
	if f.mailer.sent[0].png == nil {
		t.Error("mail missing inline chart")
	}
	if !strings.Contains(f.mailer.sent[0].subject, "AI 역량 평가 결과") {
		t.Errorf("subject = %q", f.mailer.sent[0].subject)
	}
}
