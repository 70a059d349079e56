// Package handler wires the HTTP surface: the inquiry wizard, the two
// diagnostic tests and the gated evaluator pages.
package handler

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/physlab/inquiry-tutor/internal/docparse"
	"github.com/physlab/inquiry-tutor/internal/grader"
	"github.com/physlab/inquiry-tutor/internal/handler/views"
	appI18n "github.com/physlab/inquiry-tutor/internal/i18n"
	"github.com/physlab/inquiry-tutor/internal/model"
	"github.com/physlab/inquiry-tutor/internal/store"
	"github.com/physlab/inquiry-tutor/internal/testrun"
	"github.com/physlab/inquiry-tutor/internal/wizard"
)

const (
	wizardCookieName    = "wizard_session"
	testCookieName      = "test_session"
	evaluatorCookieName = "evaluator_session"
)

// summaryAttempts bounds retries of the stage review request.
const summaryAttempts = 2

// Sender delivers results mails. A nil Sender disables mailing.
type Sender interface {
	Send(to, subject, markdown string, inlinePNG []byte) error
}

// Config holds the handler's runtime settings.
type Config struct {
	// EvaluatorHash is the bcrypt hash gating the review pages.
	EvaluatorHash string
	SecureCookies bool
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store   *store.Store
	wizard  *wizard.Service
	grader  *grader.Grader
	mailer  Sender
	banks   map[string][]model.DiagnosticQuestion
	config  Config
	wizards *wizard.Registry

	mu         sync.Mutex
	runs       map[string]*testrun.Run
	evaluators map[string]struct{}
}

// New creates a new Handler. banks maps test variant names to their
// question sets.
func New(s *store.Store, svc *wizard.Service, g *grader.Grader, mailer Sender, banks map[string][]model.DiagnosticQuestion, cfg Config) *Handler {
	return &Handler{
		store:      s,
		wizard:     svc,
		grader:     g,
		mailer:     mailer,
		banks:      banks,
		config:     cfg,
		wizards:    wizard.NewRegistry(),
		runs:       make(map[string]*testrun.Run),
		evaluators: make(map[string]struct{}),
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleIndex)

	r.Get("/wizard", h.handleWizard)
	r.Post("/wizard/start", h.handleWizardStart)
	r.Post("/wizard/agree", h.handleWizardAgree)
	r.Post("/wizard/upload", h.handleWizardUpload)
	r.Post("/wizard/upload/next", h.handleWizardUploadNext)
	r.Post("/wizard/chat", h.handleWizardChat)
	r.Post("/wizard/next", h.handleWizardNext)
	r.Post("/wizard/email", h.handleWizardEmail)
	r.Post("/wizard/overall/next", h.handleWizardOverallNext)
	r.Post("/wizard/survey", h.handleWizardSurvey)

	r.Get("/test/{variant}", h.handleTestStart)
	r.Post("/test/{variant}/start", h.handleTestBegin)
	r.Get("/test/{variant}/question", h.handleTestQuestion)
	r.Post("/test/{variant}/answer", h.handleTestAnswer)
	r.Get("/test/{variant}/done", h.handleTestDone)

	r.Route("/review", func(r chi.Router) {
		r.Get("/login", h.handleLoginPage)
		r.Post("/login", h.handleLogin)
		r.Get("/logout", h.handleLogout)
		r.Group(func(r chi.Router) {
			r.Use(h.requireEvaluator)
			r.Get("/records", h.handleReviewRecords)
			r.Get("/records/{id}", h.handleReviewRecord)
			r.Get("/tests", h.handleReviewTests)
			r.Get("/tests/{id}", h.handleReviewTest)
			r.Post("/tests/{id}/grade", h.handleReviewGrade)
		})
	})
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
}

func render(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.Render(r.Context(), w, name, data); err != nil {
		slog.Error("render error", "template", name, "error", err)
	}
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	render(w, r, "index.html", views.MessagePage{Title: appI18n.T(r.Context(), "AppTitle")})
}

// wizardSession returns the request's wizard session, creating one (and
// setting the cookie) when absent or expired.
func (h *Handler) wizardSession(w http.ResponseWriter, r *http.Request) (*wizard.Session, error) {
	if cookie, err := r.Cookie(wizardCookieName); err == nil && cookie.Value != "" {
		if sess := h.wizards.Get(cookie.Value); sess != nil {
			return sess, nil
		}
	}
	sess, err := h.wizards.Create()
	if err != nil {
		return nil, err
	}
	h.setCookie(w, wizardCookieName, sess.Token)
	return sess, nil
}

// visibleTurns drops the system prompt from what the learner sees.
func visibleTurns(turns []model.Turn) []model.Turn {
	out := make([]model.Turn, 0, len(turns))
	for _, t := range turns {
		if t.Role == model.RoleSystem {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (h *Handler) handleWizard(w http.ResponseWriter, r *http.Request) {
	sess, err := h.wizardSession(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sess.Lock()
	defer sess.Unlock()
	h.renderWizardStep(w, r, sess, "")
}

// renderWizardStep renders the session's current step. Stage steps with an
// empty log are seeded with the tutor's opening question first.
func (h *Handler) renderWizardStep(w http.ResponseWriter, r *http.Request, sess *wizard.Session, flash string) {
	title := appI18n.T(r.Context(), "WizardTitle")
	switch sess.Step {
	case model.StepStart:
		render(w, r, "start.html", views.StartPage{Title: title, Flash: flash})
	case model.StepDisclaimer:
		render(w, r, "disclaimer.html", views.StartPage{Title: title})
	case model.StepUpload:
		render(w, r, "upload.html", views.UploadPage{
			Title:    title,
			Flash:    flash,
			Topics:   wizard.TopicNames(),
			Topic:    sess.Topic,
			Sections: sess.Sections,
			Uploaded: sess.UploadPath != "",
		})
	case model.StepProblem, model.StepHypothesis, model.StepTheory, model.StepProcess:
		if len(sess.Turns) == 0 {
			if _, err := h.wizard.Respond(r.Context(), sess, ""); err != nil {
				slog.Error("stage opening failed", "step", sess.Step, "error", err)
				flash = "튜터 연결에 실패했습니다. 잠시 후 새로고침해 주세요."
			}
		}
		stage, _ := model.StageForStep(sess.Step)
		render(w, r, "chat.html", views.ChatPage{
			Title:     title,
			StageName: stageTabs[stage],
			Turns:     visibleTurns(sess.Turns),
			Flash:     flash,
		})
	case model.StepOverall:
		if sess.Summaries[model.StageProblem] == "" {
			if err := h.wizard.Summarize(r.Context(), sess, summaryAttempts); err != nil {
				slog.Error("summaries failed", "error", err)
				flash = "피드백 생성에 실패했습니다. 잠시 후 새로고침해 주세요."
			}
		}
		render(w, r, "overall.html", views.OverallPage{
			Title:     title,
			Summaries: sess.Summaries,
			Titles:    stageFeedbackTitles,
			Flash:     flash,
			Emailed:   sess.Emailed,
		})
	case model.StepSurvey:
		render(w, r, "survey.html", views.SurveyPage{
			Title:    title,
			Likert:   wizard.SurveyLikert,
			FreeText: wizard.SurveyFreeText,
			Flash:    flash,
		})
	default:
		http.Redirect(w, r, "/wizard", http.StatusSeeOther)
	}
}

var stageTabs = [model.NumStages]string{"탐구 질문", "가설", "배경이론", "준비물 및 탐구과정"}

var stageFeedbackTitles = [model.NumStages]string{
	"탐구 문제 피드백", "가설 피드백", "배경이론 피드백", "탐구 과정 피드백",
}

func (h *Handler) handleWizardStart(w http.ResponseWriter, r *http.Request) {
	sess, err := h.wizardSession(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sess.Lock()
	defer sess.Unlock()

	err = h.wizard.Start(sess,
		strings.TrimSpace(r.FormValue("student_number")),
		strings.TrimSpace(r.FormValue("name")),
		strings.TrimSpace(r.FormValue("email")))
	if err != nil {
		h.renderWizardStep(w, r, sess, err.Error())
		return
	}
	http.Redirect(w, r, "/wizard", http.StatusSeeOther)
}

func (h *Handler) handleWizardAgree(w http.ResponseWriter, r *http.Request) {
	sess, err := h.wizardSession(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sess.Lock()
	h.wizard.Agree(sess)
	sess.Unlock()
	http.Redirect(w, r, "/wizard", http.StatusSeeOther)
}

func (h *Handler) handleWizardUpload(w http.ResponseWriter, r *http.Request) {
	sess, err := h.wizardSession(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sess.Lock()
	defer sess.Unlock()

	file, header, err := r.FormFile("document")
	if err != nil {
		h.renderWizardStep(w, r, sess, "파일을 선택해 주세요.")
		return
	}
	defer file.Close()

	if err := h.wizard.Upload(r.Context(), sess, header.Filename, file); err != nil {
		slog.Error("upload failed", "error", err)
		h.renderWizardStep(w, r, sess, "계획서를 읽는 데 실패했습니다. 다시 시도해 주세요.")
		return
	}
	http.Redirect(w, r, "/wizard", http.StatusSeeOther)
}

func (h *Handler) handleWizardUploadNext(w http.ResponseWriter, r *http.Request) {
	sess, err := h.wizardSession(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sess.Lock()
	defer sess.Unlock()

	sections := docparse.Sections{
		Problem:    strings.TrimSpace(r.FormValue("problem")),
		Hypothesis: strings.TrimSpace(r.FormValue("hypothesis")),
		Theory:     strings.TrimSpace(r.FormValue("theory")),
		Apparatus:  strings.TrimSpace(r.FormValue("apparatus")),
		Process:    strings.TrimSpace(r.FormValue("process")),
	}
	if err := h.wizard.ConfirmUpload(sess, r.FormValue("topic"), sections); err != nil {
		h.renderWizardStep(w, r, sess, err.Error())
		return
	}
	http.Redirect(w, r, "/wizard", http.StatusSeeOther)
}

func (h *Handler) handleWizardChat(w http.ResponseWriter, r *http.Request) {
	sess, err := h.wizardSession(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sess.Lock()
	defer sess.Unlock()

	message := strings.TrimSpace(r.FormValue("message"))
	if message == "" {
		h.renderWizardStep(w, r, sess, "메시지를 입력해 주세요.")
		return
	}
	if _, err := h.wizard.Respond(r.Context(), sess, message); err != nil {
		slog.Error("chat failed", "error", err)
		h.renderWizardStep(w, r, sess, "튜터 응답에 실패했습니다. 다시 시도해 주세요.")
		return
	}
	http.Redirect(w, r, "/wizard", http.StatusSeeOther)
}

func (h *Handler) handleWizardNext(w http.ResponseWriter, r *http.Request) {
	sess, err := h.wizardSession(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sess.Lock()
	defer sess.Unlock()

	if err := h.wizard.CompleteStage(sess); err != nil {
		slog.Error("stage completion failed", "error", err)
		h.renderWizardStep(w, r, sess, "저장에 실패했습니다. 다시 시도해 주세요.")
		return
	}
	http.Redirect(w, r, "/wizard", http.StatusSeeOther)
}

func (h *Handler) handleWizardEmail(w http.ResponseWriter, r *http.Request) {
	sess, err := h.wizardSession(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sess.Lock()
	defer sess.Unlock()

	if h.mailer == nil {
		h.renderWizardStep(w, r, sess, "이메일 발송이 설정되어 있지 않습니다.")
		return
	}
	subject := fmt.Sprintf("AI 피드백 결과 - %s", sess.Name)
	if err := h.mailer.Send(sess.Email, subject, wizard.FeedbackMail(sess.Summaries), nil); err != nil {
		slog.Error("feedback mail failed", "email", sess.Email, "error", err)
		h.renderWizardStep(w, r, sess, "이메일 발송에 실패했습니다.")
		return
	}
	sess.Emailed = true
	h.renderWizardStep(w, r, sess, appI18n.T(r.Context(), "EmailSent"))
}

func (h *Handler) handleWizardOverallNext(w http.ResponseWriter, r *http.Request) {
	sess, err := h.wizardSession(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sess.Lock()
	defer sess.Unlock()

	if err := h.wizard.SaveSummaries(sess); err != nil {
		slog.Error("advice save failed", "error", err)
		h.renderWizardStep(w, r, sess, "저장에 실패했습니다. 다시 시도해 주세요.")
		return
	}
	http.Redirect(w, r, "/wizard", http.StatusSeeOther)
}

func (h *Handler) handleWizardSurvey(w http.ResponseWriter, r *http.Request) {
	sess, err := h.wizardSession(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sess.Lock()
	answers := make([]string, model.NumSurveyItems)
	for i := range answers {
		answers[i] = strings.TrimSpace(r.FormValue(fmt.Sprintf("q%d", i+1)))
	}
	if err := h.wizard.SubmitSurvey(sess, answers); err != nil {
		slog.Error("survey save failed", "error", err)
		h.renderWizardStep(w, r, sess, "저장에 실패했습니다. 다시 시도해 주세요.")
		sess.Unlock()
		return
	}
	sess.Unlock()
	h.wizards.Delete(sess.Token)

	render(w, r, "done.html", views.MessagePage{
		Title:   appI18n.T(r.Context(), "WizardTitle"),
		Message: appI18n.T(r.Context(), "SurveyThanks"),
	})
}
