package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/physlab/inquiry-tutor/internal/grader"
	"github.com/physlab/inquiry-tutor/internal/handler/views"
	appI18n "github.com/physlab/inquiry-tutor/internal/i18n"
	"github.com/physlab/inquiry-tutor/internal/model"
	"github.com/physlab/inquiry-tutor/internal/testrun"
	"github.com/physlab/inquiry-tutor/internal/wizard"
)

var variantTitles = map[string]string{
	"ai":      "AI 역량 진단 평가",
	"thermal": "열물리 개념 진단 평가",
}

func (h *Handler) run(r *http.Request) *testrun.Run {
	cookie, err := r.Cookie(testCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runs[cookie.Value]
}

func (h *Handler) handleTestStart(w http.ResponseWriter, r *http.Request) {
	variant := chi.URLParam(r, "variant")
	title, ok := variantTitles[variant]
	if !ok || len(h.banks[variant]) == 0 {
		http.NotFound(w, r)
		return
	}
	render(w, r, "test_start.html", views.TestStartPage{Title: title, Variant: variant})
}

func (h *Handler) handleTestBegin(w http.ResponseWriter, r *http.Request) {
	variant := chi.URLParam(r, "variant")
	title, ok := variantTitles[variant]
	questions := h.banks[variant]
	if !ok || len(questions) == 0 {
		http.NotFound(w, r)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	email := strings.TrimSpace(r.FormValue("email"))
	if name == "" || !wizard.ValidEmail(email) {
		render(w, r, "test_start.html", views.TestStartPage{
			Title: title, Variant: variant, Flash: "이름과 올바른 이메일을 입력해 주세요.",
		})
		return
	}

	token, err := generateToken()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	run := testrun.NewRun(variant, questions, name, email)
	h.mu.Lock()
	h.runs[token] = run
	h.mu.Unlock()

	h.setCookie(w, testCookieName, token)
	http.Redirect(w, r, fmt.Sprintf("/test/%s/question", variant), http.StatusSeeOther)
}

func (h *Handler) handleTestQuestion(w http.ResponseWriter, r *http.Request) {
	variant := chi.URLParam(r, "variant")
	run := h.run(r)
	if run == nil || run.Variant != variant {
		http.Redirect(w, r, "/test/"+variant, http.StatusSeeOther)
		return
	}
	run.Lock()
	defer run.Unlock()
	if run.Expired() {
		h.finishRun(w, r, run)
		return
	}
	h.renderQuestion(w, r, run, "")
}

func (h *Handler) renderQuestion(w http.ResponseWriter, r *http.Request, run *testrun.Run, flash string) {
	q := run.Question()
	page := views.TestQuestionPage{
		Title:     variantTitles[run.Variant],
		Variant:   run.Variant,
		Number:    q.Number,
		Total:     len(run.Questions),
		Problem:   q.Problem,
		Figure:    q.Figure,
		IsChoice:  run.Kind == model.KindChoice,
		Remaining: run.Remaining(),
		Flash:     flash,
	}
	if page.IsChoice {
		page.Choices = run.Choices()
		page.Selected = selectedValue(run)
	} else {
		page.Answer = run.Answers[run.Current]
	}
	render(w, r, "test_question.html", page)
}

// selectedValue maps the stored answer back to the radio value: the
// don't-know sentinel is the appended last option, the unanswered sentinel
// selects nothing.
func selectedValue(run *testrun.Run) string {
	answer := run.Answers[run.Current]
	switch answer {
	case strconv.Itoa(model.AnswerUnanswered):
		return ""
	case strconv.Itoa(model.AnswerUnknown):
		return strconv.Itoa(len(run.Question().Choices) + 1)
	}
	return answer
}

func (h *Handler) handleTestAnswer(w http.ResponseWriter, r *http.Request) {
	variant := chi.URLParam(r, "variant")
	run := h.run(r)
	if run == nil || run.Variant != variant {
		http.Redirect(w, r, "/test/"+variant, http.StatusSeeOther)
		return
	}
	run.Lock()
	defer run.Unlock()
	if run.Expired() {
		h.finishRun(w, r, run)
		return
	}

	if run.Kind == model.KindChoice {
		if raw := r.FormValue("choice"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				if err := run.SelectChoice(n); err != nil {
					slog.Warn("bad choice", "value", raw, "error", err)
				}
			}
		}
	} else {
		run.WriteAnswer(strings.TrimSpace(r.FormValue("answer")))
	}

	if r.FormValue("action") == "back" {
		if err := run.Back(); err != nil {
			if errors.Is(err, testrun.ErrFirstQuestion) {
				h.renderQuestion(w, r, run, appI18n.T(r.Context(), "FirstQuestion"))
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	} else {
		run.Next()
	}

	if run.Finished {
		h.finishRun(w, r, run)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/test/%s/question", variant), http.StatusSeeOther)
}

// finishRun persists the sitting and, for the free-text variant, grades and
// mails the results right away. Grading failures are logged; the raw result
// stays available for the evaluator to grade later. Callers hold the run
// lock; removing the run from the registry first makes the submit
// single-shot when two requests race to finish.
func (h *Handler) finishRun(w http.ResponseWriter, r *http.Request, run *testrun.Run) {
	if cookie, err := r.Cookie(testCookieName); err == nil {
		h.mu.Lock()
		_, live := h.runs[cookie.Value]
		delete(h.runs, cookie.Value)
		h.mu.Unlock()
		if !live {
			http.Redirect(w, r, fmt.Sprintf("/test/%s/done", run.Variant), http.StatusSeeOther)
			return
		}
	}

	res := run.Finish()
	id, err := h.store.CreateDiagnosticResult(res)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	res.ID = id

	if run.Kind == model.KindText {
		grade, err := h.grader.GradeText(r.Context(), &res, run.Questions)
		if err != nil {
			slog.Error("grading failed", "result_id", id, "error", err)
		} else if h.mailer != nil {
			subject := fmt.Sprintf("열물리 개념 진단 평가 결과 - %s", res.Name)
			if err := h.mailer.Send(res.Email, subject, grader.TestGradeMarkdown(grade), nil); err != nil {
				slog.Error("result mail failed", "result_id", id, "error", err)
			}
		}
	}

	http.Redirect(w, r, fmt.Sprintf("/test/%s/done", run.Variant), http.StatusSeeOther)
}

func (h *Handler) handleTestDone(w http.ResponseWriter, r *http.Request) {
	variant := chi.URLParam(r, "variant")
	title, ok := variantTitles[variant]
	if !ok {
		http.NotFound(w, r)
		return
	}
	message := "평가가 완료되었습니다. 수고하셨습니다."
	if variant == "thermal" {
		message = "평가가 완료되었습니다. 채점 결과는 이메일로 발송됩니다."
	}
	render(w, r, "test_done.html", views.MessagePage{Title: title, Message: message})
}
