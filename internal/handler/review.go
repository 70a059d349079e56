package handler

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/physlab/inquiry-tutor/internal/chart"
	"github.com/physlab/inquiry-tutor/internal/grader"
	"github.com/physlab/inquiry-tutor/internal/handler/views"
	appI18n "github.com/physlab/inquiry-tutor/internal/i18n"
	"github.com/physlab/inquiry-tutor/internal/model"
)

// requireEvaluator gates the review pages behind the shared password.
func (h *Handler) requireEvaluator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(evaluatorCookieName)
		if err != nil || cookie.Value == "" {
			http.Redirect(w, r, "/review/login", http.StatusSeeOther)
			return
		}
		h.mu.Lock()
		_, ok := h.evaluators[cookie.Value]
		h.mu.Unlock()
		if !ok {
			http.Redirect(w, r, "/review/login", http.StatusSeeOther)
			return
		}
		ctx := model.ContextWithEvaluator(r.Context())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	render(w, r, "login.html", views.LoginPage{Title: appI18n.T(r.Context(), "ReviewRecords")})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	password := r.FormValue("password")
	if err := bcrypt.CompareHashAndPassword([]byte(h.config.EvaluatorHash), []byte(password)); err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		render(w, r, "login.html", views.LoginPage{
			Title: appI18n.T(r.Context(), "ReviewRecords"),
			Flash: appI18n.T(r.Context(), "LoginError"),
		})
		return
	}

	token, err := generateToken()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.mu.Lock()
	h.evaluators[token] = struct{}{}
	h.mu.Unlock()

	h.setCookie(w, evaluatorCookieName, token)
	http.Redirect(w, r, "/review/records", http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(evaluatorCookieName); err == nil && cookie.Value != "" {
		h.mu.Lock()
		delete(h.evaluators, cookie.Value)
		h.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     evaluatorCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
	})
	http.Redirect(w, r, "/review/login", http.StatusSeeOther)
}

func (h *Handler) handleReviewRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.ListInquiryRecords()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	render(w, r, "records.html", views.RecordsPage{
		Title:   appI18n.T(r.Context(), "ReviewRecords"),
		Records: records,
		Count:   appI18n.Tp(r.Context(), "RecordCount", len(records)),
	})
}

func (h *Handler) handleReviewRecord(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid record ID", http.StatusBadRequest)
		return
	}
	rec, err := h.store.GetInquiryRecord(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.NotFound(w, r)
		return
	}
	render(w, r, "record.html", views.RecordPage{
		Title:  appI18n.T(r.Context(), "ReviewRecords"),
		Record: rec,
		Tabs:   stageTabs,
	})
}

func (h *Handler) handleReviewTests(w http.ResponseWriter, r *http.Request) {
	variant := r.URL.Query().Get("variant")
	if variant == "" {
		variant = "ai"
	}
	variants, err := h.store.DiagnosticVariants()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	results, err := h.store.ListDiagnosticResults(variant)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	render(w, r, "tests.html", views.TestsPage{
		Title:    appI18n.T(r.Context(), "ReviewTests"),
		Variant:  variant,
		Variants: variants,
		Results:  results,
	})
}

func (h *Handler) handleReviewTest(w http.ResponseWriter, r *http.Request) {
	res, ok := h.loadResult(w, r)
	if !ok {
		return
	}
	render(w, r, "test_detail.html", views.TestDetailPage{
		Title:  appI18n.T(r.Context(), "ReviewTests"),
		Result: res,
		Graded: res.TotalFeedback != "",
	})
}

// handleReviewGrade grades one result and mails it. Free-text results get
// the per-question breakdown; multiple-choice results get the per-domain
// feedback with the accuracy chart inlined.
func (h *Handler) handleReviewGrade(w http.ResponseWriter, r *http.Request) {
	res, ok := h.loadResult(w, r)
	if !ok {
		return
	}
	questions := h.banks[res.Variant]
	if len(questions) != len(res.Answers) {
		http.Error(w, fmt.Sprintf("question bank for %q does not match result", res.Variant), http.StatusConflict)
		return
	}

	var (
		subject string
		body    string
		png     []byte
	)
	if questions[0].Kind == model.KindChoice {
		grade, _, err := h.grader.GradeChoice(r.Context(), res, questions)
		if err != nil {
			h.renderGradeError(w, r, res, err)
			return
		}
		acc := grader.DomainAccuracy(questions, grade.Scores)
		values := make([]float64, len(grader.Domains))
		for i, domain := range grader.Domains {
			values[i] = acc[domain]
		}
		var buf bytes.Buffer
		if err := chart.AccuracyPNG(&buf, "AI 역량 평가 결과", grader.Domains[:], values); err != nil {
			slog.Error("chart render failed", "result_id", res.ID, "error", err)
		} else {
			png = buf.Bytes()
		}
		subject = fmt.Sprintf("AI 역량 평가 결과 - %s", res.Name)
		body = grade.TotalFeedback
	} else {
		grade, err := h.grader.GradeText(r.Context(), res, questions)
		if err != nil {
			h.renderGradeError(w, r, res, err)
			return
		}
		subject = fmt.Sprintf("열물리 개념 진단 평가 결과 - %s", res.Name)
		body = grader.TestGradeMarkdown(grade)
	}

	if h.mailer != nil && body != "" {
		if err := h.mailer.Send(res.Email, subject, body, png); err != nil {
			slog.Error("result mail failed", "result_id", res.ID, "error", err)
		}
	}
	http.Redirect(w, r, fmt.Sprintf("/review/tests/%d", res.ID), http.StatusSeeOther)
}

func (h *Handler) renderGradeError(w http.ResponseWriter, r *http.Request, res *model.DiagnosticResult, err error) {
	slog.Error("grading failed", "result_id", res.ID, "error", err)
	render(w, r, "test_detail.html", views.TestDetailPage{
		Title:  appI18n.T(r.Context(), "ReviewTests"),
		Result: res,
		Graded: res.TotalFeedback != "",
		Flash:  "채점에 실패했습니다. 다시 시도해 주세요.",
	})
}

func (h *Handler) loadResult(w http.ResponseWriter, r *http.Request) (*model.DiagnosticResult, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid result ID", http.StatusBadRequest)
		return nil, false
	}
	res, err := h.store.GetDiagnosticResult(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	if res == nil {
		http.NotFound(w, r)
		return nil, false
	}
	return res, true
}
