// Package testrun tracks an in-progress diagnostic test sitting: which
// question is open, what has been answered so far and how much time each
// question has consumed across revisits.
package testrun

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/physlab/inquiry-tutor/internal/model"
)

// TimeLimit caps a sitting. When it runs out the test is submitted with
// whatever answers exist.
const TimeLimit = time.Hour

// ErrFirstQuestion is returned by Back on the first question.
var ErrFirstQuestion = errors.New("첫 번째 문항입니다")

// Run is one learner's pass through a question set. It lives in the session
// until Finish produces the row to persist. The registry lock only guards
// the token map; handlers serialize access per run via the mutex here.
type Run struct {
	mu sync.Mutex

	Variant   string
	Kind      model.QuestionKind
	Questions []model.DiagnosticQuestion
	Name      string
	Email     string

	StartedAt time.Time
	Current   int
	Answers   []string
	Times     []float64
	Finished  bool

	entered time.Time
	now     func() time.Time
}

// NewRun opens a sitting on the first question. Choice runs start with the
// unanswered sentinel in every slot; text runs start blank.
func NewRun(variant string, questions []model.DiagnosticQuestion, name, email string) *Run {
	r := &Run{
		Variant:   variant,
		Questions: questions,
		Name:      name,
		Email:     email,
		Answers:   make([]string, len(questions)),
		Times:     make([]float64, len(questions)),
		now:       time.Now,
	}
	if len(questions) > 0 {
		r.Kind = questions[0].Kind
	}
	if r.Kind == model.KindChoice {
		for i := range questions {
			r.Answers[i] = strconv.Itoa(model.AnswerUnanswered)
			r.Times[i] = -1
		}
	}
	r.StartedAt = r.now()
	r.entered = r.StartedAt
	return r
}

// Lock serializes handler access to the run.
func (r *Run) Lock() { r.mu.Lock() }

// Unlock releases the run.
func (r *Run) Unlock() { r.mu.Unlock() }

// Remaining returns the seconds left in the sitting, never negative.
func (r *Run) Remaining() int {
	left := TimeLimit - r.now().Sub(r.StartedAt)
	if left < 0 {
		return 0
	}
	return int(left.Seconds())
}

// Expired reports whether the time limit has run out.
func (r *Run) Expired() bool {
	return r.Remaining() == 0
}

// Question returns the open question.
func (r *Run) Question() model.DiagnosticQuestion {
	return r.Questions[r.Current]
}

// Choices returns the open question's options with the "don't know" escape
// appended last.
func (r *Run) Choices() []string {
	q := r.Question()
	choices := make([]string, 0, len(q.Choices)+1)
	choices = append(choices, q.Choices...)
	return append(choices, "모르겠음")
}

// SelectChoice records the 1-based selection for the open question. Picking
// the appended last option stores the don't-know sentinel.
func (r *Run) SelectChoice(n int) error {
	q := r.Question()
	if n < 1 || n > len(q.Choices)+1 {
		return fmt.Errorf("choice %d out of range for question %d", n, q.Number)
	}
	if n == len(q.Choices)+1 {
		r.Answers[r.Current] = strconv.Itoa(model.AnswerUnknown)
	} else {
		r.Answers[r.Current] = strconv.Itoa(n)
	}
	return nil
}

// WriteAnswer records a free-text response for the open question.
func (r *Run) WriteAnswer(text string) {
	r.Answers[r.Current] = text
}

// accrue adds the time spent on the open question since it was entered.
// Revisits accumulate; a choice question first visited replaces its
// untouched sentinel instead of adding to it.
func (r *Run) accrue() {
	spent := r.now().Sub(r.entered).Seconds()
	spent = math.Round(spent*100) / 100
	if r.Times[r.Current] < 0 {
		r.Times[r.Current] = spent
	} else {
		r.Times[r.Current] += spent
	}
	r.entered = r.now()
}

// Next moves to the following question, accruing time on the current one.
// On the last question it marks the run finished instead.
func (r *Run) Next() {
	r.accrue()
	if r.Current == len(r.Questions)-1 {
		r.Finished = true
		return
	}
	r.Current++
}

// Back moves to the previous question, accruing time on the current one.
func (r *Run) Back() error {
	if r.Current == 0 {
		return ErrFirstQuestion
	}
	r.accrue()
	r.Current--
	return nil
}

// Finish closes the sitting and builds the row to persist. Time on the open
// question is accrued first; a run cut off by the clock keeps whatever
// sentinels remain.
func (r *Run) Finish() model.DiagnosticResult {
	if !r.Finished {
		r.accrue()
		r.Finished = true
	}
	total := r.now().Sub(r.StartedAt).Seconds()
	return model.DiagnosticResult{
		Variant:   r.Variant,
		Name:      r.Name,
		Email:     r.Email,
		Date:      r.now(),
		TotalTime: math.Round(total*100) / 100,
		Answers:   append([]string(nil), r.Answers...),
		Times:     append([]float64(nil), r.Times...),
	}
}
