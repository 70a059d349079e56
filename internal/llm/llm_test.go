package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func validGradeArgs(n int) string {
	fields := map[string]any{
		"all_score": n * 2,
		"overall":   "전반적으로 양호합니다",
	}
	for i := 1; i <= n; i++ {
		fields[fmt.Sprintf("score%d", i)] = 2
		fields[fmt.Sprintf("feed%d", i)] = fmt.Sprintf("문항 %d 피드백", i)
	}
	raw, _ := json.Marshal(fields)
	return string(raw)
}

func TestParseGrade(t *testing.T) {
	grade, err := parseGrade(json.RawMessage(validGradeArgs(11)), 11)
	if err != nil {
		t.Fatalf("parseGrade: %v", err)
	}
	if len(grade.Scores) != 11 || len(grade.Feedback) != 11 {
		t.Fatalf("expected 11 scores and feedbacks, got %d/%d", len(grade.Scores), len(grade.Feedback))
	}
	if grade.Scores[0] != 2 {
		t.Errorf("expected score 2, got %d", grade.Scores[0])
	}
	if grade.Feedback[10] != "문항 11 피드백" {
		t.Errorf("unexpected feedback: %q", grade.Feedback[10])
	}
	// 22/11 = 2.00
	if grade.TotalScore != 2.0 {
		t.Errorf("expected total score 2.0, got %v", grade.TotalScore)
	}
	if grade.TotalFeedback != "전반적으로 양호합니다" {
		t.Errorf("unexpected total feedback: %q", grade.TotalFeedback)
	}
}

func TestParseGradeRounding(t *testing.T) {
	args := map[string]any{"all_score": 10, "overall": "ok"}
	for i := 1; i <= 3; i++ {
		args[fmt.Sprintf("score%d", i)] = 3
		args[fmt.Sprintf("feed%d", i)] = "f"
	}
	raw, _ := json.Marshal(args)
	grade, err := parseGrade(raw, 3)
	if err != nil {
		t.Fatalf("parseGrade: %v", err)
	}
	// 10/3 rounded to two decimals.
	if grade.TotalScore != 3.33 {
		t.Errorf("expected 3.33, got %v", grade.TotalScore)
	}
}

func TestParseGradeMalformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"missing score", func(m map[string]any) { delete(m, "score2") }},
		{"missing feedback", func(m map[string]any) { delete(m, "feed3") }},
		{"missing all_score", func(m map[string]any) { delete(m, "all_score") }},
		{"missing overall", func(m map[string]any) { delete(m, "overall") }},
		{"score out of range", func(m map[string]any) { m["score1"] = 4 }},
		{"negative score", func(m map[string]any) { m["score1"] = -1 }},
		{"score wrong type", func(m map[string]any) { m["score1"] = "two" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fields map[string]any
			if err := json.Unmarshal([]byte(validGradeArgs(3)), &fields); err != nil {
				t.Fatalf("unmarshal fixture: %v", err)
			}
			tt.mutate(fields)
			raw, _ := json.Marshal(fields)

			_, err := parseGrade(raw, 3)
			if !errors.Is(err, ErrMalformedGrade) {
				t.Errorf("expected ErrMalformedGrade, got %v", err)
			}
		})
	}
}

func TestToolArguments(t *testing.T) {
	msg := openai.ChatCompletionMessage{
		ToolCalls: []openai.ToolCall{
			{Function: openai.FunctionCall{Name: "get_feedback", Arguments: `{"score1": 1}`}},
			{Function: openai.FunctionCall{Name: "get_feedback", Arguments: `{"feed1": "ok"}`}},
		},
	}
	raw, err := toolArguments(msg, "get_feedback")
	if err != nil {
		t.Fatalf("toolArguments: %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal merged arguments: %v", err)
	}
	if _, ok := fields["score1"]; !ok {
		t.Error("merged arguments missing score1")
	}
	if _, ok := fields["feed1"]; !ok {
		t.Error("merged arguments missing feed1")
	}
}

func TestToolArgumentsMissing(t *testing.T) {
	_, err := toolArguments(openai.ChatCompletionMessage{Content: "plain text"}, "get_feedback")
	if !errors.Is(err, ErrMalformedGrade) {
		t.Errorf("expected ErrMalformedGrade for plain response, got %v", err)
	}

	msg := openai.ChatCompletionMessage{
		ToolCalls: []openai.ToolCall{
			{Function: openai.FunctionCall{Name: "other_tool", Arguments: `{}`}},
		},
	}
	_, err = toolArguments(msg, "get_feedback")
	if !errors.Is(err, ErrMalformedGrade) {
		t.Errorf("expected ErrMalformedGrade for wrong tool, got %v", err)
	}
}

func TestGradeToolSchema(t *testing.T) {
	tool := gradeTool(11)
	params, ok := tool.Function.Parameters.(map[string]any)
	if !ok {
		t.Fatal("parameters not a map")
	}
	props := params["properties"].(map[string]any)
	required := params["required"].([]string)

	// score1..11, feed1..11, all_score, overall.
	if len(props) != 24 {
		t.Errorf("expected 24 properties, got %d", len(props))
	}
	if len(required) != 24 {
		t.Errorf("expected 24 required fields, got %d", len(required))
	}
	for _, name := range []string{"score1", "score11", "feed1", "feed11", "all_score", "overall"} {
		if _, ok := props[name]; !ok {
			t.Errorf("schema missing property %q", name)
		}
	}
}
