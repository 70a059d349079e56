package questions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/physlab/inquiry-tutor/internal/model"

	"github.com/xuri/excelize/v2"
)

func writeJSON(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bank.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadJSONText(t *testing.T) {
	path := writeJSON(t, `[
		{"problem": "엔트로피를 설명하시오", "standard": "정의 포함", "domain": "물리적 이해"},
		{"problem": "열평형이란?", "standard": "온도 개념 포함", "domain": "물리적 이해"}
	]`)

	qs, err := Load(path, model.KindText)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(qs))
	}
	if qs[0].Number != 1 || qs[1].Number != 2 {
		t.Errorf("questions not numbered in order: %d, %d", qs[0].Number, qs[1].Number)
	}
	if qs[0].Kind != model.KindText {
		t.Errorf("expected kind text, got %q", qs[0].Kind)
	}
	if qs[1].Standard != "온도 개념 포함" {
		t.Errorf("unexpected standard: %q", qs[1].Standard)
	}
}

func TestLoadJSONValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		kind    model.QuestionKind
	}{
		{"empty bank", `[]`, model.KindText},
		{"empty problem", `[{"problem": "", "standard": "s"}]`, model.KindText},
		{"missing standard", `[{"problem": "p"}]`, model.KindText},
		{"no choices", `[{"problem": "p"}]`, model.KindChoice},
		{"answer out of range", `[{"problem": "p", "choices": ["a", "b"], "answer": 3}]`, model.KindChoice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeJSON(t, tt.content)
			if _, err := Load(path, tt.kind); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadXLSXChoice(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Problem", "Choice", "Answer", "Domain", "Figure"},
		{"인공지능이란 무엇인가?", "① 기계 학습\n② 규칙 기반\n③ 둘 다\n④ 둘 다 아님", 3, "인공지능 소양", ""},
		{"다음 그림의 모델은?", "① CNN\n② RNN\n③ GAN\n④ SVM", 1, "인공지능 이해", "q2.png"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("build fixture: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "bank.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save fixture: %v", err)
	}

	qs, err := Load(path, model.KindChoice)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(qs))
	}
	if len(qs[0].Choices) != 4 {
		t.Errorf("expected 4 choices, got %v", qs[0].Choices)
	}
	if qs[0].Answer != 3 {
		t.Errorf("expected answer 3, got %d", qs[0].Answer)
	}
	if qs[1].Figure != "q2.png" {
		t.Errorf("expected figure q2.png, got %q", qs[1].Figure)
	}
	if qs[1].Domain != "인공지능 이해" {
		t.Errorf("unexpected domain: %q", qs[1].Domain)
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	if _, err := Load("bank.txt", model.KindText); err == nil {
		t.Error("expected error for unsupported extension")
	}
}
