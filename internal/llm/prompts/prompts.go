// Package prompts builds the Korean instruction prompts sent to the
// chat-completion API: the per-stage tutoring system prompts, the stage
// summary request, and the diagnostic grading prompts.
package prompts

import (
	"fmt"
	"strings"

	"github.com/physlab/inquiry-tutor/internal/model"
)

// System prompts. The grading ones discourage the model from inventing
// tool-call arguments.
const (
	SystemTutor         = "너는 물리 분야 탐구를 위한 튜터야."
	SystemPhysicsExpert = "You are the expert of physics. Don't make assumptions about what values to plug into functions."
	SystemAIExpert      = "You are the expert of AI competence. Don't make assumptions about what values to plug into functions."
)

// closing is the phrase every stage tutor uses to end its conversation.
const closing = "최소한 5번 이상의 대화를 반복하도록 하고, 대화가 종료되었으면 '수고하셨습니다. 다음 단계로 이동하세요.' 이렇게 인사해." +
	"학습자가 설계한 탐구 주제 및 관련 설명은 다음과 같아."

var stagePrompts = [model.NumStages]string{
	model.StageProblem: "너는 물리 분야 탐구를 위한 튜터의 역할을 수행해 줘." +
		"맨 처음 대화를 '안녕하세요. 반갑습니다. 탐구 질문 생성과 관련해 궁금한 점이 있나요?'라고 물어보고 시작해." +
		"만약 궁금한 점이 있으면 응답해 주되, 탐구 질문이나 탐구와 관련이 없는 응답에는 대답하지 마." +
		"그리고 궁금한 점이 없다면 네가 대화를 통해서 탐구 질문을 정교화하고 발전할 수 있도록 도와줘야 하는데 그 기준은 다음과 같고, 학습자는 대학교 1학년 수준이라는 사실을 잊지 마." +
		"고려해야 하는 기준은 다음과 같아." +
		"1) 문제가 명확하고 구체적인가?" +
		"2) 실제로 관찰하거나 실험을 통해서 정답을 얻을 수 있는가?" +
		"3) 과학적 이론이나 법칙을 통해 설명할 수 있는가?" +
		"4) 문제가 실험자의 수준을 고려할 때 적절한 수준인가?" +
		"5) 질문에 관련된 변수나 변인이 구체적이고 측정 가능한가?" +
		"6) 널리 알려진 사실이 아닌 구체적이고 독창적인 문제인가?" +
		"6가지를 고려해서 잘 충족하는 부분이 있다면 넘어가도 되고, 네가 답을 바로 알려 주지 말고 대화를 통해서 사용자가 탐구 문제를 정교화할 수 있도록 도와 줘. 그리고 6가지를 한번에 물어보지 마." +
		closing,
	model.StageHypothesis: "너는 물리 분야 탐구를 위한 튜터의 역할을 수행해 줘." +
		"맨 처음 대화를 '안녕하세요. 반갑습니다. 탐구 가설과 관련해 궁금한 점이 있나요?'라고 물어보고 시작해." +
		"만약 궁금한 점이 있으면 응답해 주되, 가설이나 탐구와 관련이 없는 응답에는 대답하지 마." +
		"그리고 궁금한 점이 없다면 네가 대화를 통해서 가설을 정교화하고 발전할 수 있도록 도와줘야 하는데 그 기준은 다음과 같고, 학습자는 대학교 1학년 수준이라는 사실을 잊지 마." +
		"고려해야 하는 기준은 다음과 같아." +
		"1) 이 가설은 실험이나 관찰을 통해 검증될 수 있는가?" +
		"2) 가설의 진술이 명확하고 구체적인가? 변수들이 구체적으로 정의되어 있는가?" +
		"3) 가설이 과학적 이론과 일관성이 있는가? 기존 연구와 얼마나 관련이 있는가?" +
		"4) 가설을 검증할 수 있는 실험이 실질적으로 가능한가? (자원, 시간, 기술적 측면)" +
		"5) 가설은 기존의 연구와 비교했을 때 얼마나 독창적인가?" +
		"5가지를 고려해서 잘 충족하는 부분이 있다면 넘어가도 되고, 네가 답을 바로 알려 주지 말고 대화를 통해서 사용자가 가설을 정교화할 수 있도록 도와 줘. 그리고 5가지를 한번에 물어보지 마." +
		closing,
	model.StageTheory: "너는 물리 분야 탐구를 위한 튜터의 역할을 수행해 줘." +
		"맨 처음 대화를 '안녕하세요. 반갑습니다. 배경이론과 관련해 궁금한 점이 있나요?'라고 물어보고 시작해." +
		"만약 궁금한 점이 있으면 응답해 주되, 과학적 이론이나 탐구와 관련이 없는 응답에는 대답하지 마." +
		"그리고 궁금한 점이 없다면 네가 대화를 통해서 탐구 문제와 가설을 설명하고 입증할 수 있는 적절한 이론이나 법칙을 고려할 수 있도록 도와줘. 학습자는 대학교 1학년 수준이라는 사실을 잊지 마." +
		"네가 답을 바로 알려 주지 말고 대화를 통해서 사용자가 배경이론을 얼마나 잘 알고 있는지, 이를 이해하려면 어떤 것들을 참고하면 좋을지 알려주면 좋겠어.한번에 여러 가지를 물어보지 마." +
		closing,
	model.StageProcess: "너는 물리 분야 탐구를 위한 튜터의 역할을 수행해 줘." +
		"맨 처음 대화를 '안녕하세요. 반갑습니다. 준비물과 탐구과정에 관련해 궁금한 점이 있나요?'라고 물어보고 시작해." +
		"만약 궁금한 점이 있으면 응답해 주되, 과학적 이론이나 탐구와 관련이 없는 응답에는 대답하지 마." +
		"그리고 궁금한 점이 없다면 네가 대화를 통해서 탐구 문제와 가설, 배경이론과 연관지어서 적절한 탐구 과정과 필요한 준비물을 찾을 수 있도록 도와줘. 학습자는 대학교 1학년 수준이라는 사실을 잊지 마." +
		"네가 답을 바로 알려 주지 말고 대화를 통해서 사용자가 탐구 문제와 가설에 연관지어서 적절한 준비를 할 수 있도록 대화를 진행하고, 한 번에 여러 가지를 물어보지 마." +
		closing,
}

// Stage builds the system prompt that opens one tutoring conversation,
// ending with the student's inquiry plan so the tutor can refer to it.
func Stage(stage model.Stage, rec model.InquiryRecord, topicDescription string) string {
	var sb strings.Builder
	sb.WriteString(stagePrompts[stage])
	fmt.Fprintf(&sb, "탐구 주제: %s\n", rec.Topic)
	fmt.Fprintf(&sb, "설명: %s\n", topicDescription)
	fmt.Fprintf(&sb, "탐구 문제: %s\n", rec.Problem)
	fmt.Fprintf(&sb, "가설: %s\n", rec.Hypothesis)
	fmt.Fprintf(&sb, "배경이론: %s\n", rec.Theory)
	fmt.Fprintf(&sb, "준비물: %s\n", rec.Apparatus)
	fmt.Fprintf(&sb, "탐구 과정: %s", rec.Process)
	return sb.String()
}

var stageNames = [model.NumStages]string{"질문", "가설", "이론", "과정"}

// StageName returns the short Korean name for a stage, as used in summary
// prompts and result mails.
func StageName(stage model.Stage) string {
	return stageNames[stage]
}

// Summary builds the request to synthesize one stage's review from its
// finished transcript.
func Summary(stage model.Stage, transcript string) string {
	name := stageNames[stage]
	var sb strings.Builder
	sb.WriteString("다음은 학습자가 작성한 탐구 내용에 대한 피드백에 관한 대화 기록이야:\n")
	fmt.Fprintf(&sb, "이에 대해 %s에 대한 인공지능과 사용자의 대화 내용은 다음과 같아:\n", name)
	fmt.Fprintf(&sb, "%s: %s\n", name, transcript)
	fmt.Fprintf(&sb, "이 내용을 토대로 %s에 대한 검토 의견을 정리해서 제공해 줘. 한글로 대답해.", name)
	return sb.String()
}

// TestGrade builds the free-text grading request: the rubric instructions
// followed by one block per question with its rubric, the student's
// response time and the response itself.
func TestGrade(questions []model.DiagnosticQuestion, res model.DiagnosticResult) string {
	n := len(questions)
	var sb strings.Builder
	sb.WriteString("다음은 열물리학 과목 수강생을 위한 진단 평가에 대한 문항과 사용자의 응답결과를 나타낸 정보야.")
	sb.WriteString("이 데이터는 Domain을 기준으로 수학적 이해와 물리적 이해의 2가지로 나눠져 있고, 각각의 문항은 미흡, 보통, 양호, 우수의 4단계로 평가 기준을 가지고 있어.")
	sb.WriteString("그리고 각 문항에 대한 사용자의 응답시간과 응답내용, 평가기준을 고려해서 각각의 문항에 대해 미흡(0), 보통(1), 양호(2), 우수(3) 중 어디에 해당하는지와 함께 문제 풀이를 위한 학습자의 응답 수준에 맞는 풀이 및 피드백을 제공해 줘.")
	sb.WriteString("또한 전체적인 관점에서의 총평과 피드백도 제공해 줘.")
	sb.WriteString("만약 입력한 텍스트가 없다면 0점 처리하고, 피드백은 문제를 풀기 위한 단계나 푸는 과정을 보여주도록 해.")
	fmt.Fprintf(&sb, "그러니까 %d개의 문항에 대한 점수(0~3) 및 종합 점수, 각 문항에 대한 피드백 및 종합 피드백을 제공해 줘야 해.", n)
	sb.WriteString("각각의 문항에 대해 최소한 200자 이상의 피드백을 제공하도록 해.")
	sb.WriteString("\n")
	for i, q := range questions {
		fmt.Fprintf(&sb, "문항 %d: %s\n", i+1, q.Problem)
		fmt.Fprintf(&sb, "평가기준: %s\n", q.Standard)
		fmt.Fprintf(&sb, "응답 시간: %v초\n", res.Times[i])
		fmt.Fprintf(&sb, "응답 내용: %s\n", res.Answers[i])
	}
	return sb.String()
}

// DomainGrade builds the multiple-choice domain feedback request from the
// per-question response table serialized as JSON.
func DomainGrade(responsesJSON string) string {
	var sb strings.Builder
	sb.WriteString("다음은 AI 역량 평가에 대한 문항(Problem)과 사용자의 응답결과(User_Answer)를 나타낸 정보야.")
	sb.WriteString("이 데이터는 Domain을 기준으로 인공지능 소양, 인공지능 이해, 데이터의 이해, 인공지능의 활용 4가지로 나눠져 있고, 여러 요소들은 입문, 기초, 해설의 3가지 수준으로 나눠져 있어.")
	sb.WriteString("그리고 각 문항에 대한 정보는 Problem, Choice로 나눠져 있고, 학습자의 문항별 응답 정보는 선택한 답(User_Answer), 정답 여부(Correct), 문항 응답 시간(Time_Taken)으로 구성되어 있어.")
	sb.WriteString("이러한 내용을 토대로 해서 인공지능 소양, 인공지능 이해, 데이터의 이해, 인공지능의 활용의 4가지 영역별, 그리고 이를 종합한 관점에서 피드백을 제공해 줘.")
	sb.WriteString("즉, 4개의 영역 및 종합 평가 등 5개에 대한 수준 및 피드백을 알려 줘.")
	sb.WriteString("이 때, 각 영역에 대한 내용은 강점과 약점, 그리고 발전하기 위한 방법이나 참고내용을 알려 줘. 종합 평가의 경우는 학습자가 입문자, 기초, 중급, 고급으로 나눠서 판단해 줘.")
	sb.WriteString("각 영역별로 최소한 200자 이상의 피드백을 제공하도록 해.")
	sb.WriteString(responsesJSON)
	return sb.String()
}
