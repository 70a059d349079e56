package wizard

// SurveyLikert holds the closing survey's rating items, answered 1 to 5.
var SurveyLikert = []string{
	"튜터의 질문은 내 탐구 계획과 관련이 있었다.",
	"튜터의 질문은 이해하기 쉬웠다.",
	"튜터의 질문에 답하면서 탐구 문제를 더 분명하게 표현할 수 있었다.",
	"튜터와의 대화는 가설을 세우는 데 도움이 되었다.",
	"튜터와의 대화는 배경이론을 정리하는 데 도움이 되었다.",
	"튜터와의 대화는 탐구 과정을 구체화하는 데 도움이 되었다.",
	"튜터의 피드백은 구체적이었다.",
	"튜터의 피드백은 공정하다고 느꼈다.",
	"튜터의 답변 속도는 적절했다.",
	"대화 분량은 적절했다.",
	"화면 구성은 이해하기 쉬웠다.",
	"다음 단계로 넘어가는 과정이 자연스러웠다.",
	"계획서 업로드와 내용 확인 과정은 편리했다.",
	"튜터가 내 답변을 잘 이해한다고 느꼈다.",
	"튜터의 답변을 신뢰할 수 있었다.",
	"튜터와의 대화가 부담스럽지 않았다.",
	"이 활동으로 탐구 설계에 대한 자신감이 높아졌다.",
	"이 활동으로 탐구 주제에 대한 흥미가 높아졌다.",
	"다른 탐구 활동에서도 AI 튜터를 사용하고 싶다.",
	"친구에게 이 활동을 추천하고 싶다.",
	"AI 튜터는 선생님의 지도를 보완할 수 있다고 생각한다.",
	"전체적으로 이 활동에 만족한다.",
}

// SurveyFreeText holds the survey's open-ended items.
var SurveyFreeText = []string{
	"활동 중 가장 도움이 되었던 점은 무엇인가요?",
	"활동 중 불편했거나 아쉬웠던 점은 무엇인가요?",
	"튜터의 질문이나 피드백 중 기억에 남는 것이 있다면 적어 주세요.",
	"이 활동을 개선하기 위한 제안이 있다면 자유롭게 적어 주세요.",
}
