// Package llm wraps the OpenAI-compatible chat-completion API used for
// stage tutoring, stage summaries and diagnostic grading.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/physlab/inquiry-tutor/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// ErrMalformedGrade marks a grading response the API returned but that did
// not carry a complete, valid tool call. Callers must not persist anything
// when they see it.
var ErrMalformedGrade = errors.New("malformed grading response")

// DomainFeedback is the structured feedback for a multiple-choice run,
// one paragraph per competence domain plus an overall assessment.
type DomainFeedback struct {
	Literacy      string `json:"literacy"`
	Understanding string `json:"understanding"`
	Data          string `json:"data"`
	Application   string `json:"application"`
	Overall       string `json:"overall"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Chat sends a full conversation and returns the assistant's reply.
func (c *Client) Chat(ctx context.Context, turns []model.Turn) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    string(t.Role),
			Content: t.Content,
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Complete sends a system prompt and a single user prompt and returns the
// assistant's reply. Used for stage summaries.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.Chat(ctx, []model.Turn{
		{Role: model.RoleSystem, Content: systemPrompt},
		{Role: model.RoleUser, Content: userPrompt},
	})
}

// gradeTool builds the function schema the grader must call: a score in
// 0..3 and a feedback string per question, plus the overall pair.
func gradeTool(n int) openai.Tool {
	properties := map[string]any{}
	required := make([]string, 0, 2*n+2)

	for i := 1; i <= n; i++ {
		properties[fmt.Sprintf("score%d", i)] = map[string]any{
			"type":        "integer",
			"enum":        []int{0, 1, 2, 3},
			"description": fmt.Sprintf("Score for question %d", i),
		}
		required = append(required, fmt.Sprintf("score%d", i))
	}
	properties["all_score"] = map[string]any{
		"type":        "integer",
		"description": "Score for overall test",
	}
	required = append(required, "all_score")
	for i := 1; i <= n; i++ {
		properties[fmt.Sprintf("feed%d", i)] = map[string]any{
			"type":        "string",
			"description": fmt.Sprintf("Feedback for question %d", i),
		}
		required = append(required, fmt.Sprintf("feed%d", i))
	}
	properties["overall"] = map[string]any{
		"type":        "string",
		"description": "Feedback for overall test",
	}
	required = append(required, "overall")

	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        "get_feedback",
			Description: "Get feedbacks about the diagnostic test",
			Parameters: map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		},
	}
}

// GradeTest asks for a structured grading of n free-text answers. The
// response must arrive as a get_feedback tool call whose arguments carry
// every score and feedback field; anything less is ErrMalformedGrade.
func (c *Client) GradeTest(ctx context.Context, systemPrompt, userPrompt string, n int) (*model.TestGrade, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Tools: []openai.Tool{gradeTool(n)},
	})
	if err != nil {
		return nil, fmt.Errorf("LLM grading API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices for grading")
	}

	args, err := toolArguments(resp.Choices[0].Message, "get_feedback")
	if err != nil {
		return nil, err
	}
	return parseGrade(args, n)
}

// GradeDomains asks for per-domain feedback on a multiple-choice run.
func (c *Client) GradeDomains(ctx context.Context, systemPrompt, userPrompt string) (*DomainFeedback, error) {
	tool := openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        "get_feedback",
			Description: "Get feedbacks about the diagnostic test for AI competence.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"literacy":      map[string]any{"type": "string", "description": "Feedback for AI literacy"},
					"understanding": map[string]any{"type": "string", "description": "Feedback for AI understanding"},
					"data":          map[string]any{"type": "string", "description": "Feedback for Data understanding"},
					"application":   map[string]any{"type": "string", "description": "Feedback for application of AI"},
					"overall":       map[string]any{"type": "string", "description": "Feedback for overall test"},
				},
				"required": []string{"literacy", "understanding", "data", "application", "overall"},
			},
		},
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Tools: []openai.Tool{tool},
	})
	if err != nil {
		return nil, fmt.Errorf("LLM domain grading API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices for domain grading")
	}

	args, err := toolArguments(resp.Choices[0].Message, "get_feedback")
	if err != nil {
		return nil, err
	}
	var fb DomainFeedback
	if err := json.Unmarshal(args, &fb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGrade, err)
	}
	if fb.Literacy == "" || fb.Understanding == "" || fb.Data == "" || fb.Application == "" || fb.Overall == "" {
		return nil, fmt.Errorf("%w: missing domain feedback field", ErrMalformedGrade)
	}
	return &fb, nil
}

// toolArguments extracts the raw argument JSON of the named tool call.
// Multiple calls to the same function are merged, later calls winning.
func toolArguments(msg openai.ChatCompletionMessage, name string) (json.RawMessage, error) {
	if len(msg.ToolCalls) == 0 {
		return nil, fmt.Errorf("%w: no tool call in response", ErrMalformedGrade)
	}
	merged := map[string]json.RawMessage{}
	found := false
	for _, tc := range msg.ToolCalls {
		if tc.Function.Name != name {
			continue
		}
		var part map[string]json.RawMessage
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &part); err != nil {
			return nil, fmt.Errorf("%w: parse tool arguments: %v", ErrMalformedGrade, err)
		}
		for k, v := range part {
			merged[k] = v
		}
		found = true
	}
	if !found {
		return nil, fmt.Errorf("%w: no %s tool call in response", ErrMalformedGrade, name)
	}
	return json.Marshal(merged)
}

func parseGrade(args json.RawMessage, n int) (*model.TestGrade, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(args, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGrade, err)
	}

	grade := &model.TestGrade{
		Scores:   make([]int, n),
		Feedback: make([]string, n),
	}
	for i := 1; i <= n; i++ {
		raw, ok := fields[fmt.Sprintf("score%d", i)]
		if !ok {
			return nil, fmt.Errorf("%w: missing score%d", ErrMalformedGrade, i)
		}
		var score int
		if err := json.Unmarshal(raw, &score); err != nil {
			return nil, fmt.Errorf("%w: score%d: %v", ErrMalformedGrade, i, err)
		}
		if score < 0 || score > 3 {
			return nil, fmt.Errorf("%w: score%d out of range: %d", ErrMalformedGrade, i, score)
		}
		grade.Scores[i-1] = score

		raw, ok = fields[fmt.Sprintf("feed%d", i)]
		if !ok {
			return nil, fmt.Errorf("%w: missing feed%d", ErrMalformedGrade, i)
		}
		if err := json.Unmarshal(raw, &grade.Feedback[i-1]); err != nil {
			return nil, fmt.Errorf("%w: feed%d: %v", ErrMalformedGrade, i, err)
		}
	}

	raw, ok := fields["all_score"]
	if !ok {
		return nil, fmt.Errorf("%w: missing all_score", ErrMalformedGrade)
	}
	var allScore int
	if err := json.Unmarshal(raw, &allScore); err != nil {
		return nil, fmt.Errorf("%w: all_score: %v", ErrMalformedGrade, err)
	}
	// Aggregate is normalized by question count, kept to two decimals.
	grade.TotalScore = math.Round(float64(allScore)/float64(n)*100) / 100

	raw, ok = fields["overall"]
	if !ok {
		return nil, fmt.Errorf("%w: missing overall", ErrMalformedGrade)
	}
	if err := json.Unmarshal(raw, &grade.TotalFeedback); err != nil {
		return nil, fmt.Errorf("%w: overall: %v", ErrMalformedGrade, err)
	}

	slog.Debug("parsed grading response", "questions", n, "total_score", grade.TotalScore)
	return grade, nil
}
