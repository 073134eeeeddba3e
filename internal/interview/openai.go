package interview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const openaiAPIURL = "https://api.openai.com/v1/chat/completions"

// OpenAIClient talks to OpenAI's chat completions API. It implements
// QuestionSource, Evaluator and ReadinessClassifier, so one client serves all
// of a session's judgment calls.
type OpenAIClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// OpenAIConfig holds configuration for the OpenAI client.
type OpenAIConfig struct {
	APIKey     string
	Model      string       // e.g. "gpt-4o-mini"
	BaseURL    string       // override for tests; defaults to the public API
	HTTPClient *http.Client // shared client with connection pooling
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openaiAPIURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &OpenAIClient{
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// complete runs one non-streaming chat completion and returns the content of
// the first choice.
func (c *OpenAIClient) complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("OpenAI API error: %s - %s", resp.Status, string(respBody))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return chatResp.Choices[0].Message.Content, nil
}

// Questions generates the interview question list from the candidate's
// profile and the job description.
func (c *OpenAIClient) Questions(ctx context.Context, p Profile) ([]string, error) {
	content, err := c.complete(ctx, questionPrompt(p), 0.0, 512)
	if err != nil {
		return nil, err
	}

	questions := parseNumberedList(content)
	if len(questions) == 0 {
		return nil, fmt.Errorf("no questions in response: %q", content)
	}
	if len(questions) > QuestionCount {
		questions = questions[:QuestionCount]
	}
	return questions, nil
}

// Evaluate scores one question/answer pair. Callers degrade to NeutralScore
// on error.
func (c *OpenAIClient) Evaluate(ctx context.Context, question, answer string) (Score, error) {
	content, err := c.complete(ctx, evaluationPrompt(question, answer), 0.3, 200)
	if err != nil {
		return Score{}, err
	}

	var score Score
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &score); err != nil {
		return Score{}, fmt.Errorf("failed to parse evaluation: %w (content: %s)", err, content)
	}
	if score.Value < 1 || score.Value > 10 {
		return Score{}, fmt.Errorf("evaluation score %d out of range", score.Value)
	}
	return score, nil
}

// ClassifyReadiness judges a consent utterance. Only an unambiguous yes
// returns true; callers must treat errors as not ready.
func (c *OpenAIClient) ClassifyReadiness(ctx context.Context, answer string) (bool, error) {
	content, err := c.complete(ctx, readinessPrompt(answer), 0.0, 10)
	if err != nil {
		return false, err
	}
	verdict := strings.ToLower(strings.TrimSpace(content))
	return strings.HasPrefix(verdict, "y"), nil
}

// stripCodeFence removes a wrapping markdown code block, which models emit
// around JSON despite instructions.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// parseNumberedList extracts the non-empty lines of a numbered list, dropping
// the numbering.
func parseNumberedList(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "0123456789.)- ")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
