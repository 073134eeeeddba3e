package interview

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

// completionServer returns an httptest server that answers every chat
// completion with the given content.
func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) == 0 || req.Messages[0].Role != "system" {
			t.Error("request should lead with a system message")
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestQuestionsParsesNumberedList(t *testing.T) {
	srv := completionServer(t, `1. Tell me about your ML experience.
2) Why this role?
3. Describe a production incident you handled.`)
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	got, err := client.Questions(context.Background(), Profile{JobDescription: "ML engineer"})
	if err != nil {
		t.Fatalf("Questions: %v", err)
	}
	want := []string{
		"Tell me about your ML experience.",
		"Why this role?",
		"Describe a production incident you handled.",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Questions = %q, want %q", got, want)
	}
}

func TestQuestionsCapsAtQuestionCount(t *testing.T) {
	var lines string
	for i := 0; i < QuestionCount+5; i++ {
		lines += "1. A question.\n"
	}
	srv := completionServer(t, lines)
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	got, err := client.Questions(context.Background(), Profile{})
	if err != nil {
		t.Fatalf("Questions: %v", err)
	}
	if len(got) != QuestionCount {
		t.Errorf("got %d questions, want %d", len(got), QuestionCount)
	}
}

func TestQuestionsEmptyResponse(t *testing.T) {
	srv := completionServer(t, "   \n  ")
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	if _, err := client.Questions(context.Background(), Profile{}); err == nil {
		t.Fatal("Questions should fail on an empty list")
	}
}

func TestEvaluateParsesJSON(t *testing.T) {
	srv := completionServer(t, `{"score": 8, "reason": "Clear, specific answer."}`)
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	got, err := client.Evaluate(context.Background(), "Q", "A")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got.Value != 8 || got.Reason != "Clear, specific answer." {
		t.Errorf("Evaluate = %+v", got)
	}
}

func TestEvaluateToleratesCodeFence(t *testing.T) {
	srv := completionServer(t, "```json\n{\"score\": 4, \"reason\": \"Vague.\"}\n```")
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	got, err := client.Evaluate(context.Background(), "Q", "A")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got.Value != 4 {
		t.Errorf("score = %d, want 4", got.Value)
	}
}

func TestEvaluateRejectsOutOfRangeScore(t *testing.T) {
	srv := completionServer(t, `{"score": 15, "reason": "broken"}`)
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	if _, err := client.Evaluate(context.Background(), "Q", "A"); err == nil {
		t.Fatal("Evaluate should reject a score outside 1-10")
	}
}

func TestClassifyReadiness(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{"YES", true},
		{"yes.", true},
		{"NO", false},
		{"Not sure", false},
		{"maybe", false},
	}
	for _, tt := range tests {
		srv := completionServer(t, tt.content)
		client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
		got, err := client.ClassifyReadiness(context.Background(), "haan, ready")
		srv.Close()
		if err != nil {
			t.Fatalf("ClassifyReadiness(%q): %v", tt.content, err)
		}
		if got != tt.want {
			t.Errorf("ClassifyReadiness with %q = %v, want %v", tt.content, got, tt.want)
		}
	}
}

func TestClassifyReadinessErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	ready, err := client.ClassifyReadiness(context.Background(), "yes")
	if err == nil {
		t.Fatal("ClassifyReadiness should return the transport error")
	}
	if ready {
		t.Error("ClassifyReadiness must not report ready on error")
	}
}

func TestFixedSourceReturnsCopies(t *testing.T) {
	src := NewFixedSource()
	a, _ := src.Questions(context.Background(), Profile{})
	b, _ := src.Questions(context.Background(), Profile{})

	if len(a) != QuestionCount {
		t.Fatalf("got %d questions, want %d", len(a), QuestionCount)
	}
	a[0] = "mutated"
	if b[0] == "mutated" {
		t.Error("Questions must not share backing storage across calls")
	}
}
