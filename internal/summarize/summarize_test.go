package summarize

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeCompletionServer answers the chat-completions endpoint with a
// fixed assistant message and records the last request body.
func fakeCompletionServer(t *testing.T, reply string) (*httptest.Server, *map[string]any) {
	t.Helper()
	var lastRequest map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&lastRequest); err != nil {
			t.Errorf("decode request: %v", err)
		}
		resp := map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": reply,
				},
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
	return srv, &lastRequest
}

const goodReply = `{"title": "The Test Book", "summary": "A book about testing.", "keywords": ["testing", "go"]}`

func TestSummarize(t *testing.T) {
	srv, lastRequest := fakeCompletionServer(t, goodReply)
	defer srv.Close()

	s, err := New(Options{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	sum, err := s.Summarize(context.Background(), "Once upon a time there was a test.")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if sum.Title != "The Test Book" {
		t.Errorf("Title = %q, want %q", sum.Title, "The Test Book")
	}
	if sum.Summary != "A book about testing." {
		t.Errorf("Summary = %q", sum.Summary)
	}
	if len(sum.Keywords) != 2 || sum.Keywords[0] != "testing" {
		t.Errorf("Keywords = %v", sum.Keywords)
	}

	if got := (*lastRequest)["model"]; got != defaultModel {
		t.Errorf("request model = %v, want default %q", got, defaultModel)
	}
	msgs, ok := (*lastRequest)["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Fatalf("request messages = %v, want system plus user", (*lastRequest)["messages"])
	}
	user := msgs[1].(map[string]any)
	if !strings.Contains(user["content"].(string), "Once upon a time") {
		t.Errorf("user message does not carry the excerpt: %v", user["content"])
	}
}

func TestSummarizeFencedResponse(t *testing.T) {
	srv, _ := fakeCompletionServer(t, "```json\n"+goodReply+"\n```")
	defer srv.Close()

	s, err := New(Options{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	sum, err := s.Summarize(context.Background(), "excerpt text")
	if err != nil {
		t.Fatalf("Summarize failed on fenced JSON: %v", err)
	}
	if sum.Title != "The Test Book" {
		t.Errorf("Title = %q, want fences stripped", sum.Title)
	}
}

func TestSummarizeNonJSONResponse(t *testing.T) {
	srv, _ := fakeCompletionServer(t, "I cannot summarize this book.")
	defer srv.Close()

	s, err := New(Options{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := s.Summarize(context.Background(), "excerpt"); err == nil {
		t.Error("Summarize succeeded on prose response, want error")
	}
}

func TestSummarizeEmptyExcerpt(t *testing.T) {
	s, err := New(Options{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := s.Summarize(context.Background(), "   \n\t"); err == nil {
		t.Error("Summarize accepted a blank excerpt, want error")
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("New without an API key succeeded, want error")
	}
}

func TestParseSummary(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"plain", goodReply, false},
		{"fenced", "```json\n" + goodReply + "\n```", false},
		{"fenced no language", "```\n" + goodReply + "\n```", false},
		{"surrounding whitespace", "\n  " + goodReply + "  \n", false},
		{"prose", "here you go", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSummary(tt.content)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseSummary(%q) error = %v, wantErr %v", tt.content, err, tt.wantErr)
			}
		})
	}
}
