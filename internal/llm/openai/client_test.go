package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"contentfactory/internal/llm"
	"contentfactory/pkg/prompts"
)

func TestGenerateScript(t *testing.T) {
	tests := []struct {
		name           string
		serverResponse response
		serverStatus   int
		wantErr        bool
		wantContent    string
	}{
		{
			name: "successfulGeneration",
			serverResponse: response{
				ID: "test-123",
				Choices: []choice{
					{Message: Message{Role: "assistant", Content: "Did you know coffee was once banned?"}},
				},
			},
			serverStatus: http.StatusOK,
			wantContent:  "Did you know coffee was once banned?",
		},
		{
			name: "emptyChoices",
			serverResponse: response{
				ID:      "test-456",
				Choices: []choice{},
			},
			serverStatus: http.StatusOK,
			wantErr:      true,
		},
		{
			name: "apiError",
			serverResponse: response{
				Error: &apiError{Message: "rate limit exceeded", Type: "rate_limit"},
			},
			serverStatus: http.StatusOK,
			wantErr:      true,
		},
		{
			name:         "serverError",
			serverStatus: http.StatusInternalServerError,
			wantErr:      true,
		},
	}

	p, err := prompts.Load()
	if err != nil {
		t.Fatalf("load prompts: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if r.Header.Get("Authorization") != "Bearer test-key" {
					t.Errorf("expected Authorization header with Bearer token")
				}

				var req request
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("decode request: %v", err)
				}
				if req.Model != "gpt-4o-mini" || len(req.Messages) != 2 || req.Messages[0].Role != roleSystem {
					t.Errorf("unexpected request %+v", req)
				}

				w.WriteHeader(tt.serverStatus)
				if tt.serverStatus == http.StatusOK {
					_ = json.NewEncoder(w).Encode(tt.serverResponse)
				}
			}))
			defer server.Close()

			client := NewClient("test-key", Options{Model: "gpt-4o-mini", BaseURL: server.URL, Prompts: p})

			got, err := client.GenerateScript(context.Background(), llm.ScriptRequest{Topic: "coffee", Style: "casual", Duration: 30, WordCount: 90})
			if (err != nil) != tt.wantErr {
				t.Errorf("GenerateScript() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.wantContent {
				t.Errorf("GenerateScript() = %q, want %q", got, tt.wantContent)
			}
		})
	}
}
