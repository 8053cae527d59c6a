package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var payload chatRequest
		if errDecode := json.NewDecoder(r.Body).Decode(&payload); errDecode != nil {
			t.Errorf("decode request: %v", errDecode)
		}
		if payload.Model != "openai/gpt-4o-mini" || payload.Temperature != 0.4 || payload.MaxTokens != 350 {
			t.Errorf("unexpected payload: %+v", payload)
		}
		if len(payload.Messages) != 2 || payload.Messages[0].Role != "system" || payload.Messages[1].Content != "сколько стоит сайт?" {
			t.Errorf("unexpected messages: %+v", payload.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Откройте «Пакеты»."}}]}`))
	}))
	defer server.Close()

	client := NewClient(Options{
		APIKey:      "test-key",
		Model:       "openai/gpt-4o-mini",
		BaseURL:     server.URL,
		Temperature: 0.4,
		MaxTokens:   350,
	}, server.Client())

	answer, errReply := client.Reply(context.Background(), "сколько стоит сайт?")
	if errReply != nil {
		t.Fatalf("reply: %v", errReply)
	}
	if answer != "Откройте «Пакеты»." {
		t.Fatalf("unexpected answer %q", answer)
	}
}

func TestClientDisabledWithoutKey(t *testing.T) {
	client := NewClient(Options{Model: "m", BaseURL: "http://unused"}, nil)
	if client.Enabled() {
		t.Fatalf("expected disabled client")
	}
	if _, errReply := client.Reply(context.Background(), "q"); !errors.Is(errReply, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", errReply)
	}
}

func TestClientSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":{"message":"insufficient credits","code":402}}`))
	}))
	defer server.Close()

	client := NewClient(Options{APIKey: "k", Model: "m", BaseURL: server.URL}, server.Client())
	if _, errReply := client.Reply(context.Background(), "q"); errReply == nil {
		t.Fatalf("expected api error")
	}
}
