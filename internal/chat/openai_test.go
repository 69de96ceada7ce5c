package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func fakeCompletions(t *testing.T, status int, content string) (*httptest.Server, *openaiRequest) {
	t.Helper()
	var got openaiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func newTestOpenAI(t *testing.T, baseURL string) *OpenAITranslator {
	t.Helper()
	tr, err := NewOpenAITranslator(OpenAIOptions{APIKey: "sk-test", BaseURL: baseURL + "/"})
	if err != nil {
		t.Fatalf("new translator: %v", err)
	}
	return tr
}

func TestOpenAITranslatorParsesCall(t *testing.T) {
	srv, got := fakeCompletions(t, http.StatusOK, `{"function":"completeTask","parameters":{"task_ref":2}}`)
	tr, err := newTestOpenAI(t, srv.URL).Translate(context.Background(), "I finished the second one")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if tr.Call == nil || tr.Call.Function != FuncCompleteTask || tr.Call.Ref.DisplayID != 2 {
		t.Fatalf("unexpected translation: %#v", tr)
	}
	if got.Model != DefaultOpenAIModel || got.MaxTokens != openaiMaxTokens {
		t.Fatalf("unexpected request: %#v", got)
	}
	if len(got.Messages) < 2 || got.Messages[0].Role != "system" {
		t.Fatalf("expected system prompt first, got %#v", got.Messages)
	}
	last := got.Messages[len(got.Messages)-1]
	if last.Role != "user" || last.Content != "I finished the second one" {
		t.Fatalf("expected user message last, got %#v", last)
	}
}

func TestOpenAITranslatorInvalidContent(t *testing.T) {
	srv, _ := fakeCompletions(t, http.StatusOK, `Sure! I'll add that for you.`)
	_, err := newTestOpenAI(t, srv.URL).Translate(context.Background(), "add milk")
	if !errors.Is(err, ErrTranslationInvalid) {
		t.Fatalf("expected ErrTranslationInvalid, got %v", err)
	}
}

func TestOpenAITranslatorHTTPErrorIsUnavailable(t *testing.T) {
	srv, _ := fakeCompletions(t, http.StatusTooManyRequests, "")
	_, err := newTestOpenAI(t, srv.URL).Translate(context.Background(), "add milk")
	if !errors.Is(err, ErrTranslatorUnavailable) {
		t.Fatalf("expected ErrTranslatorUnavailable, got %v", err)
	}
}

func TestOpenAITranslatorWithoutKey(t *testing.T) {
	tr, err := NewOpenAITranslator(OpenAIOptions{})
	if err != nil {
		t.Fatalf("new translator: %v", err)
	}
	if _, err := tr.Translate(context.Background(), "add milk"); !errors.Is(err, ErrTranslatorUnavailable) {
		t.Fatalf("expected ErrTranslatorUnavailable, got %v", err)
	}
}

func TestDefaultPromptExamplesAreValid(t *testing.T) {
	p, err := LoadPrompt("")
	if err != nil {
		t.Fatalf("load prompt: %v", err)
	}
	if p.System == "" || len(p.Examples) == 0 {
		t.Fatalf("expected system prompt and examples, got %#v", p)
	}
	if _, err := ParsePrompt([]byte("system: ok\nexamples:\n  - user: hi\n    reply: hello\n")); err == nil {
		t.Fatalf("expected an invalid example reply to be rejected")
	}
}
