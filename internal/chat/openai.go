package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultOpenAITimeout = 30 * time.Second

	openaiMaxTokens = 400
)

type OpenAIOptions struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	// Prompt defaults to the built-in prompt when its System field is empty.
	Prompt Prompt
	Client *http.Client
}

// OpenAITranslator asks a chat-completions endpoint to translate a message.
// Transport failures and non-2xx replies are ErrTranslatorUnavailable; a reply
// that does not decode into a call is ErrTranslationInvalid.
type OpenAITranslator struct {
	apiKey  string
	model   string
	baseURL string
	prompt  Prompt
	client  *http.Client
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

type openaiResponse struct {
	Choices []struct {
		Message openaiMessage `json:"message"`
	} `json:"choices"`
}

type openaiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func NewOpenAITranslator(opts OpenAIOptions) (*OpenAITranslator, error) {
	prompt := opts.Prompt
	if prompt.System == "" {
		p, err := LoadPrompt("")
		if err != nil {
			return nil, err
		}
		prompt = p
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultOpenAIModel
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultOpenAITimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &OpenAITranslator{
		apiKey:  strings.TrimSpace(opts.APIKey),
		model:   model,
		baseURL: baseURL,
		prompt:  prompt,
		client:  client,
	}, nil
}

func (t *OpenAITranslator) Model() string { return t.model }

func (t *OpenAITranslator) Translate(ctx context.Context, message string) (Translation, error) {
	if t.apiKey == "" {
		return Translation{}, fmt.Errorf("%w: OPENAI_API_KEY not set", ErrTranslatorUnavailable)
	}

	body, err := json.Marshal(openaiRequest{
		Model:     t.model,
		Messages:  t.prompt.messages(message),
		MaxTokens: openaiMaxTokens,
	})
	if err != nil {
		return Translation{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Translation{}, fmt.Errorf("%w: %v", ErrTranslatorUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return Translation{}, fmt.Errorf("%w: %v", ErrTranslatorUnavailable, err)
	}
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return Translation{}, fmt.Errorf("%w: read response: %v", ErrTranslatorUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr openaiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return Translation{}, fmt.Errorf("%w: OpenAI API error (%d): %s", ErrTranslatorUnavailable, resp.StatusCode, apiErr.Error.Message)
		}
		return Translation{}, fmt.Errorf("%w: OpenAI API error (%d)", ErrTranslatorUnavailable, resp.StatusCode)
	}

	var out openaiResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return Translation{}, fmt.Errorf("%w: decode response: %v", ErrTranslationInvalid, err)
	}
	if len(out.Choices) == 0 {
		return Translation{}, fmt.Errorf("%w: no choices returned", ErrTranslationInvalid)
	}
	return ParseTranslation(out.Choices[0].Message.Content)
}
