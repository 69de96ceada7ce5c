package chat

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompt.yaml
var defaultPromptYAML []byte

// Prompt is the system prompt and few-shot examples sent to the model.
type Prompt struct {
	System   string    `yaml:"system"`
	Examples []Example `yaml:"examples"`
}

type Example struct {
	User  string `yaml:"user"`
	Reply string `yaml:"reply"`
}

// ParsePrompt decodes a prompt document. Every example reply must itself be
// a valid translation so the model is never shown a malformed call.
func ParsePrompt(data []byte) (Prompt, error) {
	var p Prompt
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Prompt{}, fmt.Errorf("parse prompt: %w", err)
	}
	p.System = strings.TrimSpace(p.System)
	if p.System == "" {
		return Prompt{}, fmt.Errorf("parse prompt: system prompt is empty")
	}
	for i, ex := range p.Examples {
		if _, err := ParseTranslation(ex.Reply); err != nil {
			return Prompt{}, fmt.Errorf("parse prompt: example %d: %w", i+1, err)
		}
	}
	return p, nil
}

// LoadPrompt reads a prompt document from path, or the built-in one when
// path is empty.
func LoadPrompt(path string) (Prompt, error) {
	if strings.TrimSpace(path) == "" {
		return ParsePrompt(defaultPromptYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Prompt{}, err
	}
	return ParsePrompt(data)
}

func (p Prompt) messages(user string) []openaiMessage {
	msgs := make([]openaiMessage, 0, 2+2*len(p.Examples))
	msgs = append(msgs, openaiMessage{Role: "system", Content: p.System})
	for _, ex := range p.Examples {
		msgs = append(msgs,
			openaiMessage{Role: "user", Content: ex.User},
			openaiMessage{Role: "assistant", Content: ex.Reply},
		)
	}
	return append(msgs, openaiMessage{Role: "user", Content: user})
}
