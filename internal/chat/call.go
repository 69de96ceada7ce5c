// Package chat turns free-text messages into structured task calls and runs
// them against the task store.
package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/amirbrooks/tasker-chat/internal/store"
)

// Function names of the structured-call vocabulary.
const (
	FuncAddTask      = "addTask"
	FuncViewTasks    = "viewTasks"
	FuncCompleteTask = "completeTask"
	FuncDeleteTask   = "deleteTask"
	FuncDeleteAll    = "deleteAll"
)

var (
	ErrTranslatorUnavailable = errors.New("translator unavailable")
	ErrTranslationInvalid    = errors.New("translation invalid")
	// ErrDeclined is returned by a translator that does not handle the
	// message; Chain moves on to the next translator.
	ErrDeclined     = errors.New("message declined")
	ErrEmptyMessage = errors.New("message is required")
)

// Call is one validated structured call. Description is set for addTask,
// Ref for completeTask and deleteTask.
type Call struct {
	Function    string
	Description string
	Ref         store.Ref
}

func AddTask(description string) Call {
	return Call{Function: FuncAddTask, Description: strings.TrimSpace(description)}
}

func ViewTasks() Call { return Call{Function: FuncViewTasks} }

func CompleteTask(ref store.Ref) Call { return Call{Function: FuncCompleteTask, Ref: ref} }

func DeleteTask(ref store.Ref) Call { return Call{Function: FuncDeleteTask, Ref: ref} }

func DeleteAll() Call { return Call{Function: FuncDeleteAll} }

// Translation is what a translator produces: either a call or a short
// in-app reply (greetings, off-topic requests). Exactly one is set.
type Translation struct {
	Call             *Call
	AssistantMessage string
}

func CallTranslation(c Call) Translation { return Translation{Call: &c} }

func (c Call) MarshalJSON() ([]byte, error) {
	params := map[string]any{}
	switch c.Function {
	case FuncAddTask:
		params["description"] = c.Description
	case FuncCompleteTask, FuncDeleteTask:
		if c.Ref.IsNumeric() {
			params["task_ref"] = c.Ref.DisplayID
		} else {
			params["task_ref"] = c.Ref.Text
		}
	}
	return json.Marshal(struct {
		Function   string         `json:"function"`
		Parameters map[string]any `json:"parameters"`
	}{c.Function, params})
}

func (c *Call) UnmarshalJSON(b []byte) error {
	parsed, err := ParseCall(b)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Validate checks c against the vocabulary and its parameter requirements.
func (c Call) Validate() error {
	switch c.Function {
	case FuncAddTask:
		if strings.TrimSpace(c.Description) == "" {
			return fmt.Errorf("%w: addTask requires a description", ErrTranslationInvalid)
		}
	case FuncCompleteTask, FuncDeleteTask:
		if !c.Ref.IsNumeric() && strings.TrimSpace(c.Ref.Text) == "" {
			return fmt.Errorf("%w: %s requires task_ref", ErrTranslationInvalid, c.Function)
		}
	case FuncViewTasks, FuncDeleteAll:
	case "":
		return fmt.Errorf("%w: missing function", ErrTranslationInvalid)
	default:
		return fmt.Errorf("%w: unknown function %q", ErrTranslationInvalid, c.Function)
	}
	return nil
}

type wireCall struct {
	Function   string                     `json:"function"`
	Parameters map[string]json.RawMessage `json:"parameters"`
}

// ParseCall decodes {"function": ..., "parameters": {...}} and validates it.
// task_id is accepted as an alias of task_ref.
func ParseCall(raw []byte) (Call, error) {
	var w wireCall
	if err := json.Unmarshal(raw, &w); err != nil {
		return Call{}, fmt.Errorf("%w: %v", ErrTranslationInvalid, err)
	}
	c := Call{Function: strings.TrimSpace(w.Function)}
	switch c.Function {
	case FuncAddTask:
		desc, err := stringParam(w.Parameters, "description", "title")
		if err != nil {
			return Call{}, err
		}
		c.Description = strings.TrimSpace(desc)
	case FuncCompleteTask, FuncDeleteTask:
		ref, err := refParam(w.Parameters)
		if err != nil {
			return Call{}, err
		}
		c.Ref = ref
	}
	if err := c.Validate(); err != nil {
		return Call{}, err
	}
	return c, nil
}

// ParseTranslation reads raw model output. Surrounding code fences are
// tolerated; anything else that is not a call or an assistant_message object
// is ErrTranslationInvalid.
func ParseTranslation(content string) (Translation, error) {
	body := stripCodeFence(content)
	if body == "" {
		return Translation{}, fmt.Errorf("%w: empty response", ErrTranslationInvalid)
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &probe); err != nil {
		return Translation{}, fmt.Errorf("%w: %v", ErrTranslationInvalid, err)
	}
	if _, hasFunc := probe["function"]; !hasFunc {
		if raw, ok := probe["assistant_message"]; ok {
			var msg string
			if err := json.Unmarshal(raw, &msg); err != nil || strings.TrimSpace(msg) == "" {
				return Translation{}, fmt.Errorf("%w: assistant_message must be a non-empty string", ErrTranslationInvalid)
			}
			return Translation{AssistantMessage: strings.TrimSpace(msg)}, nil
		}
	}
	c, err := ParseCall([]byte(body))
	if err != nil {
		return Translation{}, err
	}
	return CallTranslation(c), nil
}

func stringParam(params map[string]json.RawMessage, names ...string) (string, error) {
	for _, name := range names {
		raw, ok := params[name]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: %s must be a string", ErrTranslationInvalid, name)
		}
		return s, nil
	}
	return "", fmt.Errorf("%w: missing parameter %s", ErrTranslationInvalid, names[0])
}

func refParam(params map[string]json.RawMessage) (store.Ref, error) {
	var raw json.RawMessage
	for _, name := range []string{"task_ref", "task_id"} {
		if r, ok := params[name]; ok {
			raw = r
			break
		}
	}
	if raw == nil {
		return store.Ref{}, fmt.Errorf("%w: missing parameter task_ref", ErrTranslationInvalid)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return store.Ref{}, fmt.Errorf("%w: task_ref: %v", ErrTranslationInvalid, err)
	}
	switch val := v.(type) {
	case json.Number:
		f, err := val.Float64()
		if err != nil || f < 1 || f != math.Trunc(f) || f > math.MaxInt32 {
			return store.Ref{}, fmt.Errorf("%w: task_ref must be a positive integer, got %s", ErrTranslationInvalid, val)
		}
		return store.NumberRef(int(f)), nil
	case string:
		ref, err := store.ParseRef(val)
		if err != nil {
			return store.Ref{}, fmt.Errorf("%w: %v", ErrTranslationInvalid, err)
		}
		return ref, nil
	default:
		return store.Ref{}, fmt.Errorf("%w: task_ref must be an integer or text", ErrTranslationInvalid)
	}
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
