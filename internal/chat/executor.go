package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/amirbrooks/tasker-chat/internal/store"
)

// Outcome statuses.
const (
	StatusOK        = "ok"
	StatusNotFound  = "not_found"
	StatusAmbiguous = "ambiguous"
	StatusReply     = "reply"
)

// Outcome is the terminal state of one chat request. Ambiguous and not-found
// resolutions are outcomes, not errors; neither mutates the store.
type Outcome struct {
	Status           string   `json:"status"`
	ToolRequest      *Call    `json:"tool_request,omitempty"`
	Result           any      `json:"result,omitempty"`
	AssistantMessage string   `json:"assistant_message,omitempty"`
	Choices          []Choice `json:"choices,omitempty"`
}

// Choice is one disambiguation candidate.
type Choice struct {
	ID        string `json:"id"`
	DisplayID int    `json:"display_id"`
	Title     string `json:"title"`
}

type ViewResult struct {
	Items []store.Task `json:"items"`
	Total int          `json:"total"`
}

type DeleteResult struct {
	RemovedTask   store.Task `json:"removed_task"`
	UndoToken     string     `json:"undo_token"`
	UndoExpiresAt time.Time  `json:"undo_expires_at"`
}

type DeleteAllResult struct {
	Deleted       int       `json:"deleted"`
	UndoToken     string    `json:"undo_token"`
	UndoExpiresAt time.Time `json:"undo_expires_at"`
}

// RefResult reports a reference that did not resolve to one task.
type RefResult struct {
	Ref        string       `json:"task_ref"`
	Candidates []store.Task `json:"candidates,omitempty"`
}

type Executor struct {
	store      *store.Store
	translator Translator
	logger     *slog.Logger
}

func NewExecutor(s *store.Store, t Translator, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{store: s, translator: t, logger: logger}
}

// Handle translates message and executes the resulting call. Translation
// happens before any store lock is taken.
func (e *Executor) Handle(ctx context.Context, message string) (Outcome, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Outcome{}, ErrEmptyMessage
	}
	if e.translator == nil {
		return Outcome{}, fmt.Errorf("%w: no translator configured", ErrTranslatorUnavailable)
	}

	tr, err := e.translator.Translate(ctx, message)
	if err != nil {
		if errors.Is(err, ErrDeclined) {
			err = fmt.Errorf("%w: %v", ErrTranslatorUnavailable, err)
		}
		e.logger.Warn("translate failed", "error", err)
		return Outcome{}, err
	}
	if tr.Call == nil {
		if tr.AssistantMessage == "" {
			return Outcome{}, fmt.Errorf("%w: empty translation", ErrTranslationInvalid)
		}
		return Outcome{Status: StatusReply, AssistantMessage: tr.AssistantMessage}, nil
	}

	e.logger.Debug("translated", "function", tr.Call.Function)
	return e.Execute(*tr.Call)
}

// Execute runs one validated call against the store.
func (e *Executor) Execute(c Call) (Outcome, error) {
	if err := c.Validate(); err != nil {
		return Outcome{}, err
	}
	call := c
	out := Outcome{Status: StatusOK, ToolRequest: &call}

	switch c.Function {
	case FuncAddTask:
		task, err := e.store.Create(c.Description)
		if err != nil {
			return Outcome{}, err
		}
		out.Result = task

	case FuncViewTasks:
		items, total := e.store.List(store.ListFilter{})
		out.Result = ViewResult{Items: items, Total: total}

	case FuncCompleteTask:
		res, task := e.store.CompleteRef(c.Ref, true)
		if !applyResolution(&out, res) {
			break
		}
		out.Result = task

	case FuncDeleteTask:
		res, del := e.store.DeleteRef(c.Ref)
		if !applyResolution(&out, res) {
			break
		}
		out.Result = DeleteResult{RemovedTask: del.Removed, UndoToken: del.Undo.Token, UndoExpiresAt: del.Undo.ExpiresAt}

	case FuncDeleteAll:
		bulk := e.store.DeleteAll()
		out.Result = DeleteAllResult{Deleted: bulk.Count, UndoToken: bulk.Undo.Token, UndoExpiresAt: bulk.Undo.ExpiresAt}
	}

	out.AssistantMessage = Summarize(call, out)
	e.logger.Info("chat call executed", "function", c.Function, "status", out.Status)
	return out, nil
}

// applyResolution records a non-unique resolution on out and reports whether
// the call went ahead.
func applyResolution(out *Outcome, res store.Resolution) bool {
	switch res.Kind {
	case store.Unique:
		return true
	case store.Ambiguous:
		out.Status = StatusAmbiguous
		out.Result = RefResult{Ref: res.Ref.String(), Candidates: res.Candidates}
		out.Choices = make([]Choice, 0, len(res.Candidates))
		for _, t := range res.Candidates {
			out.Choices = append(out.Choices, Choice{ID: t.ID, DisplayID: t.DisplayID, Title: t.Title})
		}
	default:
		out.Status = StatusNotFound
		out.Result = RefResult{Ref: res.Ref.String()}
	}
	return false
}
