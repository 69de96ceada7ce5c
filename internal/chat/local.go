package chat

import (
	"context"
	"regexp"
	"strings"

	"github.com/amirbrooks/tasker-chat/internal/store"
)

var (
	reAdd       = regexp.MustCompile(`(?i)^(?:add|create|todo|new task)\b[\s:\-]*(.+)$`)
	reView      = regexp.MustCompile(`(?i)^(?:(?:show|list|view|display)\b.*|(?:my\s+)?tasks\??|what(?:'s| is| are)?\s+on\s+my\s+list\??)$`)
	reRemove    = regexp.MustCompile(`(?i)^(?:delete|remove|clear)\b[\s:\-]*(.+)$`)
	reRemoveAll = regexp.MustCompile(`(?i)^(?:all|everything|every\s+task)(?:\s+(?:of\s+)?(?:my\s+|the\s+)?(?:tasks|todos|items))?$`)
	reClearList = regexp.MustCompile(`(?i)^(?:my\s+)?(?:list|tasks|task list)[.!]?$`)
	reComplete  = regexp.MustCompile(`(?i)^(?:complete|finish|mark|check off)\b[\s:\-]*(.+?)(?:\s+(?:as\s+)?(?:complete|completed|done|finished))?[.!]?$`)
	reAll       = regexp.MustCompile(`(?i)\b(?:all|every|everything)\b`)
)

// LocalTranslator handles the common command shapes without calling a model:
// "add <text>", "show tasks", "complete <ref>", "delete <ref>" and
// "delete all". Anything else is declined.
type LocalTranslator struct{}

func (LocalTranslator) Translate(_ context.Context, message string) (Translation, error) {
	msg := strings.TrimSpace(message)

	if m := reAdd.FindStringSubmatch(msg); m != nil {
		desc := trimQuotes(m[1])
		if desc == "" {
			return Translation{}, ErrDeclined
		}
		return CallTranslation(AddTask(desc)), nil
	}

	if reView.MatchString(msg) {
		return CallTranslation(ViewTasks()), nil
	}

	if m := reRemove.FindStringSubmatch(msg); m != nil {
		target := strings.TrimRight(strings.TrimSpace(m[1]), ".!")
		if reRemoveAll.MatchString(target) || reClearList.MatchString(target) {
			return CallTranslation(DeleteAll()), nil
		}
		// "all milk tasks" and the like are a filter, not a clear
		if reAll.MatchString(target) {
			return Translation{}, ErrDeclined
		}
		ref, err := store.ParseRef(trimQuotes(target))
		if err != nil {
			return Translation{}, ErrDeclined
		}
		return CallTranslation(DeleteTask(ref)), nil
	}

	if m := reComplete.FindStringSubmatch(msg); m != nil {
		target := trimQuotes(m[1])
		// bulk completion is not part of the vocabulary; leave it to the model
		if reAll.MatchString(target) {
			return Translation{}, ErrDeclined
		}
		ref, err := store.ParseRef(target)
		if err != nil {
			return Translation{}, ErrDeclined
		}
		return CallTranslation(CompleteTask(ref)), nil
	}

	return Translation{}, ErrDeclined
}

func trimQuotes(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `"'“”‘’`))
}
