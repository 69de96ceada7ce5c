package chat

import (
	"fmt"
	"strings"

	"github.com/amirbrooks/tasker-chat/internal/store"
)

const summaryTitleMax = 60

// Summarize renders a one-line human summary of an executed call. It is a
// pure function of the call and its outcome; an empty string means no
// summary applies.
func Summarize(c Call, out Outcome) string {
	switch out.Status {
	case StatusReply:
		return out.AssistantMessage
	case StatusNotFound:
		if c.Ref.IsNumeric() {
			return fmt.Sprintf("No task found with number %d.", c.Ref.DisplayID)
		}
		return fmt.Sprintf("No tasks found matching '%s'.", c.Ref.Text)
	case StatusAmbiguous:
		parts := make([]string, 0, len(out.Choices))
		for _, ch := range out.Choices {
			parts = append(parts, fmt.Sprintf("#%d %s", ch.DisplayID, truncate(ch.Title, summaryTitleMax)))
		}
		return fmt.Sprintf("%d tasks match '%s': %s. Which one did you mean?", len(out.Choices), c.Ref.Text, strings.Join(parts, ", "))
	}

	switch r := out.Result.(type) {
	case store.Task:
		switch c.Function {
		case FuncAddTask:
			return fmt.Sprintf("Added: %s (#%d)", truncate(r.Title, summaryTitleMax), r.DisplayID)
		case FuncCompleteTask:
			return fmt.Sprintf("Completed task #%d: %s", r.DisplayID, truncate(r.Title, summaryTitleMax))
		}
	case ViewResult:
		if r.Total == 0 {
			return "You have no tasks."
		}
		return fmt.Sprintf("You have %s", plural(r.Total, "task"))
	case DeleteResult:
		return fmt.Sprintf("Deleted task #%d: %s", r.RemovedTask.DisplayID, truncate(r.RemovedTask.Title, summaryTitleMax))
	case DeleteAllResult:
		if r.Deleted == 0 {
			return "Your list is already empty."
		}
		return fmt.Sprintf("Deleted %s", plural(r.Deleted, "task"))
	}
	return ""
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
