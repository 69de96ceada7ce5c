package chat

import (
	"strings"
	"testing"

	"github.com/amirbrooks/tasker-chat/internal/store"
)

func TestSummarize(t *testing.T) {
	milk := store.Task{ID: "tsk_1", DisplayID: 2, Title: "buy milk"}
	cases := []struct {
		name string
		call Call
		out  Outcome
		want string
	}{
		{"add", AddTask("buy milk"), Outcome{Status: StatusOK, Result: store.Task{DisplayID: 4, Title: "buy milk"}}, "Added: buy milk (#4)"},
		{"view", ViewTasks(), Outcome{Status: StatusOK, Result: ViewResult{Total: 3}}, "You have 3 tasks"},
		{"view one", ViewTasks(), Outcome{Status: StatusOK, Result: ViewResult{Total: 1}}, "You have 1 task"},
		{"view empty", ViewTasks(), Outcome{Status: StatusOK, Result: ViewResult{}}, "You have no tasks."},
		{"complete", CompleteTask(store.NumberRef(2)), Outcome{Status: StatusOK, Result: milk}, "Completed task #2: buy milk"},
		{"delete", DeleteTask(store.NumberRef(2)), Outcome{Status: StatusOK, Result: DeleteResult{RemovedTask: milk}}, "Deleted task #2: buy milk"},
		{"delete all", DeleteAll(), Outcome{Status: StatusOK, Result: DeleteAllResult{Deleted: 3}}, "Deleted 3 tasks"},
		{"not found number", CompleteTask(store.NumberRef(3)), Outcome{Status: StatusNotFound}, "No task found with number 3."},
		{"not found text", DeleteTask(store.TextRef("milk")), Outcome{Status: StatusNotFound}, "No tasks found matching 'milk'."},
	}
	for _, tc := range cases {
		if got := Summarize(tc.call, tc.out); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestSummarizeAmbiguousListsChoices(t *testing.T) {
	out := Outcome{Status: StatusAmbiguous, Choices: []Choice{
		{DisplayID: 1, Title: "buy milk"},
		{DisplayID: 3, Title: "oat milk"},
	}}
	got := Summarize(DeleteTask(store.TextRef("milk")), out)
	if !strings.Contains(got, "#1 buy milk") || !strings.Contains(got, "#3 oat milk") || !strings.HasPrefix(got, "2 tasks match 'milk'") {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefgh", 6); got != "abc..." {
		t.Fatalf("expected abc..., got %q", got)
	}
	if got := truncate("abc", 6); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
}
