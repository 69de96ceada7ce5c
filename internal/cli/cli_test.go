package cli

import (
	"bytes"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/amirbrooks/tasker-chat/internal/api"
	"github.com/amirbrooks/tasker-chat/internal/chat"
	"github.com/amirbrooks/tasker-chat/internal/store"
)

func startServer(t *testing.T) (string, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := store.New(store.Options{})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := api.NewServer(s, chat.NewExecutor(s, chat.LocalTranslator{}, logger), api.Options{Logger: logger})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL, s
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersionAndUsage(t *testing.T) {
	code, out, _ := runCLI(t, "version")
	if code != ExitOK || !strings.Contains(out, "tasker "+Version) {
		t.Fatalf("version: code=%d out=%q", code, out)
	}
	if code, _, _ := runCLI(t); code != ExitUsage {
		t.Fatalf("expected usage exit with no command, got %d", code)
	}
	if code, _, _ := runCLI(t, "frobnicate"); code != ExitUsage {
		t.Fatalf("expected usage exit for unknown command, got %d", code)
	}
	if code, _, _ := runCLI(t, "ls", "--bogus"); code != ExitUsage {
		t.Fatalf("expected usage exit for unknown flag, got %d", code)
	}
}

func TestTaskCommandsAgainstServer(t *testing.T) {
	url, s := startServer(t)

	for _, title := range []string{"buy milk", "buy eggs", "oat milk"} {
		if code, _, errOut := runCLI(t, "--server", url, "add", title); code != ExitOK {
			t.Fatalf("add %q: code=%d stderr=%q", title, code, errOut)
		}
	}

	code, out, _ := runCLI(t, "--server", url, "ls")
	if code != ExitOK || !strings.Contains(out, "buy eggs") || !strings.Contains(out, "TITLE") {
		t.Fatalf("ls: code=%d out=%q", code, out)
	}

	code, _, errOut := runCLI(t, "--server", url, "rm", "milk")
	if code != ExitConflict || !strings.Contains(errOut, "#1 buy milk") || !strings.Contains(errOut, "#3 oat milk") {
		t.Fatalf("ambiguous rm: code=%d stderr=%q", code, errOut)
	}
	if s.Len() != 3 {
		t.Fatalf("expected nothing deleted, got %d tasks", s.Len())
	}

	code, out, _ = runCLI(t, "--server", url, "rm", "1")
	if code != ExitOK || !strings.Contains(out, "Deleted #1 buy milk") {
		t.Fatalf("rm 1: code=%d out=%q", code, out)
	}
	var token string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "Undo: tasker undo ") {
			token = strings.TrimPrefix(line, "Undo: tasker undo ")
		}
	}
	if token == "" {
		t.Fatalf("expected undo token in %q", out)
	}

	if code, _, errOut := runCLI(t, "--server", url, "done", "2"); code != ExitOK {
		t.Fatalf("done 2: code=%d stderr=%q", code, errOut)
	}
	if task := s.Snapshot()[1]; task.Title != "oat milk" || !task.Completed {
		t.Fatalf("expected oat milk completed, got %#v", task)
	}

	if code, _, _ := runCLI(t, "--server", url, "undo", token); code != ExitOK {
		t.Fatalf("undo: code=%d", code)
	}
	if code, _, _ := runCLI(t, "--server", url, "undo", token); code != ExitConflict {
		t.Fatalf("second undo: expected conflict exit, got %d", code)
	}
	if code, _, _ := runCLI(t, "--server", url, "done", "42"); code != ExitNotFound {
		t.Fatalf("done 42: expected not-found exit, got %d", code)
	}

	if code, _, _ := runCLI(t, "--server", url, "clear"); code != ExitUsage {
		t.Fatalf("clear without --yes: expected usage exit, got %d", code)
	}
	if code, _, _ := runCLI(t, "--server", url, "clear", "--yes"); code != ExitOK || s.Len() != 0 {
		t.Fatalf("clear --yes: code=%d len=%d", code, s.Len())
	}
}

func TestAddWithDueDate(t *testing.T) {
	url, s := startServer(t)
	code, _, errOut := runCLI(t, "--server", url, "add", "--due", "2026-03-04", "--description", "bring x-rays", "dentist")
	if code != ExitOK {
		t.Fatalf("add: code=%d stderr=%q", code, errOut)
	}
	if task := s.Snapshot()[0]; task.Due != "2026-03-04" || task.Description != "bring x-rays" {
		t.Fatalf("unexpected task %#v", task)
	}
	code, out, _ := runCLI(t, "--server", url, "ls", "--sort", "due_date")
	if code != ExitOK || !strings.Contains(out, "2026-03-04") {
		t.Fatalf("ls: code=%d out=%q", code, out)
	}
	if code, _, _ := runCLI(t, "--server", url, "add", "--due", "soon", "x"); code != ExitUsage {
		t.Fatalf("expected usage exit for bad due date, got %d", code)
	}
}

func TestChatCommand(t *testing.T) {
	url, s := startServer(t)
	code, out, errOut := runCLI(t, "--server", url, "chat", "add", "water", "plants")
	if code != ExitOK || !strings.Contains(out, "Added: water plants (#1)") {
		t.Fatalf("chat: code=%d out=%q stderr=%q", code, out, errOut)
	}
	if s.Len() != 1 {
		t.Fatalf("expected one task, got %d", s.Len())
	}
}

func TestConfigShowRedactsKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasker.yaml")
	if err := os.WriteFile(path, []byte("openai:\n  api_key: sk-secret\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TASKER_OPENAI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	code, out, errOut := runCLI(t, "--config", path, "--env-file", filepath.Join(dir, "none.env"), "config", "show")
	if code != ExitOK {
		t.Fatalf("config show: code=%d stderr=%q", code, errOut)
	}
	if strings.Contains(out, "sk-secret") || !strings.Contains(out, "<redacted>") || !strings.Contains(out, "addr: 127.0.0.1:5000") {
		t.Fatalf("unexpected config output %q", out)
	}
}
