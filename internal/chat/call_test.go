package chat

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseCallAcceptsVocabulary(t *testing.T) {
	cases := []struct {
		raw      string
		function string
		desc     string
		num      int
		text     string
	}{
		{raw: `{"function":"addTask","parameters":{"description":"  buy milk "}}`, function: FuncAddTask, desc: "buy milk"},
		{raw: `{"function":"addTask","parameters":{"title":"call mom"}}`, function: FuncAddTask, desc: "call mom"},
		{raw: `{"function":"viewTasks","parameters":{}}`, function: FuncViewTasks},
		{raw: `{"function":"viewTasks"}`, function: FuncViewTasks},
		{raw: `{"function":"completeTask","parameters":{"task_ref":2}}`, function: FuncCompleteTask, num: 2},
		{raw: `{"function":"completeTask","parameters":{"task_id":"#4"}}`, function: FuncCompleteTask, num: 4},
		{raw: `{"function":"deleteTask","parameters":{"task_ref":"milk"}}`, function: FuncDeleteTask, text: "milk"},
		{raw: `{"function":"deleteAll","parameters":{}}`, function: FuncDeleteAll},
	}
	for _, tc := range cases {
		c, err := ParseCall([]byte(tc.raw))
		if err != nil {
			t.Fatalf("parse %s: %v", tc.raw, err)
		}
		if c.Function != tc.function || c.Description != tc.desc || c.Ref.DisplayID != tc.num || c.Ref.Text != tc.text {
			t.Fatalf("parse %s: got %#v", tc.raw, c)
		}
	}
}

func TestParseCallRejectsInvalid(t *testing.T) {
	cases := []string{
		`not json`,
		`{"parameters":{}}`,
		`{"function":"renameTask","parameters":{}}`,
		`{"function":"addTask","parameters":{}}`,
		`{"function":"addTask","parameters":{"description":"   "}}`,
		`{"function":"addTask","parameters":{"description":7}}`,
		`{"function":"deleteTask","parameters":{}}`,
		`{"function":"deleteTask","parameters":{"task_ref":0}}`,
		`{"function":"deleteTask","parameters":{"task_ref":1.5}}`,
		`{"function":"completeTask","parameters":{"task_ref":true}}`,
		`{"function":"completeTask","parameters":{"task_ref":""}}`,
	}
	for _, raw := range cases {
		if _, err := ParseCall([]byte(raw)); !errors.Is(err, ErrTranslationInvalid) {
			t.Fatalf("parse %s: expected ErrTranslationInvalid, got %v", raw, err)
		}
	}
}

func TestParseTranslation(t *testing.T) {
	tr, err := ParseTranslation("```json\n{\"function\":\"deleteAll\",\"parameters\":{}}\n```")
	if err != nil {
		t.Fatalf("fenced call: %v", err)
	}
	if tr.Call == nil || tr.Call.Function != FuncDeleteAll {
		t.Fatalf("expected deleteAll, got %#v", tr)
	}

	tr, err = ParseTranslation(`{"assistant_message":" Hi there! "}`)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if tr.Call != nil || tr.AssistantMessage != "Hi there!" {
		t.Fatalf("expected reply, got %#v", tr)
	}

	for _, raw := range []string{"", "Sure, I added it.", `{"assistant_message":""}`, `{"assistant_message":3}`} {
		if _, err := ParseTranslation(raw); !errors.Is(err, ErrTranslationInvalid) {
			t.Fatalf("parse %q: expected ErrTranslationInvalid, got %v", raw, err)
		}
	}
}

func TestCallJSONRoundTripsRef(t *testing.T) {
	b, err := json.Marshal(CompleteTask(mustRef(t, "3")))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"function":"completeTask","parameters":{"task_ref":3}}` {
		t.Fatalf("unexpected wire form: %s", b)
	}

	b, err = json.Marshal(DeleteTask(mustRef(t, "milk")))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var c Call
	if err := json.Unmarshal(b, &c); err != nil {
		t.Fatalf("unmarshal %s: %v", b, err)
	}
	if c.Function != FuncDeleteTask || c.Ref.Text != "milk" {
		t.Fatalf("unexpected call: %#v", c)
	}
}
