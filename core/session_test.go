package core

import (
	"errors"
	"testing"
)

func TestChatData_Prompt(t *testing.T) {
	d := ChatData{SessionKey: "k", Messages: []Message{
		SystemMessage("s"),
		UserMessage("first"),
		AssistantMessage("a"),
		UserMessage("second"),
	}}
	got, err := d.Prompt()
	if err != nil || got != "second" {
		t.Fatalf("expected newest user prompt, got %q, %v", got, err)
	}
	if d.LastUserMessage() != 3 {
		t.Errorf("unexpected index %d", d.LastUserMessage())
	}

	empty := ChatData{Messages: []Message{SystemMessage("s")}}
	if _, err := empty.Prompt(); !errors.Is(err, ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
}

func TestSnapshots_Map(t *testing.T) {
	s := Snapshots{{Request: map[string]any{"model": "m"}}}
	if s.Get(1) == nil || s.Get(2) != nil || s.Get(0) != nil {
		t.Fatal("Get should be 1-based and bounded")
	}
	m := s.Map()
	if _, ok := m["iteration_1"]; !ok {
		t.Error("expected iteration_1")
	}
	if _, ok := m["iteration_2"]; ok {
		t.Error("iteration_2 should be absent")
	}
}
