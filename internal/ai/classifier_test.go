package ai

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubClassifier struct {
	answer  string
	err     error
	lastReq Request
}

func (s *stubClassifier) Classify(_ context.Context, req Request) (string, error) {
	s.lastReq = req
	return s.answer, s.err
}

func (s *stubClassifier) Name() string { return "stub" }

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	got := BuildPrompt("Classify. ", "Column:0, Row:0, Value: Company\n", "We regret")
	expected := "Classify. Here is the table data: Column:0, Row:0, Value: Company\n\nHere is the email text: We regret"
	if got != expected {
		t.Fatalf("unexpected prompt:\n%q", got)
	}
}

func TestDefaultInstructionMentionsGrammar(t *testing.T) {
	t.Parallel()

	instruction := DefaultInstruction()
	for _, marker := range []string{"ROW:", "COLUMN:", "VALUE:", "ADDITIONAL:", "YES"} {
		if !strings.Contains(instruction, marker) {
			t.Fatalf("expected default instruction to mention %q", marker)
		}
	}
}

func TestLoadInstruction(t *testing.T) {
	t.Parallel()

	got, err := LoadInstruction("")
	if err != nil || got != DefaultInstruction() {
		t.Fatalf("expected default instruction, got %q (%v)", got, err)
	}

	path := filepath.Join(t.TempDir(), "prompt.txt")
	if err := os.WriteFile(path, []byte("  custom instruction \n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err = LoadInstruction(path)
	if err != nil || got != "custom instruction" {
		t.Fatalf("expected custom instruction, got %q (%v)", got, err)
	}

	empty := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(empty, []byte("\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadInstruction(empty); err == nil {
		t.Fatal("expected error for empty instruction file")
	}
}

func TestWrapKeepsGatewayError(t *testing.T) {
	t.Parallel()

	if Wrap("x", nil) != nil {
		t.Fatal("nil must stay nil")
	}

	original := &GatewayError{Backend: "openai-chat", Err: errors.New("boom")}
	if got := Wrap("logged", original); got != error(original) {
		t.Fatalf("expected the original gateway error, got %v", got)
	}

	var gwErr *GatewayError
	if !errors.As(Wrap("gemini", errors.New("boom")), &gwErr) || gwErr.Backend != "gemini" {
		t.Fatalf("expected wrapped gateway error, got %v", gwErr)
	}
}

func TestConversation(t *testing.T) {
	t.Parallel()

	var nilConv *Conversation
	if nilConv.Len() != 0 {
		t.Fatal("nil conversation must be empty")
	}

	c := &Conversation{ThreadID: "thread_1"}
	c.Append(RoleSystem, "context")
	c.Append(RoleAssistant, "answer")
	if c.Len() != 2 {
		t.Fatalf("expected 2 turns, got %d", c.Len())
	}

	c.Reset()
	if c.Len() != 0 || c.ThreadID != "thread_1" {
		t.Fatalf("reset must drop turns and keep the thread: %+v", c)
	}
}

func TestLoggedClassify(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	stub := &stubClassifier{answer: "```\nYES\nROW:3\nCOLUMN:4\nVALUE:Confirmed\n```"}

	c := WithLogging(stub, zap.New(core), 0)
	answer, err := c.Classify(context.Background(), Request{Snapshot: "s", Message: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if answer != "YES\nROW:3\nCOLUMN:4\nVALUE:Confirmed" {
		t.Fatalf("unexpected answer %q", answer)
	}
	if stub.lastReq.Message != "m" {
		t.Fatalf("request not forwarded: %+v", stub.lastReq)
	}

	entries := observed.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].ContextMap()["backend"] != "stub" {
		t.Fatalf("expected backend field, got %v", entries[0].ContextMap())
	}
}

func TestLoggedClassifyErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		stub *stubClassifier
	}{
		{"backend error", &stubClassifier{err: errors.New("timeout")}},
		{"empty answer", &stubClassifier{answer: "  \n"}},
		{"empty fence", &stubClassifier{answer: "```\n```"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := WithLogging(tt.stub, nil, 10).Classify(context.Background(), Request{})
			var gwErr *GatewayError
			if !errors.As(err, &gwErr) {
				t.Fatalf("expected *GatewayError, got %v", err)
			}
			if gwErr.Backend != "stub" {
				t.Fatalf("unexpected backend %q", gwErr.Backend)
			}
		})
	}
}

func TestCleanAnswer(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"  YES\nROW:1 ":              "YES\nROW:1",
		"```text\nVALUE:Rejected\n```": "VALUE:Rejected",
		"```VALUE:Rejected```":         "VALUE:Rejected",
		"NO":                           "NO",
	}

	for input, expected := range tests {
		if got := CleanAnswer(input); got != expected {
			t.Fatalf("CleanAnswer(%q) = %q, expected %q", input, got, expected)
		}
	}
}
