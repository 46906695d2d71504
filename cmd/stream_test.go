package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/spigell/reply-tracker/internal/ai"
	"github.com/spigell/reply-tracker/internal/mail"
	"github.com/spigell/reply-tracker/internal/sheet"
)

type answerClassifier string

func (a answerClassifier) Name() string { return "static" }

func (a answerClassifier) Classify(context.Context, ai.Request) (string, error) {
	return string(a), nil
}

func TestFindStream(t *testing.T) {
	config := &Config{Streams: []*StreamConfig{{Name: "main"}, {Name: "side"}}}

	s, err := findStream(config, "")
	if err != nil || s.Name != "main" {
		t.Fatalf("expected the first stream, got %v, %v", s, err)
	}

	s, err = findStream(config, "side")
	if err != nil || s.Name != "side" {
		t.Fatalf("expected side stream, got %v, %v", s, err)
	}

	if _, err := findStream(config, "missing"); err == nil {
		t.Fatal("expected error for unknown stream")
	}
	if _, err := findStream(&Config{}, ""); err == nil {
		t.Fatal("expected error without streams")
	}
}

func TestNewClassifier(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *AIConfig
		backend     string
		instruction string
		wantErr     bool
	}{
		{name: "missing section", wantErr: true},
		{name: "unsupported provider", cfg: &AIConfig{Provider: "mistral"}, wantErr: true},
		{name: "unknown openai mode", cfg: &AIConfig{Mode: "batch", OpenAI: &OpenAIConfig{APIKey: "key"}}, wantErr: true},
		{
			name:        "openai chat by default",
			cfg:         &AIConfig{OpenAI: &OpenAIConfig{APIKey: "key"}},
			backend:     "openai-chat",
			instruction: ai.DefaultInstruction(),
		},
		{
			name:        "openai compatible server without key",
			cfg:         &AIConfig{Provider: "openai", Mode: "completion", OpenAI: &OpenAIConfig{BaseURL: "http://127.0.0.1:11434/v1"}},
			backend:     "openai-completion",
			instruction: ai.DefaultInstruction(),
		},
		{
			name:    "assistant requires id",
			cfg:     &AIConfig{Mode: "assistant", OpenAI: &OpenAIConfig{APIKey: "key"}},
			wantErr: true,
		},
		{
			name:        "assistant passes its id",
			cfg:         &AIConfig{Mode: "assistant", AssistantID: "asst_123", OpenAI: &OpenAIConfig{APIKey: "key"}},
			backend:     "openai-assistant",
			instruction: "asst_123",
		},
		{
			name:        "anthropic",
			cfg:         &AIConfig{Provider: "Anthropic", Anthropic: &AnthropicConfig{APIKey: "key"}},
			backend:     "anthropic",
			instruction: ai.DefaultInstruction(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", "")
			t.Setenv("ANTHROPIC_API_KEY", "")

			classifier, instruction, err := newClassifier(context.Background(), tt.cfg, zap.NewNop())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if classifier.Name() != tt.backend {
				t.Fatalf("expected backend %q, got %q", tt.backend, classifier.Name())
			}
			if instruction != tt.instruction {
				t.Fatalf("unexpected instruction %q", instruction)
			}
		})
	}
}

func TestNewNotifier(t *testing.T) {
	n, err := newNotifier(nil, zap.NewNop())
	if err != nil || n != nil {
		t.Fatalf("expected no notifier, got %v, %v", n, err)
	}

	n, err = newNotifier(&NotifyConfig{Email: &EmailConfig{
		SMTPAddr: "127.0.0.1:2525",
		Password: "secret",
		From:     "tracker@example.org",
		To:       "me@example.org",
	}}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Name() != "email" {
		t.Fatalf("expected email notifier, got %q", n.Name())
	}

	if _, err := newNotifier(&NotifyConfig{Email: &EmailConfig{To: "me@example.org"}}, zap.NewNop()); err == nil {
		t.Fatal("expected error without smtp password")
	}
}

func TestNewStreamProcessesMessageFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "work.xlsx")

	doc, err := sheet.Create(path, "", [][]string{
		templateHeader,
		{"Acme", "Go developer", "2024-01-10", "hr@acme.example", "Applied"},
	}, nil)
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	doc.Close()

	config := &Config{StateDir: filepath.Join(dir, "state")}
	cfg := &StreamConfig{Name: "main", Sheet: &SheetConfig{Path: path}}

	s, err := newStream(config, cfg, answerClassifier("YES\nVALUE: Confirmed\nROW:1\nCOLUMN:4"), "classify",
		streamOptions{source: &mail.FileSource{Path: filepath.Join(dir, "reply.txt")}}, zap.NewNop())
	if err != nil {
		t.Fatalf("new stream: %v", err)
	}
	defer s.Close()

	result, err := s.tracker.Process(context.Background(), "We are happy to confirm")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !result.Applied {
		t.Fatalf("expected the update to be applied, got %+v", result)
	}

	if got, _ := s.document.ReadCell(1, 4); got != "Confirmed" {
		t.Fatalf("unexpected cell %q", got)
	}
}

func TestNewStreamValidation(t *testing.T) {
	source := &mail.FileSource{Path: "reply.txt"}
	config := &Config{StateDir: t.TempDir()}

	if _, err := newStream(config, &StreamConfig{}, answerClassifier("NO"), "", streamOptions{source: source}, zap.NewNop()); err == nil {
		t.Fatal("expected error for unnamed stream")
	}
	if _, err := newStream(config, &StreamConfig{Name: "main"}, answerClassifier("NO"), "", streamOptions{source: source}, zap.NewNop()); err == nil {
		t.Fatal("expected error without sheet path")
	}
	if _, err := newStream(config, &StreamConfig{Name: "main", Sheet: &SheetConfig{Path: "x.xlsx"}}, answerClassifier("NO"), "", streamOptions{}, zap.NewNop()); err == nil {
		t.Fatal("expected error without mailbox")
	}
}
