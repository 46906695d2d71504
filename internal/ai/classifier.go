// Package ai defines the classifier gateway: a single capability that turns a
// snapshot of the tracking document and the latest e-mail into a textual
// answer, implemented by independent backends.
package ai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "embed"
)

// Classifier sends the classification context to a language model backend and
// returns its raw answer.
type Classifier interface {
	Classify(ctx context.Context, req Request) (string, error)
	Name() string
}

// Request carries everything a backend needs for one classification.
type Request struct {
	Snapshot    string
	Message     string
	Instruction string

	// Conversation is owned by the caller. Stateless backends ignore it.
	Conversation *Conversation
}

//go:embed prompt.md
var defaultInstruction string

// DefaultInstruction returns the built-in classification instruction.
func DefaultInstruction() string {
	return strings.TrimSpace(defaultInstruction)
}

// LoadInstruction reads the instruction from path, falling back to the
// built-in one when path is empty.
func LoadInstruction(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultInstruction(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading instruction file %q: %w", path, err)
	}

	instruction := strings.TrimSpace(string(data))
	if instruction == "" {
		return "", fmt.Errorf("instruction file %q is empty", path)
	}

	return instruction, nil
}

// Context renders the labeled snapshot and message.
func Context(snapshot, message string) string {
	return "Here is the table data: " + snapshot + "\nHere is the email text: " + message
}

// BuildPrompt prefixes the labeled context with the instruction.
func BuildPrompt(instruction, snapshot, message string) string {
	return instruction + Context(snapshot, message)
}

// GatewayError is returned by every backend when the model call fails or
// yields no usable answer.
type GatewayError struct {
	Backend string
	Err     error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s classifier: %v", e.Backend, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Wrap converts err into a *GatewayError for backend unless it already is one.
func Wrap(backend string, err error) error {
	if err == nil {
		return nil
	}

	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return err
	}

	return &GatewayError{Backend: backend, Err: err}
}

// ErrEmptyAnswer is reported when a backend returns no text.
var ErrEmptyAnswer = errors.New("model returned an empty answer")
