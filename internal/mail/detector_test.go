package mail

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

type stubSource struct {
	text  string
	err   error
	calls int
}

func (s *stubSource) FetchLatestInboundText(context.Context) (string, error) {
	s.calls++
	return s.text, s.err
}

func TestDetectorReportsNewMessageOnce(t *testing.T) {
	source := &stubSource{text: "Thank you for applying"}
	d := NewDetector(source, nil, nil)

	first, err := d.HasNewMessage(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := d.HasNewMessage(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !first || second {
		t.Fatalf("expected true then false, got %v then %v", first, second)
	}

	if d.LastMessage() != "Thank you for applying" {
		t.Fatalf("unexpected last message %q", d.LastMessage())
	}
}

func TestDetectorSeesChangedMessage(t *testing.T) {
	source := &stubSource{text: "first"}
	d := NewDetector(source, nil, nil)

	if ok, _ := d.HasNewMessage(context.Background()); !ok {
		t.Fatal("cold start must be new")
	}

	source.text = "second"
	ok, err := d.HasNewMessage(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected changed message to be new")
	}
	if d.LastMessage() != "second" {
		t.Fatalf("unexpected last message %q", d.LastMessage())
	}
}

func TestDetectorResumesFromStore(t *testing.T) {
	store := &MemoryStore{}
	if err := store.Save(Fingerprint("already processed")); err != nil {
		t.Fatalf("save: %v", err)
	}

	d := NewDetector(&stubSource{text: "already processed"}, store, nil)
	ok, err := d.HasNewMessage(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("persisted fingerprint must suppress the known message")
	}
}

func TestDetectorPropagatesFetchError(t *testing.T) {
	boom := errors.New("connection reset")
	d := NewDetector(&stubSource{err: boom}, nil, nil)

	ok, err := d.HasNewMessage(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if ok {
		t.Fatal("failed fetch must not report a new message")
	}
}

func TestFileStore(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "state"), "main")

	got, err := store.Load()
	if err != nil || got != "" {
		t.Fatalf("expected empty fingerprint on first load, got %q (%v)", got, err)
	}

	if err := store.Save("abc123"); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err = (&FileStore{Path: store.Path}).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != "abc123" {
		t.Fatalf("unexpected fingerprint %q", got)
	}
}

func TestFingerprintIsStable(t *testing.T) {
	t.Parallel()

	if Fingerprint("a") != Fingerprint("a") {
		t.Fatal("fingerprint must be deterministic")
	}
	if Fingerprint("a") == Fingerprint("a ") {
		t.Fatal("fingerprint must be exact")
	}
}
