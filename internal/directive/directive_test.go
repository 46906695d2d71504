package directive

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		answer string
		expect Directive
	}{
		{
			name:   "confirmed without note",
			answer: "VALUE: Confirmed\nROW:3\nCOLUMN:4",
			expect: Directive{Row: 3, Column: 4, Outcome: Confirmed},
		},
		{
			name:   "rejected with note",
			answer: "VALUE: Rejected\nROW:7\nCOLUMN:4\nADDITIONAL: candidate withdrew",
			expect: Directive{Row: 7, Column: 4, Outcome: Rejected, Note: "candidate withdrew", HasNote: true},
		},
		{
			name:   "scheduled interview in any order",
			answer: "COLUMN:2 ROW:11\nYES VALUE: Scheduled interview",
			expect: Directive{Row: 11, Column: 2, Outcome: ScheduledInterview},
		},
		{
			name:   "missing coordinates are unresolved",
			answer: "VALUE: Confirmed",
			expect: Directive{Row: Unresolved, Column: Unresolved, Outcome: Confirmed},
		},
		{
			name:   "unknown literal is a catch-all",
			answer: "VALUE: Pending\nROW:1\nCOLUMN:4",
			expect: Directive{Row: 1, Column: 4, Outcome: Unknown},
		},
		{
			name:   "literal match is case-sensitive",
			answer: "VALUE: confirmed\nROW:1\nCOLUMN:4",
			expect: Directive{Row: 1, Column: 4, Outcome: Unknown},
		},
		{
			name:   "markers inside words are ignored",
			answer: "ARROW:9 VALUE: Rejected ROW:2 COLUMN:4",
			expect: Directive{Row: 2, Column: 4, Outcome: Rejected},
		},
		{
			name:   "note keeps look-alike markers",
			answer: "VALUE: Rejected\nADDITIONAL: moved to ROW:99 by recruiter\nROW:5\nCOLUMN:4",
			expect: Directive{Row: 5, Column: 4, Outcome: Rejected, Note: "moved to ROW:99 by recruiter", HasNote: true},
		},
		{
			name:   "empty note is no note",
			answer: "VALUE: Confirmed ROW:1 COLUMN:4\nADDITIONAL:   ",
			expect: Directive{Row: 1, Column: 4, Outcome: Confirmed},
		},
		{
			name:   "coordinate without digits is skipped",
			answer: "ROW: n/a\nROW:6\nCOLUMN:4\nVALUE: Confirmed",
			expect: Directive{Row: 6, Column: 4, Outcome: Confirmed},
		},
		{
			name:   "windows line endings",
			answer: "VALUE: Confirmed\r\nROW:3\r\nCOLUMN:4\r\nADDITIONAL: call on monday\r\n",
			expect: Directive{Row: 3, Column: 4, Outcome: Confirmed, Note: "call on monday", HasNote: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(tt.answer)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expect {
				t.Fatalf("expected %s, got %s", tt.expect, got)
			}
		})
	}
}

func TestParseInvalidOutcome(t *testing.T) {
	t.Parallel()

	answers := []string{
		"",
		"ROW:3\nCOLUMN:4",
		"ROW:3\nCOLUMN:4\nVALUE:   ",
		"RESULTVALUE: Confirmed ROW:3 COLUMN:4",
		"ADDITIONAL: VALUE: Confirmed",
	}

	for _, answer := range answers {
		_, err := Parse(answer)
		if !errors.Is(err, ErrInvalidOutcome) {
			t.Fatalf("expected ErrInvalidOutcome for %q, got %v", answer, err)
		}

		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("expected *ParseError for %q, got %T", answer, err)
		}
		if parseErr.Field != keyValue {
			t.Fatalf("unexpected field %q", parseErr.Field)
		}
	}
}

func TestOutcomeLiteralsRoundTrip(t *testing.T) {
	t.Parallel()

	for _, outcome := range []Outcome{Rejected, ScheduledInterview, Confirmed} {
		got, ok := ParseOutcome(outcome.String())
		if !ok || got != outcome {
			t.Fatalf("expected %v to map back to itself, got %v (ok=%v)", outcome, got, ok)
		}
	}

	if got, ok := ParseOutcome("Unknown"); ok || got != Unknown {
		t.Fatalf("expected Unknown to be reported as unrecognised, got %v (ok=%v)", got, ok)
	}
}

func TestHasDecisionMarker(t *testing.T) {
	t.Parallel()

	if !HasDecisionMarker("YES\nVALUE: Confirmed") {
		t.Fatal("expected marker to be found")
	}
	if HasDecisionMarker("yes\nVALUE: Confirmed") {
		t.Fatal("marker must be case-sensitive")
	}
	if HasDecisionMarker("NO") {
		t.Fatal("unexpected marker")
	}
}

func TestResolved(t *testing.T) {
	t.Parallel()

	if (Directive{Row: 0, Column: 0}).Resolved() != true {
		t.Fatal("zero coordinates are resolved")
	}
	if (Directive{Row: Unresolved, Column: 3}).Resolved() {
		t.Fatal("unresolved row must not be resolved")
	}
	if (Directive{Row: 3, Column: Unresolved}).Resolved() {
		t.Fatal("unresolved column must not be resolved")
	}
}
