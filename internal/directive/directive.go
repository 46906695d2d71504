// Package directive turns a free-text classification answer into a structured
// update command for the tracking document.
package directive

import (
	"errors"
	"fmt"
	"strings"
)

// Unresolved marks a coordinate that was not present in the answer.
const Unresolved = -1

// decisionMarker is the literal that signals a positive decision in a raw answer.
const decisionMarker = "YES"

// ErrInvalidOutcome is returned when an answer carries no usable VALUE token.
var ErrInvalidOutcome = errors.New("invalid outcome")

// Outcome is the classification of a reply.
type Outcome int

const (
	Unknown Outcome = iota
	Rejected
	ScheduledInterview
	Confirmed
)

var outcomeLiterals = []struct {
	literal string
	outcome Outcome
}{
	{"Rejected", Rejected},
	{"Confirmed", Confirmed},
	{"Scheduled interview", ScheduledInterview},
}

// String returns the display text written into the tracking document.
func (o Outcome) String() string {
	switch o {
	case Rejected:
		return "Rejected"
	case ScheduledInterview:
		return "Scheduled interview"
	case Confirmed:
		return "Confirmed"
	default:
		return "Unknown"
	}
}

// Outcomes lists every outcome value, Unknown included.
func Outcomes() []Outcome {
	return []Outcome{Unknown, Rejected, ScheduledInterview, Confirmed}
}

// ParseOutcome maps a display literal to its outcome. Matching is exact and
// case-sensitive; anything else is reported as Unknown with ok set to false.
func ParseOutcome(text string) (Outcome, bool) {
	text = strings.TrimSpace(text)
	for _, l := range outcomeLiterals {
		if text == l.literal {
			return l.outcome, true
		}
	}
	return Unknown, false
}

// Directive is a structured update command derived from a classifier answer.
type Directive struct {
	Row     int
	Column  int
	Outcome Outcome
	Note    string
	HasNote bool
}

// Resolved reports whether both coordinates were found in the answer.
func (d Directive) Resolved() bool {
	return d.Row >= 0 && d.Column >= 0
}

func (d Directive) String() string {
	s := fmt.Sprintf("row=%d column=%d outcome=%q", d.Row, d.Column, d.Outcome.String())
	if d.HasNote {
		s += fmt.Sprintf(" note=%q", d.Note)
	}
	return s
}

// ParseError describes why an answer could not be turned into a directive.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse builds a Directive from a classifier answer.
//
// Coordinates are optional and default to Unresolved. The outcome is mandatory:
// an answer without a non-empty VALUE token fails with ErrInvalidOutcome, while a
// VALUE token carrying an unrecognised literal yields Unknown.
func Parse(answer string) (Directive, error) {
	fields := tokenize(answer)

	outcome, ok := extractOutcome(fields)
	if !ok {
		return Directive{}, &ParseError{Field: keyValue, Err: ErrInvalidOutcome}
	}

	note, hasNote := extractNote(fields)

	return Directive{
		Row:     extractCoordinate(fields, keyRow),
		Column:  extractCoordinate(fields, keyColumn),
		Outcome: outcome,
		Note:    note,
		HasNote: hasNote,
	}, nil
}

// HasDecisionMarker reports whether the raw answer contains the positive
// decision marker. It is checked independently of the parsed outcome.
func HasDecisionMarker(answer string) bool {
	return strings.Contains(answer, decisionMarker)
}
