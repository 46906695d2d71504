package logger

import "testing"

func TestNew(t *testing.T) {
	for _, tt := range []struct {
		name        string
		json, debug bool
	}{
		{"console", false, false},
		{"json debug", true, true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.json, tt.debug)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := l.Core().Enabled(-1); got != tt.debug {
				t.Fatalf("debug level enabled = %v, expected %v", got, tt.debug)
			}
		})
	}
}
