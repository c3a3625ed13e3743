package chat

import "testing"

func TestTranslate(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		want     string
		wantQuit bool
	}{
		{"plain text", "hello there", "MSG hello there", false},
		{"who", "/who", "WHO", false},
		{"who case", "/WHO", "WHO", false},
		{"dm", "/dm carol see you at 5", "DM carol see you at 5", false},
		{"dm missing text", "/dm carol", "", false},
		{"quit", "/quit", "", true},
		{"quit case", "/Quit", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, quit := translate(tt.line)
			if frame != tt.want || quit != tt.wantQuit {
				t.Errorf("translate(%q) = (%q, %v), want (%q, %v)",
					tt.line, frame, quit, tt.want, tt.wantQuit)
			}
		})
	}
}
