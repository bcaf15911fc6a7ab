package util

import "testing"

func TestSanitizeForLog(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty string", input: "", expected: ""},
		{name: "plain domain", input: "app.example.com", expected: "app.example.com"},
		{name: "nginx directives across lines", input: "proxy_read_timeout 300;\nclient_max_body_size 5m;", expected: "proxy_read_timeout 300; client_max_body_size 5m;"},
		{name: "crlf", input: "a\r\nb", expected: "a b"},
		{name: "control run collapses", input: "a\x00\x01\x1Fb", expected: "a b"},
		{name: "tab and DEL", input: "a\tb\x7F", expected: "a b "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeForLog(tt.input); got != tt.expected {
				t.Errorf("SanitizeForLog(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate kept %q", got)
	}
	if got := Truncate("abcdef", 3); got != "abc..." {
		t.Errorf("Truncate = %q, want %q", got, "abc...")
	}
	if got := Truncate("ééééé", 2); got != "éé..." {
		t.Errorf("Truncate counts bytes instead of runes: %q", got)
	}
}
