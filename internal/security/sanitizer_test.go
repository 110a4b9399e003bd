package security

import (
	"strings"
	"testing"
)

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "Trims whitespace",
			input: "  hello  ",
			want:  "hello",
		},
		{
			name:  "Strips NUL bytes",
			input: "he\x00llo",
			want:  "hello",
		},
		{
			name:  "Empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeString(tt.input); got != tt.want {
				t.Errorf("SanitizeString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeString_CapsLength(t *testing.T) {
	input := strings.Repeat("a", 2000)
	got := SanitizeString(input)
	if len(got) != 1000 {
		t.Errorf("SanitizeString() length = %d, want 1000", len(got))
	}
}

func TestSanitizeHTML(t *testing.T) {
	got := SanitizeHTML(`<script>alert("x")</script>hello <b>world</b>`)
	if strings.Contains(got, "<") {
		t.Errorf("SanitizeHTML() left tags in output: %q", got)
	}
	if !strings.Contains(got, "hello") || !strings.Contains(got, "world") {
		t.Errorf("SanitizeHTML() stripped text content: %q", got)
	}
}

func TestValidateFileType(t *testing.T) {
	allowed := []string{".pdf", ".txt", ".docx"}

	tests := []struct {
		filename string
		want     bool
	}{
		{"raport.pdf", true},
		{"RAPORT.PDF", true},
		{"notes.txt", true},
		{"payload.exe", false},
		{"archive.zip", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidateFileType(tt.filename, allowed); got != tt.want {
			t.Errorf("ValidateFileType(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}
}

func TestValidateFileSize(t *testing.T) {
	tests := []struct {
		size int64
		max  int64
		want bool
	}{
		{100, 1000, true},
		{1000, 1000, true},
		{1001, 1000, false},
		{0, 1000, false},
		{-1, 1000, false},
	}

	for _, tt := range tests {
		if got := ValidateFileSize(tt.size, tt.max); got != tt.want {
			t.Errorf("ValidateFileSize(%d, %d) = %v, want %v", tt.size, tt.max, got, tt.want)
		}
	}
}
