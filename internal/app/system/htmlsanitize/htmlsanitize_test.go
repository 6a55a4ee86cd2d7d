package htmlsanitize

import (
	"strings"
	"testing"
)

func TestStripTags(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains []string // Strings that should be in output
		excludes []string // Strings that should NOT be in output
	}{
		{
			name:     "empty string",
			input:    "",
			contains: []string{},
			excludes: []string{},
		},
		{
			name:     "plain text untouched",
			input:    "Body weight",
			contains: []string{"Body weight"},
		},
		{
			name:     "formatting removed",
			input:    "<p>Morning <strong>weight</strong></p>",
			contains: []string{"Morning", "weight"},
			excludes: []string{"<p>", "<strong>", "</"},
		},
		{
			name:     "script removed with its content",
			input:    "Steps<script>alert('xss')</script>",
			contains: []string{"Steps"},
			excludes: []string{"<script>", "alert", "xss"},
		},
		{
			name:     "link reduced to text",
			input:    `<a href="javascript:alert('xss')">Sleep</a>`,
			contains: []string{"Sleep"},
			excludes: []string{"href", "javascript:", "<a"},
		},
		{
			name:     "entities decoded",
			input:    "<b>Tom</b> &amp; Jerry",
			contains: []string{"Tom & Jerry"},
			excludes: []string{"&amp;", "<b>"},
		},
		{
			name:     "ampersand in plain text kept",
			input:    "Sleep & rest",
			contains: []string{"Sleep & rest"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripTags(tt.input)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("StripTags(%q) = %q, should contain %q", tt.input, got, want)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(got, bad) {
					t.Errorf("StripTags(%q) = %q, should not contain %q", tt.input, got, bad)
				}
			}
		})
	}
}

func TestStripTags_Idempotent(t *testing.T) {
	input := "<p>Resting <em>heart</em> rate</p>"
	once := StripTags(input)
	twice := StripTags(once)
	if once != twice {
		t.Errorf("StripTags not idempotent: %q then %q", once, twice)
	}
}

func TestHasMarkup(t *testing.T) {
	for s, want := range map[string]bool{
		"":                    false,
		"Body weight":         false,
		"<p>Weight</p>":       true,
		"a < b":               false,
		"a > b":               false,
		"5 > 3 but 2 < 4":     false,
		"x<y>":                true,
		"Sleep <i>hours</i>.": true,
	} {
		if got := hasMarkup(s); got != want {
			t.Errorf("hasMarkup(%q) = %v, want %v", s, got, want)
		}
	}
}
