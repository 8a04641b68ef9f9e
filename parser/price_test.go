package parser

import "testing"

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
		ok       bool
	}{
		{
			name:     "kenyan shillings with thousands separator",
			input:    "KSh 1,250.50",
			expected: 1250.50,
			ok:       true,
		},
		{
			name:     "plain number",
			input:    "499",
			expected: 499,
			ok:       true,
		},
		{
			name:     "currency code suffix",
			input:    "1500 KES",
			expected: 1500,
			ok:       true,
		},
		{
			name:  "no digits",
			input: "Call for price",
			ok:    false,
		},
		{
			name:  "empty string",
			input: "",
			ok:    false,
		},
		{
			name:  "only a decimal point",
			input: "price: .",
			ok:    false,
		},
		{
			name:  "two decimal points",
			input: "1.2.3",
			ok:    false,
		},
		{
			name:     "sign is discarded",
			input:    "-200",
			expected: 200,
			ok:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizePrice(tt.input)
			if ok != tt.ok {
				t.Fatalf("NormalizePrice(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && got != tt.expected {
				t.Errorf("NormalizePrice(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "collapses internal whitespace",
			input:    "Cement\n  50kg \t Dangote",
			expected: "Cement 50kg Dangote",
		},
		{
			name:     "trims",
			input:    "  hello  ",
			expected: "hello",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeText(tt.input); got != tt.expected {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdef", 4); got != "abcd" {
		t.Errorf("Truncate = %q, want %q", got, "abcd")
	}
	if got := Truncate("abc", 10); got != "abc" {
		t.Errorf("Truncate = %q, want %q", got, "abc")
	}
	// Multibyte runes are never split.
	if got := Truncate("héllo wörld", 7); got != "héllo w" {
		t.Errorf("Truncate = %q, want %q", got, "héllo w")
	}
}
