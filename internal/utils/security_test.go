package utils

import "testing"

func TestMaskPhone(t *testing.T) {
	cases := []struct {
		phone string
		want  string
	}{
		{"+1234567890", "+12****7890"},
		{"+12345678901234567890", "+12****7890"},
		{"+123456", "+12****3456"},
		{"123456", "****"},
		{"+12345", "****"},
		{"", "****"},
	}
	for _, tc := range cases {
		if got := MaskPhone(tc.phone); got != tc.want {
			t.Errorf("MaskPhone(%q) = %q, want %q", tc.phone, got, tc.want)
		}
	}
}
