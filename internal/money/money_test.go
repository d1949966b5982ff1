package money

import "testing"

func TestParseDecimal(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"12.50", 1250},
		{"0.05", 5},
		{"3", 300},
		{"3.1", 310},
		{".75", 75},
		{"-2.25", -225},
		{"+10.00", 1000},
		{" 7.00 ", 700},
	}
	for _, tc := range cases {
		got, err := ParseDecimal(tc.in)
		if err != nil {
			t.Fatalf("ParseDecimal(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseDecimal(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseDecimalRejectsMalformedInput(t *testing.T) {
	for _, in := range []string{"", "abc", "1.234", "1,50", "-", "1.2.3"} {
		if _, err := ParseDecimal(in); err == nil {
			t.Fatalf("ParseDecimal(%q) should fail", in)
		}
	}
}

func TestFormatDecimal(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{1250, "12.50"},
		{5, "0.05"},
		{0, "0.00"},
		{-225, "-2.25"},
		{100000, "1000.00"},
	}
	for _, tc := range cases {
		if got := FormatDecimal(tc.in); got != tc.want {
			t.Fatalf("FormatDecimal(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, cents := range []int64{0, 1, 99, 100, 1250, 999999} {
		parsed, err := ParseDecimal(FormatDecimal(cents))
		if err != nil {
			t.Fatalf("round trip %d: %v", cents, err)
		}
		if parsed != cents {
			t.Fatalf("round trip %d came back as %d", cents, parsed)
		}
	}
}
