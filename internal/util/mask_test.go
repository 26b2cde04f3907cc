package util

import "testing"

func TestMaskPhone(t *testing.T) {
	cases := map[string]string{
		"":               "",
		"123":            "***",
		"+5491155551234": "+**********234",
		"5551234":        "****234",
	}
	for in, want := range cases {
		if got := MaskPhone(in); got != want {
			t.Fatalf("MaskPhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskEmail(t *testing.T) {
	if got := MaskEmail("5551234@sms.example.com"); got != "5…@s….example.com" {
		t.Fatalf("MaskEmail = %q", got)
	}
	if got := MaskEmail("5551234"); got != "****234" {
		t.Fatalf("MaskEmail without @ = %q", got)
	}
}
