package validation

import (
	"strings"
	"testing"
)

func TestValidSerial(t *testing.T) {
	valids := []string{
		"a",
		"OATH0001",
		"SMS1a2b3c4d",
		"hw:token_01.A-b",
		"A" + strings.Repeat("x", 63), // 64
	}
	for _, v := range valids {
		if !ValidSerial(v) {
			t.Fatalf("expected valid: %q", v)
		}
	}

	invalids := []string{
		"",
		"OATH*",
		"QR?1",
		"[ab]",
		"-lead",
		"bad space",
		"A" + strings.Repeat("x", 64), // 65
	}
	for _, v := range invalids {
		if ValidSerial(v) {
			t.Fatalf("expected invalid: %q", v)
		}
	}
}

func TestValidPolicyName(t *testing.T) {
	if !ValidPolicyName("self-service.verify_1") {
		t.Fatal("expected valid")
	}
	for _, v := range []string{"", "a:b", "with space", "_x"} {
		if ValidPolicyName(v) {
			t.Fatalf("expected invalid: %q", v)
		}
	}
}
