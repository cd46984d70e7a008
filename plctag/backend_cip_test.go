package plctag

import "testing"

func TestParseBitSelectorSplitsTrailingDigitSegment(t *testing.T) {
	base, bit, ok := parseBitSelector("MotorFaults.3")
	if !ok || base != "MotorFaults" || bit != 3 {
		t.Errorf("got base=%q bit=%d ok=%v, want base=MotorFaults bit=3 ok=true", base, bit, ok)
	}
}

func TestParseBitSelectorNestedMember(t *testing.T) {
	base, bit, ok := parseBitSelector("Program:Main.Counts.15")
	if !ok || base != "Program:Main.Counts" || bit != 15 {
		t.Errorf("got base=%q bit=%d ok=%v, want base=Program:Main.Counts bit=15 ok=true", base, bit, ok)
	}
}

func TestParseBitSelectorNoTrailingDigits(t *testing.T) {
	base, _, ok := parseBitSelector("Program:Main.Counts")
	if ok {
		t.Errorf("expected no bit selector for a named member path, got base=%q", base)
	}
}

func TestParseBitSelectorNoDot(t *testing.T) {
	base, _, ok := parseBitSelector("MyTag")
	if ok || base != "MyTag" {
		t.Errorf("expected no bit selector for a bare name, got base=%q ok=%v", base, ok)
	}
}

func TestParseBitSelectorTrailingDot(t *testing.T) {
	if _, _, ok := parseBitSelector("MyTag."); ok {
		t.Error("expected a trailing bare dot to not parse as a bit selector")
	}
}
