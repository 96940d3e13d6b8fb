package colorize

import (
	"strings"
	"testing"
)

const sample = ".text:\r\n\r\nmain\r\n\tmov r1, r2\r\nL_00001008:\r\n\tb 0x00001008\r\n0000 0000 0001 1000 \r\n; error: no instruction matches\r\n\r\n\r\n"

func TestColorizeListingDisabled(t *testing.T) {
	t.Setenv("VCDIS_NO_COLOR", "1")
	got := ColorizeListing(sample)
	want := strings.ReplaceAll(sample, "\r\n", "\n")
	if got != want {
		t.Errorf("ColorizeListing with colours off = %q, want %q", got, want)
	}
	if ColorizeInstruction("nop") != "nop" {
		t.Error("ColorizeInstruction changed text with colours off")
	}
}

func TestColorizeListingKeepsText(t *testing.T) {
	t.Setenv("VCDIS_NO_COLOR", "")
	got := ColorizeListing(sample)
	if plain := StripANSI(got); plain != strings.ReplaceAll(sample, "\r\n", "\n") {
		t.Errorf("highlighting changed the listing text:\n%q", plain)
	}
	if strings.Count(got, "\n") != strings.Count(sample, "\r\n") {
		t.Errorf("line count changed: %q", got)
	}
}

func TestColorizeInstructionKeepsText(t *testing.T) {
	t.Setenv("VCDIS_NO_COLOR", "")
	for _, insn := range []string{"mov r1, r2", "b 0x00001008", "ld r0, (r1+0x10)"} {
		if got := StripANSI(ColorizeInstruction(insn)); got != insn {
			t.Errorf("ColorizeInstruction(%q) text = %q", insn, got)
		}
	}
}

func TestIsBits(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"0000 0000 0001 1000 ", true},
		{"main", false},
		{"0101", false},
		{"\tmov r1, r2", false},
	}
	for _, tt := range tests {
		if got := isBits(tt.line); got != tt.want {
			t.Errorf("isBits(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestStripANSI(t *testing.T) {
	if got := StripANSI("\x1b[38;2;1;2;3mmov\x1b[0m r1"); got != "mov r1" {
		t.Errorf("StripANSI = %q", got)
	}
}
