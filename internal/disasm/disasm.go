// Package disasm defines the listing model shared by the text writer, the
// JSON output and the interactive pager.
package disasm

import (
	"fmt"
	"strings"
)

// Kind classifies a listing line.
type Kind int

const (
	Instruction Kind = iota
	ObjectLabel      // symbol defined at this address
	BranchLabel      // label generated or resolved for a branch target
)

var kindNames = [...]string{"instruction", "object", "label"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	for i, name := range kindNames {
		if name == string(b) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown line kind %q", b)
}

// Line is one entry of a region listing.
type Line struct {
	Kind    Kind   `json:"kind"`
	Address uint32 `json:"address"`
	Text    string `json:"text"`
	// Raw is the matched candidate window, set for instructions only.
	Raw []byte `json:"raw,omitempty"`
}

// Stream is a linear sequence of listing lines.
type Stream []Line

// Instructions counts the instruction lines.
func (s Stream) Instructions() int {
	n := 0
	for _, l := range s {
		if l.Kind == Instruction {
			n++
		}
	}
	return n
}

// Region is the listing of one code region.
type Region struct {
	Name  string `json:"name"`
	Base  uint32 `json:"base"`
	Size  int    `json:"size"`
	Lines Stream `json:"lines"`
	Err   string `json:"error,omitempty"`
}

// Listing is an ordered set of regions.
type Listing []Region

// Nibbles renders bytes as space separated 4-bit groups, two per byte.
func Nibbles(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		fmt.Fprintf(&sb, "%04b %04b ", c>>4, c&0xF)
	}
	return sb.String()
}
