package decode

import (
	"fmt"

	"vcdis/internal/isa"
)

// UnmatchedInstructionError is returned when no template matches at a scan
// position. The scan cannot continue because the instruction length is
// unknown.
type UnmatchedInstructionError struct {
	Section string
	Offset  int
	Address int64
	Bytes   []byte // up to MaxInstructionLength raw bytes at Offset
}

func (e *UnmatchedInstructionError) Error() string {
	return fmt.Sprintf("no instruction matches in %s at offset 0x%X (address 0x%08X, bytes % X)",
		e.Section, e.Offset, uint32(e.Address), e.Bytes)
}

// Match finds the first template, in catalog declaration order, that
// matches the candidate window of its own byte length at s.Bytes[offset].
// It returns the template and the reassembled window it matched.
func Match(c *isa.Catalog, s *Section, offset int) (*isa.Template, []byte, error) {
	var windows [MaxInstructionLength/2 + 1][]byte
	var tried [MaxInstructionLength/2 + 1]bool

	for _, t := range c.Templates() {
		slot := t.ByteLength / 2
		if !tried[slot] {
			tried[slot] = true
			w, _, err := Window(s.Bytes, offset, t.ByteLength)
			if err != nil {
				return nil, nil, err
			}
			windows[slot] = w
		}

		w := windows[slot]
		if w != nil && t.Matches(w) {
			return t, w, nil
		}
	}

	end := min(offset+MaxInstructionLength, len(s.Bytes))
	return nil, nil, &UnmatchedInstructionError{
		Section: s.Name,
		Offset:  offset,
		Address: s.Address(offset),
		Bytes:   append([]byte(nil), s.Bytes[offset:end]...),
	}
}
