package analysis

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"vcdis/internal/elfx"
)

// DefaultMinStringLength is the shortest run reported by FindStrings.
const DefaultMinStringLength = 4

// StringResult is a printable run recovered from a data region.
type StringResult struct {
	Region string `json:"region"`
	Addr   uint32 `json:"address"`
	Value  string `json:"value"`  // escaped content
	Len    int    `json:"length"` // byte length in the image
}

// EscapeUnprintable returns a string where printable Unicode runes are preserved.
// Control and unprintable runes are escaped as \uXXXX. Invalid UTF-8 is escaped as \xXX.
func EscapeUnprintable(b []byte) string {
	var sb strings.Builder
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			sb.WriteString(fmt.Sprintf("\\x%02X", b[0]))
		} else if unicode.IsPrint(r) {
			sb.WriteRune(r)
		} else {
			sb.WriteString(fmt.Sprintf("\\u%04X", r))
		}
		b = b[size:]
	}
	return sb.String()
}

// isStringByte accepts printable ASCII plus tab.
func isStringByte(b byte) bool {
	return b == '\t' || (b >= 0x20 && b < 0x7f)
}

// FindStrings scans a region for runs of at least minLen printable bytes.
// Runs end at a NUL or at the first unprintable byte.
func FindStrings(r elfx.Region, minLen int) []StringResult {
	if minLen <= 0 {
		minLen = DefaultMinStringLength
	}

	var out []StringResult
	start := -1
	flush := func(end int) {
		if start >= 0 && end-start >= minLen {
			out = append(out, StringResult{
				Region: r.Name,
				Addr:   r.Addr + uint32(start),
				Value:  EscapeUnprintable(r.Data[start:end]),
				Len:    end - start,
			})
		}
		start = -1
	}

	for i, b := range r.Data {
		if isStringByte(b) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(r.Data))
	return out
}

// ImageStrings runs FindStrings over every data region of im.
func ImageStrings(im *elfx.Image, minLen int) []StringResult {
	var out []StringResult
	for _, r := range im.Regions {
		if r.Kind == elfx.Data {
			out = append(out, FindStrings(r, minLen)...)
		}
	}
	return out
}
