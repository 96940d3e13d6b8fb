// Package colorize highlights disassembly listings for the terminal.
package colorize

import (
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss/v2"

	vcstyles "vcdis/internal/vcdis/styles"
)

// Disabled reports whether VCDIS_NO_COLOR turns highlighting off.
func Disabled() bool {
	return os.Getenv("VCDIS_NO_COLOR") != ""
}

// getAssemblyLexer returns an assembly lexer with fallbacks.
func getAssemblyLexer() chroma.Lexer {
	for _, name := range []string{"gas", "GAS", "nasm"} {
		if lexer := lexers.Get(name); lexer != nil {
			return lexer
		}
	}
	return nil
}

func getListingStyle() *chroma.Style {
	for _, name := range []string{"vc-dark", "dracula", "monokai"} {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

func getTerminalFormatter() chroma.Formatter {
	for _, name := range []string{"terminal16m", "terminal256"} {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// ColorizeInstruction highlights the text of one instruction. On any lexer
// failure the text is returned unchanged.
func ColorizeInstruction(text string) string {
	if Disabled() {
		return text
	}
	lexer := getAssemblyLexer()
	if lexer == nil {
		return text
	}

	iterator, err := lexer.Tokenise(nil, text)
	if err != nil {
		return text
	}
	var buf strings.Builder
	if err := getTerminalFormatter().Format(&buf, getListingStyle(), iterator); err != nil {
		return text
	}

	out := buf.String()
	// Lexers that ensure a final newline add one the caller did not ask for.
	if !strings.HasSuffix(text, "\n") {
		if i := strings.LastIndex(out, "\n"); i >= 0 {
			out = out[:i] + out[i+1:]
		}
	}
	return out
}

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(vcstyles.Object)).Bold(true)
	objectStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(vcstyles.Object))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(vcstyles.Label))
	bitsStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(vcstyles.Comment))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(vcstyles.Error))
)

// ColorizeListing highlights a text listing line by line. Line endings are
// normalised to "\n".
func ColorizeListing(listing string) string {
	listing = strings.ReplaceAll(listing, "\r\n", "\n")
	if Disabled() {
		return listing
	}

	lines := strings.Split(listing, "\n")
	for i, line := range lines {
		lines[i] = colorizeLine(line)
	}
	return strings.Join(lines, "\n")
}

func colorizeLine(line string) string {
	switch {
	case line == "":
		return line
	case strings.HasPrefix(line, "\t"):
		return "\t" + ColorizeInstruction(line[1:])
	case strings.HasPrefix(line, "; error:"):
		return errorStyle.Render(line)
	case isBits(line):
		return bitsStyle.Render(line)
	case strings.HasPrefix(line, "L_") && strings.HasSuffix(line, ":"):
		return labelStyle.Render(line)
	case strings.HasSuffix(line, ":"):
		return headerStyle.Render(line)
	default:
		return objectStyle.Render(line)
	}
}

// isBits reports whether line is a binary column line.
func isBits(line string) bool {
	if len(line) < 10 {
		return false
	}
	for i := 0; i < len(line); i++ {
		if c := line[i]; c != '0' && c != '1' && c != ' ' {
			return false
		}
	}
	return true
}

// StripANSI removes ANSI escape sequences.
func StripANSI(s string) string {
	var result strings.Builder
	inEscape := false

	for _, r := range s {
		if r == '\x1b' {
			inEscape = true
		} else if inEscape {
			if r == 'm' {
				inEscape = false
			}
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
