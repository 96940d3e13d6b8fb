package listing

import (
	"bufio"
	"encoding/json"
	"io"

	"vcdis/internal/disasm"
)

const eol = "\r\n"

// TextOptions controls the text listing.
type TextOptions struct {
	// Binary adds a line with the instruction bits after every instruction.
	Binary bool
}

// WriteRegion writes one region: its name, the body and a three line
// separator. A failed region gets a single error comment as its body.
func WriteRegion(w io.Writer, r disasm.Region, opts TextOptions) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(r.Name + ":" + eol)
	writeBody(bw, r, opts)
	bw.WriteString(eol + eol + eol)
	return bw.Flush()
}

// WriteBody writes the region's lines without the header and separator.
func WriteBody(w io.Writer, r disasm.Region, opts TextOptions) error {
	bw := bufio.NewWriter(w)
	writeBody(bw, r, opts)
	return bw.Flush()
}

func writeBody(bw *bufio.Writer, r disasm.Region, opts TextOptions) {
	for _, l := range r.Lines {
		switch l.Kind {
		case disasm.ObjectLabel:
			bw.WriteString(eol + l.Text + eol)
		case disasm.BranchLabel:
			bw.WriteString(l.Text + ":" + eol)
		default:
			bw.WriteString("\t" + l.Text + eol)
			if opts.Binary {
				bw.WriteString(disasm.Nibbles(l.Raw) + eol)
			}
		}
	}
	if r.Err != "" {
		bw.WriteString("; error: " + r.Err + eol)
	}
}

// WriteText writes every region in order.
func WriteText(w io.Writer, l disasm.Listing, opts TextOptions) error {
	for _, r := range l {
		if err := WriteRegion(w, r, opts); err != nil {
			return err
		}
	}
	return nil
}

// WriteJSON writes the listing as an indented JSON array of regions.
func WriteJSON(w io.Writer, l disasm.Listing) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(l)
}
