package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"

	vcstyles "vcdis/internal/vcdis/styles"
)

func init() {
	_ = VCDark
}

// VCDark is the chroma style used for instruction text.
var VCDark = styles.Register(chroma.MustNewStyle("vc-dark", chroma.StyleEntries{
	chroma.Text:       vcstyles.Mnemonic,
	chroma.Background: "bg:#1e1e1e",
	chroma.Comment:    vcstyles.Comment,

	chroma.Keyword:      vcstyles.Mnemonic,
	chroma.NameFunction: vcstyles.Mnemonic,
	chroma.Name:         vcstyles.Register,
	chroma.NameBuiltin:  vcstyles.Register,
	chroma.NameVariable: vcstyles.Register,
	chroma.NameLabel:    vcstyles.Label,
	chroma.NameConstant: vcstyles.Label,

	chroma.LiteralNumber:        vcstyles.Number,
	chroma.LiteralNumberHex:     vcstyles.Number,
	chroma.LiteralNumberInteger: vcstyles.Number,

	chroma.Operator:    vcstyles.Mnemonic,
	chroma.Punctuation: vcstyles.Mnemonic,
	chroma.String:      vcstyles.Label,
}))
