package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss/v2/table"
	"github.com/spf13/cobra"

	"vcdis/internal/analysis"
	"vcdis/internal/config"
	"vcdis/internal/elfx"
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols [file]",
	Short: "List the symbols of an image",
	Long: `List the named symbols of an image with their value, size, binding and
the region that defines them. C++ names are demangled.`,
	Example: `
# Defined symbols only
vcdis symbols --defined start.elf
  `,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromFlags(cmd)
		if err != nil {
			return err
		}
		absPath, err := inputPath(args[0])
		if err != nil {
			return err
		}
		defined, _ := cmd.Flags().GetBool("defined")
		return runSymbols(cmd.OutOrStdout(), absPath, cfg, defined)
	},
}

func init() {
	symbolsCmd.Flags().Bool("defined", false, "Leave out undefined symbols")
	rootCmd.AddCommand(symbolsCmd)
}

func runSymbols(w io.Writer, path string, cfg config.Config, definedOnly bool) error {
	im, err := elfx.Open(path, cfg.ElfOptions())
	if err != nil {
		return err
	}
	defer im.Close()

	entries := analysis.ListSymbols(im, definedOnly)
	if cfg.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	t := table.New().Headers("#", "VALUE", "SIZE", "TYPE", "BIND", "REGION", "NAME")
	for _, e := range entries {
		t.Row(
			fmt.Sprint(e.Index),
			fmt.Sprintf("%08x", e.Value),
			fmt.Sprint(e.Size),
			e.Type,
			e.Bind,
			e.Region,
			e.Demangled,
		)
	}
	_, err = fmt.Fprintln(w, t.String())
	return err
}
