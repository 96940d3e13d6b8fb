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

var stringsCmd = &cobra.Command{
	Use:   "strings [file]",
	Short: "List printable strings in the data regions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromFlags(cmd)
		if err != nil {
			return err
		}
		absPath, err := inputPath(args[0])
		if err != nil {
			return err
		}
		minLen, _ := cmd.Flags().GetInt("min")
		return runStrings(cmd.OutOrStdout(), absPath, cfg, minLen)
	},
}

func init() {
	stringsCmd.Flags().IntP("min", "m", analysis.DefaultMinStringLength, "Shortest string reported")
	rootCmd.AddCommand(stringsCmd)
}

func runStrings(w io.Writer, path string, cfg config.Config, minLen int) error {
	if minLen < 1 {
		return fmt.Errorf("minimum string length must be positive, got %d", minLen)
	}
	im, err := elfx.Open(path, cfg.ElfOptions())
	if err != nil {
		return err
	}
	defer im.Close()

	found := analysis.ImageStrings(im, minLen)
	if cfg.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(found)
	}

	t := table.New().Headers("REGION", "ADDRESS", "LEN", "STRING")
	for _, s := range found {
		t.Row(s.Region, fmt.Sprintf("%08x", s.Addr), fmt.Sprint(s.Len), s.Value)
	}
	_, err = fmt.Fprintln(w, t.String())
	return err
}
