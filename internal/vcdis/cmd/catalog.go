package cmd

import (
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"vcdis/internal/config"
	"vcdis/internal/isa"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Check the instruction grammar",
	Long: `Load the instruction grammar and report how many templates it declares per
instruction length and which operand tables it defines.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromFlags(cmd)
		if err != nil {
			return err
		}
		dump, _ := cmd.Flags().GetBool("dump")
		return runCatalog(cmd.OutOrStdout(), cfg, dump)
	},
}

func init() {
	catalogCmd.Flags().Bool("dump", false, "Dump the parsed templates")
	rootCmd.AddCommand(catalogCmd)
}

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	DisableMethods:          true,
	SortKeys:                true,
}

func runCatalog(w io.Writer, cfg config.Config, dump bool) error {
	c, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s: %d templates\n", cfg.Arch, c.Len())
	counts := c.CountByLength()
	for _, n := range isa.ByteLengths() {
		fmt.Fprintf(w, "  %2d bytes: %d\n", n, counts[n])
	}
	for _, tag := range c.TableTags() {
		entries, _ := c.Table(tag)
		fmt.Fprintf(w, "  table %c: %d entries\n", tag, len(entries))
	}

	if dump {
		for _, t := range c.Templates() {
			fmt.Fprintf(w, "\n# line %d: %s\n", t.Line, t)
			dumpConfig.Fdump(w, t)
		}
	}
	return nil
}
