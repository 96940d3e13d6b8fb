package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	pathpkg "path/filepath"
	"runtime/pprof"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"vcdis/internal/config"
	"vcdis/internal/disasm"
	"vcdis/internal/elfx"
	"vcdis/internal/isa"
	"vcdis/internal/listing"
	"vcdis/internal/logging"
	vclog "vcdis/internal/vcdis/log"
)

func init() {
	def := config.Default()

	rootCmd.PersistentFlags().StringP("arch", "a", def.Arch, "Instruction grammar file (env VCDIS_ARCH)")
	rootCmd.PersistentFlags().StringSlice("sections", def.Sections, "Code sections to disassemble")
	rootCmd.PersistentFlags().StringSlice("data-sections", def.DataSections, "Data sections used for object labels and strings")
	rootCmd.PersistentFlags().Bool("raw", false, "Treat the input as a raw boot image")
	rootCmd.PersistentFlags().Int("raw-header", def.RawHeader, "Bytes skipped at the start of a raw image")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output results as JSON")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug")

	rootCmd.Flags().BoolP("help", "h", false, "Help")
	rootCmd.Flags().BoolP("no-tui", "n", false, "Print the listing without TUI")
	rootCmd.Flags().BoolP("binary", "b", false, "Print the instruction bits after every instruction")
	rootCmd.Flags().IntP("workers", "w", def.Workers, "Regions decoded in parallel")
	rootCmd.Flags().StringP("output", "o", "", "Write the listing to a file")
	rootCmd.Flags().String("cpuprofile", "", "Write CPU profile to file")
	rootCmd.Flags().String("memprofile", "", "Write memory profile to file")
}

var rootCmd = &cobra.Command{
	Use:   "vcdis [file]",
	Short: "Grammar-driven VideoCore IV disassembler",
	Long: `vcdis disassembles VideoCore IV ELF images and raw boot images.
Instructions are decoded with a bit-pattern grammar loaded at start up, branch
targets are resolved to relocation symbols or generated labels, and the listing
is shown in an interactive pager or printed as text or JSON.`,
	Example: `
# Browse the listing of a firmware image
vcdis start.elf

# Print the listing with the instruction bits
vcdis --no-tui --binary start.elf > start.s

# Disassemble a boot image with a custom grammar
vcdis --arch ./videocoreiv.arch bootcode.bin
  `,
	Args: cobra.ExactArgs(1),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		vclog.Setup(os.Stderr, debug)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cpuprofile, _ := cmd.Flags().GetString("cpuprofile")
		if cpuprofile != "" {
			f, err := os.Create(cpuprofile)
			if err != nil {
				return fmt.Errorf("could not create CPU profile: %w", err)
			}
			defer f.Close()
			if err := pprof.StartCPUProfile(f); err != nil {
				return fmt.Errorf("could not start CPU profile: %w", err)
			}
			defer pprof.StopCPUProfile()
		}

		memprofile, _ := cmd.Flags().GetString("memprofile")
		if memprofile != "" {
			defer func() {
				f, err := os.Create(memprofile)
				if err != nil {
					fmt.Fprintf(os.Stderr, "could not create memory profile: %v\n", err)
					return
				}
				defer f.Close()
				if err := pprof.WriteHeapProfile(f); err != nil {
					fmt.Fprintf(os.Stderr, "could not write memory profile: %v\n", err)
				}
			}()
		}

		cfg, err := configFromFlags(cmd)
		if err != nil {
			return err
		}
		absPath, err := inputPath(args[0])
		if err != nil {
			return err
		}

		lg := newLogger(cfg)
		defer lg.Close()

		// Pipes and files get the plain listing.
		if cfg.JSON || cfg.Output != "" || !term.IsTerminal(os.Stdout.Fd()) {
			cfg.NoTUI = true
		}
		if cfg.NoTUI {
			return runListing(cmd.Context(), cmd.OutOrStdout(), absPath, cfg, lg.Logger)
		}

		program := tea.NewProgram(
			NewModel(cmd.Context(), absPath, cfg, lg.Logger),
			tea.WithAltScreen(),
			tea.WithContext(cmd.Context()),
		)
		if _, err := program.Run(); err != nil {
			slog.Error("TUI run error", "error", err)
			return fmt.Errorf("TUI error: %w", err)
		}
		return nil
	},
}

// configFromFlags resolves the configuration: defaults, then VCDIS_ARCH, then
// every flag set on the command line.
func configFromFlags(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	cfg.ApplyEnv()

	flags := cmd.Flags()
	if flags.Changed("arch") {
		cfg.Arch, _ = flags.GetString("arch")
	}
	if flags.Changed("sections") {
		cfg.Sections, _ = flags.GetStringSlice("sections")
	}
	if flags.Changed("data-sections") {
		cfg.DataSections, _ = flags.GetStringSlice("data-sections")
	}
	if flags.Changed("raw-header") {
		cfg.RawHeader, _ = flags.GetInt("raw-header")
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("output") {
		cfg.Output, _ = flags.GetString("output")
	}
	cfg.Raw, _ = flags.GetBool("raw")
	cfg.JSON, _ = flags.GetBool("json")
	cfg.Debug, _ = flags.GetBool("debug")
	cfg.NoTUI, _ = flags.GetBool("no-tui")
	cfg.Binary, _ = flags.GetBool("binary")

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func inputPath(file string) (string, error) {
	absPath, err := pathpkg.Abs(file)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if _, err := os.Stat(absPath); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", file)
		}
		return "", fmt.Errorf("cannot access file: %w", err)
	}
	return absPath, nil
}

func newLogger(cfg config.Config) *logging.LoggerCloser {
	lg := logging.NewLogger()
	if cfg.Debug {
		lg.SetLevel(log.DebugLevel)
	}
	return lg
}

// loadCatalog resolves and parses the grammar. Any failure is fatal for the
// run.
func loadCatalog(cfg config.Config) (*isa.Catalog, error) {
	path, err := cfg.ResolveArch()
	if err != nil {
		return nil, err
	}
	return isa.LoadFile(path)
}

// disassembleFile runs the pipeline over every code region of the image at
// path. The listing is returned even when some regions failed; err then
// joins the region errors.
func disassembleFile(ctx context.Context, path string, cfg config.Config, lg *log.Logger) (disasm.Listing, error) {
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	lg.Debug("Loaded grammar", "templates", catalog.Len(), "tables", len(catalog.TableTags()))

	im, err := elfx.Open(path, cfg.ElfOptions())
	if err != nil {
		return nil, err
	}
	defer im.Close()

	sections := im.CodeSections()
	if len(sections) == 0 {
		return nil, fmt.Errorf("%s: none of the sections %v is present", path, cfg.Sections)
	}
	lg.Debug("Loaded image", "path", path, "raw", im.Raw, "symbols", len(im.Symbols)-1, "regions", len(im.Regions))

	return listing.Run(ctx, catalog, sections, listing.Options{Workers: cfg.Workers, Logger: lg})
}

// runListing writes the listing of path as text or JSON to w, or to
// cfg.Output when set. Regions that disassembled are written even when
// others failed.
func runListing(ctx context.Context, w io.Writer, path string, cfg config.Config, lg *log.Logger) error {
	l, runErr := disassembleFile(ctx, path, cfg, lg)
	if l == nil {
		return runErr
	}

	if cfg.Output != "" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	var err error
	if cfg.JSON {
		err = listing.WriteJSON(w, l)
	} else {
		err = listing.WriteText(w, l, listing.TextOptions{Binary: cfg.Binary})
	}
	if err != nil {
		return errors.Join(runErr, fmt.Errorf("write listing: %w", err))
	}
	return runErr
}

func Execute() {
	// fang renders help and errors as markdown; plain cobra keeps piped
	// output clean.
	noTUI := false
	for _, arg := range os.Args[1:] {
		if arg == "--no-tui" || arg == "-n" || arg == "--json" || arg == "-j" {
			noTUI = true
			break
		}
	}
	if !noTUI && !term.IsTerminal(os.Stdout.Fd()) {
		noTUI = true
	}

	if noTUI {
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
