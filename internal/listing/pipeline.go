package listing

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"vcdis/internal/decode"
	"vcdis/internal/disasm"
	"vcdis/internal/isa"
)

// Options controls a disassembly run.
type Options struct {
	// Workers bounds the number of regions decoded at once. Zero means
	// GOMAXPROCS.
	Workers int
	// Logger receives per-region progress at debug level. Nil disables it.
	Logger *log.Logger
}

// Disassemble runs the definition pass and then the rendering pass over s.
// On error the returned region holds the lines rendered so far.
func Disassemble(c *isa.Catalog, s *decode.Section) (disasm.Region, error) {
	region := disasm.Region{
		Name: s.Name,
		Base: uint32(s.Base),
		Size: len(s.Bytes),
	}

	def, err := NewVisitor(Definition, s)
	if err != nil {
		return region, err
	}
	if err := Visit(c, s, def, nil); err != nil {
		return region, fmt.Errorf("%s pass over %s: %w", Definition, s.Name, err)
	}

	render, err := NewVisitor(Rendering, s)
	if err != nil {
		return region, err
	}
	err = Visit(c, s, render, func(in *decode.Instruction) error {
		addr := uint32(in.Address)
		if name, ok := s.ObjectLabels[in.Address]; ok {
			region.Lines = append(region.Lines, disasm.Line{Kind: disasm.ObjectLabel, Address: addr, Text: name})
		}
		if name, ok := s.BranchLabels[in.Address]; ok {
			region.Lines = append(region.Lines, disasm.Line{Kind: disasm.BranchLabel, Address: addr, Text: name})
		}

		text, err := in.Text()
		if err != nil {
			return err
		}
		region.Lines = append(region.Lines, disasm.Line{
			Kind:    disasm.Instruction,
			Address: addr,
			Text:    text,
			Raw:     in.Window,
		})
		return nil
	})
	if err != nil {
		return region, fmt.Errorf("%s pass over %s: %w", Rendering, s.Name, err)
	}
	return region, nil
}

// Run disassembles independent regions concurrently. Each section must be
// its own context; the catalog is shared read-only. The listing keeps the
// input order. Regions that fail carry only their error text and are reported
// together in the returned error; the others are still complete.
func Run(ctx context.Context, c *isa.Catalog, sections []*decode.Section, opts Options) (disasm.Listing, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	listing := make(disasm.Listing, len(sections))
	errs := make([]error, len(sections))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, s := range sections {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if opts.Logger != nil {
				opts.Logger.Debug("Disassembling region", "name", s.Name, "base", fmt.Sprintf("0x%08X", uint32(s.Base)), "size", len(s.Bytes))
			}

			region, err := Disassemble(c, s)
			if err != nil {
				region.Lines = nil
				region.Err = err.Error()
				errs[i] = err
				if opts.Logger != nil {
					opts.Logger.Error("Region failed", "name", s.Name, "err", err)
				}
			} else if opts.Logger != nil {
				opts.Logger.Debug("Region done", "name", s.Name, "instructions", region.Lines.Instructions(), "labels", len(s.BranchLabels))
			}
			listing[i] = region
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return listing, err
	}
	return listing, errors.Join(errs...)
}
