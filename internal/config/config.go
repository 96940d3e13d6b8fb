// Package config holds the command line configuration of vcdis.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"vcdis/internal/elfx"
	"vcdis/internal/isa"
)

// Config is the resolved run configuration.
type Config struct {
	Arch         string   `json:"arch" jsonschema:"title=Grammar,description=Path of the instruction grammar file,default=videocoreiv.arch"`
	Sections     []string `json:"sections" jsonschema:"title=Code Sections,description=ELF sections to disassemble"`
	DataSections []string `json:"dataSections" jsonschema:"title=Data Sections,description=ELF sections loaded for object labels and strings"`
	Raw          bool     `json:"raw" jsonschema:"title=Raw Image,description=Treat the input as a raw boot image"`
	RawHeader    int      `json:"rawHeader" jsonschema:"title=Raw Header,description=Bytes skipped at the start of a raw image,minimum=0,default=512"`
	Binary       bool     `json:"binary" jsonschema:"title=Binary Column,description=Print the instruction bits after every instruction"`
	Workers      int      `json:"workers" jsonschema:"title=Workers,description=Regions decoded in parallel,minimum=1"`
	Output       string   `json:"output,omitempty" jsonschema:"title=Output,description=Write the listing to this file instead of stdout"`
	JSON         bool     `json:"json" jsonschema:"title=JSON,description=Emit the listing as JSON"`
	NoTUI        bool     `json:"noTui" jsonschema:"title=No TUI,description=Print the listing instead of opening the pager"`
	Debug        bool     `json:"debug" jsonschema:"title=Debug,description=Enable debug logging"`
}

// Default returns the configuration used when no flags are given.
func Default() Config {
	opts := elfx.DefaultOptions()
	return Config{
		Arch:         isa.DefaultGrammarFile,
		Sections:     opts.TextSections,
		DataSections: opts.DataSections,
		RawHeader:    opts.RawHeader,
		Workers:      runtime.GOMAXPROCS(0),
	}
}

// ApplyEnv overrides the grammar path from VCDIS_ARCH when it is set.
func (c *Config) ApplyEnv() {
	if arch := os.Getenv("VCDIS_ARCH"); arch != "" {
		c.Arch = arch
	}
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if c.Arch == "" {
		errs = append(errs, errors.New("grammar path is empty"))
	}
	if len(c.Sections) == 0 && !c.Raw {
		errs = append(errs, errors.New("no code sections selected"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.RawHeader < 0 {
		errs = append(errs, fmt.Errorf("raw header size must not be negative, got %d", c.RawHeader))
	}
	if c.JSON && c.Binary {
		errs = append(errs, errors.New("--binary has no effect with --json"))
	}
	return errors.Join(errs...)
}

// ElfOptions returns the loader options for this configuration.
func (c Config) ElfOptions() elfx.Options {
	return elfx.Options{
		TextSections: c.Sections,
		DataSections: c.DataSections,
		Raw:          c.Raw,
		RawHeader:    c.RawHeader,
	}
}

// ResolveArch locates the grammar file. Relative paths are tried against the
// working directory first and then next to the executable.
func (c Config) ResolveArch() (string, error) {
	if _, err := os.Stat(c.Arch); err == nil || filepath.IsAbs(c.Arch) {
		return c.Arch, err
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), c.Arch)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("grammar file %s not found", c.Arch)
}
