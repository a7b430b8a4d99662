// Package patcher merges patch packages onto a game installation.
//
// A patch package is a directory holding 2DA tables whose rows are
// appended to the base tables of the same name, an optional string
// table appended to the source dialog table, an optional string table
// diff applied before that, reference definitions naming the columns
// that hold row indices into other tables, constant definitions, and a
// scripts directory copied verbatim.
//
// Appending rows changes the row numbers patch authors wrote, so every
// reference column is shifted by the size of the table it points at
// before the rows are merged. Rows marked "!N" instead replace base
// row N in place.
//
// Two packages can be joined into one with the same cumulative effect;
// see Patcher.Join and Patcher.JoinAll.
package patcher

import (
	"log/slog"
	"maps"
	"path/filepath"

	"github.com/meigma/nwnpatch/pack"
)

// Fixed file names inside a patch package.
const (
	ConstantsFile  = "includedefs.txt"
	ReferencesFile = "references.txt"
	PatchTLKFile   = "patch.tlk"
	DiffFile       = "diff.tlu"
	ScriptsDir     = "scripts"
	LedgerFile     = "patchinfo.txt"
	IncludeScript  = "patchdefinitions.nss"
)

// Patcher applies and joins patch packages.
type Patcher struct {
	logger     *slog.Logger
	progress   ProgressFunc
	compiler   Compiler
	sink       pack.Sink
	references References
	minSizes   MinimumSizes
}

// Option configures a Patcher.
type Option func(*Patcher)

// WithLogger sets the logger for warnings and diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Patcher) {
		p.logger = logger
	}
}

// WithProgress sets a callback for progress updates.
func WithProgress(fn ProgressFunc) Option {
	return func(p *Patcher) {
		p.progress = fn
	}
}

// WithCompiler sets the script compiler used when scripts are compiled.
// The default runs ExecCompiler.
func WithCompiler(c Compiler) Option {
	return func(p *Patcher) {
		p.compiler = c
	}
}

// WithSink sets the archive sink used to build the output HAK.
// The default is pack.Default().
func WithSink(s pack.Sink) Option {
	return func(p *Patcher) {
		p.sink = s
	}
}

// WithDefaultReferences replaces the built-in reference definitions that
// are overlaid on every package's own definitions.
func WithDefaultReferences(refs References) Option {
	return func(p *Patcher) {
		p.references = refs
	}
}

// WithMinimumSizes replaces the built-in minimum table sizes.
func WithMinimumSizes(sizes MinimumSizes) Option {
	return func(p *Patcher) {
		p.minSizes = sizes
	}
}

// New returns a Patcher configured by opts.
func New(opts ...Option) *Patcher {
	p := &Patcher{
		compiler:   ExecCompiler{},
		sink:       pack.Default(),
		references: builtinReferences,
		minSizes:   builtinMinSizes,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Patcher) log() *slog.Logger {
	if p.logger != nil {
		return p.logger
	}
	return slog.New(slog.DiscardHandler)
}

// OutputDir returns the default output directory of the package at dir.
func OutputDir(dir string) string {
	return filepath.Join(dir, "out")
}

// OutputTLK returns the merged dialog table path inside out.
func OutputTLK(out string) string {
	return filepath.Join(out, "tlk", "dialog.tlk")
}

// OutputHak returns the archive path built for the package at dir
// inside out.
func OutputHak(dir, out string) string {
	return filepath.Join(out, "hak", packageName(dir)+".hak")
}

func packageName(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return filepath.Base(dir)
}

// loadReferences returns the package's reference definitions with the
// configured defaults overlaid.
func (p *Patcher) loadReferences(dir string) (References, error) {
	refs, err := readDefinitions(filepath.Join(dir, ReferencesFile), ParseReferences)
	if err != nil {
		return nil, err
	}
	maps.Copy(refs, p.references)
	return refs, nil
}
