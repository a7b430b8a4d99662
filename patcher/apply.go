package patcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/meigma/nwnpatch/internal/fsutil"
	"github.com/meigma/nwnpatch/pack"
	"github.com/meigma/nwnpatch/resource"
	"github.com/meigma/nwnpatch/tlk"
	"github.com/meigma/nwnpatch/twoda"
)

// ApplyRequest describes one apply run.
type ApplyRequest struct {
	// Package is the patch package directory.
	Package string

	// Base supplies the tables being patched and an optional
	// patchdefinitions.nss. A nil Base behaves as an empty repository.
	Base resource.Repository

	// GameDir is the installation root handed to the script compiler.
	GameDir string

	// SourceTLK is the dialog table the package string table is
	// appended to. Empty or missing skips the string table step.
	SourceTLK string

	// UserTLK marks SourceTLK as a user table: the package diff is not
	// applied and string references are biased by tlk.UserOffset.
	UserTLK bool

	// Compile runs the compiler on every script in the output directory.
	Compile bool

	// BuildHak packages the output directory into hak/<package>.hak.
	BuildHak bool

	// OutputDir defaults to OutputDir(Package).
	OutputDir string
}

// LedgerEntry records the row or string range a resource gained.
type LedgerEntry struct {
	Name  string
	First int
	Last  int
}

// String formats the entry as written to patchinfo.txt.
func (e LedgerEntry) String() string {
	return fmt.Sprintf("%s %d-%d", e.Name, e.First, e.Last)
}

// ApplyResult reports what an apply run produced.
type ApplyResult struct {
	OutputDir string
	Offsets   OffsetMap
	Ledger    []LedgerEntry

	// Tables holds the paths of the written tables in processing order.
	Tables []string

	// TLK is the merged dialog table path, or "" when none was written.
	TLK string

	// Compiled lists the scripts that compiled successfully.
	Compiled []string

	// Hak is the packaged archive path, or "" when none was built.
	Hak string
}

type tableJob struct {
	name  string
	key   string
	patch *twoda.Table
	base  *twoda.Table
}

// Apply merges the package described by req onto req.Base and writes the
// results to the output directory.
//
// Failures writing tables or the ledger abort the run and leave partial
// output behind. Script compilation failures are logged and skipped.
func (p *Patcher) Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := req.OutputDir
	if out == "" {
		out = OutputDir(req.Package)
	}
	log := p.log().With("package", req.Package)

	if err := os.MkdirAll(out, 0o755); err != nil {
		return nil, err
	}
	if err := fsutil.ClearFiles(out); err != nil {
		return nil, fmt.Errorf("clear output: %w", err)
	}
	if _, err := fsutil.CopyFiles(filepath.Join(req.Package, ScriptsDir), out); err != nil {
		return nil, fmt.Errorf("copy scripts: %w", err)
	}

	refs, err := p.loadReferences(req.Package)
	if err != nil {
		return nil, err
	}
	consts, err := readDefinitions(filepath.Join(req.Package, ConstantsFile), ParseConstants)
	if err != nil {
		return nil, err
	}
	jobs, err := p.loadTables(ctx, req.Package, req.Base, log)
	if err != nil {
		return nil, err
	}

	res := &ApplyResult{OutputDir: out, Offsets: OffsetMap{}}
	for _, job := range jobs {
		res.Offsets[job.key] = offsetFor(job.base, p.minSizes[job.key])
	}

	tlkOffset, err := p.applyTLK(req, out, res, log)
	if err != nil {
		return nil, err
	}
	if req.UserTLK {
		tlkOffset += tlk.UserOffset
	}
	res.Offsets[TLKKey] = tlkOffset

	include, err := includeScript(req.Base, out)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", IncludeScript, err)
	}
	buf := bytes.NewBuffer(include)

	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.report(StageShifting, job.name, i, len(jobs))
		tlog := log.With("table", job.name)

		if list, ok := refs[job.key]; ok {
			shiftReferences(tlog, job.patch, list, res.Offsets, true)
		} else {
			tlog.Debug("no reference definitions")
		}
		if def, ok := consts[job.key]; ok {
			n, err := writeConstants(buf, job.patch, def.Column, res.Offsets[job.key])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", job.name, err)
			}
			tlog.Debug("wrote constants", "count", n)
		}

		if job.base == nil {
			merged := job.patch.CloneHeader()
			merged.Append(job.patch, true)
			job.base = merged
			continue
		}
		first, last, err := mergeInto(job.base, job.patch, p.minSizes[job.key])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", job.name, err)
		}
		res.Ledger = append(res.Ledger, LedgerEntry{Name: job.name, First: first, Last: last})
	}

	if err := fsutil.WriteFile(filepath.Join(out, IncludeScript), buf.Bytes()); err != nil {
		return nil, err
	}
	for i, job := range jobs {
		p.report(StageWriting, job.name, i, len(jobs))
		path := filepath.Join(out, job.name)
		if err := job.base.WriteFile(path); err != nil {
			return nil, fmt.Errorf("write %s: %w", job.name, err)
		}
		res.Tables = append(res.Tables, path)
	}
	if err := writeLedger(filepath.Join(out, LedgerFile), res.Ledger); err != nil {
		return nil, err
	}

	if req.Compile {
		res.Compiled = p.compileScripts(ctx, req.GameDir, out, log)
	}
	if req.BuildHak {
		hak, err := p.buildHak(ctx, req.Package, out)
		if err != nil {
			return nil, err
		}
		res.Hak = hak
	}
	log.Info("patch applied", "tables", len(res.Tables), "output", out)
	return res, nil
}

// tableFiles returns the sorted *.2da file names of dir.
func tableFiles(dir string) ([]string, error) {
	names, err := fsutil.RegularFiles(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, n := range names {
		if strings.EqualFold(filepath.Ext(n), ".2da") {
			out = append(out, n)
		}
	}
	return out, nil
}

func (p *Patcher) loadTables(ctx context.Context, dir string, base resource.Repository, log *slog.Logger) ([]*tableJob, error) {
	names, err := tableFiles(dir)
	if err != nil {
		return nil, err
	}
	jobs := make([]*tableJob, 0, len(names))
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.report(StageLoading, name, i, len(names))
		patch, err := twoda.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		job := &tableJob{name: name, key: strings.ToLower(name), patch: patch}
		if base != nil {
			job.base, err = loadBaseTable(base, resource.ParseFileName(name))
			if err != nil {
				return nil, fmt.Errorf("base %s: %w", name, err)
			}
		}
		if job.base == nil {
			log.Warn("no base table, patch becomes the table", "table", name)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func loadBaseTable(repo resource.Repository, id resource.ID) (*twoda.Table, error) {
	rc, err := repo.Open(id)
	if errors.Is(err, resource.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return twoda.Read(rc)
}

// applyTLK merges the package string table and returns the source table
// size after the diff.
func (p *Patcher) applyTLK(req ApplyRequest, out string, res *ApplyResult, log *slog.Logger) (int, error) {
	patchPath := filepath.Join(req.Package, PatchTLKFile)
	if !fsutil.Exists(patchPath) {
		log.Info("no tlk patch")
		return 0, nil
	}
	if req.SourceTLK == "" || !fsutil.Exists(req.SourceTLK) {
		log.Warn("source tlk not found, string references are not shifted", "path", req.SourceTLK)
		return 0, nil
	}

	src, err := tlk.ReadFile(req.SourceTLK)
	if err != nil {
		return 0, err
	}
	diffPath := filepath.Join(req.Package, DiffFile)
	if fsutil.Exists(diffPath) {
		if req.UserTLK {
			log.Warn("tlk diff not applied to a user tlk", "diff", diffPath)
		} else {
			applied, err := src.MergeDiff(diffPath)
			if err != nil {
				return 0, err
			}
			log.Debug("applied tlk diff", "entries", len(applied))
		}
	}

	offset := src.Len()
	patch, err := tlk.ReadFile(patchPath)
	if err != nil {
		return 0, err
	}
	res.Ledger = append(res.Ledger, LedgerEntry{
		Name:  filepath.Base(req.SourceTLK),
		First: offset,
		Last:  offset + patch.Len() - 1,
	})
	src.AppendTable(patch)

	dest := OutputTLK(out)
	if err := src.WriteFile(dest); err != nil {
		return 0, fmt.Errorf("write tlk: %w", err)
	}
	res.TLK = dest
	return offset, nil
}

// includeScript returns the initial content of the constants script:
// the base repository's copy, else the one copied from the package
// scripts, else nothing.
func includeScript(base resource.Repository, out string) ([]byte, error) {
	if base != nil {
		data, err := base.ReadFile(resource.ParseFileName(IncludeScript))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, resource.ErrNotExist) {
			return nil, err
		}
	}
	data, err := os.ReadFile(filepath.Join(out, IncludeScript))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

func writeLedger(path string, entries []LedgerEntry) error {
	var buf bytes.Buffer
	for _, e := range entries {
		buf.WriteString(e.String())
		buf.WriteByte('\n')
	}
	if err := fsutil.WriteFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}

func (p *Patcher) compileScripts(ctx context.Context, gameDir, out string, log *slog.Logger) []string {
	if p.compiler == nil {
		log.Warn("no script compiler configured")
		return nil
	}
	names, err := fsutil.RegularFiles(out)
	if err != nil {
		log.Warn("list scripts", "error", err)
		return nil
	}
	var scripts []string
	for _, n := range names {
		if !strings.EqualFold(filepath.Ext(n), ".nss") ||
			strings.EqualFold(n, "nwscript.nss") || strings.EqualFold(n, IncludeScript) {
			continue
		}
		scripts = append(scripts, n)
	}

	var compiled []string
	for i, n := range scripts {
		if ctx.Err() != nil {
			log.Warn("script compilation canceled", "remaining", len(scripts)-i)
			break
		}
		p.report(StageCompiling, n, i, len(scripts))
		if err := p.compiler.Compile(ctx, filepath.Join(out, n), gameDir, out); err != nil {
			log.Warn("script compilation failed", "script", n, "error", err)
			continue
		}
		compiled = append(compiled, n)
	}
	return compiled
}

func (p *Patcher) buildHak(ctx context.Context, pkg, out string) (string, error) {
	blobs, err := pack.DirBlobs(out)
	if err != nil {
		return "", err
	}
	dest := OutputHak(pkg, out)
	p.report(StagePackaging, dest, 0, len(blobs))
	if err := p.sink.Pack(ctx, dest, pack.FormatHAK, blobs); err != nil {
		return "", fmt.Errorf("package %s: %w", filepath.Base(dest), err)
	}
	p.report(StagePackaging, dest, len(blobs), len(blobs))
	return dest, nil
}
