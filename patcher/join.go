package patcher

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/meigma/nwnpatch/internal/fsutil"
	"github.com/meigma/nwnpatch/tlk"
	"github.com/meigma/nwnpatch/twoda"
)

// ErrTooFewPackages is returned by JoinAll for fewer than two packages.
var ErrTooFewPackages = errors.New("patcher: join needs at least two packages")

// JoinResult reports the offsets a join shifted the newer package by.
type JoinResult struct {
	Dest    string
	Offsets OffsetMap
	Tables  []string
}

// Join writes to dest a package equivalent to applying older and then
// newer.
//
// The older package is copied verbatim. Tables of newer are shifted by
// the non-absolute row counts of the older tables they patch and appended
// with their row markers kept, so the result can be applied or joined
// again. Absolute values are left untouched.
func (p *Patcher) Join(ctx context.Context, newer, older, dest string) (*JoinResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := p.log().With("newer", newer, "older", older, "dest", dest)
	p.report(StageJoining, dest, 0, 0)

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, err
	}
	scripts := filepath.Join(dest, ScriptsDir)
	for _, dir := range []string{older, newer} {
		src := filepath.Join(dir, ScriptsDir)
		if info, err := os.Stat(src); err != nil || !info.IsDir() {
			continue
		}
		if _, err := fsutil.CopyFiles(src, scripts); err != nil {
			return nil, fmt.Errorf("copy scripts: %w", err)
		}
	}
	if _, err := fsutil.CopyFiles(older, dest); err != nil {
		return nil, fmt.Errorf("copy older package: %w", err)
	}

	refs, err := p.loadReferences(newer)
	if err != nil {
		return nil, err
	}
	jobs, err := p.loadJoinTables(ctx, newer, older)
	if err != nil {
		return nil, err
	}
	res := &JoinResult{Dest: dest, Offsets: OffsetMap{}}
	for _, job := range jobs {
		if job.base != nil {
			res.Offsets[job.key] = job.base.NonAbsoluteLen()
		} else {
			res.Offsets[job.key] = 0
		}
	}

	if err := joinTLK(newer, older, dest, res.Offsets); err != nil {
		return nil, err
	}
	if err := joinDiffs(newer, older, dest); err != nil {
		return nil, err
	}

	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.report(StageShifting, job.name, i, len(jobs))
		if list, ok := refs[job.key]; ok {
			shiftReferences(log.With("table", job.name), job.patch, list, res.Offsets, false)
		}
		merged := job.base
		if merged == nil {
			merged = job.patch.CloneHeader()
		}
		merged.Append(job.patch, true)

		p.report(StageWriting, job.name, i, len(jobs))
		path := filepath.Join(dest, job.name)
		if job.baseName != "" && job.baseName != job.name {
			if err := os.Remove(filepath.Join(dest, job.baseName)); err != nil {
				return nil, err
			}
		}
		if err := merged.WriteFile(path); err != nil {
			return nil, fmt.Errorf("write %s: %w", job.name, err)
		}
		res.Tables = append(res.Tables, path)
	}

	for _, name := range []string{ReferencesFile, ConstantsFile} {
		if err := concatLines(filepath.Join(dest, name), filepath.Join(newer, name), filepath.Join(older, name)); err != nil {
			return nil, fmt.Errorf("join %s: %w", name, err)
		}
	}
	log.Info("packages joined", "tables", len(res.Tables))
	return res, nil
}

type joinJob struct {
	tableJob
	baseName string
}

// loadJoinTables pairs every table of newer with the same-named table of
// older, matched case-insensitively.
func (p *Patcher) loadJoinTables(ctx context.Context, newer, older string) ([]*joinJob, error) {
	names, err := tableFiles(newer)
	if err != nil {
		return nil, err
	}
	olderNames, err := tableFiles(older)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]string, len(olderNames))
	for _, n := range olderNames {
		byKey[strings.ToLower(n)] = n
	}

	jobs := make([]*joinJob, 0, len(names))
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.report(StageLoading, name, i, len(names))
		patch, err := twoda.ReadFile(filepath.Join(newer, name))
		if err != nil {
			return nil, err
		}
		job := &joinJob{tableJob: tableJob{name: name, key: strings.ToLower(name), patch: patch}}
		if on, ok := byKey[job.key]; ok {
			job.baseName = on
			if job.base, err = twoda.ReadFile(filepath.Join(older, on)); err != nil {
				return nil, err
			}
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// joinTLK concatenates the package string tables, older first.
func joinTLK(newer, older, dest string, offsets OffsetMap) error {
	n, o := filepath.Join(newer, PatchTLKFile), filepath.Join(older, PatchTLKFile)
	target := filepath.Join(dest, PatchTLKFile)
	switch {
	case fsutil.Exists(n) && fsutil.Exists(o):
		size, err := tlk.Size(o)
		if err != nil {
			return err
		}
		offsets[TLKKey] = size
		return tlk.Concat(o, n, target)
	case fsutil.Exists(n):
		return fsutil.CopyFile(n, target)
	default:
		// older's copy, if any, is already in place
		return nil
	}
}

// joinDiffs merges the string table diffs. Both are applied to a scratch
// table, older first, and the union of their indices is written.
func joinDiffs(newer, older, dest string) error {
	n, o := filepath.Join(newer, DiffFile), filepath.Join(older, DiffFile)
	target := filepath.Join(dest, DiffFile)
	switch {
	case fsutil.Exists(n) && fsutil.Exists(o):
		scratch := tlk.New(tlk.English)
		olderIdx, err := scratch.MergeDiff(o)
		if err != nil {
			return err
		}
		newerIdx, err := scratch.MergeDiff(n)
		if err != nil {
			return err
		}
		return scratch.WriteDiffFile(target, tlk.UnionIndices(olderIdx, newerIdx))
	case fsutil.Exists(n):
		return fsutil.CopyFile(n, target)
	default:
		return nil
	}
}

// concatLines writes the lines of every existing input to dest.
func concatLines(dest string, inputs ...string) error {
	var buf bytes.Buffer
	for _, in := range inputs {
		f, err := os.Open(in)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			buf.WriteString(sc.Text())
			buf.WriteByte('\n')
		}
		err = sc.Err()
		f.Close()
		if err != nil {
			return err
		}
	}
	return fsutil.WriteFile(dest, buf.Bytes())
}

// JoinAll folds pkgs, ordered oldest first, into one package at dest:
// ((p0 + p1) + p2) and so on, each step joining the next package onto
// the accumulated one. Intermediate packages live in temporary
// directories that are removed before JoinAll returns.
func (p *Patcher) JoinAll(ctx context.Context, pkgs []string, dest string) (*JoinResult, error) {
	if len(pkgs) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewPackages, len(pkgs))
	}
	acc := pkgs[0]
	var res *JoinResult
	for i, next := range pkgs[1:] {
		out := dest
		if i < len(pkgs)-2 {
			tmp, err := os.MkdirTemp("", "nwnpatch-join-*")
			if err != nil {
				return nil, err
			}
			defer os.RemoveAll(tmp)
			out = tmp
		}
		var err error
		if res, err = p.Join(ctx, next, acc, out); err != nil {
			return nil, fmt.Errorf("join %s: %w", next, err)
		}
		acc = out
	}
	return res, nil
}
