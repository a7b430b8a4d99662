package patcher

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/meigma/nwnpatch/resource"
)

// previewContext is the number of unchanged lines around each hunk.
const previewContext = 3

// TableDiff is the unified diff of one base table against its patched
// result.
type TableDiff struct {
	Name string
	Diff string
}

// Preview runs Apply into a temporary directory without compiling or
// packaging and returns a unified diff per patched table. Tables with
// no base are diffed against an empty file.
func (p *Patcher) Preview(ctx context.Context, req ApplyRequest) ([]TableDiff, error) {
	tmp, err := os.MkdirTemp("", "nwnpatch-preview-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	req.OutputDir = tmp
	req.Compile = false
	req.BuildHak = false
	res, err := p.Apply(ctx, req)
	if err != nil {
		return nil, err
	}

	diffs := make([]TableDiff, 0, len(res.Tables))
	for _, path := range res.Tables {
		name := filepath.Base(path)
		before, err := renderBase(req.Base, resource.ParseFileName(name))
		if err != nil {
			return nil, err
		}
		after, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		d, err := UnifiedDiff(name, before, string(after))
		if err != nil {
			return nil, err
		}
		diffs = append(diffs, TableDiff{Name: name, Diff: d})
	}
	return diffs, nil
}

func renderBase(repo resource.Repository, id resource.ID) (string, error) {
	if repo == nil {
		return "", nil
	}
	t, err := loadBaseTable(repo, id)
	if err != nil || t == nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Write(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// UnifiedDiff returns the unified diff of two renderings of name.
func UnifiedDiff(name, before, after string) (string, error) {
	u := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  previewContext,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return "", fmt.Errorf("diff %s: %w", name, err)
	}
	return s, nil
}
