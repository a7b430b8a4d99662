package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/nwnpatch"
	"github.com/meigma/nwnpatch/bif"
	"github.com/meigma/nwnpatch/pack"
	"github.com/meigma/nwnpatch/patcher"
	"github.com/meigma/nwnpatch/resource"
)

// dialogTLK is the installation's dialog table.
const dialogTLK = "dialog.tlk"

// PatchFlags are shared by apply and preview.
type PatchFlags struct {
	Package string   `arg:"" type:"existingdir" help:"Patch package directory."`
	Game    string   `name:"game" short:"g" env:"NWNPATCH_GAME_DIR" type:"path" help:"Game installation directory."`
	Base    []string `name:"base" short:"b" type:"path" help:"Resource stores layered over the installation, later wins."`
	TLK     string   `name:"tlk" env:"NWNPATCH_TLK" type:"path" help:"String table to extend. Defaults to the installation's dialog.tlk."`
	UserTLK bool     `name:"user-tlk" help:"Treat --tlk as a user string table."`
	Out     string   `name:"out" short:"o" type:"path" help:"Output directory. Defaults to <package>/out."`
}

func (f PatchFlags) request(base resource.Repository) patcher.ApplyRequest {
	tlkPath := f.TLK
	if tlkPath == "" && f.Game != "" {
		tlkPath = filepath.Join(f.Game, dialogTLK)
	}
	return patcher.ApplyRequest{
		Package:   f.Package,
		Base:      base,
		GameDir:   f.Game,
		SourceTLK: tlkPath,
		UserTLK:   f.UserTLK,
		OutputDir: f.Out,
	}
}

// openBase layers the installation and every --base store. It returns a
// nil repository when neither is given.
func (f PatchFlags) openBase(a *app) (*resource.Composite, error) {
	var repos []resource.Repository
	closeAll := func() error {
		var errs []error
		for _, r := range repos {
			errs = append(errs, r.Close())
		}
		return errors.Join(errs...)
	}

	if f.Game != "" {
		inst, err := nwnpatch.OpenInstall(f.Game, nwnpatch.WithLogger(a.logger))
		if err != nil {
			return nil, err
		}
		repos = append(repos, inst)
	}
	for _, b := range f.Base {
		r, err := nwnpatch.Open(b, nwnpatch.WithLogger(a.logger))
		if err != nil {
			return nil, errors.Join(err, closeAll())
		}
		repos = append(repos, r)
	}
	if len(repos) == 0 {
		return nil, nil
	}
	return resource.NewComposite(repos...), nil
}

// ApplyCmd merges a patch package.
type ApplyCmd struct {
	PatchFlags `embed:""`

	Compile  bool   `name:"compile" negatable:"" default:"true" help:"Compile the output scripts."`
	Compiler string `name:"compiler" env:"NWNPATCH_COMPILER" type:"path" help:"Script compiler executable."`
	Hak      bool   `name:"hak" negatable:"" default:"true" help:"Package the output into a hak."`
}

// Run executes the apply command.
func (c *ApplyCmd) Run(a *app) error {
	base, err := c.openBase(a)
	if err != nil {
		return err
	}
	if base != nil {
		defer base.Close()
	}

	req := c.request(repoOrNil(base))
	req.Compile = c.Compile
	req.BuildHak = c.Hak
	p := a.patcher(patcher.WithCompiler(patcher.ExecCompiler{
		Path:   c.Compiler,
		Stdout: a.out,
		Stderr: a.errOut,
	}))
	res, err := p.Apply(a.ctx, req)
	if err != nil {
		return err
	}

	for _, e := range res.Ledger {
		fmt.Fprintln(a.out, e.String())
	}
	fmt.Fprintf(a.out, "output: %s\n", res.OutputDir)
	if res.TLK != "" {
		fmt.Fprintf(a.out, "tlk: %s\n", res.TLK)
	}
	if res.Hak != "" {
		fmt.Fprintf(a.out, "hak: %s\n", res.Hak)
	}
	return nil
}

// PreviewCmd prints a unified diff per patched table.
type PreviewCmd struct {
	PatchFlags `embed:""`
}

// Run executes the preview command.
func (c *PreviewCmd) Run(a *app) error {
	base, err := c.openBase(a)
	if err != nil {
		return err
	}
	if base != nil {
		defer base.Close()
	}

	diffs, err := a.patcher().Preview(a.ctx, c.request(repoOrNil(base)))
	if err != nil {
		return err
	}
	for _, d := range diffs {
		if _, err := io.WriteString(a.out, d.Diff); err != nil {
			return err
		}
	}
	return nil
}

// repoOrNil keeps a nil composite from becoming a non-nil interface.
func repoOrNil(c *resource.Composite) resource.Repository {
	if c == nil {
		return nil
	}
	return c
}

// JoinCmd joins packages.
type JoinCmd struct {
	Packages []string `arg:"" type:"existingdir" help:"Patch packages, oldest first."`
	Out      string   `name:"out" short:"o" required:"" type:"path" help:"Destination package directory."`
}

// Run executes the join command.
func (c *JoinCmd) Run(a *app) error {
	res, err := a.patcher().JoinAll(a.ctx, c.Packages, c.Out)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "joined %d packages into %s\n", len(c.Packages), res.Dest)
	return nil
}

// PackCmd packs a directory.
type PackCmd struct {
	Dir    string `arg:"" type:"existingdir" help:"Directory to pack."`
	Dest   string `arg:"" type:"path" help:"Archive to write."`
	Format string `name:"format" short:"f" help:"hak, mod, erf or zip. Defaults to the destination extension."`
	Level  int    `name:"level" help:"Zip compression level."`
}

// Run executes the pack command.
func (c *PackCmd) Run(a *app) error {
	format := c.Format
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(c.Dest), ".")
	}
	blobs, err := pack.DirBlobs(c.Dir)
	if err != nil {
		return err
	}

	var sink pack.Sink = pack.Default()
	if strings.EqualFold(format, pack.FormatZIP) {
		sink = pack.Zip{Level: c.Level}
	}
	if err := sink.Pack(a.ctx, c.Dest, format, blobs); err != nil {
		return err
	}
	a.logger.Info("packed", "dest", c.Dest, "format", format, "files", len(blobs))
	return nil
}

// BIFLsCmd lists archive entries.
type BIFLsCmd struct {
	Path   string `arg:"" type:"existingfile" help:"BIF archive."`
	Digest bool   `name:"digest" help:"Print the sha256 digest of each entry."`
}

// Run executes the bif ls command.
func (c *BIFLsCmd) Run(a *app) error {
	r, err := bif.Open(c.Path, bif.WithLogger(a.logger))
	if err != nil {
		return err
	}
	defer r.Close()

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for i, e := range r.Entries() {
		if err := a.ctx.Err(); err != nil {
			return err
		}
		line := fmt.Sprintf("%s\t%d", bif.SlotName(e), e.Length)
		if c.Digest {
			sr, err := r.OpenEntry(i)
			if err != nil {
				return err
			}
			d, err := digest.Canonical.FromReader(sr)
			if err != nil {
				return err
			}
			line += "\t" + d.String()
		}
		fmt.Fprintln(tw, line)
	}
	return tw.Flush()
}

// BIFExtractCmd extracts every entry.
type BIFExtractCmd struct {
	Path    string `arg:"" type:"existingfile" help:"BIF archive."`
	Dest    string `arg:"" type:"path" help:"Destination directory."`
	Workers int    `name:"workers" short:"w" default:"4" env:"NWNPATCH_WORKERS" help:"Parallel extraction workers."`
}

// Run executes the bif extract command.
func (c *BIFExtractCmd) Run(a *app) error {
	return bif.ExtractAll(a.ctx, c.Path, c.Dest, c.Workers, nil, bif.WithLogger(a.logger))
}

// RepoLsCmd lists repository resources.
type RepoLsCmd struct {
	Path   string `arg:"" type:"path" help:"Directory, key file or container."`
	Digest bool   `name:"digest" help:"Print the sha256 digest of each resource."`
}

// Run executes the repo ls command.
func (c *RepoLsCmd) Run(a *app) error {
	repo, err := nwnpatch.Open(c.Path, nwnpatch.WithLogger(a.logger))
	if err != nil {
		return err
	}
	defer repo.Close()

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, id := range repo.IDs() {
		info, err := repo.Stat(id)
		if err != nil {
			return err
		}
		line := fmt.Sprintf("%s\t%d", id.FileName(), info.Size)
		if c.Digest {
			d, err := resource.Digest(repo, id)
			if err != nil {
				return err
			}
			line += "\t" + d.String()
		}
		fmt.Fprintln(tw, line)
	}
	return tw.Flush()
}

// RepoCatCmd prints one resource.
type RepoCatCmd struct {
	Path string `arg:"" type:"path" help:"Directory, key file or container."`
	Name string `arg:"" help:"Resource file name, e.g. feat.2da."`
}

// Run executes the repo cat command.
func (c *RepoCatCmd) Run(a *app) error {
	repo, err := nwnpatch.Open(c.Path, nwnpatch.WithLogger(a.logger))
	if err != nil {
		return err
	}
	defer repo.Close()

	rc, err := repo.Open(resource.ParseFileName(c.Name))
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(a.out, rc)
	return err
}
