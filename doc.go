// Package nwnpatch reads Neverwinter Nights resource stores and merges
// content patches into them.
//
// A resource store is any [Repository]: a plain directory, a KEY file
// with its BIF archives, or an ERF container (HAK, MOD, ERF). [Open]
// probes a path and returns the matching backend; [OpenInstall] stacks
// a game installation's KEY index and override directory.
//
// # Quick Start
//
// Apply a patch package against an installation:
//
//	base, err := nwnpatch.OpenInstall("/games/nwn")
//	if err != nil {
//	    return err
//	}
//	defer base.Close()
//
//	p := patcher.New(patcher.WithLogger(logger))
//	res, err := p.Apply(ctx, patcher.ApplyRequest{
//	    Package:  "./mypatch",
//	    Base:     base,
//	    GameDir:  "/games/nwn",
//	    BuildHak: true,
//	})
//
// Join two packages into one, newer first:
//
//	_, err = p.Join(ctx, "./v2", "./v1", "./joined")
//
// The low-level formats live in the [bif], [erf], [twoda] and [tlk]
// subpackages; patch merging lives in [patcher].
package nwnpatch
